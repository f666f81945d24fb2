package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent answers the few agent endpoints the package talks to.
func fakeAgent(t *testing.T, registered *consulapi.AgentServiceRegistration, deregistered *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/agent/service/register":
			require.NoError(t, json.NewDecoder(r.Body).Decode(registered))
		case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
			*deregistered = strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisterAndDeregister(t *testing.T) {
	var reg consulapi.AgentServiceRegistration
	var dereg string
	srv := fakeAgent(t, &reg, &dereg)

	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	err = Register(client, Registration{ID: "ecommerce-1", Name: "ecommerce", Host: "10.0.0.7", Port: 8080, HealthPath: "/healthz"})
	require.NoError(t, err)
	assert.Equal(t, "ecommerce", reg.Name)
	require.NotNil(t, reg.Check)
	assert.Equal(t, "http://10.0.0.7:8080/healthz", reg.Check.HTTP)

	require.NoError(t, Deregister(client, "ecommerce-1"))
	assert.Equal(t, "ecommerce-1", dereg)
}
