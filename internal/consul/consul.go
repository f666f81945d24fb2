package consul

import (
	"fmt"
	"log/slog"

	consulapi "github.com/hashicorp/consul/api"
)

type Registration struct {
	ID   string
	Name string
	Host string
	Port int
	// HealthPath is polled by the agent over HTTP, e.g. /healthz.
	HealthPath string
}

func NewClient(addr string) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return client, nil
}

// Register adds the service to the local agent with an HTTP health check.
func Register(client *consulapi.Client, r Registration) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      r.ID,
		Name:    r.Name,
		Address: r.Host,
		Port:    r.Port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", r.Host, r.Port, r.HealthPath),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("failed to register %s with consul: %w", r.Name, err)
	}
	slog.Info("registered with consul", slog.String("service", r.Name), slog.String("id", r.ID))
	return nil
}

func Deregister(client *consulapi.Client, id string) error {
	if err := client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("failed to deregister %s from consul: %w", id, err)
	}
	return nil
}
