package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var out kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func (f *fakeProducer) Close() { f.closed = true }

func TestPublishOrderPaid(t *testing.T) {
	fp := &fakeProducer{}
	c := &Conf{client: fp}

	paidAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := c.PublishOrderPaid(context.Background(), OrderPaidEvent{
		OrderID: "order-1", PaymentID: "pay-1", PaymentIntentID: "pi_1", Amount: 2500, PaidAt: paidAt,
	})
	require.NoError(t, err)
	require.Len(t, fp.records, 1)

	r := fp.records[0]
	assert.Equal(t, TopicOrderPaid, r.Topic)
	assert.Equal(t, "order-1", string(r.Key))

	var got OrderPaidEvent
	require.NoError(t, json.Unmarshal(r.Value, &got))
	assert.Equal(t, int64(2500), got.Amount)
	assert.Equal(t, "pi_1", got.PaymentIntentID)
	assert.True(t, paidAt.Equal(got.PaidAt))

	c.Close()
	assert.True(t, fp.closed)
}

func TestPublishOrderPaid_BrokerError(t *testing.T) {
	c := &Conf{client: &fakeProducer{err: errors.New("not leader for partition")}}

	err := c.PublishOrderPaid(context.Background(), OrderPaidEvent{OrderID: "order-1"})
	assert.ErrorContains(t, err, "not leader for partition")
}

func TestNewConf_NoBrokers(t *testing.T) {
	_, err := NewConf(nil)
	assert.Error(t, err)
	assert.NoError(t, Noop{}.PublishOrderPaid(context.Background(), OrderPaidEvent{}))
}
