package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelayBacksOffAndCaps(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{-3, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{42, 32 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, retryDelay(tc.attempts), "attempts=%d", tc.attempts)
	}
}

func TestNewOutboxDispatcherDefaultsBatch(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil, "order_outbox", time.Second, 0, nil)
	assert.Equal(t, 32, d.batchSize)
	assert.Equal(t, "order_outbox", d.table)
}

func TestOutboxQueriesQuoteTable(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil, `odd"name`, time.Second, 10, nil)
	for _, q := range []string{d.claimQuery, d.sentQuery, d.retryQuery} {
		assert.Contains(t, q, `"odd""name"`)
	}
	assert.Contains(t, d.claimQuery, "SKIP LOCKED")
}
