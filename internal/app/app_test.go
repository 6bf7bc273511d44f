package app

import (
	"encoding/json"
	"testing"
	"time"

	"aerolite/backend/pkg/contracts"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSONEncodesEventAmountsAsNumbers(t *testing.T) {
	ConfigureJSON()

	raw, err := json.Marshal(contracts.OrderCreatedEvent{
		EventID:   contracts.NewEventID(),
		OrderID:   1,
		UserID:    1,
		Amount:    decimal.RequireFromString("150000.50"),
		ItemCount: 1,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 150000.5, decoded["amount"])
}
