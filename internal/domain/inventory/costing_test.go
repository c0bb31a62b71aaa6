package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name    string
		oldCost *decimal.Decimal
		oldQty  string
		inCost  string
		inQty   string
		want    string
	}{
		{"first receipt", nil, "0", "2.00", "10", "2"},
		{"blend", ptr(dec("2.00")), "10", "3.00", "5", "2.3333"},
		{"receipt at current average is idempotent", ptr(dec("2.3333")), "11", "2.3333", "7", "2.3333"},
		{"negative on-hand takes incoming cost", ptr(dec("5")), "-2", "3", "4", "3"},
		{"zero inbound keeps cost", ptr(dec("5")), "10", "9", "0", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAverage(tt.oldCost, dec(tt.oldQty), dec(tt.inCost), dec(tt.inQty))
			require.NotNil(t, got)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}

	assert.Nil(t, WeightedAverage(nil, dec("0"), dec("1"), dec("0")))
}

func TestNewBatch(t *testing.T) {
	produced := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := produced.AddDate(0, 0, 20)
	params := NewBatchParams{
		TenantID:       uuid.New(),
		ProductID:      uuid.New(),
		LocationID:     uuid.New(),
		BatchNumber:    " B-001 ",
		ProductionDate: produced,
		ExpiryDate:     &expiry,
		Quantity:       dec("30"),
		BulkPrice:      dec("100.00"),
	}

	t.Run("derives unit cost from bulk price", func(t *testing.T) {
		b, err := NewBatch(params)
		require.NoError(t, err)
		assert.Equal(t, "B-001", b.BatchNumber)
		assert.Equal(t, "3.3333", b.UnitCost.String())
	})

	t.Run("explicit unit cost wins", func(t *testing.T) {
		p := params
		p.UnitCost = ptr(dec("3.5"))
		b, err := NewBatch(p)
		require.NoError(t, err)
		assert.True(t, b.UnitCost.Equal(dec("3.5")))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		p := params
		p.Quantity = decimal.Zero
		_, err := NewBatch(p)
		assert.Error(t, err)

		p = params
		early := produced.AddDate(0, 0, -1)
		p.ExpiryDate = &early
		_, err = NewBatch(p)
		assert.Error(t, err)

		p = params
		p.BatchNumber = "  "
		_, err = NewBatch(p)
		assert.Error(t, err)
	})

	t.Run("expiry helpers", func(t *testing.T) {
		b, err := NewBatch(params)
		require.NoError(t, err)
		now := produced.AddDate(0, 0, 5)
		assert.Equal(t, 15, b.DaysUntilExpiry(now))
		assert.True(t, b.ExpiresWithin(now, 30))
		assert.False(t, b.ExpiresWithin(now, 10))
		assert.False(t, b.IsExpired(now))
		assert.True(t, b.IsExpired(expiry))
	})
}
