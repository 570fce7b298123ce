package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/testutil"
)

func TestService_CurrentFee(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	batch := testutil.CreateBatch(t, svcs.Roster, core.NewID(), 10)

	jan := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC) // truncated to the date
	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := svcs.Fee.AddEntry(ctx, fee.NewEntry{BatchID: batch.ID, Amount: decimal.NewFromInt(1000), EffectiveFrom: jan, EffectiveTo: &june})
	require.NoError(t, err)
	_, err = svcs.Fee.AddEntry(ctx, fee.NewEntry{BatchID: batch.ID, Amount: decimal.NewFromInt(1200), EffectiveFrom: june})
	require.NoError(t, err)

	tests := []struct {
		name       string
		asOf       time.Time
		wantAmount int64
		wantFound  bool
	}{
		{name: "before schedule", asOf: time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)},
		{name: "first day", asOf: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), wantAmount: 1000, wantFound: true},
		{name: "march", asOf: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), wantAmount: 1000, wantFound: true},
		{name: "june", asOf: time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC), wantAmount: 1200, wantFound: true},
		{name: "today", wantAmount: 1200, wantFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok, err := svcs.Fee.CurrentFee(ctx, batch.ID, tt.asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, ok)
			assert.True(t, amount.Equal(decimal.NewFromInt(tt.wantAmount)), "amount = %s", amount)
		})
	}

	schedule, err := svcs.Fee.Schedule(ctx, batch.ID)
	require.NoError(t, err)
	if assert.Len(t, schedule, 2) {
		assert.True(t, schedule[0].Amount.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, core.Date(jan), schedule[0].EffectiveFrom)
	}
}

func TestService_AddEntry(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	batch := testutil.CreateBatch(t, svcs.Roster, core.NewID(), 10)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	before := from.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		entry   fee.NewEntry
		wantErr func(error) bool
	}{
		{name: "no start", entry: fee.NewEntry{BatchID: batch.ID, Amount: decimal.NewFromInt(10)}, wantErr: core.IsValidationError},
		{name: "negative amount", entry: fee.NewEntry{BatchID: batch.ID, Amount: decimal.NewFromInt(-10), EffectiveFrom: from}, wantErr: core.IsValidationError},
		{name: "end before start", entry: fee.NewEntry{BatchID: batch.ID, Amount: decimal.NewFromInt(10), EffectiveFrom: from, EffectiveTo: &before}, wantErr: core.IsValidationError},
		{name: "end equals start", entry: fee.NewEntry{BatchID: batch.ID, Amount: decimal.NewFromInt(10), EffectiveFrom: from, EffectiveTo: &from}, wantErr: core.IsValidationError},
		{name: "unknown batch", entry: fee.NewEntry{BatchID: "lol", Amount: decimal.NewFromInt(10), EffectiveFrom: from}, wantErr: core.IsNotFound},
		{name: "free", entry: fee.NewEntry{BatchID: batch.ID, Amount: decimal.Zero, EffectiveFrom: from}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.Fee.AddEntry(ctx, tt.entry)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
