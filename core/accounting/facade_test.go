package accounting_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core/accounting"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/testutil"
)

func TestFacade_CanAttend(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	s := testutil.CreateStudent(t, svcs.Roster, "Clara")
	b := testutil.CreateBatch(t, svcs.Roster, "t1", 5)
	testutil.Enroll(t, svcs.Roster, s.ID, b.ID)

	ok, err := svcs.Accounting.CanAttend(ctx, s.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no credits granted yet")

	// expired credits do not count
	now := time.Now().UTC()
	testutil.FreezeTime(t, now.AddDate(0, 0, -10))
	testutil.Grant(t, svcs.Credit, s.ID, b.ID, 3, now.AddDate(0, 0, -1))
	testutil.FreezeTime(t, now)
	ok, err = svcs.Accounting.CanAttend(ctx, s.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	e := testutil.Grant(t, svcs.Credit, s.ID, b.ID, 1)
	ok, err = svcs.Accounting.CanAttend(ctx, s.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	consumed, err := svcs.Credit.Consume(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, consumed)
	ok, err = svcs.Accounting.CanAttend(ctx, s.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok, "the only usable credit was consumed")
}

func TestFacade_Statement(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	s := testutil.CreateStudent(t, svcs.Roster, "Clara")
	piano := testutil.CreateBatch(t, svcs.Roster, "t1", 5)
	organ := testutil.CreateBatch(t, svcs.Roster, "t1", 5)
	testutil.Enroll(t, svcs.Roster, s.ID, piano.ID)
	testutil.Enroll(t, svcs.Roster, s.ID, organ.ID)
	testutil.Grant(t, svcs.Credit, s.ID, piano.ID, 10)
	testutil.Grant(t, svcs.Credit, s.ID, piano.ID, 2)

	_, _, err := svcs.Credit.ConsumeForBatch(ctx, s.ID, piano.ID)
	require.NoError(t, err)

	paid, err := svcs.Payment.CreatePayment(ctx, payment.NewPayment{StudentID: s.ID, Amount: decimal.NewFromInt(1200)})
	require.NoError(t, err)
	_, err = svcs.Payment.CreatePayment(ctx, payment.NewPayment{StudentID: s.ID, Amount: decimal.RequireFromString("450.25")})
	require.NoError(t, err)
	_, err = svcs.Payment.OpenTransaction(ctx, paid.ID, "order-1")
	require.NoError(t, err)
	_, _, err = svcs.Payment.ApplyGatewayUpdate(ctx, payment.GatewayUpdate{MerchantTransactionID: "order-1", Status: payment.TxCompleted})
	require.NoError(t, err)

	st, err := svcs.Accounting.Statement(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, st.StudentID)
	assert.ElementsMatch(t, []accounting.BatchCredits{
		{BatchID: piano.ID, Remaining: 11},
		{BatchID: organ.ID, Remaining: 0},
	}, st.Credits)
	assert.Equal(t, "450.25", st.Outstanding.String())

	balance, err := svcs.Accounting.OutstandingBalance(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(st.Outstanding))
}

type failingReaders struct{ err error }

func (f failingReaders) Remaining(context.Context, string, string) (int, error) { return 0, f.err }
func (f failingReaders) Outstanding(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, f.err
}
func (f failingReaders) StudentBatchIDs(context.Context, string) ([]string, error) {
	return []string{"b1"}, nil
}

func TestFacade_errors(t *testing.T) {
	ctx := context.Background()
	errDB := errors.New("connection reset")
	f := accounting.NewFacade(failingReaders{errDB}, failingReaders{errDB}, failingReaders{errDB})

	_, err := f.CanAttend(ctx, "s1", "b1")
	assert.Equal(t, errDB, err)

	_, err = f.OutstandingBalance(ctx, "s1")
	assert.Equal(t, errDB, err)

	_, err = f.Statement(ctx, "s1")
	assert.Equal(t, errDB, err)
}
