package echoapi

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/testutil"
)

func Test_feeApi(t *testing.T) {
	fx := setup(t)
	batch := testutil.CreateBatch(t, fx.svcs.Roster, fx.teacherID, 10)

	date := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}
	entry := func(amount int64, from string, to ...string) []byte {
		ne := fee.NewEntry{Amount: decimal.NewFromInt(amount), EffectiveFrom: date(from)}
		if len(to) > 0 {
			end := date(to[0])
			ne.EffectiveTo = &end
		}
		return marshallObj(t, ne)
	}
	feesPath := fmt.Sprintf("/v1/batches/%s/fees", batch.ID)
	current := func(asOf string) string { return feesPath + "/current?as_of=" + asOf }
	adminToken := fx.token(t, fx.admin)

	runHTTPTests(t, fx.app, []httpTest{
		{name: "teacher forbidden", method: http.MethodPost, path: feesPath, body: entry(1000, "2024-01-01"), token: fx.token(t, fx.teacher), wantCode: http.StatusForbidden},
		{name: "negative amount", method: http.MethodPost, path: feesPath, body: entry(-1, "2024-01-01"), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "inverted range", method: http.MethodPost, path: feesPath, body: entry(1000, "2024-06-01", "2024-01-01"), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "unknown batch", method: http.MethodPost, path: "/v1/batches/lol/fees", body: entry(1000, "2024-01-01"), token: adminToken, wantCode: http.StatusNotFound},
		{name: "first half", method: http.MethodPost, path: feesPath, body: entry(1000, "2024-01-01", "2024-06-01"), token: adminToken, wantCode: http.StatusCreated},
		{name: "second half", method: http.MethodPost, path: feesPath, body: entry(1200, "2024-06-01"), token: adminToken, wantCode: http.StatusCreated},
		{name: "bad date", path: current("March"), token: adminToken, wantCode: http.StatusBadRequest},
		{
			name: "before any entry", path: current("2023-12-31"), token: adminToken,
			wantData: marshallObj(t, FeeResponse{BatchID: batch.ID, AsOf: "2023-12-31"}),
		},
		{
			name: "first entry", path: current("2024-03-15"), token: fx.token(t, fx.student),
			wantData: marshallObj(t, FeeResponse{BatchID: batch.ID, AsOf: "2024-03-15", Amount: "1000.00", Found: true}),
		},
		{
			name: "end is exclusive", path: current("2024-06-01"), token: adminToken,
			wantData: marshallObj(t, FeeResponse{BatchID: batch.ID, AsOf: "2024-06-01", Amount: "1200.00", Found: true}),
		},
		{
			name: "open-ended", path: current("2030-01-01"), token: adminToken,
			wantData: marshallObj(t, FeeResponse{BatchID: batch.ID, AsOf: "2030-01-01", Amount: "1200.00", Found: true}),
		},
		{name: "schedule", path: feesPath, token: adminToken},
	})
}
