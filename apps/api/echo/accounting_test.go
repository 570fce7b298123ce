package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core/accounting"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/testutil"
)

func Test_accountingApi(t *testing.T) {
	fx := setup(t)
	batch := testutil.CreateBatch(t, fx.svcs.Roster, fx.teacherID, 10)
	empty := testutil.CreateBatch(t, fx.svcs.Roster, fx.teacherID, 10)
	testutil.Enroll(t, fx.svcs.Roster, fx.studentID, batch.ID)
	testutil.Enroll(t, fx.svcs.Roster, fx.studentID, empty.ID)
	testutil.Grant(t, fx.svcs.Credit, fx.studentID, batch.ID, 4)
	_, err := fx.svcs.Payment.CreatePayment(context.Background(), payment.NewPayment{StudentID: fx.studentID, Amount: decimal.RequireFromString("99.5")})
	require.NoError(t, err)

	canAttend := func(batchID string) string {
		return fmt.Sprintf("/v1/students/%s/can-attend?batch=%s", fx.studentID, batchID)
	}
	studentToken := fx.token(t, fx.student)
	runHTTPTests(t, fx.app, []httpTest{
		{name: "can attend: batch required", path: fmt.Sprintf("/v1/students/%s/can-attend", fx.studentID), token: studentToken, wantCode: http.StatusBadRequest},
		{name: "can attend", path: canAttend(batch.ID), token: studentToken, wantData: marshallObj(t, CanAttendResponse{CanAttend: true})},
		{name: "cannot attend", path: canAttend(empty.ID), token: studentToken, wantData: marshallObj(t, CanAttendResponse{})},
		{name: "other teacher", path: canAttend(batch.ID), token: fx.token(t, fx.other), wantCode: http.StatusForbidden},
		{
			name: "balance", path: fmt.Sprintf("/v1/students/%s/balance", fx.studentID), token: fx.token(t, fx.teacher),
			wantData: marshallObj(t, BalanceResponse{StudentID: fx.studentID, Outstanding: "99.50"}),
		},
	})

	rec := fx.do(http.MethodGet, fmt.Sprintf("/v1/students/%s/statement", fx.studentID), studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var st accounting.Statement
	unmarshall(t, rec, &st)
	assert.Equal(t, fx.studentID, st.StudentID)
	assert.True(t, st.Outstanding.Equal(decimal.RequireFromString("99.5")))
	assert.ElementsMatch(t, []accounting.BatchCredits{
		{BatchID: batch.ID, Remaining: 4},
		{BatchID: empty.ID, Remaining: 0},
	}, st.Credits)
}
