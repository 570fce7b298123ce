package attendance_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/testutil"
)

type fixture struct {
	svcs    *testutil.Services
	batchID string
	session attendance.Session
	alice   string
	bob     string
}

func setup(t *testing.T) fixture {
	svcs := testutil.NewServices()
	b := testutil.CreateBatch(t, svcs.Roster, core.NewID(), 10)
	alice := testutil.CreateStudent(t, svcs.Roster, "Alice")
	bob := testutil.CreateStudent(t, svcs.Roster, "Bob")
	testutil.Enroll(t, svcs.Roster, alice.ID, b.ID)
	testutil.Enroll(t, svcs.Roster, bob.ID, b.ID)

	sess, err := svcs.Attendance.ScheduleSession(context.Background(), attendance.NewSession{BatchID: b.ID, StartsAt: core.NowFunc()})
	require.NoError(t, err)
	return fixture{svcs: svcs, batchID: b.ID, session: sess, alice: alice.ID, bob: bob.ID}
}

func (fx fixture) mark(t *testing.T, sessionID, studentID, status string) (attendance.Record, error) {
	return fx.svcs.Attendance.Mark(context.Background(), attendance.MarkRequest{
		SessionID: sessionID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  "teacher-1",
	})
}

func TestService_Mark(t *testing.T) {
	fx := setup(t)
	outsider := testutil.CreateStudent(t, fx.svcs.Roster, "Outsider")

	tests := []struct {
		name      string
		sessionID string
		studentID string
		status    string
		wantErr   error
		wantCheck func(error) bool
	}{
		{name: "bad status", sessionID: fx.session.ID, studentID: fx.alice, status: "asleep", wantCheck: core.IsValidationError},
		{name: "unknown session", sessionID: "lol", studentID: fx.alice, status: attendance.StatusPresent, wantErr: attendance.ErrSessionNotFound},
		{name: "not enrolled", sessionID: fx.session.ID, studentID: outsider.ID, status: attendance.StatusPresent, wantErr: attendance.ErrNotEnrolled},
		{name: "unknown student", sessionID: fx.session.ID, studentID: core.NewID(), status: attendance.StatusPresent, wantErr: attendance.ErrNotEnrolled},
		{name: "marked", sessionID: fx.session.ID, studentID: fx.alice, status: " Present "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := fx.mark(t, tt.sessionID, tt.studentID, tt.status)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantCheck != nil:
				assert.True(t, tt.wantCheck(err), "unexpected error: %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, attendance.StatusPresent, rec.Status)
				assert.Equal(t, "teacher-1", rec.MarkedBy)
			}
		})
	}
}

func TestService_Mark_overwrites(t *testing.T) {
	fx := setup(t)

	_, err := fx.mark(t, fx.session.ID, fx.alice, attendance.StatusAbsent)
	require.NoError(t, err)
	_, err = fx.mark(t, fx.session.ID, fx.alice, attendance.StatusPresent)
	require.NoError(t, err)

	records, err := fx.svcs.Attendance.SessionRecords(context.Background(), fx.session.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusPresent, records[0].Status)
}

// lockedRepo answers UpsertRecord with the session and enrollment it holds, as seen under the lock.
// Every other Repository method is left nil, so Mark must not read anything outside UpsertRecord.
type lockedRepo struct {
	attendance.Repository
	session  attendance.Session
	enrolled bool
	saved    []attendance.Record
}

func (r *lockedRepo) UpsertRecord(_ context.Context, rec attendance.Record, guard attendance.MarkGuard) (attendance.Record, error) {
	if err := guard(r.session, r.enrolled); err != nil {
		return attendance.Record{}, err
	}
	r.saved = append(r.saved, rec)
	return rec, nil
}

func TestService_Mark_enrollmentReadUnderLock(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	session := attendance.Session{ID: core.NewID(), BatchID: core.NewID(), Status: attendance.SessionScheduled}
	req := attendance.MarkRequest{SessionID: session.ID, StudentID: core.NewID(), Status: attendance.StatusPresent, MarkedBy: "teacher-1"}

	tests := []struct {
		name      string
		enrolled  bool
		cancelled bool
		wantErr   error
	}{
		{name: "withdrawn before the lock", wantErr: attendance.ErrNotEnrolled},
		{name: "withdrawn from a cancelled session", cancelled: true, wantErr: attendance.ErrNotEnrolled},
		{name: "enrolled on a cancelled session", enrolled: true, cancelled: true, wantErr: attendance.ErrSessionCancelled},
		{name: "enrolled", enrolled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &lockedRepo{session: session, enrolled: tt.enrolled}
			if tt.cancelled {
				repo.session.Status = attendance.SessionCancelled
			}
			svc := attendance.NewService(repo, validate, translator)

			_, err := svc.Mark(context.Background(), req)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, repo.saved)
				return
			}
			require.NoError(t, err)
			require.Len(t, repo.saved, 1)
			assert.Equal(t, req.StudentID, repo.saved[0].StudentID)
		})
	}
}

func TestService_Mark_cancelled(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	_, err := fx.svcs.Attendance.TransitionSession(ctx, fx.session.ID, attendance.SessionCancelled)
	require.NoError(t, err)

	_, err = fx.mark(t, fx.session.ID, fx.alice, attendance.StatusPresent)
	assert.Equal(t, attendance.ErrSessionCancelled, err)
}

func TestService_Mark_leavesCreditsAlone(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	testutil.Grant(t, fx.svcs.Credit, fx.alice, fx.batchID, 3)

	_, err := fx.mark(t, fx.session.ID, fx.alice, attendance.StatusPresent)
	require.NoError(t, err)

	entries, err := fx.svcs.Credit.ListEntries(ctx, credit.QueryFilter{StudentID: fx.alice, BatchID: fx.batchID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].UsedCredits)
}

func TestService_TransitionSession(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	s, err := fx.svcs.Attendance.TransitionSession(ctx, fx.session.ID, "COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, attendance.SessionCompleted, s.Status)

	s, err = fx.svcs.Attendance.TransitionSession(ctx, fx.session.ID, attendance.SessionCompleted)
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, attendance.SessionCompleted, s.Status)

	_, err = fx.svcs.Attendance.TransitionSession(ctx, fx.session.ID, attendance.SessionScheduled)
	assert.Equal(t, attendance.ErrInvalidTransition, err)

	_, err = fx.svcs.Attendance.TransitionSession(ctx, "lol", attendance.SessionCancelled)
	assert.Equal(t, attendance.ErrSessionNotFound, err)
}

func TestService_Percentages(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	pct, err := fx.svcs.Attendance.SessionPercentage(ctx, fx.session.ID)
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.Zero), "no records yields 0")

	second, err := fx.svcs.Attendance.ScheduleSession(ctx, attendance.NewSession{BatchID: fx.batchID, StartsAt: core.NowFunc()})
	require.NoError(t, err)
	third, err := fx.svcs.Attendance.ScheduleSession(ctx, attendance.NewSession{BatchID: fx.batchID, StartsAt: core.NowFunc()})
	require.NoError(t, err)

	for _, m := range []struct{ session, student, status string }{
		{fx.session.ID, fx.alice, attendance.StatusPresent},
		{fx.session.ID, fx.bob, attendance.StatusAbsent},
		{second.ID, fx.alice, attendance.StatusPresent},
		{third.ID, fx.alice, attendance.StatusLate},
	} {
		_, err := fx.mark(t, m.session, m.student, m.status)
		require.NoError(t, err)
	}

	pct, err = fx.svcs.Attendance.SessionPercentage(ctx, fx.session.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", pct.String())

	pct, err = fx.svcs.Attendance.StudentPercentage(ctx, fx.alice)
	require.NoError(t, err)
	assert.Equal(t, "66.67", pct.String())

	pct, err = fx.svcs.Attendance.StudentPercentage(ctx, fx.bob)
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.Zero))
}
