package roster_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/testutil"
)

func TestService_CreateStudent(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()

	_, err := svcs.Roster.CreateStudent(ctx, roster.NewStudent{Name: "   "})
	assert.True(t, core.IsValidationError(err), "unexpected error: %v", err)

	_, err = svcs.Roster.CreateStudent(ctx, roster.NewStudent{Name: "Clara", Email: "lol"})
	assert.True(t, core.IsValidationError(err), "unexpected error: %v", err)

	s, err := svcs.Roster.CreateStudent(ctx, roster.NewStudent{Name: " Clara ", Email: "Clara@Schumann.DE"})
	require.NoError(t, err)
	assert.Equal(t, "Clara", s.Name)
	assert.Equal(t, "clara@schumann.de", s.Email)
	assert.True(t, s.IsActive())
	assert.False(t, s.EnrolledAt.IsZero())
}

func TestService_CreateBatch(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)

	tests := []struct {
		name string
		nb   roster.NewBatch
	}{
		{"no name", roster.NewBatch{Course: "Piano", TeacherID: "t1", Capacity: 1, StartsOn: start}},
		{"no teacher", roster.NewBatch{Name: "A", Course: "Piano", Capacity: 1, StartsOn: start}},
		{"no capacity", roster.NewBatch{Name: "A", Course: "Piano", TeacherID: "t1", StartsOn: start}},
		{"ends before start", roster.NewBatch{Name: "A", Course: "Piano", TeacherID: "t1", Capacity: 1, StartsOn: start, EndsOn: &before}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.Roster.CreateBatch(ctx, tt.nb)
			assert.True(t, core.IsValidationError(err), "unexpected error: %v", err)
		})
	}
}

func TestService_DeactivateStudent(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	s := testutil.CreateStudent(t, svcs.Roster, "Clara")
	b := testutil.CreateBatch(t, svcs.Roster, "t1", 5)

	s, err := svcs.Roster.DeactivateStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, s.IsActive())

	// still readable
	got, err := svcs.Roster.GetStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, roster.StatusInactive, got.Status)

	_, err = svcs.Roster.Enroll(ctx, s.ID, b.ID)
	assert.Equal(t, roster.ErrStudentInactive, err)

	_, err = svcs.Roster.DeactivateStudent(ctx, "lol")
	assert.Equal(t, roster.ErrStudentNotFound, err)
}

func TestService_Enroll(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	clara := testutil.CreateStudent(t, svcs.Roster, "Clara")
	robert := testutil.CreateStudent(t, svcs.Roster, "Robert")
	b := testutil.CreateBatch(t, svcs.Roster, "t1", 1)

	_, err := svcs.Roster.Enroll(ctx, "lol", b.ID)
	assert.Equal(t, roster.ErrStudentNotFound, err)

	_, err = svcs.Roster.Enroll(ctx, clara.ID, "lol")
	assert.True(t, core.IsNotFound(err), "unexpected error: %v", err)

	e, err := svcs.Roster.Enroll(ctx, clara.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, roster.Enrollment{StudentID: clara.ID, BatchID: b.ID, EnrolledAt: e.EnrolledAt}, e)

	_, err = svcs.Roster.Enroll(ctx, clara.ID, b.ID)
	assert.Equal(t, roster.ErrAlreadyEnrolled, errors.Cause(err))

	_, err = svcs.Roster.Enroll(ctx, robert.ID, b.ID)
	assert.Equal(t, roster.ErrBatchFull, errors.Cause(err))

	ok, err := svcs.Roster.IsEnrolled(ctx, clara.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svcs.Roster.IsEnrolled(ctx, robert.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Enroll_endedBatch(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	s := testutil.CreateStudent(t, svcs.Roster, "Clara")

	start := core.NowFunc().AddDate(0, -2, 0)
	end := core.NowFunc().AddDate(0, 0, -1)
	b, err := svcs.Roster.CreateBatch(ctx, roster.NewBatch{
		Name: "Winter", Course: "Cello", TeacherID: "t1", Capacity: 3, StartsOn: start, EndsOn: &end,
	})
	require.NoError(t, err)

	_, err = svcs.Roster.Enroll(ctx, s.ID, b.ID)
	assert.Equal(t, roster.ErrBatchNotRunning, errors.Cause(err))
}

func TestService_Enroll_concurrentCapacity(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	b := testutil.CreateBatch(t, svcs.Roster, "t1", 3)

	students := make([]roster.Student, 10)
	for i := range students {
		students[i] = testutil.CreateStudent(t, svcs.Roster, "Student")
	}

	var (
		wg       sync.WaitGroup
		enrolled int32
	)
	for _, s := range students {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svcs.Roster.Enroll(ctx, id, b.ID); err == nil {
				atomic.AddInt32(&enrolled, 1)
			} else {
				assert.Equal(t, roster.ErrBatchFull, errors.Cause(err))
			}
		}(s.ID)
	}
	wg.Wait()
	assert.Equal(t, int32(3), enrolled)
}

func TestService_teacherLookups(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	clara := testutil.CreateStudent(t, svcs.Roster, "Clara")
	robert := testutil.CreateStudent(t, svcs.Roster, "Robert")
	piano := testutil.CreateBatch(t, svcs.Roster, "t1", 5)
	organ := testutil.CreateBatch(t, svcs.Roster, "t1", 5)
	violin := testutil.CreateBatch(t, svcs.Roster, "t2", 5)
	testutil.Enroll(t, svcs.Roster, clara.ID, piano.ID)
	testutil.Enroll(t, svcs.Roster, clara.ID, organ.ID)
	testutil.Enroll(t, svcs.Roster, robert.ID, violin.ID)

	teacherID, err := svcs.Roster.BatchTeacherID(ctx, violin.ID)
	require.NoError(t, err)
	assert.Equal(t, "t2", teacherID)

	_, err = svcs.Roster.BatchTeacherID(ctx, "lol")
	assert.Equal(t, roster.ErrBatchNotFound, err)

	ids, err := svcs.Roster.TeacherStudentIDs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{clara.ID}, ids)

	batchIDs, err := svcs.Roster.StudentBatchIDs(ctx, clara.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{piano.ID, organ.ID}, batchIDs)
}
