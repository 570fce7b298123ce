package sqlxrepos

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core"
)

// newMockDB returns a sqlx handle backed by sqlmock; unmet expectations fail the test.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

// sqlText matches a query fragment literally.
func sqlText(s string) string {
	return regexp.QuoteMeta(s)
}

var errMalformedUUID = &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "lol"`}

func TestTrapNoRowsErr(t *testing.T) {
	notFound := core.NewNotFoundError("thing not found")
	boom := errors.New("connection reset")

	assert.Equal(t, notFound, trapNoRowsErr(errors.Wrap(errMalformedUUID, "querying"), notFound, "selecting thing"))
	err := trapNoRowsErr(boom, notFound, "selecting thing")
	assert.Equal(t, boom, errors.Cause(err))
	assert.EqualError(t, err, "selecting thing: connection reset")
}

func TestTrapFKErr(t *testing.T) {
	studentNotFound := core.NewNotFoundError("student not found")
	batchNotFound := core.NewNotFoundError("batch not found")
	refs := func(studentID, batchID string) []fkRef {
		return []fkRef{
			{"things_student_id_fkey", studentID, studentNotFound},
			{"things_batch_id_fkey", batchID, batchNotFound},
		}
	}

	tests := []struct {
		name      string
		err       error
		studentID string
		batchID   string
		want      error
	}{
		{
			name:      "violation on second key",
			err:       &pq.Error{Code: "23503", Constraint: "things_batch_id_fkey"},
			studentID: core.NewID(),
			batchID:   core.NewID(),
			want:      batchNotFound,
		},
		{name: "malformed first id", err: errMalformedUUID, studentID: "lol", batchID: core.NewID(), want: studentNotFound},
		{name: "malformed second id", err: errMalformedUUID, studentID: core.NewID(), batchID: "lol", want: batchNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trapFKErr(tt.err, "inserting thing", refs(tt.studentID, tt.batchID)...))
		})
	}

	other := &pq.Error{Code: "23503", Constraint: "things_teacher_id_fkey"}
	err := trapFKErr(other, "inserting thing", refs(core.NewID(), core.NewID())...)
	assert.Equal(t, other, errors.Cause(err))
}

func TestValidIDs(t *testing.T) {
	assert.True(t, validIDs())
	assert.True(t, validIDs("", core.NewID()))
	assert.False(t, validIDs(core.NewID(), "lol"))
}

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("student_id = ?", "s1")
	w.add("batch_id IN (SELECT id FROM batches WHERE teacher_id = ?)", "t1")
	assert.Equal(t, " WHERE student_id = $1 AND batch_id IN (SELECT id FROM batches WHERE teacher_id = $2)", w.String())
	assert.Equal(t, []interface{}{"s1", "t1"}, w.args)
}
