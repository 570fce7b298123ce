package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/storage/database"
)

const sessionColumns = `id, batch_id, starts_at, status, created_at, updated_at`

type recordRow struct {
	ID        string      `db:"id"`
	SessionID string      `db:"session_id"`
	StudentID string      `db:"student_id"`
	Status    string      `db:"status"`
	MarkedBy  string      `db:"marked_by"`
	Notes     null.String `db:"notes"`
	MarkedAt  time.Time   `db:"marked_at"`
}

func (r recordRow) record() attendance.Record {
	return attendance.Record{
		ID:        r.ID,
		SessionID: r.SessionID,
		StudentID: r.StudentID,
		Status:    r.Status,
		MarkedBy:  r.MarkedBy,
		Notes:     r.Notes.String,
		MarkedAt:  r.MarkedAt.UTC(),
	}
}

type attendanceRepository struct {
	db core.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db core.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	q := `INSERT INTO class_sessions (` + sessionColumns + `)
		VALUES (:id, :batch_id, :starts_at, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, s); err != nil {
		return attendance.Session{}, trapFKErr(err, "inserting session",
			fkRef{"class_sessions_batch_id_fkey", s.BatchID, roster.ErrBatchNotFound})
	}
	return s, nil
}

func (repo *attendanceRepository) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	var s attendance.Session
	if err := repo.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM class_sessions WHERE id = $1`, id); err != nil {
		return attendance.Session{}, trapNoRowsErr(err, attendance.ErrSessionNotFound, "selecting session")
	}
	return s, nil
}

func (repo *attendanceRepository) QueryBatchSessions(ctx context.Context, batchID string) ([]attendance.Session, error) {
	sessions := make([]attendance.Session, 0)
	q := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE batch_id = $1 ORDER BY starts_at`
	if err := repo.db.SelectContext(ctx, &sessions, q, batchID); err != nil {
		return nil, errors.Wrap(err, "selecting batch sessions")
	}
	return sessions, nil
}

func lockSession(ctx context.Context, tx core.DBTransactor, id string) (attendance.Session, error) {
	var s attendance.Session
	q := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &s, q, id); err != nil {
		return attendance.Session{}, trapNoRowsErr(err, attendance.ErrSessionNotFound, "locking session")
	}
	return s, nil
}

func (repo *attendanceRepository) UpdateSessionLocked(
	ctx context.Context,
	id string,
	fn func(s *attendance.Session) error,
) (attendance.Session, error) {
	var s attendance.Session
	err := database.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var err error
		if s, err = lockSession(ctx, tx, id); err != nil {
			return err
		}
		if err = fn(&s); err != nil {
			return err
		}
		q := `UPDATE class_sessions SET status = :status, starts_at = :starts_at, updated_at = :updated_at WHERE id = :id`
		if _, err = sqlx.NamedExecContext(ctx, tx, q, s); err != nil {
			return errors.Wrap(err, "updating session")
		}
		return nil
	})
	if err != nil {
		return attendance.Session{}, err
	}
	return s, nil
}

func (repo *attendanceRepository) UpsertRecord(
	ctx context.Context,
	rec attendance.Record,
	guard attendance.MarkGuard,
) (attendance.Record, error) {
	var saved recordRow
	err := database.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		s, err := lockSession(ctx, tx, rec.SessionID)
		if err != nil {
			return err
		}
		var enrolled bool
		if validIDs(rec.StudentID) {
			q := `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND batch_id = $2)`
			if err = tx.GetContext(ctx, &enrolled, q, rec.StudentID, s.BatchID); err != nil {
				return errors.Wrap(err, "checking enrollment")
			}
		}
		if err = guard(s, enrolled); err != nil {
			return err
		}

		q := `INSERT INTO attendance_records (id, session_id, student_id, status, marked_by, notes, marked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT ON CONSTRAINT attendance_records_session_student_key
			DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by,
				notes = EXCLUDED.notes, marked_at = EXCLUDED.marked_at
			RETURNING id, session_id, student_id, status, marked_by, notes, marked_at`
		err = tx.GetContext(ctx, &saved, q,
			rec.ID, rec.SessionID, rec.StudentID, rec.Status, rec.MarkedBy, nullString(rec.Notes), rec.MarkedAt)
		if err != nil {
			return trapFKErr(err, "upserting attendance record",
				fkRef{"attendance_records_student_id_fkey", rec.StudentID, roster.ErrStudentNotFound})
		}
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}
	return saved.record(), nil
}

func recordWhere(filter attendance.RecordFilter) where {
	var w where
	if filter.SessionID != "" {
		w.add("session_id = ?", filter.SessionID)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	return w
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	if !validIDs(filter.SessionID, filter.StudentID) {
		return make([]attendance.Record, 0), nil
	}
	w := recordWhere(filter)
	rows := make([]recordRow, 0)
	q := `SELECT id, session_id, student_id, status, marked_by, notes, marked_at
		FROM attendance_records` + w.String() + ` ORDER BY marked_at`
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (repo *attendanceRepository) CountRecords(ctx context.Context, filter attendance.RecordFilter) (attendance.Counts, error) {
	if !validIDs(filter.SessionID, filter.StudentID) {
		return attendance.Counts{}, nil
	}
	w := recordWhere(filter)
	var c attendance.Counts
	q := `SELECT count(*) FILTER (WHERE status = 'present') AS present, count(*) AS total
		FROM attendance_records` + w.String()
	if err := repo.db.GetContext(ctx, &c, q, w.args...); err != nil {
		return attendance.Counts{}, errors.Wrap(err, "counting attendance records")
	}
	return c, nil
}
