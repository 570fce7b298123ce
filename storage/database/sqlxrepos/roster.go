package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/storage/database"
)

type batchRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Course    string    `db:"course"`
	TeacherID string    `db:"teacher_id"`
	Capacity  int       `db:"capacity"`
	StartsOn  time.Time `db:"starts_on"`
	EndsOn    null.Time `db:"ends_on"`
	CreatedAt time.Time `db:"created_at"`
}

func toBatchRow(b roster.Batch) batchRow {
	return batchRow{
		ID:        b.ID,
		Name:      b.Name,
		Course:    b.Course,
		TeacherID: b.TeacherID,
		Capacity:  b.Capacity,
		StartsOn:  b.StartsOn,
		EndsOn:    nullTime(b.EndsOn),
		CreatedAt: b.CreatedAt,
	}
}

func (r batchRow) batch() roster.Batch {
	return roster.Batch{
		ID:        r.ID,
		Name:      r.Name,
		Course:    r.Course,
		TeacherID: r.TeacherID,
		Capacity:  r.Capacity,
		StartsOn:  r.StartsOn.UTC(),
		EndsOn:    timePtr(r.EndsOn),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type rosterRepository struct {
	db core.DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db core.DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateStudent(ctx context.Context, s roster.Student) (roster.Student, error) {
	q := `INSERT INTO students (id, name, email, status, enrolled_at, created_at, updated_at)
		VALUES (:id, :name, :email, :status, :enrolled_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, s); err != nil {
		return roster.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	var s roster.Student
	q := `SELECT id, name, email, status, enrolled_at, created_at, updated_at FROM students WHERE id = $1`
	if err := repo.db.GetContext(ctx, &s, q, id); err != nil {
		return roster.Student{}, trapNoRowsErr(err, roster.ErrStudentNotFound, "selecting student")
	}
	return s, nil
}

func (repo *rosterRepository) UpdateStudentStatus(ctx context.Context, s roster.Student) (roster.Student, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`, s.ID, s.Status, s.UpdatedAt)
	if err != nil {
		return roster.Student{}, errors.Wrap(err, "updating student status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	return repo.GetStudent(ctx, s.ID)
}

func (repo *rosterRepository) CreateBatch(ctx context.Context, b roster.Batch) (roster.Batch, error) {
	q := `INSERT INTO batches (id, name, course, teacher_id, capacity, starts_on, ends_on, created_at)
		VALUES (:id, :name, :course, :teacher_id, :capacity, :starts_on, :ends_on, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toBatchRow(b)); err != nil {
		return roster.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return b, nil
}

func (repo *rosterRepository) GetBatch(ctx context.Context, id string) (roster.Batch, error) {
	var row batchRow
	q := `SELECT id, name, course, teacher_id, capacity, starts_on, ends_on, created_at FROM batches WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return roster.Batch{}, trapNoRowsErr(err, roster.ErrBatchNotFound, "selecting batch")
	}
	return row.batch(), nil
}

func (repo *rosterRepository) CreateEnrollment(
	ctx context.Context,
	e roster.Enrollment,
	check func(b roster.Batch, headcount int) error,
) (roster.Enrollment, error) {
	err := database.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var row batchRow
		q := `SELECT id, name, course, teacher_id, capacity, starts_on, ends_on, created_at
			FROM batches WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &row, q, e.BatchID); err != nil {
			return trapNoRowsErr(err, roster.ErrBatchNotFound, "locking batch")
		}

		var headcount int
		if err := tx.GetContext(ctx, &headcount, `SELECT count(*) FROM enrollments WHERE batch_id = $1`, e.BatchID); err != nil {
			return errors.Wrap(err, "counting enrollments")
		}
		if err := check(row.batch(), headcount); err != nil {
			return err
		}

		q = `INSERT INTO enrollments (student_id, batch_id, enrolled_at) VALUES (:student_id, :batch_id, :enrolled_at)`
		if _, err := sqlx.NamedExecContext(ctx, tx, q, e); err != nil {
			if database.IsUniqueViolation(err, "enrollments_student_batch_key") {
				return roster.ErrAlreadyEnrolled
			}
			return trapFKErr(err, "inserting enrollment",
				fkRef{"enrollments_student_id_fkey", e.StudentID, roster.ErrStudentNotFound})
		}
		return nil
	})
	if err != nil {
		return roster.Enrollment{}, err
	}
	return e, nil
}

func (repo *rosterRepository) IsEnrolled(ctx context.Context, studentID, batchID string) (bool, error) {
	if !validIDs(studentID, batchID) {
		return false, nil
	}
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND batch_id = $2)`
	if err := repo.db.GetContext(ctx, &exists, q, studentID, batchID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return exists, nil
}

func (repo *rosterRepository) ListStudentBatchIDs(ctx context.Context, studentID string) ([]string, error) {
	ids := make([]string, 0)
	q := `SELECT batch_id FROM enrollments WHERE student_id = $1 ORDER BY batch_id`
	if err := repo.db.SelectContext(ctx, &ids, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting student batches")
	}
	return ids, nil
}

func (repo *rosterRepository) ListTeacherStudentIDs(ctx context.Context, teacherID string) ([]string, error) {
	ids := make([]string, 0)
	q := `SELECT DISTINCT e.student_id FROM enrollments e
		JOIN batches b ON b.id = e.batch_id
		WHERE b.teacher_id = $1 ORDER BY e.student_id`
	if err := repo.db.SelectContext(ctx, &ids, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting teacher students")
	}
	return ids, nil
}
