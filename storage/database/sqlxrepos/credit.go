package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/storage/database"
)

const creditColumns = `id, student_id, batch_id, credits, used_credits, amount_paid,
	purchase_date, expiry_date, created_at, updated_at`

type creditRow struct {
	ID           string          `db:"id"`
	StudentID    string          `db:"student_id"`
	BatchID      string          `db:"batch_id"`
	Credits      int             `db:"credits"`
	UsedCredits  int             `db:"used_credits"`
	AmountPaid   decimal.Decimal `db:"amount_paid"`
	PurchaseDate time.Time       `db:"purchase_date"`
	ExpiryDate   null.Time       `db:"expiry_date"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func toCreditRow(e credit.Entry) creditRow {
	return creditRow{
		ID:           e.ID,
		StudentID:    e.StudentID,
		BatchID:      e.BatchID,
		Credits:      e.Credits,
		UsedCredits:  e.UsedCredits,
		AmountPaid:   e.AmountPaid,
		PurchaseDate: e.PurchaseDate,
		ExpiryDate:   nullTime(e.ExpiryDate),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (r creditRow) entry() credit.Entry {
	return credit.Entry{
		ID:           r.ID,
		StudentID:    r.StudentID,
		BatchID:      r.BatchID,
		Credits:      r.Credits,
		UsedCredits:  r.UsedCredits,
		AmountPaid:   r.AmountPaid,
		PurchaseDate: r.PurchaseDate.UTC(),
		ExpiryDate:   timePtr(r.ExpiryDate),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type creditRepository struct {
	db core.DB
}

var _ credit.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(db core.DB) *creditRepository {
	return &creditRepository{db: db}
}

func (repo *creditRepository) CreateEntry(ctx context.Context, e credit.Entry) (credit.Entry, error) {
	q := `INSERT INTO credit_entries (` + creditColumns + `)
		VALUES (:id, :student_id, :batch_id, :credits, :used_credits, :amount_paid,
			:purchase_date, :expiry_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toCreditRow(e)); err != nil {
		return credit.Entry{}, trapFKErr(err, "inserting credit entry",
			fkRef{"credit_entries_student_id_fkey", e.StudentID, roster.ErrStudentNotFound},
			fkRef{"credit_entries_batch_id_fkey", e.BatchID, roster.ErrBatchNotFound},
		)
	}
	return e, nil
}

func (repo *creditRepository) GetEntry(ctx context.Context, id string) (credit.Entry, error) {
	var row creditRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+creditColumns+` FROM credit_entries WHERE id = $1`, id); err != nil {
		return credit.Entry{}, trapNoRowsErr(err, credit.ErrNotFound, "selecting credit entry")
	}
	return row.entry(), nil
}

func (repo *creditRepository) QueryEntries(ctx context.Context, filter credit.QueryFilter) ([]credit.Entry, error) {
	if !validIDs(append([]string{filter.StudentID, filter.BatchID}, filter.StudentIDs...)...) {
		return make([]credit.Entry, 0), nil
	}

	var w where
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.BatchID != "" {
		w.add("batch_id = ?", filter.BatchID)
	}
	if len(filter.StudentIDs) > 0 {
		w.add("student_id = ANY(?)", pq.Array(filter.StudentIDs))
	}
	if filter.TeacherID != "" {
		w.add("batch_id IN (SELECT id FROM batches WHERE teacher_id = ?)", filter.TeacherID)
	}
	q := `SELECT ` + creditColumns + ` FROM credit_entries` + w.String() + ` ORDER BY created_at`

	rows := make([]creditRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting credit entries")
	}
	entries := make([]credit.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func (repo *creditRepository) save(ctx context.Context, tx core.DBTransactor, e credit.Entry) error {
	q := `UPDATE credit_entries SET used_credits = :used_credits, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, tx, q, toCreditRow(e)); err != nil {
		if database.IsCheckViolation(err, "credit_entries_used_credits_check") {
			return credit.ErrUsageOutOfRange
		}
		return errors.Wrap(err, "updating credit entry")
	}
	return nil
}

func (repo *creditRepository) UpdateEntryLocked(ctx context.Context, id string, fn credit.UpdateFunc) (credit.Entry, bool, error) {
	var (
		e       credit.Entry
		changed bool
	)
	err := database.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var row creditRow
		q := `SELECT ` + creditColumns + ` FROM credit_entries WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &row, q, id); err != nil {
			return trapNoRowsErr(err, credit.ErrNotFound, "locking credit entry")
		}
		e = row.entry()
		if changed = fn(&e); !changed {
			return nil
		}
		return repo.save(ctx, tx, e)
	})
	if err != nil {
		return credit.Entry{}, false, err
	}
	return e, changed, nil
}

func (repo *creditRepository) UpdateBatchEntriesLocked(
	ctx context.Context,
	studentID, batchID string,
	fn credit.PickFunc,
) (credit.Entry, bool, error) {
	var picked *credit.Entry
	err := database.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		rows := make([]creditRow, 0)
		q := `SELECT ` + creditColumns + ` FROM credit_entries
			WHERE student_id = $1 AND batch_id = $2 ORDER BY created_at FOR UPDATE`
		if err := tx.SelectContext(ctx, &rows, q, studentID, batchID); err != nil {
			return errors.Wrap(err, "locking credit entries")
		}
		entries := make([]*credit.Entry, 0, len(rows))
		for _, r := range rows {
			e := r.entry()
			entries = append(entries, &e)
		}
		if picked = fn(entries); picked == nil {
			return nil
		}
		return repo.save(ctx, tx, *picked)
	})
	if err != nil || picked == nil {
		return credit.Entry{}, false, err
	}
	return *picked, true, nil
}
