package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/core/roster"
)

type feeRow struct {
	ID            string          `db:"id"`
	BatchID       string          `db:"batch_id"`
	Amount        decimal.Decimal `db:"amount"`
	EffectiveFrom time.Time       `db:"effective_from"`
	EffectiveTo   null.Time       `db:"effective_to"`
	CreatedAt     time.Time       `db:"created_at"`
}

type feeRepository struct {
	db core.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db core.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateEntry(ctx context.Context, e fee.Entry) (fee.Entry, error) {
	row := feeRow{
		ID:            e.ID,
		BatchID:       e.BatchID,
		Amount:        e.Amount,
		EffectiveFrom: e.EffectiveFrom,
		EffectiveTo:   nullTime(e.EffectiveTo),
		CreatedAt:     e.CreatedAt,
	}
	q := `INSERT INTO fee_schedule_entries (id, batch_id, amount, effective_from, effective_to, created_at)
		VALUES (:id, :batch_id, :amount, :effective_from, :effective_to, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, row); err != nil {
		return fee.Entry{}, trapFKErr(err, "inserting fee entry",
			fkRef{"fee_schedule_entries_batch_id_fkey", e.BatchID, roster.ErrBatchNotFound})
	}
	return e, nil
}

func (repo *feeRepository) QueryBatchEntries(ctx context.Context, batchID string) ([]fee.Entry, error) {
	rows := make([]feeRow, 0)
	q := `SELECT id, batch_id, amount, effective_from, effective_to, created_at
		FROM fee_schedule_entries WHERE batch_id = $1`
	if err := repo.db.SelectContext(ctx, &rows, q, batchID); err != nil {
		return nil, errors.Wrap(err, "selecting fee entries")
	}
	entries := make([]fee.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, fee.Entry{
			ID:            r.ID,
			BatchID:       r.BatchID,
			Amount:        r.Amount,
			EffectiveFrom: r.EffectiveFrom.UTC(),
			EffectiveTo:   timePtr(r.EffectiveTo),
			CreatedAt:     r.CreatedAt.UTC(),
		})
	}
	return entries, nil
}
