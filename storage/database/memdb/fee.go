package memdb

import (
	"context"

	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/core/roster"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateEntry(_ context.Context, e fee.Entry) (fee.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.batches[e.BatchID]; !ok {
		return fee.Entry{}, roster.ErrBatchNotFound
	}
	repo.db.fees[e.ID] = &e
	return e, nil
}

func (repo *feeRepository) QueryBatchEntries(_ context.Context, batchID string) ([]fee.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]fee.Entry, 0)
	for _, e := range repo.db.fees {
		if e.BatchID == batchID {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}
