package memdb

import (
	"context"
	"sort"

	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/roster"
)

type creditRepository struct {
	db *DB
}

var _ credit.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(db *DB) *creditRepository {
	return &creditRepository{db: db}
}

func (repo *creditRepository) CreateEntry(_ context.Context, e credit.Entry) (credit.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[e.StudentID]; !ok {
		return credit.Entry{}, roster.ErrStudentNotFound
	}
	if _, ok := repo.db.batches[e.BatchID]; !ok {
		return credit.Entry{}, roster.ErrBatchNotFound
	}
	repo.db.credits[e.ID] = &e
	return e, nil
}

func (repo *creditRepository) GetEntry(_ context.Context, id string) (credit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.credits[id]; ok {
		return *e, nil
	}
	return credit.Entry{}, credit.ErrNotFound
}

func (repo *creditRepository) QueryEntries(_ context.Context, filter credit.QueryFilter) ([]credit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]credit.Entry, 0)
	for _, e := range repo.db.credits {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		if len(filter.StudentIDs) > 0 && !containsString(filter.StudentIDs, e.StudentID) {
			continue
		}
		if filter.TeacherID != "" {
			if b, ok := repo.db.batches[e.BatchID]; !ok || b.TeacherID != filter.TeacherID {
				continue
			}
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (repo *creditRepository) UpdateEntryLocked(_ context.Context, id string, fn credit.UpdateFunc) (credit.Entry, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.credits[id]
	if !ok {
		return credit.Entry{}, false, credit.ErrNotFound
	}
	e := *stored
	if !fn(&e) {
		return *stored, false, nil
	}
	if err := checkUsedCredits(e); err != nil {
		return *stored, false, err
	}
	*stored = e
	return e, true, nil
}

func (repo *creditRepository) UpdateBatchEntriesLocked(
	_ context.Context,
	studentID, batchID string,
	fn credit.PickFunc,
) (credit.Entry, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entries := make([]*credit.Entry, 0)
	for _, stored := range repo.db.credits {
		if stored.StudentID == studentID && stored.BatchID == batchID {
			e := *stored
			entries = append(entries, &e)
		}
	}
	picked := fn(entries)
	if picked == nil {
		return credit.Entry{}, false, nil
	}
	if err := checkUsedCredits(*picked); err != nil {
		return credit.Entry{}, false, err
	}
	*repo.db.credits[picked.ID] = *picked
	return *picked, true, nil
}

// checkUsedCredits mirrors the credit_entries_used_credits_check constraint.
func checkUsedCredits(e credit.Entry) error {
	if e.UsedCredits < 0 || e.UsedCredits > e.Credits {
		return credit.ErrUsageOutOfRange
	}
	return nil
}
