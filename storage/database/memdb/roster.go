package memdb

import (
	"context"
	"sort"

	"github.com/trezcool/conservatoire/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateStudent(_ context.Context, s roster.Student) (roster.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *rosterRepository) GetStudent(_ context.Context, id string) (roster.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return *s, nil
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) UpdateStudentStatus(_ context.Context, s roster.Student) (roster.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.students[s.ID]
	if !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	stored.Status = s.Status
	stored.UpdatedAt = s.UpdatedAt
	return *stored, nil
}

func (repo *rosterRepository) CreateBatch(_ context.Context, b roster.Batch) (roster.Batch, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.batches[b.ID] = &b
	return b, nil
}

func (repo *rosterRepository) GetBatch(_ context.Context, id string) (roster.Batch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.batches[id]; ok {
		return *b, nil
	}
	return roster.Batch{}, roster.ErrBatchNotFound
}

func (repo *rosterRepository) CreateEnrollment(
	_ context.Context,
	e roster.Enrollment,
	check func(b roster.Batch, headcount int) error,
) (roster.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[e.StudentID]; !ok {
		return roster.Enrollment{}, roster.ErrStudentNotFound
	}
	b, ok := repo.db.batches[e.BatchID]
	if !ok {
		return roster.Enrollment{}, roster.ErrBatchNotFound
	}
	key := pairKey{e.StudentID, e.BatchID}
	if _, ok := repo.db.enrollments[key]; ok {
		return roster.Enrollment{}, roster.ErrAlreadyEnrolled
	}
	var headcount int
	for k := range repo.db.enrollments {
		if k.b == e.BatchID {
			headcount++
		}
	}
	if err := check(*b, headcount); err != nil {
		return roster.Enrollment{}, err
	}
	repo.db.enrollments[key] = e
	return e, nil
}

func (repo *rosterRepository) IsEnrolled(_ context.Context, studentID, batchID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.enrollments[pairKey{studentID, batchID}]
	return ok, nil
}

func (repo *rosterRepository) ListStudentBatchIDs(_ context.Context, studentID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for k := range repo.db.enrollments {
		if k.a == studentID {
			ids = append(ids, k.b)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *rosterRepository) ListTeacherStudentIDs(_ context.Context, teacherID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for k := range repo.db.enrollments {
		if b, ok := repo.db.batches[k.b]; ok && b.TeacherID == teacherID && !seen[k.a] {
			seen[k.a] = true
			ids = append(ids, k.a)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
