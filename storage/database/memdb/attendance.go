package memdb

import (
	"context"
	"sort"

	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/roster"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateSession(_ context.Context, s attendance.Session) (attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.batches[s.BatchID]; !ok {
		return attendance.Session{}, roster.ErrBatchNotFound
	}
	repo.db.sessions[s.ID] = &s
	return s, nil
}

func (repo *attendanceRepository) GetSession(_ context.Context, id string) (attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return *s, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) QueryBatchSessions(_ context.Context, batchID string) ([]attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]attendance.Session, 0)
	for _, s := range repo.db.sessions {
		if s.BatchID == batchID {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartsAt.Before(sessions[j].StartsAt) })
	return sessions, nil
}

func (repo *attendanceRepository) UpdateSessionLocked(
	_ context.Context,
	id string,
	fn func(s *attendance.Session) error,
) (attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.sessions[id]
	if !ok {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	s := *stored
	if err := fn(&s); err != nil {
		return attendance.Session{}, err
	}
	*stored = s
	return s, nil
}

func (repo *attendanceRepository) UpsertRecord(
	_ context.Context,
	rec attendance.Record,
	guard attendance.MarkGuard,
) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.sessions[rec.SessionID]
	if !ok {
		return attendance.Record{}, attendance.ErrSessionNotFound
	}
	_, enrolled := repo.db.enrollments[pairKey{rec.StudentID, s.BatchID}]
	if err := guard(*s, enrolled); err != nil {
		return attendance.Record{}, err
	}
	if _, ok := repo.db.students[rec.StudentID]; !ok {
		return attendance.Record{}, roster.ErrStudentNotFound
	}

	key := pairKey{rec.SessionID, rec.StudentID}
	if existing, ok := repo.db.records[key]; ok {
		rec.ID = existing.ID
	}
	repo.db.records[key] = &rec
	return rec, nil
}

func (repo *attendanceRepository) query(filter attendance.RecordFilter) []attendance.Record {
	records := make([]attendance.Record, 0)
	for _, r := range repo.db.records {
		if filter.SessionID != "" && r.SessionID != filter.SessionID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		records = append(records, *r)
	}
	return records
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := repo.query(filter)
	sort.Slice(records, func(i, j int) bool { return records[i].MarkedAt.Before(records[j].MarkedAt) })
	return records, nil
}

func (repo *attendanceRepository) CountRecords(_ context.Context, filter attendance.RecordFilter) (attendance.Counts, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return attendance.CountRecords(repo.query(filter)), nil
}
