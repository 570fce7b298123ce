// Package memdb is an in-memory store mirroring the Postgres schema's constraints.
// A single lock guards every table, so each locked update is serialized against all other writes.
package memdb

import (
	"sync"

	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/core/resource"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/core/user"
)

type (
	pairKey struct{ a, b string }

	DB struct {
		mutex sync.RWMutex

		students    map[string]*roster.Student
		batches     map[string]*roster.Batch
		enrollments map[pairKey]roster.Enrollment // (student, batch)

		credits map[string]*credit.Entry

		sessions map[string]*attendance.Session
		records  map[pairKey]*attendance.Record // (session, student)

		fees map[string]*fee.Entry

		payments     map[string]*payment.Payment
		transactions map[string]*payment.Transaction
		merchantIdx  map[string]string // merchant transaction id -> transaction id

		users map[string]*user.User

		resources   map[string]*resource.Resource
		assignments []resource.Assignment
	}
)

func New() *DB {
	return &DB{
		students:     make(map[string]*roster.Student),
		batches:      make(map[string]*roster.Batch),
		enrollments:  make(map[pairKey]roster.Enrollment),
		credits:      make(map[string]*credit.Entry),
		sessions:     make(map[string]*attendance.Session),
		records:      make(map[pairKey]*attendance.Record),
		fees:         make(map[string]*fee.Entry),
		payments:     make(map[string]*payment.Payment),
		transactions: make(map[string]*payment.Transaction),
		merchantIdx:  make(map[string]string),
		users:        make(map[string]*user.User),
		resources:    make(map[string]*resource.Resource),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := New()
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.students = fresh.students
	db.batches = fresh.batches
	db.enrollments = fresh.enrollments
	db.credits = fresh.credits
	db.sessions = fresh.sessions
	db.records = fresh.records
	db.fees = fresh.fees
	db.payments = fresh.payments
	db.transactions = fresh.transactions
	db.merchantIdx = fresh.merchantIdx
	db.users = fresh.users
	db.resources = fresh.resources
	db.assignments = nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
