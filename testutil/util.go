// Package testutil wires in-memory services and seeds fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/accounting"
	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/core/resource"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/core/user"
	logsvc "github.com/trezcool/conservatoire/services/logger"
	"github.com/trezcool/conservatoire/storage/database/memdb"
)

const DefaultPaymentMethod = "upi"

type Services struct {
	DB         *memdb.DB
	UserRepo   user.Repository
	User       *user.Service
	Roster     *roster.Service
	Credit     *credit.Service
	Attendance *attendance.Service
	Fee        *fee.Service
	Payment    *payment.Service
	Resource   *resource.Service
	Accounting *accounting.Facade
}

// NewServices builds every service on a fresh in-memory store.
func NewServices() *Services {
	db := memdb.New()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	logger := logsvc.NewDiscardLogger()

	s := &Services{DB: db, UserRepo: memdb.NewUserRepository(db)}
	s.User = user.NewService(s.UserRepo, validate, translator)
	s.Roster = roster.NewService(memdb.NewRosterRepository(db), validate, translator)
	s.Credit = credit.NewService(memdb.NewCreditRepository(db), validate, translator)
	s.Attendance = attendance.NewService(memdb.NewAttendanceRepository(db), validate, translator)
	s.Fee = fee.NewService(memdb.NewFeeRepository(db), validate, translator)
	s.Payment = payment.NewService(memdb.NewPaymentRepository(db), logger, DefaultPaymentMethod, validate, translator)
	s.Resource = resource.NewService(
		memdb.NewResourceRepository(db),
		resource.ServiceLookups{Roster: s.Roster, Attendance: s.Attendance},
		validate,
		translator,
	)
	s.Accounting = accounting.NewFacade(s.Credit, s.Payment, s.Roster)
	return s
}

func CreateStudent(t *testing.T, svc *roster.Service, name string) roster.Student {
	s, err := svc.CreateStudent(context.Background(), roster.NewStudent{Name: name})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateBatch(t *testing.T, svc *roster.Service, teacherID string, capacity int) roster.Batch {
	b, err := svc.CreateBatch(context.Background(), roster.NewBatch{
		Name:      "Piano - Beginners",
		Course:    "Piano",
		TeacherID: teacherID,
		Capacity:  capacity,
		StartsOn:  core.NowFunc().AddDate(0, -1, 0),
	})
	if err != nil {
		t.Fatalf("CreateBatch() failed: %v", err)
	}
	return b
}

func Enroll(t *testing.T, svc *roster.Service, studentID, batchID string) {
	if _, err := svc.Enroll(context.Background(), studentID, batchID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

// Grant records a purchase of `credits` credits; expiry is optional.
func Grant(t *testing.T, svc *credit.Service, studentID, batchID string, credits int, expiry ...time.Time) credit.Entry {
	ng := credit.NewGrant{
		StudentID:  studentID,
		BatchID:    batchID,
		Credits:    credits,
		AmountPaid: decimal.NewFromInt(int64(credits) * 100),
	}
	if len(expiry) > 0 {
		ng.ExpiryDate = &expiry[0]
	}
	e, err := svc.Grant(context.Background(), ng)
	if err != nil {
		t.Fatalf("Grant() failed: %v", err)
	}
	return e
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role, subjectID string,
	isActive bool,
) user.User {
	now := core.NowFunc()
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		SubjectID: subjectID,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// FreezeTime pins core.NowFunc to `now` until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	prev := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = prev })
}
