// Package authz decides what an authenticated actor may do.
//
// Every decision is an explicit method on Authorizer. When an action is allowed only over part of the
// data, the Decision carries a Scope the caller must apply as a query filter.
package authz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
)

// Role kinds
const (
	KindAdmin   = "admin"
	KindTeacher = "teacher"
	KindStudent = "student"
)

var ErrForbidden = errors.New("you do not have permission to perform this action")

// Role is the actor's role. SubjectID is the Teacher's or Student's id; it is empty for admins.
type Role struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id,omitempty"`
}

func Admin() Role                   { return Role{Kind: KindAdmin} }
func Teacher(teacherID string) Role { return Role{Kind: KindTeacher, SubjectID: teacherID} }
func Student(studentID string) Role { return Role{Kind: KindStudent, SubjectID: studentID} }

func ParseRole(kind, subjectID string) (Role, error) {
	switch kind = core.CleanString(kind, true /* lower */); kind {
	case KindAdmin:
		return Admin(), nil
	case KindTeacher, KindStudent:
		if subjectID == "" {
			return Role{}, errors.Errorf("role %q requires a subject id", kind)
		}
		return Role{Kind: kind, SubjectID: subjectID}, nil
	}
	return Role{}, errors.Errorf("unknown role %q", kind)
}

func (r Role) IsAdmin() bool   { return r.Kind == KindAdmin }
func (r Role) IsTeacher() bool { return r.Kind == KindTeacher }
func (r Role) IsStudent() bool { return r.Kind == KindStudent }

// Scope restricts an allowed action to a subset of the data. Empty fields do not restrict.
type Scope struct {
	StudentIDs []string
	TeacherID  string
}

// Permits reports whether studentID falls within the scope.
func (s *Scope) Permits(studentID string) bool {
	if s == nil || len(s.StudentIDs) == 0 {
		return true
	}
	for _, id := range s.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

type Decision struct {
	Allowed bool
	Scope   *Scope
}

func allow() Decision               { return Decision{Allowed: true} }
func allowWithin(s *Scope) Decision { return Decision{Allowed: true, Scope: s} }
func deny() Decision                { return Decision{} }
func allowIf(cond bool) Decision {
	if cond {
		return allow()
	}
	return deny()
}

type (
	Authorizer interface {
		CanManageLedger(ctx context.Context) (Decision, error)
		CanViewLedger(ctx context.Context) (Decision, error)
		CanMarkAttendance(ctx context.Context, batchID string) (Decision, error)
		CanViewStudent(ctx context.Context, studentID string) (Decision, error)
		CanManageFees(ctx context.Context) (Decision, error)
		CanManagePayments(ctx context.Context) (Decision, error)
	}

	// BatchLookup answers who teaches a Batch and who attends it.
	BatchLookup interface {
		BatchTeacherID(ctx context.Context, batchID string) (string, error)
		TeacherStudentIDs(ctx context.Context, teacherID string) ([]string, error)
	}

	roleAuthorizer struct {
		role    Role
		batches BatchLookup
	}
)

// NewAuthorizer returns the Authorizer for an actor holding role.
func NewAuthorizer(role Role, batches BatchLookup) Authorizer {
	return &roleAuthorizer{role: role, batches: batches}
}

func (a *roleAuthorizer) CanManageLedger(_ context.Context) (Decision, error) {
	return allowIf(a.role.IsAdmin()), nil
}

// CanViewLedger allows everyone: teachers see entries of their own batches, students see their own entries.
func (a *roleAuthorizer) CanViewLedger(_ context.Context) (Decision, error) {
	switch a.role.Kind {
	case KindAdmin:
		return allow(), nil
	case KindTeacher:
		return allowWithin(&Scope{TeacherID: a.role.SubjectID}), nil
	case KindStudent:
		return allowWithin(&Scope{StudentIDs: []string{a.role.SubjectID}}), nil
	}
	return deny(), nil
}

func (a *roleAuthorizer) CanManageFees(_ context.Context) (Decision, error) {
	return allowIf(a.role.IsAdmin()), nil
}

func (a *roleAuthorizer) CanManagePayments(_ context.Context) (Decision, error) {
	return allowIf(a.role.IsAdmin()), nil
}

// CanMarkAttendance allows admins, and teachers on their own batches.
func (a *roleAuthorizer) CanMarkAttendance(ctx context.Context, batchID string) (Decision, error) {
	switch a.role.Kind {
	case KindAdmin:
		return allow(), nil
	case KindTeacher:
		teacherID, err := a.batches.BatchTeacherID(ctx, batchID)
		if err != nil {
			return deny(), err
		}
		if teacherID != a.role.SubjectID {
			return deny(), nil
		}
		return allowWithin(&Scope{TeacherID: teacherID}), nil
	}
	return deny(), nil
}

// CanViewStudent allows admins, the student themselves, and teachers of a batch the student attends.
func (a *roleAuthorizer) CanViewStudent(ctx context.Context, studentID string) (Decision, error) {
	switch a.role.Kind {
	case KindAdmin:
		return allow(), nil
	case KindStudent:
		if a.role.SubjectID != studentID {
			return deny(), nil
		}
		return allowWithin(&Scope{StudentIDs: []string{studentID}}), nil
	case KindTeacher:
		ids, err := a.batches.TeacherStudentIDs(ctx, a.role.SubjectID)
		if err != nil {
			return deny(), err
		}
		scope := &Scope{StudentIDs: ids, TeacherID: a.role.SubjectID}
		if len(ids) == 0 || !scope.Permits(studentID) {
			return deny(), nil
		}
		return allowWithin(scope), nil
	}
	return deny(), nil
}
