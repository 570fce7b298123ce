package resource

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
)

// Target kinds
const (
	KindStudent = "student"
	KindBatch   = "batch"
	KindSession = "session"
)

// AssignableRef names the one entity a Resource is assigned to.
type AssignableRef struct {
	Kind string `json:"kind" db:"target_kind"`
	ID   string `json:"id" db:"target_id"`
}

func StudentRef(id string) AssignableRef { return AssignableRef{Kind: KindStudent, ID: id} }
func BatchRef(id string) AssignableRef   { return AssignableRef{Kind: KindBatch, ID: id} }
func SessionRef(id string) AssignableRef { return AssignableRef{Kind: KindSession, ID: id} }

// ParseAssignableRef parses "<kind>:<id>", e.g. "batch:5f1c...".
func ParseAssignableRef(s string) (AssignableRef, error) {
	parts := strings.SplitN(core.CleanString(s), ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return AssignableRef{}, errors.Errorf("invalid assignable reference %q", s)
	}
	ref := AssignableRef{Kind: strings.ToLower(parts[0]), ID: parts[1]}
	if err := ref.Check(); err != nil {
		return AssignableRef{}, err
	}
	return ref, nil
}

// Check reports an error when the ref's kind is unknown or its id is empty.
func (r AssignableRef) Check() error {
	switch r.Kind {
	case KindStudent, KindBatch, KindSession:
	default:
		return errors.Errorf("unknown assignable kind %q", r.Kind)
	}
	if r.ID == "" {
		return errors.New("assignable id is required")
	}
	return nil
}

func (r AssignableRef) String() string {
	return r.Kind + ":" + r.ID
}

// Resource is learning material (sheet music, recording, ...) shared with students.
type Resource struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	URL       string    `json:"url" db:"url"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Assignment struct {
	ResourceID string        `json:"resource_id" db:"resource_id"`
	Target     AssignableRef `json:"target"`
	AssignedAt time.Time     `json:"assigned_at" db:"assigned_at"`
}

type NewResource struct {
	Title     string `json:"title" validate:"required,max=255"`
	URL       string `json:"url" validate:"required,url"`
	CreatedBy string `json:"created_by"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.URL = core.CleanString(nr.URL)
	return validate.Struct(nr)
}
