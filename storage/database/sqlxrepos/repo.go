// Package sqlxrepos implements the domain repositories on Postgres through sqlx.
//
// Locked updates run inside a transaction and take row locks with SELECT ... FOR UPDATE,
// so the guard a service passes in is evaluated against rows no concurrent writer can touch.
package sqlxrepos

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/storage/database"
)

// trapNoRowsErr maps psql "no rows" err to notFound.
// An id Postgres cannot parse as a uuid cannot match a row either.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows || database.IsInvalidTextRepresentation(err) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// fkRef names a foreign key of an inserted row and the error reported when its target does not exist.
type fkRef struct {
	constraint string
	id         string
	notFound   error
}

// trapFKErr maps foreign key violations on refs, and ids that are not uuids, to their not-found errors.
func trapFKErr(err error, msg string, refs ...fkRef) error {
	malformed := database.IsInvalidTextRepresentation(err)
	for _, ref := range refs {
		if malformed && !core.IsValidID(ref.id) {
			return ref.notFound
		}
		if database.IsForeignKeyViolation(err, ref.constraint) {
			return ref.notFound
		}
	}
	return errors.Wrap(err, msg)
}

// validIDs reports whether every non-empty id can be compared with a uuid column.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if id != "" && !core.IsValidID(id) {
			return false
		}
	}
	return true
}

func nullTime(t *time.Time) null.Time {
	return null.TimeFromPtr(t)
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	return core.TimePtr(t.Time.UTC())
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// where accumulates AND-ed conditions; each `?` placeholder becomes the next positional parameter.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1))
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
