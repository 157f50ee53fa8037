package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
)

// postgres error codes
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

const dateLayout = "2006-01-02"

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

// isConcurrentUpdate returns true when err is a serialization failure or a deadlock.
func isConcurrentUpdate(err error) bool {
	code := pqCode(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

// trapNoRowsErr maps psql "no rows" err to notFoundErr
func trapNoRowsErr(err error, notFoundErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

// where accumulates AND-ed conditions with their positional arguments.
type where struct {
	conds []string
	args  []interface{}
}

// arg appends v to the arguments and returns its placeholder.
func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders an ORDER BY clause from the allowed orderings, or from def when none is left.
func orderBy(ordering []core.DBOrdering, def string, allowed ...string) string {
	ordering = core.CleanOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
