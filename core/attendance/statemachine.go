package attendance

import (
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core/child"
)

// Transition is one row of the scan transition table.
type Transition struct {
	From   child.Status
	To     child.Status
	Ledger Status // status written to the day's record
	verb   string
}

// Message returns the human readable description of the transition for childName.
func (t Transition) Message(childName string) string {
	return childName + " " + t.verb
}

// ChecksIn returns true when the transition opens an attendance session.
func (t Transition) ChecksIn() bool {
	return t.To == child.StatusPresent
}

var transitions = map[child.Status]Transition{
	child.StatusAbsent: {
		From:   child.StatusAbsent,
		To:     child.StatusPresent,
		Ledger: StatusPresent,
		verb:   "checked in",
	},
	child.StatusPresent: {
		From:   child.StatusPresent,
		To:     child.StatusPickedUp,
		Ledger: StatusPickedUp,
		verb:   "was picked up",
	},
	child.StatusPickedUp: {
		From:   child.StatusPickedUp,
		To:     child.StatusPresent,
		Ledger: StatusPresent,
		verb:   "checked in again",
	},
}

// NextTransition returns the transition a scan applies to a child in status current.
// Any status without a table entry, PICKUP_REQUESTED included, fails with ErrInvalidState.
func NextTransition(current child.Status) (Transition, error) {
	t, ok := transitions[current]
	if !ok {
		return Transition{}, errors.Wrapf(ErrInvalidState, "no transition from status %q", current)
	}
	return t, nil
}
