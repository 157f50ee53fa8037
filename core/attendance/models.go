package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
)

// Status of an attendance Record.
type Status string

const (
	StatusPresent  Status = "PRESENT"
	StatusAbsent   Status = "ABSENT"
	StatusPickedUp Status = "PICKED_UP"
)

// Record is the attendance ledger entry of a child for one day.
type Record struct {
	ID           string     `json:"id"`
	ChildID      string     `json:"child_id"`
	Date         time.Time  `json:"date"` // midnight UTC of the day bucket
	Status       Status     `json:"status"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

// Open returns true when the record is a session that has not been closed by a pickup.
func (r Record) Open() bool {
	return r.Status == StatusPresent && r.CheckOutTime == nil
}

// ScanResult is the outcome of a scan or a pickup.
// Suppressed results report the current status of the child unchanged.
type ScanResult struct {
	ChildID    string       `json:"child_id"`
	Name       string       `json:"name"`
	Status     child.Status `json:"status"`
	Message    string       `json:"message"`
	Timestamp  time.Time    `json:"timestamp"`
	Suppressed bool         `json:"suppressed"`
}

type ScanRequest struct {
	Token string `json:"token" validate:"required,max=64"`
}

func (sr *ScanRequest) Validate(validate *validator.Validate) error {
	sr.Token = core.CleanString(sr.Token)
	return validate.Struct(sr)
}

// PickupActor is who collected the child in a pickup-by-proxy.
type PickupActor string

const (
	ActorParent   PickupActor = "parent"
	ActorGuardian PickupActor = "guardian"
	ActorStaff    PickupActor = "staff"
	ActorOther    PickupActor = "other"
)

// Valid returns true when the actor is a known value.
func (a PickupActor) Valid() bool {
	switch a {
	case ActorParent, ActorGuardian, ActorStaff, ActorOther:
		return true
	default:
		return false
	}
}

// PickupRequest registers a pickup without a scan. ActorName is required unless the parent picked the child up.
type PickupRequest struct {
	ChildID   string      `json:"child_id" validate:"required,uuid"`
	Actor     PickupActor `json:"actor" validate:"required,pickupactor"`
	ActorName string      `json:"actor_name" validate:"required_unless=Actor parent,max=150"`
}

func (pr *PickupRequest) Validate(validate *validator.Validate) error {
	pr.ChildID = core.CleanString(pr.ChildID, true /* lower */)
	pr.Actor = PickupActor(core.CleanString(string(pr.Actor), true /* lower */))
	pr.ActorName = core.CleanString(pr.ActorName)
	return validate.Struct(pr)
}

type QueryFilter struct {
	ChildID  string    `query:"child_id"`
	Status   Status    `query:"status"`
	DateFrom time.Time `query:"-"`
	DateTo   time.Time `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.ChildID = core.CleanString(qf.ChildID, true /* lower */)
	qf.Status = Status(core.CleanString(string(qf.Status)))
}

// DaySummary is the attendance of one child for the current day.
type DaySummary struct {
	Child  child.Child `json:"child"`
	Record *Record     `json:"record"`
}
