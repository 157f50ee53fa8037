package child

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinderhub/core"
)

// Status is the current attendance status of a Child.
type Status string

const (
	StatusAbsent          Status = "ABSENT"
	StatusPresent         Status = "PRESENT"
	StatusPickupRequested Status = "PICKUP_REQUESTED"
	StatusPickedUp        Status = "PICKED_UP"
)

var Statuses = []Status{StatusAbsent, StatusPresent, StatusPickupRequested, StatusPickedUp}

// Valid returns true when the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusAbsent, StatusPresent, StatusPickupRequested, StatusPickedUp:
		return true
	default:
		return false
	}
}

type Child struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id"`
	Status    Status    `json:"status"`
	QRCode    string    `json:"qr_code"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewChild contains information needed to register a new Child.
type NewChild struct {
	Name     string `json:"name" validate:"required,max=150"`
	ParentID string `json:"parent_id" validate:"required,uuid"`
}

func (nc *NewChild) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.ParentID = core.CleanString(nc.ParentID, true /* lower */)
	return validate.Struct(nc)
}

// StatusOverride is an administrative correction of a Child's status.
type StatusOverride struct {
	Status Status `json:"status" validate:"required,childstatus"`
}

func (so *StatusOverride) Validate(validate *validator.Validate) error {
	so.Status = Status(core.CleanString(string(so.Status)))
	return validate.Struct(so)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Status   Status `query:"status"`
	ParentID string `query:"parent_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ParentID = core.CleanString(qf.ParentID, true /* lower */)
}

type GetFilter struct {
	ID     string
	QRCode string
}
