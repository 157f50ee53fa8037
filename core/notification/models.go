package notification

import (
	"time"

	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
)

// Type of attendance event a Notification reports.
type Type string

const (
	TypeCheckIn Type = "CHECK_IN"
	TypePickUp  Type = "PICK_UP"
)

// TypeFor maps the new status of a child to the notification type.
func TypeFor(status child.Status) Type {
	if status == child.StatusPresent {
		return TypeCheckIn
	}
	return TypePickUp
}

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	ChildID     string    `json:"child_id"`
	ParentID    string    `json:"parent_id"`
	Type        Type      `json:"type"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Event is an accepted attendance transition to be fanned out.
type Event struct {
	Child     child.Child
	Parent    user.User
	Status    child.Status // new status
	Message   string       // human readable transition message
	Timestamp time.Time
	SkipEmail bool // the parent is informed through another channel
}

type QueryFilter struct {
	RecipientID string `query:"-"`
	OnlyUnread  bool   `query:"unread"`
	ChildID     string `query:"child_id"`
	Type        Type   `query:"type"`
}

// MarkReadRequest lists the notifications to mark as read.
type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}
