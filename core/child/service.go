package child

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("child not found")
	ErrQRCodeExists   = core.NewConflictError("a child with this QR code already exists")
	errParentNotFound = "parent not found"
	errNotAParent     = "user is not a parent"
)

type (
	Repository interface {
		CreateChild(ctx context.Context, c Child) (Child, error)
		GetChild(ctx context.Context, filter GetFilter) (Child, error)
		// LockChild is GetChild, holding a write lock on the child until the enclosing transaction ends.
		LockChild(ctx context.Context, filter GetFilter) (Child, error)
		QueryChildren(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Child, error)
		UpdateChild(ctx context.Context, c Child) (Child, error)
		// CompareAndSwapStatus sets the status of child `id` to `to` only if it is still `from`.
		// It reports whether the swap happened.
		CompareAndSwapStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)
		// ResetStatuses sets the status of every child to `to` and returns how many changed.
		ResetStatuses(ctx context.Context, to Status, at time.Time) (int, error)
	}

	ServiceInterface interface {
		Register(ctx context.Context, nc NewChild) (Child, error)
		GetByID(ctx context.Context, id string) (Child, error)
		GetByQRCode(ctx context.Context, token string) (Child, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Child, error)
		OverrideStatus(ctx context.Context, id string, status Status) (Child, error)
		RegenerateQRCode(ctx context.Context, id string) (Child, error)
		ResetStatuses(ctx context.Context) (int, error)
	}

	Service struct {
		repo   Repository
		usrSvc user.ServiceInterface
		now    func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, usrSvc user.ServiceInterface) *Service {
	return &Service{
		repo:   repo,
		usrSvc: usrSvc,
		now:    time.Now,
	}
}

// NewQRCode generates an opaque badge token.
func NewQRCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (svc *Service) Register(ctx context.Context, nc NewChild) (Child, error) {
	parent, err := svc.usrSvc.GetByID(nc.ParentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Child{}, core.NewValidationError(nil, core.FieldError{Field: "parent_id", Error: errParentNotFound})
		}
		return Child{}, errors.Wrap(err, "finding parent")
	}
	if !parent.IsParent() {
		return Child{}, core.NewValidationError(nil, core.FieldError{Field: "parent_id", Error: errNotAParent})
	}

	now := svc.now().UTC()
	c := Child{
		Name:      nc.Name,
		ParentID:  parent.ID,
		Status:    StatusAbsent,
		QRCode:    NewQRCode(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c, err = svc.repo.CreateChild(ctx, c)
	if err != nil {
		return Child{}, errors.Wrap(err, "creating child")
	}
	return c, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Child, error) {
	return svc.repo.GetChild(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByQRCode(ctx context.Context, token string) (Child, error) {
	token = core.CleanString(token)
	if token == "" {
		return Child{}, ErrNotFound
	}
	return svc.repo.GetChild(ctx, GetFilter{QRCode: token})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Child, error) {
	return svc.repo.QueryChildren(ctx, filter, ordering)
}

// OverrideStatus is the administrative override of a child's status (eg. soft reset to ABSENT).
// It bypasses the attendance state machine and does not touch the attendance ledger.
func (svc *Service) OverrideStatus(ctx context.Context, id string, status Status) (Child, error) {
	c, err := svc.repo.GetChild(ctx, GetFilter{ID: id})
	if err != nil {
		return Child{}, err
	}
	c.Status = status
	c.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateChild(ctx, c)
}

// RegenerateQRCode issues a new badge token, invalidating the previous one.
func (svc *Service) RegenerateQRCode(ctx context.Context, id string) (Child, error) {
	c, err := svc.repo.GetChild(ctx, GetFilter{ID: id})
	if err != nil {
		return Child{}, err
	}
	c.QRCode = NewQRCode()
	c.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateChild(ctx, c)
}

// ResetStatuses soft-resets every child to ABSENT.
func (svc *Service) ResetStatuses(ctx context.Context) (int, error) {
	n, err := svc.repo.ResetStatuses(ctx, StatusAbsent, svc.now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "resetting statuses")
	}
	return n, nil
}
