package attendance

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/notification"
	"github.com/trezcool/kinderhub/core/user"
)

var (
	// errors
	ErrRecordNotFound     = core.NewNotFoundError("attendance record not found")
	ErrNoActiveAttendance = core.NewNotFoundError("no active attendance for this child")
	ErrInvalidState       = core.NewInvalidStateError("invalid child status")
	ErrForbidden          = core.NewForbiddenError("you are not allowed to record attendance")
	ErrConcurrentUpdate   = core.NewConflictError("attendance was updated concurrently, try again")
)

const smsTimeLayout = "15:04"

var pickupSMSTemplate = template.Must(template.New("pickup").Parse(
	`{{.ChildName}} was picked up by {{if .ByParent}}parent{{else}}{{.ActorName}}{{end}} at {{.Time}}.`,
))

type (
	// Repository is the attendance ledger.
	Repository interface {
		// GetRecordByDay returns the record of childID for the day bucket, or ErrRecordNotFound.
		GetRecordByDay(ctx context.Context, childID string, day time.Time) (Record, error)
		// GetOpenRecord returns the open record of childID for the day bucket, or ErrRecordNotFound.
		// Records of other days are never returned.
		GetOpenRecord(ctx context.Context, childID string, day time.Time) (Record, error)
		// LastUpdatedAt returns the latest UpdatedAt over the records of childID; zero if it has none.
		LastUpdatedAt(ctx context.Context, childID string) (time.Time, error)
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
	}

	// Tx exposes the repositories bound to one transaction.
	Tx interface {
		Children() child.Repository
		Ledger() Repository
	}

	// Store is the unit of work of the attendance operations.
	Store interface {
		// WithTransaction runs fn in a transaction, committed when fn returns nil and rolled back otherwise.
		// A transaction that conflicts with a concurrent one fails with ErrConcurrentUpdate.
		WithTransaction(ctx context.Context, fn func(tx Tx) error) error
	}

	ServiceInterface interface {
		ProcessScan(ctx context.Context, token, actorID string) (ScanResult, error)
		RegisterPickup(ctx context.Context, req PickupRequest, actorID string) (ScanResult, error)
		ShouldSuppress(ctx context.Context, childID string, now time.Time) (bool, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		Today(ctx context.Context) ([]DaySummary, error)
	}

	Service struct {
		store    Store
		ledger   Repository
		childSvc child.ServiceInterface
		usrSvc   user.ServiceInterface
		notifier notification.Notifier
		smsSvc   core.SMSService
		logger   core.Logger
		guard    CooldownGuard
		location *time.Location
		now      func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	store Store,
	ledger Repository,
	childSvc child.ServiceInterface,
	usrSvc user.ServiceInterface,
	notifier notification.Notifier,
	smsSvc core.SMSService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	loc := conf.Attendance.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		childSvc: childSvc,
		usrSvc:   usrSvc,
		notifier: notifier,
		smsSvc:   smsSvc,
		logger:   logger,
		guard:    NewCooldownGuard(conf.Attendance.Cooldown),
		location: loc,
		now:      time.Now,
	}
}

// SetClock replaces the clock of the service.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

func (svc *Service) today(now time.Time) time.Time {
	return core.Day(now, svc.location)
}

// ProcessScan applies the next attendance transition to the child owning the badge token.
// Scans within the cooldown window, and scans losing a race to a concurrent one, are suppressed.
// Admins are notified after the transition is committed; notification failures are only logged.
func (svc *Service) ProcessScan(ctx context.Context, token, actorID string) (ScanResult, error) {
	actor, err := svc.getActor(actorID)
	if err != nil {
		return ScanResult{}, err
	}
	if !actor.CanScan() {
		return ScanResult{}, ErrForbidden
	}

	token = core.CleanString(token)
	if token == "" {
		return ScanResult{}, child.ErrNotFound
	}

	now := svc.now().UTC()
	var (
		res     ScanResult
		changed *child.Child
	)
	err = svc.store.WithTransaction(ctx, func(tx Tx) error {
		c, err := tx.Children().LockChild(ctx, child.GetFilter{QRCode: token})
		if err != nil {
			return err
		}

		suppress, err := svc.guard.ShouldSuppress(ctx, tx.Ledger(), c.ID, now)
		if err != nil {
			return err
		}
		if suppress {
			res = suppressedResult(c, now)
			return nil
		}

		tr, err := NextTransition(c.Status)
		if err != nil {
			return errors.Wrapf(err, "child %s", c.ID)
		}

		if tr.ChecksIn() {
			err = svc.openSession(ctx, tx.Ledger(), c, now)
		} else {
			err = svc.closeSession(ctx, tx.Ledger(), c, now)
		}
		if err != nil {
			return err
		}

		if err := swapStatus(ctx, tx.Children(), c.ID, tr.From, tr.To, now); err != nil {
			return err
		}

		c.Status = tr.To
		c.UpdatedAt = now
		changed = &c
		res = ScanResult{
			ChildID:   c.ID,
			Name:      c.Name,
			Status:    c.Status,
			Message:   tr.Message(c.Name),
			Timestamp: now,
		}
		return nil
	})
	if err != nil {
		if errors.Cause(err) == ErrConcurrentUpdate {
			return svc.suppressedByToken(ctx, token, now)
		}
		return ScanResult{}, err
	}

	if changed != nil {
		svc.notify(ctx, *changed, res.Message, now, false)
	}
	return res, nil
}

// RegisterPickup forces the PRESENT -> PICKED_UP transition of a child without a scan,
// and texts the parent who picked the child up.
func (svc *Service) RegisterPickup(ctx context.Context, req PickupRequest, actorID string) (ScanResult, error) {
	actor, err := svc.getActor(actorID)
	if err != nil {
		return ScanResult{}, err
	}

	now := svc.now().UTC()
	var (
		res     ScanResult
		changed child.Child
	)
	err = svc.store.WithTransaction(ctx, func(tx Tx) error {
		c, err := tx.Children().LockChild(ctx, child.GetFilter{ID: req.ChildID})
		if err != nil {
			return err
		}
		if !canPickup(actor, c) {
			return ErrForbidden
		}

		// only today's session can be closed; a stale one from a previous day is left alone
		if _, err := tx.Ledger().GetOpenRecord(ctx, c.ID, svc.today(now)); err != nil {
			if errors.Cause(err) != ErrRecordNotFound {
				return errors.Wrap(err, "finding open record")
			}
			if c.Status != child.StatusPresent {
				return ErrNoActiveAttendance
			}
		}
		if err := svc.closeSession(ctx, tx.Ledger(), c, now); err != nil {
			return err
		}

		if err := swapStatus(ctx, tx.Children(), c.ID, c.Status, child.StatusPickedUp, now); err != nil {
			return err
		}

		c.Status = child.StatusPickedUp
		c.UpdatedAt = now
		changed = c
		res = ScanResult{
			ChildID:   c.ID,
			Name:      c.Name,
			Status:    c.Status,
			Message:   pickupMessage(c.Name, req),
			Timestamp: now,
		}
		return nil
	})
	if err != nil {
		return ScanResult{}, err
	}

	parent := svc.notify(ctx, changed, res.Message, now, true)
	svc.sendPickupSMS(parent, changed, req, now)
	return res, nil
}

// ShouldSuppress reports whether a scan of childID at now falls within the cooldown window.
func (svc *Service) ShouldSuppress(ctx context.Context, childID string, now time.Time) (bool, error) {
	return svc.guard.ShouldSuppress(ctx, svc.ledger, childID, now)
}

func (svc *Service) QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.ledger.QueryRecords(ctx, filter, ordering)
}

// Today returns every child with its record for the current day bucket, if any.
func (svc *Service) Today(ctx context.Context) ([]DaySummary, error) {
	children, err := svc.childSvc.Query(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	day := svc.today(svc.now())
	records, err := svc.ledger.QueryRecords(ctx, &QueryFilter{DateFrom: day, DateTo: day}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}

	byChild := make(map[string]Record, len(records))
	for _, rec := range records {
		byChild[rec.ChildID] = rec
	}
	summaries := make([]DaySummary, 0, len(children))
	for _, c := range children {
		sum := DaySummary{Child: c}
		if rec, ok := byChild[c.ID]; ok {
			rec := rec
			sum.Record = &rec
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func (svc *Service) getActor(actorID string) (user.User, error) {
	actor, err := svc.usrSvc.GetByID(actorID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrForbidden
		}
		return user.User{}, errors.Wrap(err, "finding actor")
	}
	if !actor.Active() {
		return user.User{}, ErrForbidden
	}
	return actor, nil
}

// openSession writes the check-in of c to the day's record, reopening it on re-entry.
func (svc *Service) openSession(ctx context.Context, ledger Repository, c child.Child, now time.Time) error {
	day := svc.today(now)
	rec, err := ledger.GetRecordByDay(ctx, c.ID, day)
	if err != nil {
		if errors.Cause(err) != ErrRecordNotFound {
			return errors.Wrap(err, "finding day record")
		}
		rec = Record{
			ChildID:     c.ID,
			Date:        day,
			Status:      StatusPresent,
			CheckInTime: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := ledger.CreateRecord(ctx, rec); err != nil {
			return errors.Wrap(err, "creating record")
		}
		return nil
	}

	rec.Status = StatusPresent
	rec.CheckInTime = &now
	rec.CheckOutTime = nil
	rec.UpdatedAt = now
	if _, err := ledger.UpdateRecord(ctx, rec); err != nil {
		return errors.Wrap(err, "reopening record")
	}
	return nil
}

// closeSession writes the check-out of c to its open record of the day.
// When c is PRESENT without one, a same-day record is synthesized and closed.
func (svc *Service) closeSession(ctx context.Context, ledger Repository, c child.Child, now time.Time) error {
	rec, err := ledger.GetOpenRecord(ctx, c.ID, svc.today(now))
	if err == nil {
		rec.Status = StatusPickedUp
		rec.CheckOutTime = &now
		rec.UpdatedAt = now
		if _, err := ledger.UpdateRecord(ctx, rec); err != nil {
			return errors.Wrap(err, "closing record")
		}
		return nil
	}
	if errors.Cause(err) != ErrRecordNotFound {
		return errors.Wrap(err, "finding open record")
	}

	svc.logger.Warn(fmt.Sprintf("attendance: child %s is %s without an open record, repairing", c.ID, c.Status))

	day := svc.today(now)
	checkIn := now
	if svc.today(c.UpdatedAt).Equal(day) && c.UpdatedAt.Before(now) {
		checkIn = c.UpdatedAt
	}

	rec, err = ledger.GetRecordByDay(ctx, c.ID, day)
	if err != nil {
		if errors.Cause(err) != ErrRecordNotFound {
			return errors.Wrap(err, "finding day record")
		}
		rec = Record{
			ChildID:      c.ID,
			Date:         day,
			Status:       StatusPickedUp,
			CheckInTime:  &checkIn,
			CheckOutTime: &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := ledger.CreateRecord(ctx, rec); err != nil {
			return errors.Wrap(err, "creating repair record")
		}
		return nil
	}

	if rec.CheckInTime == nil {
		rec.CheckInTime = &checkIn
	}
	rec.Status = StatusPickedUp
	rec.CheckOutTime = &now
	rec.UpdatedAt = now
	if _, err := ledger.UpdateRecord(ctx, rec); err != nil {
		return errors.Wrap(err, "repairing record")
	}
	return nil
}

// notify fans the transition out to the admins and returns the parent of c.
// Failures are logged and never returned.
func (svc *Service) notify(ctx context.Context, c child.Child, msg string, now time.Time, skipEmail bool) user.User {
	parent, err := svc.usrSvc.GetByID(c.ParentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("attendance: finding parent of child %s: %v", c.ID, err), err)
		return user.User{}
	}

	evt := notification.Event{
		Child:     c,
		Parent:    parent,
		Status:    c.Status,
		Message:   msg,
		Timestamp: now,
		SkipEmail: skipEmail,
	}
	if err := svc.notifier.Notify(ctx, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("attendance: notifying transition of child %s: %v", c.ID, err), err)
	}
	return parent
}

func (svc *Service) sendPickupSMS(parent user.User, c child.Child, req PickupRequest, now time.Time) {
	if parent.Phone == "" {
		svc.logger.Warn(fmt.Sprintf("attendance: parent of child %s has no phone number", c.ID))
		return
	}

	var buf bytes.Buffer
	data := struct {
		ChildName string
		ByParent  bool
		ActorName string
		Time      string
	}{
		ChildName: c.Name,
		ByParent:  req.Actor == ActorParent,
		ActorName: req.ActorName,
		Time:      now.In(svc.location).Format(smsTimeLayout),
	}
	if err := pickupSMSTemplate.Execute(&buf, data); err != nil {
		svc.logger.Error(fmt.Sprintf("attendance: rendering pickup sms: %v", err), err)
		return
	}
	svc.smsSvc.SendMessages(&core.SMSMessage{To: parent.Phone, Body: buf.String()})
}

func (svc *Service) suppressedByToken(ctx context.Context, token string, now time.Time) (ScanResult, error) {
	c, err := svc.childSvc.GetByQRCode(ctx, token)
	if err != nil {
		return ScanResult{}, err
	}
	return suppressedResult(c, now), nil
}

func swapStatus(ctx context.Context, repo child.Repository, id string, from, to child.Status, now time.Time) error {
	swapped, err := repo.CompareAndSwapStatus(ctx, id, from, to, now)
	if err != nil {
		return errors.Wrap(err, "updating child status")
	}
	if !swapped {
		return ErrConcurrentUpdate
	}
	return nil
}

func canPickup(actor user.User, c child.Child) bool {
	return actor.IsAdmin() || actor.IsStaff() || (actor.IsParent() && actor.ID == c.ParentID)
}

func suppressedResult(c child.Child, now time.Time) ScanResult {
	return ScanResult{
		ChildID:    c.ID,
		Name:       c.Name,
		Status:     c.Status,
		Message:    fmt.Sprintf("No change: %s is still %s", c.Name, c.Status),
		Timestamp:  now,
		Suppressed: true,
	}
}

func pickupMessage(childName string, req PickupRequest) string {
	if req.Actor == ActorParent {
		return childName + " was picked up by parent"
	}
	return childName + " was picked up by " + req.ActorName
}
