package notification

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/user"
)

const (
	emailTemplateName = "attendance_update"
	timestampLayout   = "Jan 2, 2006 15:04"
)

// DefaultMessageTemplate renders the in-app message of a notification from a MessageData.
var DefaultMessageTemplate = template.Must(template.New("notification").Parse(
	`{{.ChildName}} {{if eq .Type "CHECK_IN"}}checked in{{else}}was picked up{{end}} at {{.Time}}`,
))

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifications ...Notification) ([]Notification, error)
		// QueryNotifications returns the notifications of filter.RecipientID, newest first.
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		// MarkRead marks the given notifications of recipientID as read; all of them when ids is empty.
		MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error)
		DeleteNotifications(ctx context.Context, recipientID string) (int, error)
	}

	ServiceInterface interface {
		QueryForRecipient(ctx context.Context, filter QueryFilter) ([]Notification, error)
		UnreadCount(ctx context.Context, recipientID string) (int, error)
		MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error)
		MarkAllRead(ctx context.Context, recipientID string) (int, error)
		Clear(ctx context.Context, recipientID string) (int, error)
	}

	// Notifier informs every admin of an attendance transition.
	Notifier interface {
		Notify(ctx context.Context, evt Event) error
	}

	// MessageData is the data available to the notification message template.
	MessageData struct {
		ChildName  string
		ParentName string
		Type       Type
		Status     string
		Time       string
		Transition string // eg. "Lina was picked up by parent"
	}

	emailData struct {
		ParentName string
		ChildName  string
		Message    string
		Timestamp  string
	}

	Service struct {
		repo Repository
	}

	// FanoutNotifier creates one notification per admin and emails the parent.
	FanoutNotifier struct {
		repo     Repository
		usrSvc   user.ServiceInterface
		mailSvc  core.EmailService
		pub      Publisher
		logger   core.Logger
		msgTmpl  *template.Template
		location *time.Location
	}
)

var (
	_ ServiceInterface = (*Service)(nil)
	_ Notifier         = (*FanoutNotifier)(nil)
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) QueryForRecipient(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, filter)
}

func (svc *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.CountUnread(ctx, recipientID)
}

func (svc *Service) MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.MarkRead(ctx, recipientID, ids...)
}

func (svc *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.MarkRead(ctx, recipientID)
}

func (svc *Service) Clear(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.DeleteNotifications(ctx, recipientID)
}

// NewFanoutNotifier builds a FanoutNotifier. pub may be nil; msgTmpl defaults to DefaultMessageTemplate.
func NewFanoutNotifier(
	repo Repository,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	pub Publisher,
	msgTmpl *template.Template,
	conf *core.Config,
	logger core.Logger,
) *FanoutNotifier {
	if msgTmpl == nil {
		msgTmpl = DefaultMessageTemplate
	}
	loc := conf.Attendance.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return &FanoutNotifier{
		repo:     repo,
		usrSvc:   usrSvc,
		mailSvc:  mailSvc,
		pub:      pub,
		logger:   logger,
		msgTmpl:  msgTmpl,
		location: loc,
	}
}

// Notify creates one notification per active admin and, unless evt.SkipEmail, sends one email to the parent.
// The email is sent asynchronously; its failures are only logged by the email service.
func (n *FanoutNotifier) Notify(ctx context.Context, evt Event) error {
	typ := TypeFor(evt.Status)
	ts := evt.Timestamp.In(n.location).Format(timestampLayout)

	msg, err := n.render(MessageData{
		ChildName:  evt.Child.Name,
		ParentName: evt.Parent.Name,
		Type:       typ,
		Status:     string(evt.Status),
		Time:       ts,
		Transition: evt.Message,
	})
	if err != nil {
		return errors.Wrap(err, "rendering notification message")
	}

	if !evt.SkipEmail {
		n.sendEmail(evt, msg, ts)
	}

	admins, err := n.usrSvc.QueryAdmins(ctx)
	if err != nil {
		return errors.Wrap(err, "querying admins")
	}
	if len(admins) == 0 {
		return nil
	}

	notifications := make([]Notification, 0, len(admins))
	for _, adm := range admins {
		notifications = append(notifications, Notification{
			RecipientID: adm.ID,
			ChildID:     evt.Child.ID,
			ParentID:    evt.Parent.ID,
			Type:        typ,
			Message:     msg,
			CreatedAt:   evt.Timestamp.UTC(),
		})
	}
	created, err := n.repo.CreateNotifications(ctx, notifications...)
	if err != nil {
		return errors.Wrap(err, "creating notifications")
	}
	if n.pub != nil {
		n.pub.Publish(created...)
	}
	return nil
}

func (n *FanoutNotifier) render(data MessageData) (string, error) {
	var buf bytes.Buffer
	if err := n.msgTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *FanoutNotifier) sendEmail(evt Event, msg, ts string) {
	if evt.Parent.Email == "" {
		n.logger.Warn(fmt.Sprintf("notification: parent %s of child %s has no email address", evt.Parent.ID, evt.Child.ID))
		return
	}
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: evt.Parent.Name, Address: evt.Parent.Email}},
		Subject:      fmt.Sprintf("%s: attendance update", evt.Child.Name),
		TemplateName: emailTemplateName,
		TemplateData: emailData{
			ParentName: evt.Parent.Name,
			ChildName:  evt.Child.Name,
			Message:    msg,
			Timestamp:  ts,
		},
	})
}
