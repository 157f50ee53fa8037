package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core/notification"
)

const notificationColumns = `id, recipient_id, child_id, parent_id, type, message, read, created_at`

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	ChildID     string    `db:"child_id"`
	ParentID    string    `db:"parent_id"`
	Type        string    `db:"type"`
	Message     string    `db:"message"`
	Read        bool      `db:"read"`
	CreatedAt   time.Time `db:"created_at"`
}

type notificationRepository struct {
	exec sqlx.ExtContext
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec sqlx.ExtContext) *notificationRepository {
	return &notificationRepository{exec: exec}
}

func (repo notificationRepository) fromRow(row notificationRow) notification.Notification {
	return notification.Notification{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		ChildID:     row.ChildID,
		ParentID:    row.ParentID,
		Type:        notification.Type(row.Type),
		Message:     row.Message,
		Read:        row.Read,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

// CreateNotifications inserts all the notifications in a single statement.
func (repo notificationRepository) CreateNotifications(ctx context.Context, notifications ...notification.Notification) ([]notification.Notification, error) {
	if len(notifications) == 0 {
		return []notification.Notification{}, nil
	}

	var w where
	values := make([]string, 0, len(notifications))
	created := make([]notification.Notification, 0, len(notifications))
	for _, n := range notifications {
		n.ID = uuid.New().String()
		n.CreatedAt = n.CreatedAt.UTC()
		values = append(values, "("+strings.Join([]string{
			w.arg(n.ID), w.arg(n.RecipientID), w.arg(n.ChildID), w.arg(n.ParentID),
			w.arg(string(n.Type)), w.arg(n.Message), w.arg(n.Read), w.arg(n.CreatedAt),
		}, ", ")+")")
		created = append(created, n)
	}

	q := `INSERT INTO notification (` + notificationColumns + `) VALUES ` + strings.Join(values, ", ")
	if _, err := repo.exec.ExecContext(ctx, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "inserting notifications")
	}
	return created, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	if _, err := uuid.Parse(filter.RecipientID); err != nil {
		return []notification.Notification{}, nil
	}

	var w where
	w.add("recipient_id = " + w.arg(filter.RecipientID))
	if filter.OnlyUnread {
		w.add("NOT read")
	}
	if filter.ChildID != "" {
		if _, err := uuid.Parse(filter.ChildID); err != nil {
			return []notification.Notification{}, nil
		}
		w.add("child_id = " + w.arg(filter.ChildID))
	}
	if filter.Type != "" {
		w.add("type = " + w.arg(string(filter.Type)))
	}

	q := `SELECT ` + notificationColumns + ` FROM notification` + w.String() + ` ORDER BY created_at DESC, id ASC`
	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifications := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, repo.fromRow(row))
	}
	return notifications, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	if _, err := uuid.Parse(recipientID); err != nil {
		return 0, nil
	}
	var cnt int
	q := `SELECT COUNT(*) FROM notification WHERE recipient_id = $1 AND NOT read`
	if err := sqlx.GetContext(ctx, repo.exec, &cnt, q, recipientID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return cnt, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error) {
	if _, err := uuid.Parse(recipientID); err != nil {
		return 0, nil
	}

	var w where
	w.add("recipient_id = " + w.arg(recipientID))
	w.add("NOT read")
	if len(ids) > 0 {
		valid := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, err := uuid.Parse(id); err == nil {
				valid = append(valid, id)
			}
		}
		if len(valid) == 0 {
			return 0, nil
		}
		w.add("id::text = ANY(" + w.arg(pq.Array(valid)) + ")")
	}

	res, err := repo.exec.ExecContext(ctx, `UPDATE notification SET read = TRUE`+w.String(), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications as read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications as read")
	}
	return int(n), nil
}

func (repo notificationRepository) DeleteNotifications(ctx context.Context, recipientID string) (int, error) {
	if _, err := uuid.Parse(recipientID); err != nil {
		return 0, nil
	}
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM notification WHERE recipient_id = $1`, recipientID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting notifications")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting notifications")
	}
	return int(n), nil
}
