package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/kinderhub/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifications ...notification.Notification) ([]notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	created := make([]notification.Notification, 0, len(notifications))
	for _, n := range notifications {
		n.ID = uuid.New().String()
		repo.db.notifications[n.ID] = n
		created = append(created, n)
	}
	return created, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifications := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.RecipientID != filter.RecipientID {
			continue
		}
		if filter.OnlyUnread && n.Read {
			continue
		}
		if filter.ChildID != "" && n.ChildID != filter.ChildID {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		notifications = append(notifications, n)
	}
	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].ID < notifications[j].ID
		}
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var cnt int
	for _, n := range repo.db.notifications {
		if n.RecipientID == recipientID && !n.Read {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var selected map[string]bool
	if len(ids) > 0 {
		selected = make(map[string]bool, len(ids))
		for _, id := range ids {
			selected[id] = true
		}
	}

	var cnt int
	for id, n := range repo.db.notifications {
		if n.RecipientID != recipientID || n.Read || (selected != nil && !selected[id]) {
			continue
		}
		n.Read = true
		repo.db.notifications[id] = n
		cnt++
	}
	return cnt, nil
}

func (repo *notificationRepository) DeleteNotifications(ctx context.Context, recipientID string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, n := range repo.db.notifications {
		if n.RecipientID == recipientID {
			delete(repo.db.notifications, id)
			cnt++
		}
	}
	return cnt, nil
}
