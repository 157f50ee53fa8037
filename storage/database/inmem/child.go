package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
)

type childRepository struct {
	db *DB
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(db *DB) *childRepository {
	return &childRepository{db: db}
}

func (repo *childRepository) CreateChild(ctx context.Context, c child.Child) (child.Child, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.children {
		if other.QRCode == c.QRCode {
			return child.Child{}, child.ErrQRCodeExists
		}
	}
	c.ID = uuid.New().String()
	repo.db.children[c.ID] = c
	return c, nil
}

func (repo *childRepository) get(filter child.GetFilter) (child.Child, error) {
	if filter.ID != "" {
		if c, ok := repo.db.children[filter.ID]; ok {
			return c, nil
		}
		return child.Child{}, child.ErrNotFound
	}
	if filter.QRCode != "" {
		for _, c := range repo.db.children {
			if c.QRCode == filter.QRCode {
				return c, nil
			}
		}
	}
	return child.Child{}, child.ErrNotFound
}

func (repo *childRepository) GetChild(ctx context.Context, filter child.GetFilter) (child.Child, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.get(filter)
}

// LockChild is GetChild: the attendance Store already serializes transactions.
func (repo *childRepository) LockChild(ctx context.Context, filter child.GetFilter) (child.Child, error) {
	return repo.GetChild(ctx, filter)
}

func (repo *childRepository) QueryChildren(ctx context.Context, filter *child.QueryFilter, ordering []core.DBOrdering) ([]child.Child, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	children := make([]child.Child, 0, len(repo.db.children))
	for _, c := range repo.db.children {
		if filter != nil {
			if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
				continue
			}
			if filter.Status != "" && c.Status != filter.Status {
				continue
			}
			if filter.ParentID != "" && c.ParentID != filter.ParentID {
				continue
			}
		}
		children = append(children, c)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Name == children[j].Name {
			return children[i].ID < children[j].ID
		}
		return children[i].Name < children[j].Name
	})
	return children, nil
}

func (repo *childRepository) UpdateChild(ctx context.Context, c child.Child) (child.Child, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.children[c.ID]; !ok {
		return child.Child{}, child.ErrNotFound
	}
	for _, other := range repo.db.children {
		if other.ID != c.ID && other.QRCode == c.QRCode {
			return child.Child{}, child.ErrQRCodeExists
		}
	}
	repo.db.children[c.ID] = c
	return c, nil
}

func (repo *childRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to child.Status, at time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.children[id]
	if !ok {
		return false, child.ErrNotFound
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	repo.db.children[id] = c
	return true, nil
}

func (repo *childRepository) ResetStatuses(ctx context.Context, to child.Status, at time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, c := range repo.db.children {
		if c.Status == to {
			continue
		}
		c.Status = to
		c.UpdatedAt = at
		repo.db.children[id] = c
		n++
	}
	return n, nil
}
