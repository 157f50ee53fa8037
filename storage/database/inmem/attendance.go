package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetRecordByDay(ctx context.Context, childID string, day time.Time) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, rec := range repo.db.records {
		if rec.ChildID == childID && rec.Date.Equal(day) {
			return rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) GetOpenRecord(ctx context.Context, childID string, day time.Time) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, rec := range repo.db.records {
		if rec.ChildID == childID && rec.Date.Equal(day) && rec.Open() {
			return rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) LastUpdatedAt(ctx context.Context, childID string) (time.Time, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var last time.Time
	for _, rec := range repo.db.records {
		if rec.ChildID == childID && rec.UpdatedAt.After(last) {
			last = rec.UpdatedAt
		}
	}
	return last, nil
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.children[rec.ChildID]; !ok {
		return attendance.Record{}, child.ErrNotFound
	}
	for _, other := range repo.db.records {
		if other.ChildID == rec.ChildID && other.Date.Equal(rec.Date) {
			return attendance.Record{}, attendance.ErrConcurrentUpdate
		}
	}
	rec.ID = uuid.New().String()
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.records[rec.ID]; !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.records {
		if filter != nil {
			if filter.ChildID != "" && rec.ChildID != filter.ChildID {
				continue
			}
			if filter.Status != "" && rec.Status != filter.Status {
				continue
			}
			if !filter.DateFrom.IsZero() && rec.Date.Before(filter.DateFrom) {
				continue
			}
			if !filter.DateTo.IsZero() && rec.Date.After(filter.DateTo) {
				continue
			}
		}
		records = append(records, rec)
	}
	// newest day first
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return records[i].ChildID < records[j].ChildID
		}
		return records[i].Date.After(records[j].Date)
	})
	return records, nil
}
