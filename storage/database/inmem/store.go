package inmemdb

import (
	"context"

	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
)

type store struct {
	db *DB
}

var _ attendance.Store = (*store)(nil) // interface compliance check

// NewStore returns the attendance unit of work over db.
// Transactions run one at a time; a failed one restores the children and the ledger.
func NewStore(db *DB) *store {
	return &store{db: db}
}

func (s *store) WithTransaction(ctx context.Context, fn func(tx attendance.Tx) error) error {
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.db.snapshot()
	if err := fn(tx{db: s.db}); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

type tx struct {
	db *DB
}

func (t tx) Children() child.Repository { return NewChildRepository(t.db) }
func (t tx) Ledger() attendance.Repository { return NewAttendanceRepository(t.db) }
