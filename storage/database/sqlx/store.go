package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
)

type store struct {
	db *sqlx.DB
}

var _ attendance.Store = (*store)(nil) // interface compliance check

// NewStore returns the attendance unit of work over db.
// Transactions are SERIALIZABLE; serialization failures are reported as attendance.ErrConcurrentUpdate.
func NewStore(db *sqlx.DB) *store {
	return &store{db: db}
}

func (s *store) WithTransaction(ctx context.Context, fn func(tx attendance.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	if err = fn(txRepos{tx: tx}); err != nil {
		_ = tx.Rollback()
		if isConcurrentUpdate(err) {
			return attendance.ErrConcurrentUpdate
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		if isConcurrentUpdate(err) {
			return attendance.ErrConcurrentUpdate
		}
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

type txRepos struct {
	tx *sqlx.Tx
}

func (t txRepos) Children() child.Repository { return NewChildRepository(t.tx) }
func (t txRepos) Ledger() attendance.Repository { return NewAttendanceRepository(t.tx) }
