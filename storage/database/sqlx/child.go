package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
)

const childColumns = `id, name, parent_id, status, qr_code, created_at, updated_at`

type childRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	ParentID  string    `db:"parent_id"`
	Status    string    `db:"status"`
	QRCode    string    `db:"qr_code"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type childRepository struct {
	exec sqlx.ExtContext
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(exec sqlx.ExtContext) *childRepository {
	return &childRepository{exec: exec}
}

func (repo childRepository) toRow(c child.Child) childRow {
	return childRow{
		ID:        c.ID,
		Name:      c.Name,
		ParentID:  c.ParentID,
		Status:    string(c.Status),
		QRCode:    c.QRCode,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (repo childRepository) fromRow(row childRow) child.Child {
	return child.Child{
		ID:        row.ID,
		Name:      row.Name,
		ParentID:  row.ParentID,
		Status:    child.Status(row.Status),
		QRCode:    row.QRCode,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo childRepository) CreateChild(ctx context.Context, c child.Child) (child.Child, error) {
	c.ID = uuid.New().String()
	q := `INSERT INTO child (` + childColumns + `)
		VALUES (:id, :name, :parent_id, :status, :qr_code, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, repo.toRow(c)); err != nil {
		if isUniqueViolation(err) {
			return child.Child{}, child.ErrQRCodeExists
		}
		return child.Child{}, errors.Wrap(err, "inserting child")
	}
	return c, nil
}

func (repo childRepository) get(ctx context.Context, filter child.GetFilter, lock bool) (child.Child, error) {
	var w where
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return child.Child{}, child.ErrNotFound
		}
		w.add("id = " + w.arg(filter.ID))
	case filter.QRCode != "":
		w.add("qr_code = " + w.arg(filter.QRCode))
	default:
		return child.Child{}, child.ErrNotFound
	}

	q := `SELECT ` + childColumns + ` FROM child` + w.String()
	if lock {
		q += ` FOR UPDATE`
	}
	var row childRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, w.args...); err != nil {
		return child.Child{}, trapNoRowsErr(err, child.ErrNotFound, "finding child")
	}
	return repo.fromRow(row), nil
}

func (repo childRepository) GetChild(ctx context.Context, filter child.GetFilter) (child.Child, error) {
	return repo.get(ctx, filter, false)
}

func (repo childRepository) LockChild(ctx context.Context, filter child.GetFilter) (child.Child, error) {
	return repo.get(ctx, filter, true)
}

func (repo childRepository) QueryChildren(ctx context.Context, filter *child.QueryFilter, ordering []core.DBOrdering) ([]child.Child, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("name ILIKE " + w.arg("%"+filter.Search+"%"))
		}
		if filter.Status != "" {
			w.add("status = " + w.arg(string(filter.Status)))
		}
		if filter.ParentID != "" {
			if _, err := uuid.Parse(filter.ParentID); err != nil {
				return []child.Child{}, nil
			}
			w.add("parent_id = " + w.arg(filter.ParentID))
		}
	}

	q := `SELECT ` + childColumns + ` FROM child` + w.String() +
		orderBy(ordering, "name ASC, id ASC", "name", "status", "created_at", "updated_at")

	var rows []childRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	children := make([]child.Child, 0, len(rows))
	for _, row := range rows {
		children = append(children, repo.fromRow(row))
	}
	return children, nil
}

func (repo childRepository) UpdateChild(ctx context.Context, c child.Child) (child.Child, error) {
	q := `UPDATE child SET
			name = :name, parent_id = :parent_id, status = :status, qr_code = :qr_code, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.exec, q, repo.toRow(c))
	if err != nil {
		if isUniqueViolation(err) {
			return child.Child{}, child.ErrQRCodeExists
		}
		return child.Child{}, errors.Wrap(err, "updating child")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return child.Child{}, child.ErrNotFound
	}
	return c, nil
}

func (repo childRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to child.Status, at time.Time) (bool, error) {
	q := `UPDATE child SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := repo.exec.ExecContext(ctx, q, string(to), at.UTC(), id, string(from))
	if err != nil {
		return false, errors.Wrap(err, "swapping child status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "swapping child status")
	}
	return n == 1, nil
}

func (repo childRepository) ResetStatuses(ctx context.Context, to child.Status, at time.Time) (int, error) {
	q := `UPDATE child SET status = $1, updated_at = $2 WHERE status <> $1`
	res, err := repo.exec.ExecContext(ctx, q, string(to), at.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "resetting child statuses")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "resetting child statuses")
	}
	return int(n), nil
}
