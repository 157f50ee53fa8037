package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/attendance"
)

const recordColumns = `id, child_id, date, status, check_in_time, check_out_time, created_at, updated_at`

type recordRow struct {
	ID           string    `db:"id"`
	ChildID      string    `db:"child_id"`
	Date         time.Time `db:"date"`
	Status       string    `db:"status"`
	CheckInTime  null.Time `db:"check_in_time"`
	CheckOutTime null.Time `db:"check_out_time"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type attendanceRepository struct {
	exec sqlx.ExtContext
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec sqlx.ExtContext) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func utcTimeFromPtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func utcPtrFromTime(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (repo attendanceRepository) fromRow(row recordRow) attendance.Record {
	y, m, d := row.Date.Date()
	return attendance.Record{
		ID:           row.ID,
		ChildID:      row.ChildID,
		Date:         time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Status:       attendance.Status(row.Status),
		CheckInTime:  utcPtrFromTime(row.CheckInTime),
		CheckOutTime: utcPtrFromTime(row.CheckOutTime),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (repo attendanceRepository) get(ctx context.Context, q string, args ...interface{}) (attendance.Record, error) {
	var row recordRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, args...); err != nil {
		return attendance.Record{}, trapNoRowsErr(err, attendance.ErrRecordNotFound, "finding attendance record")
	}
	return repo.fromRow(row), nil
}

func (repo attendanceRepository) GetRecordByDay(ctx context.Context, childID string, day time.Time) (attendance.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance_record WHERE child_id = $1 AND date = $2`
	return repo.get(ctx, q, childID, day.Format(dateLayout))
}

func (repo attendanceRepository) GetOpenRecord(ctx context.Context, childID string, day time.Time) (attendance.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM attendance_record
		WHERE child_id = $1 AND date = $2 AND status = $3 AND check_out_time IS NULL`
	return repo.get(ctx, q, childID, day.Format(dateLayout), string(attendance.StatusPresent))
}

func (repo attendanceRepository) LastUpdatedAt(ctx context.Context, childID string) (time.Time, error) {
	var last null.Time
	q := `SELECT MAX(updated_at) FROM attendance_record WHERE child_id = $1`
	if err := sqlx.GetContext(ctx, repo.exec, &last, q, childID); err != nil {
		return time.Time{}, errors.Wrap(err, "reading last attendance update")
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time.UTC(), nil
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	rec.ID = uuid.New().String()
	q := `INSERT INTO attendance_record (` + recordColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.exec.ExecContext(ctx, q,
		rec.ID, rec.ChildID, rec.Date.Format(dateLayout), string(rec.Status),
		utcTimeFromPtr(rec.CheckInTime), utcTimeFromPtr(rec.CheckOutTime),
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrConcurrentUpdate
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (repo attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `UPDATE attendance_record SET status = $1, check_in_time = $2, check_out_time = $3, updated_at = $4 WHERE id = $5`
	res, err := repo.exec.ExecContext(ctx, q,
		string(rec.Status), utcTimeFromPtr(rec.CheckInTime), utcTimeFromPtr(rec.CheckOutTime), rec.UpdatedAt.UTC(), rec.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrConcurrentUpdate
		}
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return rec, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering) ([]attendance.Record, error) {
	var w where
	if filter != nil {
		if filter.ChildID != "" {
			if _, err := uuid.Parse(filter.ChildID); err != nil {
				return []attendance.Record{}, nil
			}
			w.add("child_id = " + w.arg(filter.ChildID))
		}
		if filter.Status != "" {
			w.add("status = " + w.arg(string(filter.Status)))
		}
		if !filter.DateFrom.IsZero() {
			w.add("date >= " + w.arg(filter.DateFrom.Format(dateLayout)))
		}
		if !filter.DateTo.IsZero() {
			w.add("date <= " + w.arg(filter.DateTo.Format(dateLayout)))
		}
	}

	q := `SELECT ` + recordColumns + ` FROM attendance_record` + w.String() +
		orderBy(ordering, "date DESC, child_id ASC", "date", "status", "check_in_time", "check_out_time", "updated_at")

	var rows []recordRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.fromRow(row))
	}
	return records, nil
}
