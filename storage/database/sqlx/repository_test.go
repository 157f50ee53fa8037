package sqlxrepos_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/notification"
	"github.com/trezcool/kinderhub/core/user"
	emailsvc "github.com/trezcool/kinderhub/services/email"
	smssvc "github.com/trezcool/kinderhub/services/sms"
	sqlxrepos "github.com/trezcool/kinderhub/storage/database/sqlx"
	testutil "github.com/trezcool/kinderhub/tests"
)

var morning = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func TestChildRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewChildRepository(db)

	parent := testutil.CreateUser(t, usrRepo, "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, repo, "Lina", parent.ID, child.StatusAbsent)
	tom := testutil.CreateChild(t, repo, "Tom", parent.ID, child.StatusPresent)

	t.Run("get", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  child.GetFilter
			wantID  string
			wantErr error
		}{
			{name: "by id", filter: child.GetFilter{ID: lina.ID}, wantID: lina.ID},
			{name: "by qr code", filter: child.GetFilter{QRCode: tom.QRCode}, wantID: tom.ID},
			{name: "malformed id", filter: child.GetFilter{ID: "lol"}, wantErr: child.ErrNotFound},
			{name: "unknown qr code", filter: child.GetFilter{QRCode: "lol"}, wantErr: child.ErrNotFound},
			{name: "empty filter", wantErr: child.ErrNotFound},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				c, err := repo.GetChild(ctx, tt.filter)
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, c.ID)
			})
		}
	})

	t.Run("duplicate qr code", func(t *testing.T) {
		_, err := repo.CreateChild(ctx, child.Child{
			Name:      "Zoe",
			ParentID:  parent.ID,
			Status:    child.StatusAbsent,
			QRCode:    lina.QRCode,
			CreatedAt: morning,
			UpdatedAt: morning,
		})
		assert.Equal(t, child.ErrQRCodeExists, err)
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name     string
			filter   *child.QueryFilter
			wantIDs  []string
			ordering []core.DBOrdering
		}{
			{name: "all", wantIDs: []string{lina.ID, tom.ID}},
			{name: "by status", filter: &child.QueryFilter{Status: child.StatusPresent}, wantIDs: []string{tom.ID}},
			{name: "by name", filter: &child.QueryFilter{Search: "lin"}, wantIDs: []string{lina.ID}},
			{name: "by parent", filter: &child.QueryFilter{ParentID: parent.ID}, wantIDs: []string{lina.ID, tom.ID}},
			{name: "malformed parent", filter: &child.QueryFilter{ParentID: "lol"}, wantIDs: []string{}},
			{name: "name desc", ordering: []core.DBOrdering{{Field: "name", Ascending: false}}, wantIDs: []string{tom.ID, lina.ID}},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				children, err := repo.QueryChildren(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				ids := make([]string, 0, len(children))
				for _, c := range children {
					ids = append(ids, c.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		swapped, err := repo.CompareAndSwapStatus(ctx, lina.ID, child.StatusAbsent, child.StatusPresent, morning)
		require.NoError(t, err)
		assert.True(t, swapped)

		swapped, err = repo.CompareAndSwapStatus(ctx, lina.ID, child.StatusAbsent, child.StatusPresent, morning)
		require.NoError(t, err)
		assert.False(t, swapped)

		c, err := repo.GetChild(ctx, child.GetFilter{ID: lina.ID})
		require.NoError(t, err)
		assert.Equal(t, child.StatusPresent, c.Status)
		assert.Equal(t, morning, c.UpdatedAt)
	})

	t.Run("reset statuses", func(t *testing.T) {
		n, err := repo.ResetStatuses(ctx, child.StatusAbsent, morning.Add(12*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = repo.ResetStatuses(ctx, child.StatusAbsent, morning.Add(12*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestAttendanceRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, sqlxrepos.NewChildRepository(db), "Lina", parent.ID, child.StatusAbsent)
	repo := sqlxrepos.NewAttendanceRepository(db)
	today := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	last, err := repo.LastUpdatedAt(ctx, lina.ID)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	_, err = repo.GetOpenRecord(ctx, lina.ID, today)
	assert.Equal(t, attendance.ErrRecordNotFound, err)

	old, err := repo.CreateRecord(ctx, attendance.Record{
		ChildID:      lina.ID,
		Date:         yesterday,
		Status:       attendance.StatusPickedUp,
		CheckInTime:  ptrTime(morning.AddDate(0, 0, -1)),
		CheckOutTime: ptrTime(morning.AddDate(0, 0, -1).Add(8 * time.Hour)),
		CreatedAt:    morning.AddDate(0, 0, -1),
		UpdatedAt:    morning.AddDate(0, 0, -1).Add(8 * time.Hour),
	})
	require.NoError(t, err)

	rec, err := repo.CreateRecord(ctx, attendance.Record{
		ChildID:     lina.ID,
		Date:        today,
		Status:      attendance.StatusPresent,
		CheckInTime: ptrTime(morning),
		CreatedAt:   morning,
		UpdatedAt:   morning,
	})
	require.NoError(t, err)

	t.Run("one record per day", func(t *testing.T) {
		_, err := repo.CreateRecord(ctx, attendance.Record{
			ChildID:   lina.ID,
			Date:      today,
			Status:    attendance.StatusPresent,
			CreatedAt: morning,
			UpdatedAt: morning,
		})
		assert.Equal(t, attendance.ErrConcurrentUpdate, err)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetRecordByDay(ctx, lina.ID, today)
		require.NoError(t, err)
		assert.Equal(t, rec, got)

		got, err = repo.GetOpenRecord(ctx, lina.ID, today)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Nil(t, got.CheckOutTime)

		// an open record is never returned for another day
		_, err = repo.GetOpenRecord(ctx, lina.ID, today.AddDate(0, 0, 1))
		assert.Equal(t, attendance.ErrRecordNotFound, err)

		_, err = repo.GetRecordByDay(ctx, lina.ID, today.AddDate(0, 0, 1))
		assert.Equal(t, attendance.ErrRecordNotFound, err)

		last, err := repo.LastUpdatedAt(ctx, lina.ID)
		require.NoError(t, err)
		assert.Equal(t, morning, last)
	})

	t.Run("close", func(t *testing.T) {
		pickedUp := morning.Add(2 * time.Hour)
		rec.Status = attendance.StatusPickedUp
		rec.CheckOutTime = &pickedUp
		rec.UpdatedAt = pickedUp
		_, err := repo.UpdateRecord(ctx, rec)
		require.NoError(t, err)

		_, err = repo.GetOpenRecord(ctx, lina.ID, today)
		assert.Equal(t, attendance.ErrRecordNotFound, err)

		last, err := repo.LastUpdatedAt(ctx, lina.ID)
		require.NoError(t, err)
		assert.Equal(t, pickedUp, last)
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  *attendance.QueryFilter
			wantIDs []string
		}{
			{name: "all", wantIDs: []string{rec.ID, old.ID}},
			{name: "from today", filter: &attendance.QueryFilter{DateFrom: today}, wantIDs: []string{rec.ID}},
			{name: "until yesterday", filter: &attendance.QueryFilter{DateTo: yesterday}, wantIDs: []string{old.ID}},
			{name: "by child", filter: &attendance.QueryFilter{ChildID: lina.ID}, wantIDs: []string{rec.ID, old.ID}},
			{name: "malformed child", filter: &attendance.QueryFilter{ChildID: "lol"}, wantIDs: []string{}},
			{name: "by status", filter: &attendance.QueryFilter{Status: attendance.StatusPresent}, wantIDs: []string{}},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				records, err := repo.QueryRecords(ctx, tt.filter, nil)
				require.NoError(t, err)
				ids := make([]string, 0, len(records))
				for _, r := range records {
					ids = append(ids, r.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}
	})
}

func TestNotificationRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, usrRepo, "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, sqlxrepos.NewChildRepository(db), "Lina", parent.ID, child.StatusAbsent)
	repo := sqlxrepos.NewNotificationRepository(db)

	newNotif := func(recipientID string, typ notification.Type, at time.Time) notification.Notification {
		return notification.Notification{
			RecipientID: recipientID,
			ChildID:     lina.ID,
			ParentID:    parent.ID,
			Type:        typ,
			Message:     "Lina: " + string(typ),
			CreatedAt:   at,
		}
	}

	created, err := repo.CreateNotifications(ctx,
		newNotif(admin.ID, notification.TypeCheckIn, morning),
		newNotif(admin.ID, notification.TypePickUp, morning.Add(time.Hour)),
		newNotif(other.ID, notification.TypeCheckIn, morning),
	)
	require.NoError(t, err)
	require.Len(t, created, 3)
	checkIn, pickUp := created[0], created[1]

	none, err := repo.CreateNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  notification.QueryFilter
			wantIDs []string
		}{
			{name: "newest first", filter: notification.QueryFilter{RecipientID: admin.ID}, wantIDs: []string{pickUp.ID, checkIn.ID}},
			{name: "by type", filter: notification.QueryFilter{RecipientID: admin.ID, Type: notification.TypeCheckIn}, wantIDs: []string{checkIn.ID}},
			{name: "by child", filter: notification.QueryFilter{RecipientID: admin.ID, ChildID: lina.ID}, wantIDs: []string{pickUp.ID, checkIn.ID}},
			{name: "malformed recipient", filter: notification.QueryFilter{RecipientID: "lol"}, wantIDs: []string{}},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				notifs, err := repo.QueryNotifications(ctx, tt.filter)
				require.NoError(t, err)
				ids := make([]string, 0, len(notifs))
				for _, n := range notifs {
					ids = append(ids, n.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}
	})

	t.Run("read state", func(t *testing.T) {
		cnt, err := repo.CountUnread(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)

		// ids of other recipients are ignored
		n, err := repo.MarkRead(ctx, admin.ID, checkIn.ID, created[2].ID, "lol")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		unread, err := repo.QueryNotifications(ctx, notification.QueryFilter{RecipientID: admin.ID, OnlyUnread: true})
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, pickUp.ID, unread[0].ID)

		n, err = repo.MarkRead(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		cnt, err = repo.CountUnread(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)
	})

	t.Run("delete", func(t *testing.T) {
		n, err := repo.DeleteNotifications(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		notifs, err := repo.QueryNotifications(ctx, notification.QueryFilter{RecipientID: other.ID})
		require.NoError(t, err)
		assert.Len(t, notifs, 1)
	})
}

func TestStore_WithTransaction(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	childRepo := sqlxrepos.NewChildRepository(db)
	lina := testutil.CreateChild(t, childRepo, "Lina", parent.ID, child.StatusAbsent)
	store := sqlxrepos.NewStore(db)
	errBoom := errors.New("boom")

	err := store.WithTransaction(ctx, func(tx attendance.Tx) error {
		if _, err := tx.Children().CompareAndSwapStatus(ctx, lina.ID, child.StatusAbsent, child.StatusPresent, morning); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)

	c, err := childRepo.GetChild(ctx, child.GetFilter{ID: lina.ID})
	require.NoError(t, err)
	assert.Equal(t, child.StatusAbsent, c.Status, "rolled back")

	err = store.WithTransaction(ctx, func(tx attendance.Tx) error {
		c, err := tx.Children().LockChild(ctx, child.GetFilter{ID: lina.ID})
		if err != nil {
			return err
		}
		_, err = tx.Children().CompareAndSwapStatus(ctx, c.ID, c.Status, child.StatusPresent, morning)
		return err
	})
	require.NoError(t, err)

	c, err = childRepo.GetChild(ctx, child.GetFilter{ID: lina.ID})
	require.NoError(t, err)
	assert.Equal(t, child.StatusPresent, c.Status, "committed")
}

// Concurrent scans of one badge against Postgres record a single transition.
func TestProcessScan_concurrent(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)

	usrRepo := sqlxrepos.NewUserRepository(db)
	childRepo := sqlxrepos.NewChildRepository(db)
	ledger := sqlxrepos.NewAttendanceRepository(db)
	notifRepo := sqlxrepos.NewNotificationRepository(db)

	testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	scanner := testutil.CreateUser(t, usrRepo, "Scanner", "scanner", "scanner@test.cd", "", []string{user.RoleStaff}, true)
	parent := testutil.CreateUser(t, usrRepo, "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, childRepo, "Lina", parent.ID, child.StatusAbsent)

	usrSvc := user.NewService(usrRepo)
	childSvc := child.NewService(childRepo, usrSvc)
	notifier := notification.NewFanoutNotifier(notifRepo, usrSvc, emailsvc.NewServiceMock(conf, logger), notification.NewHub(), nil, conf, logger)
	svc := attendance.NewService(sqlxrepos.NewStore(db), ledger, childSvc, usrSvc, notifier, smssvc.NewServiceMock(), conf, logger)

	const scans = 5
	var wg sync.WaitGroup
	results := make(chan attendance.ScanResult, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ProcessScan(ctx, lina.QRCode, scanner.ID)
			if assert.NoError(t, err) {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	transitions := 0
	for res := range results {
		if !res.Suppressed {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)

	records, err := ledger.QueryRecords(ctx, &attendance.QueryFilter{ChildID: lina.ID}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusPresent, records[0].Status)

	c, err := childRepo.GetChild(ctx, child.GetFilter{ID: lina.ID})
	require.NoError(t, err)
	assert.Equal(t, child.StatusPresent, c.Status)
}
