package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/notification"
	"github.com/trezcool/kinderhub/core/user"
	emailsvc "github.com/trezcool/kinderhub/services/email"
	logsvc "github.com/trezcool/kinderhub/services/logger"
	smssvc "github.com/trezcool/kinderhub/services/sms"
	"github.com/trezcool/kinderhub/storage/database"
	inmemdb "github.com/trezcool/kinderhub/storage/database/inmem"
)

// DefaultPassword satisfies the password policy.
const DefaultPassword = "Kh-s3cret!Pwd"

// NewLogger returns a logger that discards everything, unless TEST_VERBOSE is set.
func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	out := ioutil.Discard
	if os.Getenv("TEST_VERBOSE") != "" {
		out = os.Stdout
	}
	return logsvc.NewRollbarLogger(log.New(out, "TEST : ", log.LstdFlags), conf)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, phone string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Phone:     phone,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if err := usr.SetPassword(DefaultPassword); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateChild(t *testing.T, repo child.Repository, name, parentID string, status child.Status) child.Child {
	t.Helper()
	now := time.Now().UTC()
	c, err := repo.CreateChild(context.Background(), child.Child{
		Name:      name,
		ParentID:  parentID,
		Status:    status,
		QRCode:    child.NewQRCode(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateChild() failed: %v", err)
	}
	return c
}

// Env wires the attendance core over the in-memory database, with mocked email and sms services.
type Env struct {
	Conf   *core.Config
	Logger core.Logger
	DB     *inmemdb.DB

	UserRepo         user.Repository
	ChildRepo        child.Repository
	LedgerRepo       attendance.Repository
	NotificationRepo notification.Repository

	Mail *emailsvc.ServiceMock
	SMS  *smssvc.ServiceMock
	Hub  *notification.Hub

	UserSvc         *user.Service
	ChildSvc        *child.Service
	NotificationSvc *notification.Service
	AttendanceSvc   *attendance.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	db := inmemdb.Open()

	env := &Env{
		Conf:             conf,
		Logger:           logger,
		DB:               db,
		UserRepo:         inmemdb.NewUserRepository(db),
		ChildRepo:        inmemdb.NewChildRepository(db),
		LedgerRepo:       inmemdb.NewAttendanceRepository(db),
		NotificationRepo: inmemdb.NewNotificationRepository(db),
		Mail:             emailsvc.NewServiceMock(conf, logger),
		SMS:              smssvc.NewServiceMock(),
		Hub:              notification.NewHub(),
	}
	env.UserSvc = user.NewService(env.UserRepo)
	env.ChildSvc = child.NewService(env.ChildRepo, env.UserSvc)
	env.NotificationSvc = notification.NewService(env.NotificationRepo)
	notifier := notification.NewFanoutNotifier(env.NotificationRepo, env.UserSvc, env.Mail, env.Hub, nil, conf, logger)
	env.AttendanceSvc = attendance.NewService(
		inmemdb.NewStore(db),
		env.LedgerRepo,
		env.ChildSvc,
		env.UserSvc,
		notifier,
		env.SMS,
		conf,
		logger,
	)
	return env
}

// PrepareDB opens the database at TEST_DATABASE_URL, migrates it and empties it.
// The test is skipped when TEST_DATABASE_URL is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := database.OpenURL(dbURL)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.Exec(`TRUNCATE notification, attendance_record, child, "user" CASCADE`); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
