package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/kinderhub/apps/api/echo"
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
	sqlxrepos "github.com/trezcool/kinderhub/storage/database/sqlx"
)

const storageMemory = "memory"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the storage backend.
type DBCloser func() error

// Storage is the set of repositories of the configured storage backend.
type Storage struct {
	dig.Out

	Users         user.Repository
	Children      child.Repository
	Ledger        attendance.Repository
	Notifications notification.Repository
	Store         attendance.Store
	Close         DBCloser
}

type ServerParams struct {
	dig.In

	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	Translator      ut.Translator
	UserSvc         user.ServiceInterface
	ChildSvc        child.ServiceInterface
	AttendanceSvc   attendance.ServiceInterface
	NotificationSvc notification.ServiceInterface
	Hub             *notification.Hub
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	logger := loggerParam.Logger

	if conf.Storage == storageMemory {
		logger.Warn("using the in-memory storage: data will not survive a restart")
		db := inmemdb.Open()
		return Storage{
			Users:         inmemdb.NewUserRepository(db),
			Children:      inmemdb.NewChildRepository(db),
			Ledger:        inmemdb.NewAttendanceRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
			Store:         inmemdb.NewStore(db),
			Close:         func() error { return nil },
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Storage{
		Users:         sqlxrepos.NewUserRepository(db),
		Children:      sqlxrepos.NewChildRepository(db),
		Ledger:        sqlxrepos.NewAttendanceRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Store:         sqlxrepos.NewStore(db),
		Close:         db.Close,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newSMSService(conf *core.Config, logger core.Logger) core.SMSService {
	if conf.Debug {
		return smssvc.NewConsoleService(log.New(os.Stdout, "SMS : ", log.LstdFlags), conf)
	}
	return smssvc.NewTwilioService(conf, logger)
}

func newNotifier(
	repo notification.Repository,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	hub *notification.Hub,
	conf *core.Config,
	logger core.Logger,
) notification.Notifier {
	return notification.NewFanoutNotifier(repo, usrSvc, mailSvc, hub, nil, conf, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		ChildSvc:        p.ChildSvc,
		AttendanceSvc:   p.AttendanceSvc,
		NotificationSvc: p.NotificationSvc,
		Hub:             p.Hub,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newSMSService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(child.NewService, dig.As(new(child.ServiceInterface))))
	must(c.Provide(notification.NewService, dig.As(new(notification.ServiceInterface))))
	must(c.Provide(notification.NewHub))
	must(c.Provide(newNotifier))
	must(c.Provide(attendance.NewService, dig.As(new(attendance.ServiceInterface))))
	must(c.Provide(attendance.NewResetScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
