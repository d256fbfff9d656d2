package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-notifications/apps/api/echo"
	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	emailsvc "github.com/trezcool/masomo-notifications/services/email"
	logsvc "github.com/trezcool/masomo-notifications/services/logger"
	queuesvc "github.com/trezcool/masomo-notifications/services/queue"
	"github.com/trezcool/masomo-notifications/services/realtime"
	"github.com/trezcool/masomo-notifications/storage/database"
	dummydb "github.com/trezcool/masomo-notifications/storage/database/dummy"
	sqlxrepos "github.com/trezcool/masomo-notifications/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database, a no-op for the memory engine.
	DBCloser func() error

	Storage struct {
		dig.Out
		NotificationRepo notification.Repository
		UserRepo         user.Repository
		Closer           DBCloser
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == database.EngineMemory {
		db, _ := dummydb.Open()
		return Storage{
			NotificationRepo: dummydb.NewNotificationRepository(db),
			UserRepo:         dummydb.NewUserRepository(db),
			Closer:           func() error { return nil },
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		NotificationRepo: sqlxrepos.NewNotificationRepository(db),
		UserRepo:         sqlxrepos.NewUserRepository(db),
		Closer:           db.Close,
	}
}

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf)
}

func newDeliverer(
	repo notification.Repository,
	users user.Repository,
	mailer core.EmailService,
	hub *realtime.Hub,
) *notification.Deliverer {
	return notification.NewDeliverer(repo, users, mailer, hub)
}

func newQueue(deliverer *notification.Deliverer, logger core.Logger, conf *core.Config) *queuesvc.Memory {
	return queuesvc.NewMemory(deliverer, logger, conf.Notifications.Workers)
}

func newNotificationService(
	conf *core.Config,
	repo notification.Repository,
	users user.Repository,
	queue *queuesvc.Memory,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *notification.Service {
	return notification.NewService(notification.Deps{
		Conf:       conf,
		Repo:       repo,
		Users:      users,
		Queue:      queue,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	})
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	notifSvc *notification.Service,
	usrSvc *user.Service,
	hub *realtime.Hub,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		NotificationSvc: notifSvc,
		UserSvc:         usrSvc,
		Hub:             hub,
		Validate:        validate,
		Translator:      translator,
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
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(realtime.NewHub))
	must(c.Provide(newDeliverer))
	must(c.Provide(newQueue))
	must(c.Provide(newNotificationService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
