package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	emailsvc "github.com/trezcool/masomo-notifications/services/email"
	logsvc "github.com/trezcool/masomo-notifications/services/logger"
	queuesvc "github.com/trezcool/masomo-notifications/services/queue"
	"github.com/trezcool/masomo-notifications/storage/database"
	sqlxrepos "github.com/trezcool/masomo-notifications/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		stdLogger.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if conf.Database.Engine == database.EngineMemory {
		logger.Fatal("the admin CLI needs a SQL database, got the memory engine")
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, stdLogger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	notifRepo := sqlxrepos.NewNotificationRepository(db)

	// deliveries run inline: the command reports their failures
	queue := queuesvc.NewSync(notification.NewDeliverer(notifRepo, usrRepo, mailSvc, nil))

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     db,
		usrSvc: user.NewService(usrRepo, validate, translator),
		notifSvc: notification.NewService(notification.Deps{
			Conf:       conf,
			Repo:       notifRepo,
			Users:      usrRepo,
			Queue:      queue,
			Validate:   validate,
			Translator: translator,
			Logger:     logger,
		}),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
