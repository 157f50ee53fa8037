package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
	"github.com/trezcool/kinderhub/storage/database"
	sqlxrepos "github.com/trezcool/kinderhub/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	child.InitValidators(validate, translator)

	// start CLI
	usrRepo := sqlxrepos.NewUserRepository(db)
	cli := commandLine{
		db:       db,
		usrRepo:  usrRepo,
		childSvc: child.NewService(sqlxrepos.NewChildRepository(db), user.NewService(usrRepo)),
		validate: validate,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
