package main

import (
	"log"
	"os"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/user"
	logsvc "github.com/trezcool/conservatoire/services/logger"
	"github.com/trezcool/conservatoire/storage/database"
	"github.com/trezcool/conservatoire/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	// start CLI
	cli := commandLine{
		db:        db.DB,
		usrSvc:    user.NewService(sqlxrepos.NewUserRepository(db), validate, translator),
		creditSvc: credit.NewService(sqlxrepos.NewCreditRepository(db), validate, translator),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed: "+err.Error(), err)
		}
		db.Close()
		os.Exit(1)
	}
}
