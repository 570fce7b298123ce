package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/conservatoire/apps/api/echo"
	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/accounting"
	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/fee"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/core/resource"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/core/user"
	midtranssvc "github.com/trezcool/conservatoire/services/gateway/midtrans"
	logsvc "github.com/trezcool/conservatoire/services/logger"
	"github.com/trezcool/conservatoire/storage/database"
	"github.com/trezcool/conservatoire/storage/database/memdb"
	"github.com/trezcool/conservatoire/storage/database/sqlxrepos"
)

type repositories struct {
	roster     roster.Repository
	credit     credit.Repository
	attendance attendance.Repository
	fee        fee.Repository
	payment    payment.Repository
	user       user.Repository
	resource   resource.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up storage
	var repos repositories
	if conf.Ledger.UseMemoryStore {
		logger.Info("using the in-memory store; data is lost on shutdown")
		repos = memoryRepositories(memdb.New())
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		repos = postgresRepositories(db)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	rosterSvc := roster.NewService(repos.roster, validate, translator)
	creditSvc := credit.NewService(repos.credit, validate, translator)
	attendanceSvc := attendance.NewService(repos.attendance, validate, translator)
	paymentSvc := payment.NewService(repos.payment, logger, conf.Ledger.DefaultPaymentMethod, validate, translator)
	resourceSvc := resource.NewService(
		repos.resource,
		resource.ServiceLookups{Roster: rosterSvc, Attendance: attendanceSvc},
		validate,
		translator,
	)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			UserSvc:       user.NewService(repos.user, validate, translator),
			RosterSvc:     rosterSvc,
			CreditSvc:     creditSvc,
			AttendanceSvc: attendanceSvc,
			FeeSvc:        fee.NewService(repos.fee, validate, translator),
			PaymentSvc:    paymentSvc,
			ResourceSvc:   resourceSvc,
			Accounting:    accounting.NewFacade(creditSvc, paymentSvc, rosterSvc),
			Gateway:       midtranssvc.New(conf),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
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

func memoryRepositories(db *memdb.DB) repositories {
	return repositories{
		roster:     memdb.NewRosterRepository(db),
		credit:     memdb.NewCreditRepository(db),
		attendance: memdb.NewAttendanceRepository(db),
		fee:        memdb.NewFeeRepository(db),
		payment:    memdb.NewPaymentRepository(db),
		user:       memdb.NewUserRepository(db),
		resource:   memdb.NewResourceRepository(db),
	}
}

func postgresRepositories(db *sqlx.DB) repositories {
	return repositories{
		roster:     sqlxrepos.NewRosterRepository(db),
		credit:     sqlxrepos.NewCreditRepository(db),
		attendance: sqlxrepos.NewAttendanceRepository(db),
		fee:        sqlxrepos.NewFeeRepository(db),
		payment:    sqlxrepos.NewPaymentRepository(db),
		user:       sqlxrepos.NewUserRepository(db),
		resource:   sqlxrepos.NewResourceRepository(db),
	}
}
