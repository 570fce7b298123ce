package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

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
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc       *user.Service
		RosterSvc     *roster.Service
		CreditSvc     *credit.Service
		AttendanceSvc *attendance.Service
		FeeSvc        *fee.Service
		PaymentSvc    *payment.Service
		ResourceSvc   *resource.Service
		Accounting    *accounting.Facade
		Gateway       *midtranssvc.Gateway
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *auth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.config)
	g := guard{batches: s.deps.RosterSvc}

	registerUserAPI(v1, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerRosterAPI(v1, jwt, g, s.deps.RosterSvc)
	registerCreditAPI(v1, jwt, g, s.deps.CreditSvc)
	registerAttendanceAPI(v1, jwt, g, s.deps.AttendanceSvc)
	registerFeeAPI(v1, jwt, g, s.deps.FeeSvc)
	registerPaymentAPI(v1, jwt, g, s.deps.PaymentSvc, s.deps.Gateway)
	registerAccountingAPI(v1, jwt, g, s.deps.Accounting)
	registerResourceAPI(v1, jwt, g, s.deps.ResourceSvc)
}

// Start listens until the server is shut down; any other failure is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the owner of the server to shut it down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
