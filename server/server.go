package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"

	"github.com/mailfold/mailfold/api"
	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/internal/cron"
	"github.com/mailfold/mailfold/internal/logger"
	"github.com/mailfold/mailfold/internal/repository"
	"github.com/mailfold/mailfold/internal/tracing"
	"github.com/mailfold/mailfold/services"
)

const setupWaitTimeout = 2 * time.Minute

type Server struct {
	config       *config.Config
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(db)

	// Initialize services
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	// Checkpoint maintenance jobs
	cronManager := cron.NewCronManager(appLogger, svcs.SyncEngine, repos.SyncCheckpointRepository)

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	return &Server{
		config:       cfg,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

func (s *Server) Initialize(ctx context.Context) error {
	// Start the engine before registering accounts
	if err := s.services.SyncEngine.Start(ctx); err != nil {
		return err
	}

	// Load and register accounts from the accounts file
	accounts, err := config.LoadAccounts(s.config.AppConfig.AccountsFile)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if err := s.services.SyncEngine.AddAccount(ctx, account); err != nil {
			return err
		}
	}

	// Every account finishes its setup attempt before the server reports
	// live. Failures stay visible in Status; a stuck connect cannot block
	// startup past the deadline.
	setupCtx, cancelSetup := context.WithTimeout(ctx, setupWaitTimeout)
	defer cancelSetup()
	if err := s.services.SyncEngine.WaitForSetup(setupCtx); err != nil {
		log.Printf("Timed out waiting for account setup, continuing: %v", err)
	}

	// Setup API routes
	api.RegisterRoutes(s.router, s.services, s.config.AppConfig.APIKey)

	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		// Create a new span for the panic
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		// Mark span as failed
		ext.Error.Set(span, true)

		// Log panic details
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	// Create root context for the application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize server components
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	// Start maintenance jobs
	s.cronManager.StartCron()

	// Start HTTP server in a goroutine with panic recovery
	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	})
	log.Println("Mailfold is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	// Set up signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Wait for termination signal
	<-stop
	log.Println("Shutting down...")

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Shut down HTTP server
	log.Println("Shutting down HTTP server...")
	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server shut down successfully")
	}

	// Stop maintenance jobs
	s.cronManager.Stop()

	// Stop the sync engine with timeout and panic recovery
	log.Println("Stopping sync engine...")
	stopDone := make(chan struct{})
	go s.wrapGoroutine("sync_engine_shutdown", func() {
		defer close(stopDone)
		if err := s.services.SyncEngine.Stop(); err != nil {
			log.Printf("Sync engine shutdown error: %v", err)
		} else {
			log.Println("Sync engine stopped successfully")
		}
	})

	// Wait for the engine to stop with timeout
	select {
	case <-stopDone:
		log.Println("Sync engine stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Println("Sync engine stop timed out, forcing exit")
	}

	// Close the event publisher last so in-flight messages drain
	if s.services.Publisher != nil {
		if err := s.services.Publisher.Close(); err != nil {
			log.Printf("Publisher shutdown error: %v", err)
		}
	}

	return nil
}
