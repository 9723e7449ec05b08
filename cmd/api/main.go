package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/handler"
	"github.com/Dan9191/card-service/internal/integrations/binlist"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/scheduler"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/Dan9191/card-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	m := metrics.New(prometheus.DefaultRegisterer)
	repo := repository.NewRepository(db, cfg.StoreTimeout)
	bins := binlist.NewClient(cfg, logger, m)

	var reporter service.SweepReporter
	if cfg.ReportsEnabled() {
		reporter = email.NewSender(cfg, logger)
		logger.Infof("Sweep reports will be sent to %s", cfg.ReportEmail)
	}

	svc := service.NewService(repo, bins, reporter, logger, m)
	h := handler.NewHandler(svc, logger)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Logging(logger, m))
	h.Register(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var sched *scheduler.Scheduler
	if cfg.DedupSchedule != "" {
		sched, err = scheduler.NewScheduler(cfg.DedupSchedule, svc, cfg.DedupTimeout, logger)
		if err != nil {
			logger.Fatalf("Failed to create scheduler: %v", err)
		}
		sched.Start()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.Recovery(logger)(middleware.CORS(cfg.CORSOrigins)(r)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.DedupTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Infof("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	if sched != nil {
		sched.Stop(ctx)
	}
	logger.Info("Server stopped")
}
