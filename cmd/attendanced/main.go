// Command attendanced runs the attendance core as a long-running daemon:
// HTTP server, cron scheduler, and a startup backfill pass before the
// server starts accepting traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/api"
	"github.com/dipnamdev/attendance-management-backend/internal/cache"
	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/commands"
	"github.com/dipnamdev/attendance-management-backend/internal/config"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/heartbeat"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/reconcile"
	"github.com/dipnamdev/attendance-management-backend/internal/scheduler"
	"github.com/dipnamdev/attendance-management-backend/internal/store/sqlite"
	transporthttp "github.com/dipnamdev/attendance-management-backend/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (optional)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log := logger.New("attendanced", *logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("daemon exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	db, err := sqlite.Open(sqlite.Config{
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	activityCache := cache.New(cache.Config{
		Enabled:  cfg.Cache.Enabled,
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	}, log)

	clk := clock.NewSystem(cfg.Tracking.Timezone)
	eng := engine.New(log)

	attendance := sqlite.NewAttendanceRepository()
	breaks := sqlite.NewLunchBreakRepository()
	activityLogs := sqlite.NewActivityLogRepository()
	inputSamples := sqlite.NewInputSampleRepository()
	users := sqlite.NewUserRepository()

	cmd := commands.New(commands.Deps{
		Tx:           db,
		Attendance:   attendance,
		Breaks:       breaks,
		ActivityLogs: activityLogs,
		Cache:        activityCache,
		Engine:       eng,
		Clock:        clk,
		Log:          log,
		CacheTTL:     cfg.Tracking.CacheTTL,
	})

	hb := heartbeat.New(heartbeat.Deps{
		Tx:           db,
		Attendance:   attendance,
		ActivityLogs: activityLogs,
		InputSamples: inputSamples,
		Cache:        activityCache,
		Engine:       eng,
		Clock:        clk,
		Commands:     cmd,
		Log:          log,
		Config: heartbeat.Config{
			RetroactiveIdleThreshold: cfg.Tracking.IdleThreshold,
			AutoCheckoutThreshold:    cfg.Tracking.AutoCheckoutThreshold,
			CacheTTL:                 cfg.Tracking.CacheTTL,
		},
	})

	reconcileDeps := reconcile.Deps{
		Tx:                 db,
		Attendance:         attendance,
		Breaks:             breaks,
		ActivityLogs:       activityLogs,
		InputSamples:       inputSamples,
		Users:              users,
		Cache:              activityCache,
		Engine:             eng,
		Clock:              clk,
		Log:                log,
		IdleCap:            cfg.Tracking.ExcessiveIdleCap,
		BreakCap:           cfg.Tracking.ExcessiveBreakCap,
		GapThreshold:       cfg.Tracking.GapDetectorThreshold,
		EndOfDayTailWindow: cfg.Tracking.EndOfDayTailWindow,
		CacheTTL:           cfg.Tracking.CacheTTL,
	}

	idleCloser := reconcile.NewExcessiveIdleCloser(reconcileDeps)
	breakCloser := reconcile.NewExcessiveBreakCloser(reconcileDeps)
	gapDetector := reconcile.NewGapDetector(reconcileDeps, cmd)
	endOfDayCloser := reconcile.NewEndOfDayCloser(reconcileDeps)
	dailyCreator := reconcile.NewDailyAttendanceCreator(reconcileDeps)
	backfill := reconcile.NewBackfill(reconcileDeps)

	log.Info("running startup backfill")
	if err := backfill.Run(context.Background()); err != nil {
		log.Error("startup backfill failed", "err", err)
	}

	sched := scheduler.New(log)
	if err := sched.Register(scheduler.DefaultSchedules(idleCloser, breakCloser, gapDetector, endOfDayCloser, dailyCreator)); err != nil {
		return fmt.Errorf("register scheduler jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	facade := api.New(api.Deps{
		Tx:         db,
		Attendance: attendance,
		Commands:   cmd,
		Heartbeat:  hb,
		Engine:     eng,
		Clock:      clk,
		Log:        log,
	})

	router := transporthttp.NewRouter(facade, log)
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErrCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	log.Info("daemon stopped")
	return nil
}
