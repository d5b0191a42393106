package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/starveil/engine/internal/config"
	"github.com/starveil/engine/internal/database"
	"github.com/starveil/engine/internal/engine"
	"github.com/starveil/engine/internal/influx"
	"github.com/starveil/engine/internal/leaderboard"
	"github.com/starveil/engine/internal/logging"
	"github.com/starveil/engine/internal/monitor"
	"github.com/starveil/engine/internal/notify"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// DBManager is the GORM database manager
	DBManager *database.Manager

	// InfluxManager handles metric writes, nil when disabled
	InfluxManager *influx.Manager

	SessionStartTime time.Time = time.Now()

	// Services
	scheduler      *engine.Scheduler
	monitorService *monitor.Service
	catchUp        *engine.CatchUp
)

func setup(configDir string) error {
	if err := config.Load(configDir); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	tickCfg, err := config.Tick()
	if err != nil {
		return fmt.Errorf("parsing tick config: %w", err)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	logFile, err := os.OpenFile(
		logging.LogFilePath(logsDir, "engined", SessionStartTime),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logFile, config.GetString("logLevel"), func() []slog.Attr {
		if scheduler == nil {
			return nil
		}
		return []slog.Attr{slog.Uint64("tick", scheduler.TickCount())}
	})
	Logger = SlogManager.Logger()
	Logger.Info("Starting engined",
		"version", CurrentVersion,
		"buildDate", BuildDate,
		"tickInterval", tickCfg.Interval.String(),
	)

	zl := zerolog.New(logFile).With().Timestamp().Logger()

	DBManager = database.NewManager(zl)
	if err := DBManager.Connect(); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := DBManager.Setup(); err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}

	if viper.GetBool("influx.enabled") {
		InfluxManager = influx.NewManager(zl, filepath.Join(logsDir, "influx_backup.gz"))
		if err := InfluxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			InfluxManager = nil
		}
	}

	notifier := notify.New()
	ranks := leaderboard.NewCache()
	lease := engine.NewLease(DBManager.DB, Logger, tickCfg.LeaseTTL)

	scheduler, err = engine.NewScheduler(engine.Dependencies{
		DB:          DBManager.DB,
		Logger:      Logger,
		Notifier:    notifier,
		Leaderboard: ranks,
		Lease:       lease,
	}, tickCfg)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	// driven by the gameplay API layer when a single-player universe loads
	catchUp = engine.NewCatchUp(DBManager.DB, Logger, tickCfg)

	monitorService = monitor.NewService(monitor.Dependencies{
		DB:              DBManager.DB,
		LogManager:      SlogManager,
		Scheduler:       scheduler,
		Influx:          InfluxManager,
		StatusDir:       logsDir,
		IsDatabaseValid: func() bool { return DBManager.IsValid },
	})

	catchUp.SetRecorder(func(result engine.CatchUpResult, at time.Time) {
		if err := monitorService.RecordCatchUp(result, at); err != nil {
			Logger.Error("Failed to record catch-up performance", "error", err)
		}
	})

	return nil
}

func main() {
	configDir := flag.String("config", ".", "directory containing starveil_engine.cfg.json")
	flag.Parse()

	if err := setup(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "engined: %v\n", err)
		os.Exit(1)
	}

	if err := scheduler.Start(); err != nil {
		Logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start monitor", "error", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	Logger.Info("Shutting down", "signal", sig.String())

	monitorService.Stop()
	scheduler.Stop()
	if InfluxManager != nil && InfluxManager.Client != nil {
		InfluxManager.Client.Close()
	}
	if DBManager.SqlDB != nil {
		DBManager.SqlDB.Close()
	}
}
