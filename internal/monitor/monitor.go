package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/starveil/engine/internal/engine"
	"github.com/starveil/engine/internal/influx"
	"github.com/starveil/engine/internal/logging"
	"github.com/starveil/engine/internal/model"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB              *gorm.DB
	LogManager      *logging.SlogManager
	Scheduler       *engine.Scheduler
	Influx          *influx.Manager
	StatusDir       string
	IsDatabaseValid func() bool
}

// Service watches the scheduler and records how each tick performed: a row
// in tick_performances, a point in InfluxDB, and a human-readable status
// file next to the logs.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status is what gets rendered into the status file.
type Status struct {
	Time          time.Time `json:"time"`
	Running       bool      `json:"running"`
	TickNumber    uint64    `json:"tickNumber"`
	DurationMs    float32   `json:"durationMs"`
	PlayersTicked uint      `json:"playersTicked"`
	PlanetsTicked uint      `json:"planetsTicked"`
	StepFailures  uint      `json:"stepFailures"`
}

// GetStatus snapshots the scheduler's most recent tick.
func (s *Service) GetStatus() (Status, engine.TickStats, bool) {
	stats, ok := s.deps.Scheduler.LastStats()
	status := Status{
		Time:          time.Now(),
		Running:       s.deps.Scheduler.IsRunning(),
		TickNumber:    stats.TickNumber,
		DurationMs:    float32(stats.Duration.Microseconds()) / 1000.0,
		PlayersTicked: stats.PlayersTicked,
		PlanetsTicked: stats.PlanetsTicked,
		StepFailures:  stats.StepFailures,
	}
	return status, stats, ok
}

// RecordTick persists one tick's stats to the database and InfluxDB.
func (s *Service) RecordTick(stats engine.TickStats, at time.Time) error {
	if s.deps.IsDatabaseValid == nil || s.deps.IsDatabaseValid() {
		perf := model.TickPerformance{
			Time:             at,
			TickNumber:       stats.TickNumber,
			DurationMs:       float32(stats.Duration.Microseconds()) / 1000.0,
			PlayersTicked:    stats.PlayersTicked,
			PlanetsTicked:    stats.PlanetsTicked,
			OutpostsInjected: stats.OutpostsInjected,
			StepFailures:     stats.StepFailures,
		}
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			return fmt.Errorf("writing tick performance row: %w", err)
		}
	}

	if s.deps.Influx != nil {
		point := influx.TickPoint(
			stats.TickNumber, stats.Duration,
			stats.PlayersTicked, stats.PlanetsTicked, stats.StepFailures,
			at,
		)
		err := s.deps.Influx.WritePoint(context.Background(), influx.BucketTickPerformance, point)
		if err != nil {
			return fmt.Errorf("writing tick performance point: %w", err)
		}
	}
	return nil
}

// RecordCatchUp ships one applied catch-up to InfluxDB. Unlike ticks there
// is no database row for these, the per-player volume is too high.
func (s *Service) RecordCatchUp(result engine.CatchUpResult, at time.Time) error {
	if s.deps.Influx == nil {
		return nil
	}
	point := influx.CatchupPoint(
		result.PlayerID, result.TicksProcessed, result.Truncated,
		result.PlanetsTicked, at,
	)
	err := s.deps.Influx.WritePoint(context.Background(), influx.BucketCatchupPerformance, point)
	if err != nil {
		return fmt.Errorf("writing catch-up performance point: %w", err)
	}
	return nil
}

// Start starts the monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting monitor goroutine", "function", "startMonitor")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		var lastRecorded uint64
		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				status, stats, ok := s.GetStatus()
				if !ok {
					continue
				}

				if statusFile != nil {
					statusStr, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(statusStr, '\n'))
				}

				// record each tick once
				if stats.TickNumber == lastRecorded {
					continue
				}
				if err := s.RecordTick(stats, status.Time); err != nil {
					logger.Error("Error recording tick performance", "error", err)
					continue
				}
				lastRecorded = stats.TickNumber
			}
		}
	}()

	return nil
}

// Stop stops the monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
