package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/starveil/engine/internal/config"
	"github.com/starveil/engine/internal/database"
	"github.com/starveil/engine/internal/model"
)

var testDBSeq uint64

// newTestDB opens a fresh in-memory SQLite database with the full schema.
// Each test gets its own named shared-cache DSN so state never leaks between
// tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:enginetest%d?mode=memory&cache=shared", atomic.AddUint64(&testDBSeq, 1))
	db, err := database.GetSqliteDBStandalone(dsn)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTickConfig() config.TickConfig {
	return config.TickConfig{
		Interval:                time.Minute,
		EnergyRegen:             2,
		DecayThresholdHours:     72,
		MaxCatchupTicks:         1440,
		TreasuryInjection:       100,
		EventSpawnChance:        0, // deterministic ticks unless a test opts in
		EventLifetime:           2 * time.Hour,
		LeaderboardRefreshEvery: 0,
		LeaseTTL:                5 * time.Minute,
	}
}

// fixedClock returns a Now func pinned to the given instant.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func uintPtr(v uint) *uint {
	return &v
}

// seedSector creates a sector in the given universe, optionally owned.
func seedSector(t *testing.T, db *gorm.DB, universe string, ownerID *uint) model.Sector {
	t.Helper()
	sector := model.Sector{Universe: universe, OwnerID: ownerID}
	if err := db.Create(&sector).Error; err != nil {
		t.Fatalf("failed to seed sector: %v", err)
	}
	return sector
}
