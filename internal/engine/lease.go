package engine

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starveil/engine/internal/model"
)

const leaseRowID = 1

// ErrLeaseHeld is returned when another live process holds the scheduler
// lease.
var ErrLeaseHeld = fmt.Errorf("scheduler lease held by another process")

// Lease is the single-writer guard for the global tick. It is a plain table
// row claimed and renewed with conditional updates, so it works identically
// on PostgreSQL and the SQLite fallback.
type Lease struct {
	db     *gorm.DB
	logger *slog.Logger
	holder string
	ttl    time.Duration

	now func() time.Time
}

// NewLease creates a lease guard identified by hostname and pid.
func NewLease(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *Lease {
	hostname, _ := os.Hostname()
	return &Lease{
		db:     db,
		logger: logger,
		holder: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Holder returns this process's lease identity.
func (l *Lease) Holder() string {
	return l.holder
}

// Acquire claims the lease. It succeeds when the row is absent, expired, or
// already ours; otherwise it returns ErrLeaseHeld.
func (l *Lease) Acquire() error {
	now := l.now()

	// First boot: insert the row, ignoring a concurrent winner.
	err := l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.SchedulerLease{
		ID:        leaseRowID,
		Holder:    l.holder,
		ExpiresAt: now.Add(l.ttl),
	}).Error
	if err != nil {
		return fmt.Errorf("creating lease row: %w", err)
	}

	// Claim it if expired or already ours. The WHERE clause is the whole
	// mutual exclusion; if zero rows match, someone else holds a live lease.
	res := l.db.Model(&model.SchedulerLease{}).
		Where("id = ?", leaseRowID).
		Where("holder = ? OR expires_at < ?", l.holder, now).
		Updates(map[string]interface{}{
			"holder":     l.holder,
			"expires_at": now.Add(l.ttl),
		})
	if res.Error != nil {
		return fmt.Errorf("claiming lease: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var current model.SchedulerLease
		if err := l.db.First(&current, leaseRowID).Error; err == nil {
			l.logger.Warn("Scheduler lease unavailable",
				"holder", current.Holder, "expiresAt", current.ExpiresAt)
		}
		return ErrLeaseHeld
	}

	l.logger.Info("Scheduler lease acquired", "holder", l.holder, "ttl", l.ttl.String())
	return nil
}

// Renew extends the lease. It fails if we no longer hold it, in which case
// the caller must stop ticking.
func (l *Lease) Renew() error {
	res := l.db.Model(&model.SchedulerLease{}).
		Where("id = ?", leaseRowID).
		Where("holder = ?", l.holder).
		Update("expires_at", l.now().Add(l.ttl))
	if res.Error != nil {
		return fmt.Errorf("renewing lease: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Release expires the lease immediately if we hold it. Best effort; a crash
// without release just means the TTL must lapse first.
func (l *Lease) Release() {
	res := l.db.Model(&model.SchedulerLease{}).
		Where("id = ?", leaseRowID).
		Where("holder = ?", l.holder).
		Update("expires_at", l.now())
	if res.Error != nil {
		l.logger.Warn("Failed to release scheduler lease", "error", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		l.logger.Info("Scheduler lease released", "holder", l.holder)
	}
}
