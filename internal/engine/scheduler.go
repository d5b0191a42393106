// Package engine advances the universe through time. Two drivers share the
// pure models in internal/economy: the Scheduler ticks the shared multiplayer
// universe on a fixed interval, and the CatchUp path batches elapsed time for
// single-player universes on demand. The two must stay numerically
// reconcilable; any intentional divergence (batched colonist growth) lives
// behind its own economy function and is documented there.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/starveil/engine/internal/config"
	"github.com/starveil/engine/internal/economy"
	"github.com/starveil/engine/internal/geo"
	"github.com/starveil/engine/internal/leaderboard"
	"github.com/starveil/engine/internal/model"
	"github.com/starveil/engine/internal/notify"
)

// Dependencies holds all dependencies for the scheduler service.
type Dependencies struct {
	DB          *gorm.DB
	Logger      *slog.Logger
	Notifier    *notify.Notifier
	Leaderboard *leaderboard.Cache
	Lease       *Lease

	// Now is the clock; tests substitute a fixed one.
	Now func() time.Time
}

// TickStats summarizes one scheduler invocation for monitoring.
type TickStats struct {
	TickNumber       uint64
	Duration         time.Duration
	PlayersTicked    uint
	PlanetsTicked    uint
	OutpostsInjected uint
	StepFailures     uint
}

// Scheduler owns the shared multiplayer universe. Exactly one process may
// run it; the lease enforces that.
type Scheduler struct {
	deps Dependencies
	cfg  config.TickConfig

	tickCount uint64
	lastStats atomic.Value // TickStats

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	ticksProcessed metric.Int64Counter
	stepFailures   metric.Int64Counter
}

// NewScheduler creates a scheduler service. Metrics come from the global
// OTel meter (no-op if none is configured).
func NewScheduler(deps Dependencies, cfg config.TickConfig) (*Scheduler, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Scheduler{
		deps:     deps,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}

	m := meter()
	var err error
	s.ticksProcessed, err = m.Int64Counter(
		"engine.ticks.processed",
		metric.WithDescription("Total global tick invocations completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	s.stepFailures, err = m.Int64Counter(
		"engine.tick.step_failures",
		metric.WithDescription("Total tick steps that aborted with an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step failure counter: %w", err)
	}

	return s, nil
}

// TickCount returns the number of completed tick invocations.
func (s *Scheduler) TickCount() uint64 {
	return atomic.LoadUint64(&s.tickCount)
}

// LastStats returns the stats of the most recent tick, if any.
func (s *Scheduler) LastStats() (TickStats, bool) {
	v := s.lastStats.Load()
	if v == nil {
		return TickStats{}, false
	}
	return v.(TickStats), true
}

// IsRunning returns whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start launches the tick loop. It refuses to run without holding the
// single-writer lease: two schedulers ticking the same database would double
// every rate-based mutation.
func (s *Scheduler) Start() error {
	if s.deps.Lease != nil {
		if err := s.deps.Lease.Acquire(); err != nil {
			return fmt.Errorf("scheduler lease not acquired: %w", err)
		}
	}

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

		s.deps.Logger.Info("Global tick scheduler started", "interval", s.cfg.Interval.String())
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				s.deps.Logger.Info("Global tick scheduler stopped")
				return
			case <-ticker.C:
				if s.deps.Lease != nil {
					if err := s.deps.Lease.Renew(); err != nil {
						s.deps.Logger.Error("Lost scheduler lease, stopping tick loop", "error", err)
						return
					}
				}
				s.RunTick()
			}
		}
	}()

	return nil
}

// Stop halts the tick loop and releases the lease.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
	}
	s.mu.Unlock()
	if s.deps.Lease != nil {
		s.deps.Lease.Release()
	}
}

// RunTick advances the shared universe by exactly one interval. Steps run in
// fixed order; each is individually fault-isolated so one failing step cannot
// stop the others this invocation, and nothing can kill the loop itself.
func (s *Scheduler) RunTick() TickStats {
	start := s.deps.Now()
	tick := atomic.AddUint64(&s.tickCount, 1)
	stats := TickStats{TickNumber: tick}

	steps := []struct {
		name string
		fn   func(now time.Time, stats *TickStats) error
	}{
		{"energy_regen", s.regenEnergy},
		{"planet_production", s.producePlanets},
		{"inactivity_decay", s.applyInactivityDecay},
		{"maintenance", s.maintainDefensesAndDeployables},
		{"auxiliary_sweep", s.sweepAuxiliary},
		{"treasury_injection", s.injectTreasury},
		{"notifications", s.emitEnergyNotifications},
	}

	for _, step := range steps {
		if err := s.runStep(step.name, start, &stats, step.fn); err != nil {
			stats.StepFailures++
			s.stepFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("step", step.name)))
			s.deps.Logger.Error("Tick step failed", "step", step.name, "tick", tick, "error", err)
		}
	}

	stats.Duration = s.deps.Now().Sub(start)
	s.lastStats.Store(stats)
	s.ticksProcessed.Add(context.Background(), 1)
	s.deps.Logger.Debug("Tick complete",
		"tick", tick,
		"duration", stats.Duration.String(),
		"players", stats.PlayersTicked,
		"planets", stats.PlanetsTicked,
		"failures", stats.StepFailures,
	)
	return stats
}

// runStep guards one step: a panic or error aborts that step only.
func (s *Scheduler) runStep(name string, now time.Time, stats *TickStats, fn func(time.Time, *TickStats) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", name, r)
		}
	}()
	return fn(now, stats)
}

// regenEnergy applies the fixed per-tick regen to every multiplayer player
// below max, doubled under an active regen boost, and expires any lapsed
// race-specific max-energy bonus.
func (s *Scheduler) regenEnergy(now time.Time, stats *TickStats) error {
	var players []model.Player
	err := s.deps.DB.
		Where("game_mode = ?", model.ModeMultiplayer).
		Find(&players).Error
	if err != nil {
		return err
	}

	for i := range players {
		p := &players[i]
		changed := false

		// Expire the temporary max-energy bonus before regen so the clamp
		// uses the restored ceiling.
		if p.MaxEnergyBoost > 0 && !p.MaxEnergyBoostUntil.IsZero() && now.After(p.MaxEnergyBoostUntil) {
			p.MaxEnergy -= p.MaxEnergyBoost
			p.MaxEnergyBoost = 0
			p.MaxEnergyBoostUntil = time.Time{}
			p.Energy = economy.ClampEnergy(p.Energy, p.MaxEnergy)
			changed = true
		}

		if p.Energy < p.MaxEnergy {
			regen := s.cfg.EnergyRegen
			if now.Before(p.RegenBoostUntil) {
				regen *= 2
			}
			p.Energy = economy.ClampEnergy(p.Energy+regen, p.MaxEnergy)
			changed = true
		}

		if changed {
			err := s.deps.DB.Model(p).Updates(map[string]interface{}{
				"energy":                 p.Energy,
				"max_energy":             p.MaxEnergy,
				"max_energy_boost":       p.MaxEnergyBoost,
				"max_energy_boost_until": p.MaxEnergyBoostUntil,
			}).Error
			if err != nil {
				return err
			}
			stats.PlayersTicked++
		}
	}
	return nil
}

// producePlanets runs production, growth, and the unique-resource step for
// every owned, populated planet in the shared universe.
func (s *Scheduler) producePlanets(now time.Time, stats *TickStats) error {
	var planets []model.Planet
	err := s.deps.DB.
		Joins("JOIN sectors ON sectors.id = planets.sector_id").
		Where("sectors.universe = ?", model.UniverseShared).
		Where("planets.owner_id IS NOT NULL").
		Where("planets.colonists > 0").
		Find(&planets).Error
	if err != nil {
		return err
	}

	for i := range planets {
		if err := s.advancePlanetOneTick(&planets[i]); err != nil {
			return err
		}
		stats.PlanetsTicked++
	}
	return nil
}

// advancePlanetOneTick applies one interval of production and growth to a
// planet and persists the result. Shared with nothing: the catch-up path uses
// the batched equivalents directly.
func (s *Scheduler) advancePlanetOneTick(p *model.Planet) error {
	yield := economy.Production(p.PlanetClass, p.Colonists)
	p.CyrilliumStock += yield.Cyrillium
	p.FoodStock += yield.Food
	p.TechStock += yield.Tech
	p.DroneCount += yield.Drones
	p.UniqueResourceStock += p.UniqueResourceRate

	// Growth reads the food state after this tick's harvest.
	p.Colonists = economy.Growth(p.PlanetClass, p.Colonists, p.FoodStock > 0)

	return s.deps.DB.Model(p).Updates(map[string]interface{}{
		"cyrillium_stock":       p.CyrilliumStock,
		"food_stock":            p.FoodStock,
		"tech_stock":            p.TechStock,
		"drone_count":           p.DroneCount,
		"unique_resource_stock": p.UniqueResourceStock,
		"colonists":             p.Colonists,
	}).Error
}

// applyInactivityDecay attritions the planets of players inactive beyond the
// threshold. Hours-inactive is recomputed from the absolute lastLogin every
// tick, so only the delta beyond the player's decay watermark is applied;
// re-running with an unchanged total is a no-op.
func (s *Scheduler) applyInactivityDecay(now time.Time, stats *TickStats) error {
	cutoff := now.Add(-time.Duration(s.cfg.DecayThresholdHours) * time.Hour)
	var players []model.Player
	err := s.deps.DB.
		Where("game_mode = ?", model.ModeMultiplayer).
		Where("last_login < ?", cutoff).
		Find(&players).Error
	if err != nil {
		return err
	}

	for i := range players {
		p := &players[i]
		hoursInactive := int64(now.Sub(p.LastLogin).Hours()) - s.cfg.DecayThresholdHours
		delta := hoursInactive - p.DecayedHours
		if delta <= 0 {
			continue
		}

		var planets []model.Planet
		if err := s.deps.DB.Where("owner_id = ?", p.ID).Find(&planets).Error; err != nil {
			return err
		}
		for j := range planets {
			pl := &planets[j]
			decayed := economy.DecayColonists(pl.Colonists, delta)
			if decayed == pl.Colonists {
				continue
			}
			if err := s.deps.DB.Model(pl).Update("colonists", decayed).Error; err != nil {
				return err
			}
		}

		if err := s.deps.DB.Model(p).Update("decayed_hours", hoursInactive).Error; err != nil {
			return err
		}
	}
	return nil
}

// maintainDefensesAndDeployables drains standing-defense energy and hard
// deletes every deployable whose derived expiry has passed.
func (s *Scheduler) maintainDefensesAndDeployables(now time.Time, stats *TickStats) error {
	var planets []model.Planet
	err := s.deps.DB.
		Joins("JOIN sectors ON sectors.id = planets.sector_id").
		Where("sectors.universe = ?", model.UniverseShared).
		Where("planets.defense_energy > 0").
		Find(&planets).Error
	if err != nil {
		return err
	}
	for i := range planets {
		p := &planets[i]
		if err := s.deps.DB.Model(p).Update("defense_energy", economy.DefenseDecay(p.DefenseEnergy)).Error; err != nil {
			return err
		}
	}

	var deployables []model.Deployable
	if err := s.deps.DB.Find(&deployables).Error; err != nil {
		return err
	}
	for i := range deployables {
		d := &deployables[i]
		if now.After(economy.DeployableExpiry(d.DeployedAt, d.LastMaintainedAt)) {
			if err := s.deps.DB.Delete(d).Error; err != nil {
				return err
			}
			s.deps.Logger.Debug("Deployable expired", "id", d.ID, "kind", d.Kind, "owner", d.OwnerID)
		}
	}
	return nil
}

// sweepAuxiliary expires missions and sector events, spawns new events, and
// refreshes the leaderboard cache every Nth tick. Order-insensitive relative
// to the physics steps.
func (s *Scheduler) sweepAuxiliary(now time.Time, stats *TickStats) error {
	err := s.deps.DB.Model(&model.Mission{}).
		Where("status = ?", model.MissionActive).
		Where("deadline < ?", now).
		Update("status", model.MissionExpired).Error
	if err != nil {
		return err
	}

	err = s.deps.DB.Model(&model.SectorEvent{}).
		Where("status = ?", model.EventActive).
		Where("expires_at < ?", now).
		Update("status", model.EventExpired).Error
	if err != nil {
		return err
	}

	if rand.Float64() < s.cfg.EventSpawnChance {
		if err := s.spawnSectorEvent(now); err != nil {
			return err
		}
	}

	if s.cfg.LeaderboardRefreshEvery > 0 && s.deps.Leaderboard != nil &&
		atomic.LoadUint64(&s.tickCount)%s.cfg.LeaderboardRefreshEvery == 0 {
		if err := s.deps.Leaderboard.Refresh(s.deps.DB, now); err != nil {
			return err
		}
	}
	return nil
}

// eventTypes are the sector event kinds the spawner picks from.
var eventTypes = []string{"ion_storm", "pirate_raid", "derelict", "ore_surge"}

func (s *Scheduler) spawnSectorEvent(now time.Time) error {
	var sector model.Sector
	err := s.deps.DB.
		Where("universe = ?", model.UniverseShared).
		Order("RANDOM()").
		First(&sector).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	event := model.SectorEvent{
		SectorID:  sector.ID,
		Type:      eventTypes[rand.Intn(len(eventTypes))],
		Data:      datatypes.JSON(`{}`),
		Status:    model.EventActive,
		ExpiresAt: now.Add(s.cfg.EventLifetime),
	}
	if err := s.deps.DB.Create(&event).Error; err != nil {
		return err
	}
	s.deps.Logger.Info("Sector event spawned",
		"type", event.Type,
		"sector", sector.ID,
		"position", geo.CoordString(sector.Position),
	)
	return nil
}

// injectTreasury drips the fixed subsidy into every shared-universe outpost.
func (s *Scheduler) injectTreasury(now time.Time, stats *TickStats) error {
	res := s.deps.DB.Model(&model.Outpost{}).
		Where("sector_id IN (?)",
			s.deps.DB.Model(&model.Sector{}).Select("id").Where("universe = ?", model.UniverseShared)).
		Update("treasury", gorm.Expr("treasury + ?", s.cfg.TreasuryInjection))
	if res.Error != nil {
		return res.Error
	}
	stats.OutpostsInjected = uint(res.RowsAffected)
	return nil
}

// emitEnergyNotifications queues an energy update for every connected player.
func (s *Scheduler) emitEnergyNotifications(now time.Time, stats *TickStats) error {
	if s.deps.Notifier == nil {
		return nil
	}
	connected := s.deps.Notifier.Connected()
	if len(connected) == 0 {
		return nil
	}

	var players []model.Player
	if err := s.deps.DB.Where("id IN ?", connected).Find(&players).Error; err != nil {
		return err
	}
	for _, p := range players {
		s.deps.Notifier.Push(notify.EnergyUpdate{
			PlayerID:  p.ID,
			Energy:    p.Energy,
			MaxEnergy: p.MaxEnergy,
		})
	}
	s.deps.Notifier.Flush()
	return nil
}
