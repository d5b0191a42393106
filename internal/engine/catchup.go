package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/starveil/engine/internal/config"
	"github.com/starveil/engine/internal/economy"
	"github.com/starveil/engine/internal/model"
)

// ErrCatchUpConflict is returned when the player's tick watermark moved
// between read and write, meaning a concurrent catch-up already ran.
var ErrCatchUpConflict = fmt.Errorf("catch-up already applied by a concurrent request")

// CatchUpResult reports what one batched catch-up applied.
type CatchUpResult struct {
	PlayerID       uint
	TicksProcessed int64
	Truncated      bool
	PlanetsTicked  int
	EnergyGained   int64
	NewWatermark   time.Time
}

// CatchUp batches elapsed real time into simulation ticks for single-player
// universes. Each player's private economy advances only when they show up,
// in one closed-form pass rather than a replay loop.
type CatchUp struct {
	db     *gorm.DB
	logger *slog.Logger
	cfg    config.TickConfig

	// locks serializes catch-up per player within this process. Cross-process
	// races are handled by the conditional watermark update.
	mu    sync.Mutex
	locks map[uint]*sync.Mutex

	now      func() time.Time
	recorder func(CatchUpResult, time.Time)
}

// NewCatchUp creates the single-player catch-up driver.
func NewCatchUp(db *gorm.DB, logger *slog.Logger, cfg config.TickConfig) *CatchUp {
	return &CatchUp{
		db:     db,
		logger: logger,
		cfg:    cfg,
		locks:  make(map[uint]*sync.Mutex),
		now:    time.Now,
	}
}

// SetRecorder registers a callback invoked after each catch-up that applied
// at least one tick, typically the monitor's performance recorder.
func (c *CatchUp) SetRecorder(fn func(CatchUpResult, time.Time)) {
	c.recorder = fn
}

func (c *CatchUp) playerLock(playerID uint) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[playerID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[playerID] = l
	}
	return l
}

// Run advances the player's private universe by every whole tick elapsed
// since their watermark, clamped to the configured cap. Windows beyond the
// cap are truncated: the excess time is forfeit, not banked, so a long
// absence cannot be replayed in installments. Less than one whole tick is a
// no-op that leaves the watermark untouched.
func (c *CatchUp) Run(playerID uint) (CatchUpResult, error) {
	lock := c.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	var player model.Player
	if err := c.db.First(&player, playerID).Error; err != nil {
		return CatchUpResult{}, fmt.Errorf("loading player %d: %w", playerID, err)
	}
	if player.GameMode != model.ModeSingleplayer {
		return CatchUpResult{}, fmt.Errorf("player %d is not in single-player mode", playerID)
	}

	now := c.now()
	result := CatchUpResult{PlayerID: playerID, NewWatermark: player.SpLastTickAt}

	prevWatermark := player.SpLastTickAt
	if prevWatermark.IsZero() {
		// First visit: start the clock, simulate nothing retroactively.
		err := c.db.Model(&player).Update("sp_last_tick_at", now).Error
		if err != nil {
			return CatchUpResult{}, err
		}
		result.NewWatermark = now
		return result, nil
	}

	ticks := int64(now.Sub(prevWatermark) / c.cfg.Interval)
	if ticks < 1 {
		return result, nil
	}
	if ticks > c.cfg.MaxCatchupTicks {
		ticks = c.cfg.MaxCatchupTicks
		result.Truncated = true
	}
	result.TicksProcessed = ticks

	err := c.db.Transaction(func(tx *gorm.DB) error {
		// Energy: linear regen, clamped once at the end. The boost window is
		// checked against now, matching how a lapsed boost would have covered
		// at most a fraction of the window anyway.
		if player.Energy < player.MaxEnergy {
			regen := c.cfg.EnergyRegen * ticks
			if now.Before(player.RegenBoostUntil) {
				regen *= 2
			}
			before := player.Energy
			player.Energy = economy.ClampEnergy(player.Energy+regen, player.MaxEnergy)
			result.EnergyGained = player.Energy - before
		}

		var planets []model.Planet
		err := tx.
			Joins("JOIN sectors ON sectors.id = planets.sector_id").
			Where("sectors.universe = ?", model.UniversePrivate).
			Where("sectors.owner_id = ?", playerID).
			Where("planets.colonists > 0").
			Find(&planets).Error
		if err != nil {
			return err
		}

		for i := range planets {
			p := &planets[i]
			// Production is linear in the window; one multiply replaces the
			// per-tick loop exactly.
			yield := economy.Production(p.PlanetClass, p.Colonists)
			p.CyrilliumStock += yield.Cyrillium * ticks
			p.FoodStock += yield.Food * ticks
			p.TechStock += yield.Tech * ticks
			p.DroneCount += yield.Drones * float64(ticks)
			p.UniqueResourceStock += p.UniqueResourceRate * ticks

			// Growth compounds, so it uses the closed-form batch. Food state
			// is sampled once for the whole window.
			p.Colonists = economy.GrowthBatched(p.PlanetClass, p.Colonists, p.FoodStock > 0, ticks)

			err := tx.Model(p).Updates(map[string]interface{}{
				"cyrillium_stock":       p.CyrilliumStock,
				"food_stock":            p.FoodStock,
				"tech_stock":            p.TechStock,
				"drone_count":           p.DroneCount,
				"unique_resource_stock": p.UniqueResourceStock,
				"colonists":             p.Colonists,
			}).Error
			if err != nil {
				return err
			}
			result.PlanetsTicked++
		}

		err = tx.Model(&model.Outpost{}).
			Where("sector_id IN (?)",
				tx.Model(&model.Sector{}).Select("id").
					Where("universe = ? AND owner_id = ?", model.UniversePrivate, playerID)).
			Update("treasury", gorm.Expr("treasury + ?", c.cfg.TreasuryInjection*ticks)).Error
		if err != nil {
			return err
		}

		// The watermark write is conditional on the value we read; if another
		// process caught this player up in the meantime, everything above
		// rolls back.
		res := tx.Model(&model.Player{}).
			Where("id = ?", playerID).
			Where("sp_last_tick_at = ?", prevWatermark).
			Updates(map[string]interface{}{
				"energy":          player.Energy,
				"sp_last_tick_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCatchUpConflict
		}
		return nil
	})
	if err != nil {
		return CatchUpResult{}, err
	}

	result.NewWatermark = now
	c.logger.Debug("Catch-up applied",
		"player", playerID,
		"ticks", ticks,
		"truncated", result.Truncated,
		"planets", result.PlanetsTicked,
	)
	if c.recorder != nil {
		c.recorder(result, now)
	}
	return result, nil
}
