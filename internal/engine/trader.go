package engine

import (
	"errors"
	"fmt"
	"log/slog"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starveil/engine/internal/economy"
	"github.com/starveil/engine/internal/geo"
	"github.com/starveil/engine/internal/model"
)

// ErrInsufficientCredits is returned when a buying player cannot pay for even
// a single unit at the current price.
var ErrInsufficientCredits = errors.New("player cannot afford this trade")

// Trader executes outpost trades against the database. The pure clamping and
// pricing rules live in internal/economy; this type only adds row locking,
// the player's side of the ledger, and persistence.
type Trader struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewTrader creates a trade executor.
func NewTrader(db *gorm.DB, logger *slog.Logger) *Trader {
	return &Trader{db: db, logger: logger}
}

// Execute runs one trade between a player and an outpost. Both rows are
// locked for the duration of the transaction, so the price quoted inside is
// the price settled. Quantity clamping follows the slot rules; a buying
// player is additionally clamped to what their credits cover.
func (t *Trader) Execute(playerID, outpostID uint, c economy.Commodity, quantity int64, dir economy.Direction) (economy.TradeResult, error) {
	var result economy.TradeResult

	err := t.db.Transaction(func(tx *gorm.DB) error {
		// SQLite has no row locks and serializes writers on its own.
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var player model.Player
		err := q.First(&player, playerID).Error
		if err != nil {
			return fmt.Errorf("loading player %d: %w", playerID, err)
		}
		var outpost model.Outpost
		err = q.First(&outpost, outpostID).Error
		if err != nil {
			return fmt.Errorf("loading outpost %d: %w", outpostID, err)
		}

		slot := outpost.Slot(c)
		qty := quantity
		if dir == economy.DirectionBuy {
			price := economy.Price(c, slot.Stock, slot.Capacity)
			if affordable := player.Credits / price; qty > affordable {
				qty = affordable
			}
			if qty < 1 {
				return ErrInsufficientCredits
			}
		}

		result, err = economy.Trade(slot, outpost.Treasury, c, qty, dir)
		if err != nil {
			return err
		}

		outpost.SetStock(c, result.NewStock)
		outpost.Treasury = result.NewTreasury
		if err := tx.Save(&outpost).Error; err != nil {
			return err
		}

		delta := result.Total
		if dir == economy.DirectionBuy {
			delta = -delta
		}
		err = tx.Model(&player).Update("credits", gorm.Expr("credits + ?", delta)).Error
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return economy.TradeResult{}, err
	}

	t.logger.Debug("Trade executed",
		"player", playerID,
		"outpost", outpostID,
		"commodity", string(c),
		"direction", string(dir),
		"quantity", result.Quantity,
		"unitPrice", result.UnitPrice,
	)
	return result, nil
}

// Snapshot prices every commodity slot on an outpost without trading.
func (t *Trader) Snapshot(outpostID uint) ([]economy.Quote, error) {
	var outpost model.Outpost
	if err := t.db.First(&outpost, outpostID).Error; err != nil {
		return nil, fmt.Errorf("loading outpost %d: %w", outpostID, err)
	}
	return economy.MarketSnapshot(outpost.Slots()), nil
}

// NearestOutpost finds the closest outpost to a position within one universe.
// Distance is planar over sector positions, so outposts sharing a sector tie
// and the lowest ID wins.
func (t *Trader) NearestOutpost(universe string, from geom.Point) (*model.Outpost, float64, error) {
	var outposts []model.Outpost
	err := t.db.
		Preload("Sector").
		Joins("JOIN sectors ON sectors.id = outposts.sector_id").
		Where("sectors.universe = ?", universe).
		Order("outposts.id").
		Find(&outposts).Error
	if err != nil {
		return nil, 0, err
	}
	if len(outposts) == 0 {
		return nil, 0, gorm.ErrRecordNotFound
	}

	best := 0
	bestDist := geo.Distance(from, outposts[0].Sector.Position)
	for i := 1; i < len(outposts); i++ {
		if d := geo.Distance(from, outposts[i].Sector.Position); d < bestDist {
			best, bestDist = i, d
		}
	}
	return &outposts[best], bestDist, nil
}
