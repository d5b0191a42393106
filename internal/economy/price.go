package economy

import (
	"errors"
	"math"
)

// Commodity identifies a tradeable good.
type Commodity string

const (
	CommodityCyrillium Commodity = "cyrillium"
	CommodityFood      Commodity = "food"
	CommodityTech      Commodity = "tech"
)

// Commodities lists every tradeable good in outpost slot order.
var Commodities = []Commodity{CommodityCyrillium, CommodityFood, CommodityTech}

// basePrices is the unit price of each commodity at a 2/3 stock ratio.
var basePrices = map[Commodity]int64{
	CommodityCyrillium: 10,
	CommodityFood:      5,
	CommodityTech:      25,
}

// TradeMode is what an outpost does with a commodity, from the outpost's side:
// an outpost in ModeSell sells to players, one in ModeBuy buys from them.
type TradeMode string

const (
	ModeBuy  TradeMode = "buy"
	ModeSell TradeMode = "sell"
	ModeNone TradeMode = "none"
)

// Direction is the player's side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Trade rejections. Zero clamped quantity is a failure, not a silent
// zero-effect success, so callers can render a precise message.
var (
	ErrNotSoldHere       = errors.New("commodity not sold at this outpost")
	ErrNotBoughtHere     = errors.New("commodity not bought at this outpost")
	ErrNoStock           = errors.New("outpost has no stock")
	ErrNoCapacityOrFunds = errors.New("outpost has no capacity or funds")
)

// Slot is a point-in-time snapshot of one commodity slot on an outpost.
type Slot struct {
	Stock    int64
	Capacity int64
	Mode     TradeMode
}

// TradeResult is the mutation plan a successful trade produces. Callers apply
// NewStock/NewTreasury to the outpost row; the model itself writes nothing.
type TradeResult struct {
	Quantity    int64
	UnitPrice   int64
	Total       int64
	NewStock    int64
	NewTreasury int64
}

// Price computes the current unit price of a commodity from its stock ratio:
// max(1, round(base × (2.0 − ratio×1.5))). Price rises as stock falls, floor
// of 1, no ceiling. Empty capacity is priced as if fully out of stock.
func Price(c Commodity, stock, capacity int64) int64 {
	base := basePrices[c]
	ratio := 0.0
	if capacity > 0 {
		ratio = float64(stock) / float64(capacity)
	}
	p := int64(math.Round(float64(base) * (2.0 - ratio*1.5)))
	if p < 1 {
		return 1
	}
	return p
}

// Trade executes a bounded trade against a snapshot of one outpost slot.
//
// A player buy requires the outpost to be selling; quantity clamps to stock.
// A player sell requires the outpost to be buying; quantity clamps to both
// remaining capacity and floor(treasury / price). The result never drives
// stock outside [0, capacity] or treasury below zero.
func Trade(slot Slot, treasury int64, c Commodity, quantity int64, dir Direction) (TradeResult, error) {
	if quantity < 1 {
		// Surface the error the clamp below would have produced.
		if dir == DirectionSell {
			return TradeResult{}, ErrNoCapacityOrFunds
		}
		return TradeResult{}, ErrNoStock
	}
	price := Price(c, slot.Stock, slot.Capacity)

	switch dir {
	case DirectionBuy:
		if slot.Mode != ModeSell {
			return TradeResult{}, ErrNotSoldHere
		}
		qty := quantity
		if qty > slot.Stock {
			qty = slot.Stock
		}
		if qty < 1 {
			return TradeResult{}, ErrNoStock
		}
		return TradeResult{
			Quantity:    qty,
			UnitPrice:   price,
			Total:       price * qty,
			NewStock:    slot.Stock - qty,
			NewTreasury: treasury + price*qty,
		}, nil

	case DirectionSell:
		if slot.Mode != ModeBuy {
			return TradeResult{}, ErrNotBoughtHere
		}
		qty := quantity
		if room := slot.Capacity - slot.Stock; qty > room {
			qty = room
		}
		if affordable := treasury / price; qty > affordable {
			qty = affordable
		}
		if qty < 1 {
			return TradeResult{}, ErrNoCapacityOrFunds
		}
		return TradeResult{
			Quantity:    qty,
			UnitPrice:   price,
			Total:       price * qty,
			NewStock:    slot.Stock + qty,
			NewTreasury: treasury - price*qty,
		}, nil

	default:
		return TradeResult{}, ErrNotSoldHere
	}
}

// Quote is one row of a read-only market snapshot.
type Quote struct {
	Commodity Commodity
	Stock     int64
	Capacity  int64
	Mode      TradeMode
	UnitPrice int64
}

// MarketSnapshot prices every slot of an outpost without mutating anything.
// Shared by the admin inspection tool so its prices can never diverge from
// the ones trades execute at.
func MarketSnapshot(slots map[Commodity]Slot) []Quote {
	quotes := make([]Quote, 0, len(Commodities))
	for _, c := range Commodities {
		slot, ok := slots[c]
		if !ok {
			continue
		}
		quotes = append(quotes, Quote{
			Commodity: c,
			Stock:     slot.Stock,
			Capacity:  slot.Capacity,
			Mode:      slot.Mode,
			UnitPrice: Price(c, slot.Stock, slot.Capacity),
		})
	}
	return quotes
}
