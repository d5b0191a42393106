package engine

import (
	"errors"
	"testing"

	"github.com/starveil/engine/internal/economy"
	"github.com/starveil/engine/internal/geo"
	"github.com/starveil/engine/internal/model"
)

func seedMarket(t *testing.T) (*Trader, *model.Player, *model.Outpost) {
	t.Helper()
	db := newTestDB(t)
	trader := NewTrader(db, testLogger())

	player := model.Player{Name: "hauler", GameMode: model.ModeMultiplayer, Credits: 10_000}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("failed to seed player: %v", err)
	}
	sector := seedSector(t, db, model.UniverseShared, nil)
	outpost := model.Outpost{
		SectorID:  sector.ID,
		Name:      "Waystation Theta",
		Cyrillium: model.CommoditySlot{Stock: 5000, Capacity: 10_000, Mode: economy.ModeSell},
		Food:      model.CommoditySlot{Stock: 900, Capacity: 1000, Mode: economy.ModeBuy},
		Tech:      model.CommoditySlot{Stock: 0, Capacity: 500, Mode: economy.ModeNone},
		Treasury:  50_000,
	}
	if err := db.Create(&outpost).Error; err != nil {
		t.Fatalf("failed to seed outpost: %v", err)
	}
	return trader, &player, &outpost
}

func TestTrader_BuySettlesBothLedgers(t *testing.T) {
	trader, player, outpost := seedMarket(t)

	// Cyrillium at half stock prices at 13.
	result, err := trader.Execute(player.ID, outpost.ID, economy.CommodityCyrillium, 10, economy.DirectionBuy)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if result.Quantity != 10 || result.UnitPrice != 13 || result.Total != 130 {
		t.Errorf("result = %+v, want qty 10 at 13 for 130", result)
	}

	var o model.Outpost
	if err := trader.db.First(&o, outpost.ID).Error; err != nil {
		t.Fatalf("failed to reload outpost: %v", err)
	}
	if o.Cyrillium.Stock != 4990 {
		t.Errorf("stock = %d, want 4990", o.Cyrillium.Stock)
	}
	if o.Treasury != 50_130 {
		t.Errorf("treasury = %d, want 50130", o.Treasury)
	}

	var p model.Player
	if err := trader.db.First(&p, player.ID).Error; err != nil {
		t.Fatalf("failed to reload player: %v", err)
	}
	if p.Credits != 10_000-130 {
		t.Errorf("credits = %d, want %d", p.Credits, 10_000-130)
	}
}

func TestTrader_BuyClampsToCredits(t *testing.T) {
	trader, player, outpost := seedMarket(t)
	if err := trader.db.Model(player).Update("credits", 100).Error; err != nil {
		t.Fatalf("failed to set credits: %v", err)
	}

	// 100 credits at unit price 13 affords 7 units.
	result, err := trader.Execute(player.ID, outpost.ID, economy.CommodityCyrillium, 50, economy.DirectionBuy)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if result.Quantity != 7 {
		t.Errorf("quantity = %d, want 7", result.Quantity)
	}

	var p model.Player
	if err := trader.db.First(&p, player.ID).Error; err != nil {
		t.Fatalf("failed to reload player: %v", err)
	}
	if p.Credits != 100-7*13 {
		t.Errorf("credits = %d, want %d", p.Credits, 100-7*13)
	}
}

func TestTrader_BuyWithNoCredits(t *testing.T) {
	trader, player, outpost := seedMarket(t)
	if err := trader.db.Model(player).Update("credits", 5).Error; err != nil {
		t.Fatalf("failed to set credits: %v", err)
	}

	_, err := trader.Execute(player.ID, outpost.ID, economy.CommodityCyrillium, 1, economy.DirectionBuy)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("error = %v, want ErrInsufficientCredits", err)
	}
}

func TestTrader_SellClampsToCapacity(t *testing.T) {
	trader, player, outpost := seedMarket(t)

	// Food slot has 100 units of room.
	result, err := trader.Execute(player.ID, outpost.ID, economy.CommodityFood, 500, economy.DirectionSell)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if result.Quantity != 100 {
		t.Errorf("quantity = %d, want 100", result.Quantity)
	}

	var o model.Outpost
	if err := trader.db.First(&o, outpost.ID).Error; err != nil {
		t.Fatalf("failed to reload outpost: %v", err)
	}
	if o.Food.Stock != 1000 {
		t.Errorf("stock = %d, want 1000", o.Food.Stock)
	}
	if o.Treasury != 50_000-result.Total {
		t.Errorf("treasury = %d, want %d", o.Treasury, 50_000-result.Total)
	}

	var p model.Player
	if err := trader.db.First(&p, player.ID).Error; err != nil {
		t.Fatalf("failed to reload player: %v", err)
	}
	if p.Credits != 10_000+result.Total {
		t.Errorf("credits = %d, want %d", p.Credits, 10_000+result.Total)
	}
}

func TestTrader_ModeViolations(t *testing.T) {
	trader, player, outpost := seedMarket(t)

	// Outpost buys food, it does not sell it.
	_, err := trader.Execute(player.ID, outpost.ID, economy.CommodityFood, 10, economy.DirectionBuy)
	if !errors.Is(err, economy.ErrNotSoldHere) {
		t.Errorf("buy error = %v, want ErrNotSoldHere", err)
	}

	// And it sells cyrillium, it does not buy it.
	_, err = trader.Execute(player.ID, outpost.ID, economy.CommodityCyrillium, 10, economy.DirectionSell)
	if !errors.Is(err, economy.ErrNotBoughtHere) {
		t.Errorf("sell error = %v, want ErrNotBoughtHere", err)
	}
}

func TestTrader_FailedTradeLeavesStateUntouched(t *testing.T) {
	trader, player, outpost := seedMarket(t)

	_, err := trader.Execute(player.ID, outpost.ID, economy.CommodityTech, 10, economy.DirectionBuy)
	if err == nil {
		t.Fatal("expected mode violation")
	}

	var o model.Outpost
	if err := trader.db.First(&o, outpost.ID).Error; err != nil {
		t.Fatalf("failed to reload outpost: %v", err)
	}
	if o.Treasury != 50_000 {
		t.Errorf("treasury = %d, want 50000", o.Treasury)
	}
	var p model.Player
	if err := trader.db.First(&p, player.ID).Error; err != nil {
		t.Fatalf("failed to reload player: %v", err)
	}
	if p.Credits != 10_000 {
		t.Errorf("credits = %d, want 10000", p.Credits)
	}
}

func TestTrader_NearestOutpost(t *testing.T) {
	db := newTestDB(t)
	trader := NewTrader(db, testLogger())

	near := model.Sector{Universe: model.UniverseShared, Position: geo.SectorCoord(1, 1)}
	far := model.Sector{Universe: model.UniverseShared, Position: geo.SectorCoord(50, 50)}
	private := model.Sector{Universe: model.UniversePrivate, OwnerID: uintPtr(1), Position: geo.SectorCoord(0, 0)}
	for _, s := range []*model.Sector{&near, &far, &private} {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("failed to seed sector: %v", err)
		}
	}
	outposts := []model.Outpost{
		{SectorID: far.ID, Name: "Far Post"},
		{SectorID: near.ID, Name: "Near Post"},
		{SectorID: private.ID, Name: "Private Post"},
	}
	for i := range outposts {
		if err := db.Create(&outposts[i]).Error; err != nil {
			t.Fatalf("failed to seed outpost: %v", err)
		}
	}

	got, dist, err := trader.NearestOutpost(model.UniverseShared, geo.SectorCoord(0, 0))
	if err != nil {
		t.Fatalf("nearest outpost failed: %v", err)
	}
	if got.Name != "Near Post" {
		t.Errorf("nearest = %s, want Near Post", got.Name)
	}
	if want := geo.Distance(geo.SectorCoord(0, 0), geo.SectorCoord(1, 1)); dist != want {
		t.Errorf("distance = %f, want %f", dist, want)
	}

	// Empty universes report not found.
	if _, _, err := trader.NearestOutpost("uncharted", geo.SectorCoord(0, 0)); err == nil {
		t.Error("expected an error for a universe with no outposts")
	}
}

func TestTrader_Snapshot(t *testing.T) {
	trader, _, outpost := seedMarket(t)

	quotes, err := trader.Snapshot(outpost.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(quotes) != 3 {
		t.Fatalf("quotes = %d, want 3", len(quotes))
	}
	for _, q := range quotes {
		if want := economy.Price(q.Commodity, q.Stock, q.Capacity); q.UnitPrice != want {
			t.Errorf("%s price = %d, want %d", q.Commodity, q.UnitPrice, want)
		}
	}
	if quotes[0].Commodity != economy.CommodityCyrillium || quotes[0].UnitPrice != 13 {
		t.Errorf("first quote = %+v, want cyrillium at 13", quotes[0])
	}
}
