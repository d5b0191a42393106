package leaderboard

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/starveil/engine/internal/database"
	"github.com/starveil/engine/internal/model"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := database.GetSqliteDBStandalone("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	err = db.AutoMigrate(&model.Player{}, &model.Sector{}, &model.Planet{}, &model.LeaderboardEntry{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedPlayers(t *testing.T, db *gorm.DB) (rich, poor, solo model.Player) {
	t.Helper()
	rich = model.Player{Name: "rich", GameMode: model.ModeMultiplayer, Credits: 10_000}
	poor = model.Player{Name: "poor", GameMode: model.ModeMultiplayer, Credits: 100}
	solo = model.Player{Name: "solo", GameMode: model.ModeSingleplayer, Credits: 1_000_000}
	for _, p := range []*model.Player{&rich, &poor, &solo} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("failed to seed player: %v", err)
		}
	}
	return rich, poor, solo
}

func TestRefresh_RanksByCreditsAndStockpiles(t *testing.T) {
	db := newTestDB(t, "lbtest1")
	rich, poor, solo := seedPlayers(t, db)

	// Poor in credits but planet-wealthy: stockpiles must count.
	planet := model.Planet{
		OwnerID:        &poor.ID,
		CyrilliumStock: 50_000,
		FoodStock:      1_000,
		TechStock:      500,
	}
	if err := db.Create(&planet).Error; err != nil {
		t.Fatalf("failed to seed planet: %v", err)
	}

	cache := NewCache()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := cache.Refresh(db, now); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	top := cache.Top(10)
	if len(top) != 2 {
		t.Fatalf("entries = %d, want 2 (single-player excluded)", len(top))
	}
	if top[0].PlayerID != poor.ID || top[0].Score != 100+51_500 {
		t.Errorf("rank 1 = player %d score %d, want player %d score %d",
			top[0].PlayerID, top[0].Score, poor.ID, 100+51_500)
	}
	if top[1].PlayerID != rich.ID || top[1].Score != 10_000 {
		t.Errorf("rank 2 = player %d score %d, want player %d score 10000",
			top[1].PlayerID, top[1].Score, rich.ID)
	}

	if rank := cache.Rank(poor.ID); rank != 1 {
		t.Errorf("rank(poor) = %d, want 1", rank)
	}
	if rank := cache.Rank(solo.ID); rank != 0 {
		t.Errorf("rank(solo) = %d, want 0 (unranked)", rank)
	}
	if !cache.RefreshedAt().Equal(now) {
		t.Errorf("refreshedAt = %v, want %v", cache.RefreshedAt(), now)
	}

	// Persisted rows mirror the in-memory cache.
	var count int64
	db.Model(&model.LeaderboardEntry{}).Count(&count)
	if count != 2 {
		t.Errorf("persisted entries = %d, want 2", count)
	}
}

func TestRefresh_ReplacesPreviousBoard(t *testing.T) {
	db := newTestDB(t, "lbtest2")
	rich, poor, _ := seedPlayers(t, db)

	cache := NewCache()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := cache.Refresh(db, now); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if cache.Rank(rich.ID) != 1 {
		t.Fatalf("rank(rich) = %d, want 1", cache.Rank(rich.ID))
	}

	// Fortunes reverse between refreshes.
	if err := db.Model(&model.Player{}).Where("id = ?", poor.ID).Update("credits", 99_999).Error; err != nil {
		t.Fatalf("failed to update credits: %v", err)
	}
	if err := cache.Refresh(db, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	if cache.Rank(poor.ID) != 1 {
		t.Errorf("rank(poor) = %d, want 1 after refresh", cache.Rank(poor.ID))
	}
	var count int64
	db.Model(&model.LeaderboardEntry{}).Count(&count)
	if count != 2 {
		t.Errorf("persisted entries = %d, want 2 (old board replaced)", count)
	}
}

func TestTop_ClampsToBoardSize(t *testing.T) {
	cache := NewCache()
	if got := cache.Top(5); len(got) != 0 {
		t.Errorf("empty board Top(5) = %d entries, want 0", len(got))
	}
}
