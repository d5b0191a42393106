// Package leaderboard maintains the rank cache the scheduler refreshes every
// Nth tick. Reads come from the out-of-scope REST layer; latency there is why
// ranks are cached instead of ranked per request.
package leaderboard

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/starveil/engine/internal/model"
)

// scoreQuery ranks players by credits plus the liquidation value of their
// planets' stockpiles.
const scoreQuery = `
SELECT p.id AS player_id,
       p.credits
         + COALESCE(SUM(pl.cyrillium_stock + pl.food_stock + pl.tech_stock), 0)
         AS score
FROM players p
LEFT JOIN planets pl ON pl.owner_id = p.id
WHERE p.game_mode = ?
GROUP BY p.id, p.credits
ORDER BY score DESC
`

// Cache holds the current leaderboard in memory and mirrors it to the
// leaderboard_entries table on refresh.
type Cache struct {
	m           sync.Mutex
	entries     []model.LeaderboardEntry
	refreshedAt time.Time
}

func NewCache() *Cache {
	return &Cache{}
}

type scoredRow struct {
	PlayerID uint
	Score    int64
}

// Refresh recomputes ranks for the shared universe and replaces both the
// in-memory cache and the persisted rows.
func (c *Cache) Refresh(db *gorm.DB, now time.Time) error {
	var rows []scoredRow
	if err := db.Raw(scoreQuery, model.ModeMultiplayer).Scan(&rows).Error; err != nil {
		return err
	}

	entries := make([]model.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = model.LeaderboardEntry{
			PlayerID:    r.PlayerID,
			Score:       r.Score,
			Rank:        i + 1,
			RefreshedAt: now,
		}
	}

	if err := db.Where("1 = 1").Delete(&model.LeaderboardEntry{}).Error; err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := db.Create(&entries).Error; err != nil {
			return err
		}
	}

	c.m.Lock()
	defer c.m.Unlock()
	c.entries = entries
	c.refreshedAt = now
	return nil
}

// Top returns the best n entries, fewer if the board is smaller.
func (c *Cache) Top(n int) []model.LeaderboardEntry {
	c.m.Lock()
	defer c.m.Unlock()
	if n > len(c.entries) {
		n = len(c.entries)
	}
	out := make([]model.LeaderboardEntry, n)
	copy(out, c.entries[:n])
	return out
}

// Rank returns a player's current rank, or 0 if unranked.
func (c *Cache) Rank(playerID uint) int {
	c.m.Lock()
	defer c.m.Unlock()
	for _, e := range c.entries {
		if e.PlayerID == playerID {
			return e.Rank
		}
	}
	return 0
}

// RefreshedAt reports when the cache last refreshed.
func (c *Cache) RefreshedAt() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.refreshedAt
}
