package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/starveil/engine/internal/economy"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&EngineInfo{},
	&Player{},
	&Sector{},
	&Planet{},
	&Outpost{},
	&Deployable{},
	&SectorEvent{},
	&Mission{},
	&LeaderboardEntry{},
	&SchedulerLease{},
	&TickPerformance{},
}

// GameMode selects which driver owns a player's universe.
type GameMode string

const (
	ModeMultiplayer  GameMode = "multiplayer"
	ModeSingleplayer GameMode = "singleplayer"
)

// Universe tags which economy a sector belongs to.
const (
	UniverseShared  = "shared"
	UniversePrivate = "private"
)

////////////////////////
// SYSTEM MODELS
////////////////////////

// EngineInfo contains instance metadata, seeded once at first setup.
type EngineInfo struct {
	gorm.Model
	InstanceName        string `json:"instanceName" gorm:"size:127"`
	InstanceDescription string `json:"instanceDescription" gorm:"size:255"`
	InstanceWebsite     string `json:"instanceURL" gorm:"size:255"`
}

func (*EngineInfo) TableName() string {
	return "engine_infos"
}

// TickPerformance records one scheduler invocation for monitoring.
type TickPerformance struct {
	ID               uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time             time.Time `json:"time" gorm:"index:idx_tickperf_time"`
	TickNumber       uint64    `json:"tickNumber"`
	DurationMs       float32   `json:"durationMs"`
	PlayersTicked    uint      `json:"playersTicked"`
	PlanetsTicked    uint      `json:"planetsTicked"`
	OutpostsInjected uint      `json:"outpostsInjected"`
	StepFailures     uint      `json:"stepFailures"`
}

func (*TickPerformance) TableName() string {
	return "tick_performances"
}

// SchedulerLease is the single-writer lease row. Exactly one engine process
// holds it at a time; only the holder runs the global tick.
type SchedulerLease struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Holder    string    `json:"holder" gorm:"size:128"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (*SchedulerLease) TableName() string {
	return "scheduler_leases"
}

////////////////////////
// GAME MODELS
////////////////////////

// Player owns ships and planets. The tick engine mutates energy and the decay
// watermark; gameplay actions (out of scope here) write credits and position.
// The engine never deletes a player.
type Player struct {
	ID       uint     `json:"id" gorm:"primarykey;autoIncrement;"`
	Name     string   `json:"name" gorm:"size:64;index:idx_player_name"`
	Race     string   `json:"race" gorm:"size:32"`
	GameMode GameMode `json:"gameMode" gorm:"size:16;index:idx_player_game_mode"`
	Credits  int64    `json:"credits"`

	Energy    int64 `json:"energy"`
	MaxEnergy int64 `json:"maxEnergy"`

	// RegenBoostUntil doubles the per-tick energy regen while in the future.
	RegenBoostUntil time.Time `json:"regenBoostUntil"`
	// MaxEnergyBoost is a race-specific temporary raise of MaxEnergy; once
	// MaxEnergyBoostUntil passes, the tick removes it and clamps energy back.
	MaxEnergyBoost      int64     `json:"maxEnergyBoost"`
	MaxEnergyBoostUntil time.Time `json:"maxEnergyBoostUntil"`

	LastLogin time.Time `json:"lastLogin" gorm:"index:idx_player_last_login"`
	// DecayedHours is the inactivity-decay watermark: hours of attrition
	// already applied since LastLogin. Reset to 0 on login.
	DecayedHours int64 `json:"decayedHours"`

	// Single-player catch-up state.
	SpLastTickAt   time.Time `json:"spLastTickAt"`
	SpSectorOffset int64     `json:"spSectorOffset"`
}

func (*Player) TableName() string {
	return "players"
}

// Sector partitions the universe. Private sectors carry an owner; the
// catch-up tick selects a player's economy by (universe, owner_id).
type Sector struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Universe string     `json:"universe" gorm:"size:16;index:idx_sector_universe"`
	OwnerID  *uint      `json:"ownerId" gorm:"index:idx_sector_owner_id"`
	Position geom.Point `json:"position"`
}

func (*Sector) TableName() string {
	return "sectors"
}

// Planet accumulates resources and population every tick. Ownership can be
// cleared externally (conquest); the planet itself persists.
type Planet struct {
	ID       uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	SectorID uint   `json:"sectorId" gorm:"index:idx_planet_sector_id"`
	Sector   Sector `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SectorID;"`
	OwnerID  *uint  `json:"ownerId" gorm:"index:idx_planet_owner_id"`

	Name        string `json:"name" gorm:"size:64"`
	PlanetClass string `json:"planetClass" gorm:"size:8"`

	Colonists      int64   `json:"colonists"`
	CyrilliumStock int64   `json:"cyrilliumStock"`
	FoodStock      int64   `json:"foodStock"`
	TechStock      int64   `json:"techStock"`
	DroneCount     float64 `json:"droneCount"` // fractional accumulator, floor-displayed
	Happiness      float64 `json:"happiness"`

	// Unique-resource production, configured per planet.
	UniqueResourceStock int64 `json:"uniqueResourceStock"`
	UniqueResourceRate  int64 `json:"uniqueResourceRate"`

	DefenseEnergy int64 `json:"defenseEnergy"`
}

func (*Planet) TableName() string {
	return "planets"
}

// Drones returns the floor-displayed drone count.
func (p *Planet) Drones() int64 {
	return int64(p.DroneCount)
}

// CommoditySlot is one commodity's market state on an outpost, stored
// embedded per commodity.
type CommoditySlot struct {
	Stock    int64             `json:"stock"`
	Capacity int64             `json:"capacity"`
	Mode     economy.TradeMode `json:"mode" gorm:"size:8"`
}

// Outpost is a commodity market. Stock and treasury are mutated only by trade
// execution and the tick's fixed treasury injection.
type Outpost struct {
	ID       uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	SectorID uint   `json:"sectorId" gorm:"index:idx_outpost_sector_id"`
	Sector   Sector `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SectorID;"`
	Name     string `json:"name" gorm:"size:64"`

	Cyrillium CommoditySlot `json:"cyrillium" gorm:"embedded;embeddedPrefix:cyrillium_"`
	Food      CommoditySlot `json:"food" gorm:"embedded;embeddedPrefix:food_"`
	Tech      CommoditySlot `json:"tech" gorm:"embedded;embeddedPrefix:tech_"`

	Treasury int64 `json:"treasury"`
}

func (*Outpost) TableName() string {
	return "outposts"
}

// Slot returns the slot for a commodity as the pure trade model's snapshot
// type. Unknown commodities return an untradeable zero slot.
func (o *Outpost) Slot(c economy.Commodity) economy.Slot {
	switch c {
	case economy.CommodityCyrillium:
		return economy.Slot{Stock: o.Cyrillium.Stock, Capacity: o.Cyrillium.Capacity, Mode: o.Cyrillium.Mode}
	case economy.CommodityFood:
		return economy.Slot{Stock: o.Food.Stock, Capacity: o.Food.Capacity, Mode: o.Food.Mode}
	case economy.CommodityTech:
		return economy.Slot{Stock: o.Tech.Stock, Capacity: o.Tech.Capacity, Mode: o.Tech.Mode}
	default:
		return economy.Slot{Mode: economy.ModeNone}
	}
}

// SetStock writes a commodity's stock back after a trade.
func (o *Outpost) SetStock(c economy.Commodity, stock int64) {
	switch c {
	case economy.CommodityCyrillium:
		o.Cyrillium.Stock = stock
	case economy.CommodityFood:
		o.Food.Stock = stock
	case economy.CommodityTech:
		o.Tech.Stock = stock
	}
}

// Slots returns every slot keyed by commodity, for market snapshots.
func (o *Outpost) Slots() map[economy.Commodity]economy.Slot {
	return map[economy.Commodity]economy.Slot{
		economy.CommodityCyrillium: o.Slot(economy.CommodityCyrillium),
		economy.CommodityFood:      o.Slot(economy.CommodityFood),
		economy.CommodityTech:      o.Slot(economy.CommodityTech),
	}
}

// Deployable is a placed object with a derived expiry. The tick hard-deletes
// it once expired; there is no soft state transition.
type Deployable struct {
	ID       uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	OwnerID  uint   `json:"ownerId" gorm:"index:idx_deployable_owner_id"`
	SectorID uint   `json:"sectorId" gorm:"index:idx_deployable_sector_id"`
	Kind     string `json:"kind" gorm:"size:32"`

	DeployedAt       time.Time `json:"deployedAt"`
	LastMaintainedAt time.Time `json:"lastMaintainedAt"`
}

func (*Deployable) TableName() string {
	return "deployables"
}

// SectorEvent statuses.
const (
	EventActive  = "active"
	EventExpired = "expired"
)

// SectorEvent is a timed occurrence in a sector. Spawned randomly, flipped to
// expired by time, never resurrected.
type SectorEvent struct {
	ID       uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SectorID uint           `json:"sectorId" gorm:"index:idx_sectorevent_sector_id"`
	Type     string         `json:"type" gorm:"size:32"`
	Data     datatypes.JSON `json:"data"`
	Status   string         `json:"status" gorm:"size:16;index:idx_sectorevent_status"`

	ExpiresAt time.Time `json:"expiresAt"`
}

func (*SectorEvent) TableName() string {
	return "sector_events"
}

// Mission statuses the deadline sweep cares about.
const (
	MissionActive  = "active"
	MissionExpired = "expired"
)

// Mission is swept to expired once its deadline passes.
type Mission struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	PlayerID uint      `json:"playerId" gorm:"index:idx_mission_player_id"`
	Status   string    `json:"status" gorm:"size:16;index:idx_mission_status"`
	Deadline time.Time `json:"deadline"`
}

func (*Mission) TableName() string {
	return "missions"
}

// LeaderboardEntry is one row of the periodically refreshed rank cache.
type LeaderboardEntry struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	PlayerID    uint      `json:"playerId" gorm:"index:idx_leaderboard_player_id"`
	Score       int64     `json:"score"`
	Rank        int       `json:"rank"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

func (*LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}
