package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TickConfig holds every externally supplied constant the simulation engine
// consumes. The engine computes none of these.
type TickConfig struct {
	// Interval is one simulation tick; the catch-up path converts elapsed
	// wall-clock time into ticks at this granularity.
	Interval time.Duration
	// EnergyRegen is the per-tick energy gain for players below max.
	EnergyRegen int64
	// DecayThresholdHours is how long a player must be inactive before
	// colonist attrition starts.
	DecayThresholdHours int64
	// MaxCatchupTicks caps the batched window; longer gaps are truncated.
	MaxCatchupTicks int64
	// TreasuryInjection is the fixed per-tick credit drip into each outpost.
	TreasuryInjection int64
	// EventSpawnChance is the per-tick probability of a new sector event.
	EventSpawnChance float64
	// EventLifetime is how long a spawned event stays active.
	EventLifetime time.Duration
	// LeaderboardRefreshEvery refreshes the rank cache every Nth tick.
	LeaderboardRefreshEvery uint64
	// LeaseTTL is the single-writer scheduler lease duration.
	LeaseTTL time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./enginelogs")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "starveil")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "starveil-metrics")

	viper.SetDefault("tick.interval", "1m")
	viper.SetDefault("tick.energyRegen", 2)
	viper.SetDefault("tick.decayThresholdHours", 72)
	viper.SetDefault("tick.maxCatchupTicks", 1440)
	viper.SetDefault("tick.treasuryInjection", 100)
	viper.SetDefault("tick.eventSpawnChance", 0.02)
	viper.SetDefault("tick.eventLifetime", "2h")
	viper.SetDefault("tick.leaderboardRefreshEvery", 10)
	viper.SetDefault("tick.leaseTTL", "5m")

	viper.SetConfigName("starveil_engine.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Tick builds the engine's tick configuration from the loaded settings.
func Tick() (TickConfig, error) {
	interval, err := time.ParseDuration(viper.GetString("tick.interval"))
	if err != nil {
		return TickConfig{}, fmt.Errorf("invalid tick.interval: %v", err)
	}
	eventLifetime, err := time.ParseDuration(viper.GetString("tick.eventLifetime"))
	if err != nil {
		return TickConfig{}, fmt.Errorf("invalid tick.eventLifetime: %v", err)
	}
	leaseTTL, err := time.ParseDuration(viper.GetString("tick.leaseTTL"))
	if err != nil {
		return TickConfig{}, fmt.Errorf("invalid tick.leaseTTL: %v", err)
	}

	return TickConfig{
		Interval:                interval,
		EnergyRegen:             viper.GetInt64("tick.energyRegen"),
		DecayThresholdHours:     viper.GetInt64("tick.decayThresholdHours"),
		MaxCatchupTicks:         viper.GetInt64("tick.maxCatchupTicks"),
		TreasuryInjection:       viper.GetInt64("tick.treasuryInjection"),
		EventSpawnChance:        viper.GetFloat64("tick.eventSpawnChance"),
		EventLifetime:           eventLifetime,
		LeaderboardRefreshEvery: viper.GetUint64("tick.leaderboardRefreshEvery"),
		LeaseTTL:                leaseTTL,
	}, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
