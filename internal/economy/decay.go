package economy

import "math"

// decayRatePerHour is the fraction of colonists lost per hour of owner
// inactivity beyond the configured threshold.
const decayRatePerHour = 0.01

// defenseDecayPerTick is the flat energy drain on standing defenses.
const defenseDecayPerTick = int64(1)

// DecayColonists returns the colonist count after hours of attrition applied
// to the given base count. DecayColonists(c, 0) == c, so a caller that tracks
// hours already decayed and applies only the delta is idempotent: repeating
// the step with the same total hours-inactive is a no-op.
//
// The scheduler recomputes hours-inactive from the player's absolute lastLogin
// every tick; it must pass the delta beyond its decay watermark here, never
// the running total, or colonists would compound away.
func DecayColonists(colonists int64, hours int64) int64 {
	if colonists <= 0 {
		return 0
	}
	if hours <= 0 {
		return colonists
	}
	remaining := float64(colonists) * math.Pow(1-decayRatePerHour, float64(hours))
	return int64(math.Floor(remaining))
}

// DefenseDecay returns the defense energy after one interval of drain,
// floored at zero.
func DefenseDecay(energy int64) int64 {
	energy -= defenseDecayPerTick
	if energy < 0 {
		return 0
	}
	return energy
}

// ClampEnergy bounds an energy value to [0, maxEnergy]. Both drivers use this
// after any regen arithmetic so 0 ≤ energy ≤ maxEnergy holds everywhere.
func ClampEnergy(energy, maxEnergy int64) int64 {
	if energy < 0 {
		return 0
	}
	if energy > maxEnergy {
		return maxEnergy
	}
	return energy
}
