// Package economy holds the pure rate, growth, decay, and price/trade models
// shared by the interval scheduler and the request-driven catch-up path.
// Nothing in this package performs I/O; every function is deterministic for a
// given input so the two drivers stay numerically reconcilable.
package economy

import (
	"math"
	"time"
)

// Yield is the per-interval output of one planet.
type Yield struct {
	Cyrillium int64
	Food      int64
	Tech      int64
	Drones    float64
}

// ClassRates holds the per-colonist coefficients for one planet class.
type ClassRates struct {
	CyrilliumPerColonist float64
	FoodPerColonist      float64
	TechPerColonist      float64
	DronesPerColonist    float64
	GrowthRate           float64 // fractional growth per interval with food
	IdealPopulation      int64   // carrying capacity
}

// classRates maps planet class to its coefficients. An entry missing here is
// not an error: unknown classes produce nothing and never grow.
var classRates = map[string]ClassRates{
	"M": {CyrilliumPerColonist: 0.010, FoodPerColonist: 0.012, TechPerColonist: 0.002, DronesPerColonist: 0.0005, GrowthRate: 0.0010, IdealPopulation: 5_000_000},
	"K": {CyrilliumPerColonist: 0.016, FoodPerColonist: 0.004, TechPerColonist: 0.003, DronesPerColonist: 0.0007, GrowthRate: 0.0006, IdealPopulation: 2_000_000},
	"O": {CyrilliumPerColonist: 0.004, FoodPerColonist: 0.018, TechPerColonist: 0.002, DronesPerColonist: 0.0003, GrowthRate: 0.0012, IdealPopulation: 3_500_000},
	"L": {CyrilliumPerColonist: 0.012, FoodPerColonist: 0.006, TechPerColonist: 0.004, DronesPerColonist: 0.0008, GrowthRate: 0.0007, IdealPopulation: 2_500_000},
	"C": {CyrilliumPerColonist: 0.008, FoodPerColonist: 0.002, TechPerColonist: 0.008, DronesPerColonist: 0.0010, GrowthRate: 0.0004, IdealPopulation: 1_000_000},
	"H": {CyrilliumPerColonist: 0.020, FoodPerColonist: 0.001, TechPerColonist: 0.005, DronesPerColonist: 0.0012, GrowthRate: 0.0003, IdealPopulation: 800_000},
	"U": {CyrilliumPerColonist: 0.024, FoodPerColonist: 0.000, TechPerColonist: 0.006, DronesPerColonist: 0.0015, GrowthRate: 0.0002, IdealPopulation: 500_000},
}

// starvationRate is the fraction of colonists lost per interval without food.
const starvationRate = 0.005

// RatesFor returns the coefficient table for a planet class. Unknown classes
// return the zero value.
func RatesFor(class string) ClassRates {
	return classRates[class]
}

// Production returns the single-interval yield of a planet. Linear in
// colonists, so a batched window of N intervals is exactly N times this value.
func Production(class string, colonists int64) Yield {
	if colonists <= 0 {
		return Yield{}
	}
	r := classRates[class]
	pop := float64(colonists)
	return Yield{
		Cyrillium: int64(r.CyrilliumPerColonist * pop),
		Food:      int64(r.FoodPerColonist * pop),
		Tech:      int64(r.TechPerColonist * pop),
		Drones:    r.DronesPerColonist * pop,
	}
}

// Growth advances a planet's colonist count by one interval. This is the
// ground-truth function: any batched approximation is judged against repeated
// application of it. With food the population grows toward the class's ideal
// population; without food it shrinks. Never returns a negative count.
func Growth(class string, colonists int64, hasFood bool) int64 {
	if colonists <= 0 {
		return 0
	}
	if !hasFood {
		lost := int64(math.Ceil(float64(colonists) * starvationRate))
		if lost >= colonists {
			return 0
		}
		return colonists - lost
	}
	r := classRates[class]
	if r.IdealPopulation <= 0 {
		// Unknown class: population holds.
		return colonists
	}
	if colonists >= r.IdealPopulation {
		return r.IdealPopulation
	}
	grown := colonists + int64(float64(colonists)*r.GrowthRate)
	if grown == colonists {
		// Small populations still inch upward while under capacity.
		grown++
	}
	if grown > r.IdealPopulation {
		return r.IdealPopulation
	}
	return grown
}

// GrowthBatched collapses ticks intervals of growth into one closed-form
// computation: colonists × (1+rate)^ticks, clamped at the ideal population.
//
// This is an approximation, not a re-derivation of Growth: it assumes the
// growth rate holds for the whole window and that food never runs out
// mid-window. It diverges from iterated Growth once the population nears
// carrying capacity (the per-interval +1 floor) or when the food supply would
// have been exhausted partway through. Callers accept that divergence as a
// documented trade-off for O(1) catch-up.
func GrowthBatched(class string, colonists int64, hasFood bool, ticks int64) int64 {
	if colonists <= 0 {
		return 0
	}
	if ticks <= 0 {
		return colonists
	}
	if !hasFood {
		remaining := float64(colonists) * math.Pow(1-starvationRate, float64(ticks))
		return int64(math.Floor(remaining))
	}
	r := classRates[class]
	if r.IdealPopulation <= 0 {
		return colonists
	}
	grown := int64(float64(colonists) * math.Pow(1+r.GrowthRate, float64(ticks)))
	if grown > r.IdealPopulation {
		return r.IdealPopulation
	}
	if grown < colonists {
		return colonists
	}
	return grown
}

// DeployableLifetime is how long a deployable survives past its last
// maintenance before the tick deletes it.
const DeployableLifetime = 7 * 24 * time.Hour

// DeployableExpiry derives when a deployable expires. Maintenance restarts the
// clock; an unmaintained deployable runs from its deploy time.
func DeployableExpiry(deployedAt, lastMaintainedAt time.Time) time.Time {
	base := deployedAt
	if lastMaintainedAt.After(base) {
		base = lastMaintainedAt
	}
	return base.Add(DeployableLifetime)
}
