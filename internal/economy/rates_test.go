package economy

import (
	"testing"
	"time"
)

func TestProduction_LinearInColonists(t *testing.T) {
	small := Production("M", 10_000)
	large := Production("M", 20_000)
	if large.Cyrillium != 2*small.Cyrillium {
		t.Errorf("cyrillium not linear: %d vs %d", small.Cyrillium, large.Cyrillium)
	}
	if large.Food != 2*small.Food {
		t.Errorf("food not linear: %d vs %d", small.Food, large.Food)
	}
	if large.Tech != 2*small.Tech {
		t.Errorf("tech not linear: %d vs %d", small.Tech, large.Tech)
	}
}

func TestProduction_UnknownClassYieldsZero(t *testing.T) {
	y := Production("Z", 1_000_000)
	if y.Cyrillium != 0 || y.Food != 0 || y.Tech != 0 || y.Drones != 0 {
		t.Errorf("unknown class should produce nothing, got %+v", y)
	}
}

func TestProduction_EmptyPlanet(t *testing.T) {
	if y := Production("M", 0); y != (Yield{}) {
		t.Errorf("empty planet should produce nothing, got %+v", y)
	}
	if y := Production("M", -5); y != (Yield{}) {
		t.Errorf("negative colonists should produce nothing, got %+v", y)
	}
}

func TestProduction_BatchedWindowIsExactlyLinear(t *testing.T) {
	// A catch-up over N ticks multiplies the single-interval yield by N; the
	// two paths must agree exactly for production.
	const ticks = 100
	single := Production("K", 50_000)
	var iterated int64
	for i := 0; i < ticks; i++ {
		iterated += single.Cyrillium
	}
	if batched := single.Cyrillium * ticks; batched != iterated {
		t.Errorf("batched %d != iterated %d", batched, iterated)
	}
}

func TestGrowth_TowardIdealPopulation(t *testing.T) {
	r := RatesFor("M")
	colonists := int64(100_000)
	grown := Growth("M", colonists, true)
	if grown <= colonists {
		t.Errorf("fed planet should grow: %d -> %d", colonists, grown)
	}
	if grown > r.IdealPopulation {
		t.Errorf("growth exceeded ideal population: %d > %d", grown, r.IdealPopulation)
	}
}

func TestGrowth_ClampsAtCapacity(t *testing.T) {
	r := RatesFor("O")
	if got := Growth("O", r.IdealPopulation, true); got != r.IdealPopulation {
		t.Errorf("at capacity: expected %d, got %d", r.IdealPopulation, got)
	}
	if got := Growth("O", r.IdealPopulation+500, true); got != r.IdealPopulation {
		t.Errorf("over capacity: expected clamp to %d, got %d", r.IdealPopulation, got)
	}
}

func TestGrowth_StarvationShrinks(t *testing.T) {
	colonists := int64(10_000)
	shrunk := Growth("M", colonists, false)
	if shrunk >= colonists {
		t.Errorf("starving planet should shrink: %d -> %d", colonists, shrunk)
	}
	if shrunk < 0 {
		t.Errorf("colonists went negative: %d", shrunk)
	}
	// A starving handful dies out entirely rather than going negative.
	if got := Growth("M", 1, false); got != 0 {
		t.Errorf("expected last colonist lost, got %d", got)
	}
}

func TestGrowth_SmallPopulationStillGrows(t *testing.T) {
	// Fractional growth below one colonist still inches upward under capacity.
	if got := Growth("M", 10, true); got != 11 {
		t.Errorf("expected 11, got %d", got)
	}
}

func TestGrowth_UnknownClassHolds(t *testing.T) {
	if got := Growth("Z", 5_000, true); got != 5_000 {
		t.Errorf("unknown class should hold population, got %d", got)
	}
}

func TestGrowthBatched_MatchesIterationAwayFromCapacity(t *testing.T) {
	// Far from carrying capacity the compounding approximation tracks repeated
	// single-tick growth closely. It is an approximation, so bound the
	// divergence instead of asserting equality.
	const ticks = 60
	colonists := int64(1_000_000)

	iterated := colonists
	for i := 0; i < ticks; i++ {
		iterated = Growth("M", iterated, true)
	}
	batched := GrowthBatched("M", colonists, true, ticks)

	diff := iterated - batched
	if diff < 0 {
		diff = -diff
	}
	// Allow 1% of the iterated result for integer-truncation drift.
	if limit := iterated / 100; diff > limit {
		t.Errorf("divergence %d exceeds bound %d (iterated %d, batched %d)", diff, limit, iterated, batched)
	}
}

func TestGrowthBatched_DivergesNearCapacityButStaysBounded(t *testing.T) {
	// Starting near the ideal population the closed form would overshoot
	// before its clamp while iteration saturates early. The two paths are
	// expected to differ; the contract is only that the batched result never
	// exceeds capacity and never loses fed colonists.
	r := RatesFor("M")
	colonists := r.IdealPopulation - 100

	const ticks = 500
	iterated := colonists
	for i := 0; i < ticks; i++ {
		iterated = Growth("M", iterated, true)
	}
	batched := GrowthBatched("M", colonists, true, ticks)

	if batched > r.IdealPopulation {
		t.Errorf("batched growth exceeded capacity: %d > %d", batched, r.IdealPopulation)
	}
	if batched < colonists {
		t.Errorf("batched growth lost fed colonists: %d -> %d", colonists, batched)
	}
	if iterated != r.IdealPopulation {
		t.Errorf("iteration should saturate at capacity, got %d", iterated)
	}
}

func TestGrowthBatched_Starvation(t *testing.T) {
	colonists := int64(100_000)
	batched := GrowthBatched("M", colonists, false, 50)
	if batched >= colonists {
		t.Errorf("starving window should shrink: %d -> %d", colonists, batched)
	}
	if batched < 0 {
		t.Errorf("colonists went negative: %d", batched)
	}
}

func TestGrowthBatched_ZeroTicksIsIdentity(t *testing.T) {
	if got := GrowthBatched("K", 42_000, true, 0); got != 42_000 {
		t.Errorf("expected identity for zero ticks, got %d", got)
	}
}

func TestDeployableExpiry(t *testing.T) {
	deployed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Never maintained: lifetime runs from deployment.
	expiry := DeployableExpiry(deployed, time.Time{})
	if want := deployed.Add(DeployableLifetime); !expiry.Equal(want) {
		t.Errorf("expected %v, got %v", want, expiry)
	}

	// Maintenance restarts the clock.
	maintained := deployed.Add(48 * time.Hour)
	expiry = DeployableExpiry(deployed, maintained)
	if want := maintained.Add(DeployableLifetime); !expiry.Equal(want) {
		t.Errorf("expected %v, got %v", want, expiry)
	}
}
