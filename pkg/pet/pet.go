// Package pet implements the companion pet lifecycle: stat transitions,
// elapsed-time decay, and the terminal death state.
//
// All functions are pure. They take the current stats plus the clock value
// in Unix milliseconds and return the next stats; callers persist the result.
package pet

const (
	// DayMillis is the length of one lifecycle day.
	DayMillis int64 = 86_400_000

	MaxStat uint8 = 100

	InitialHunger    uint8 = 50
	InitialHappiness uint8 = 50
	InitialHealth    uint8 = 100

	// HealthDecayHungerThreshold is the hunger level above which decay ticks cost health.
	HealthDecayHungerThreshold uint8 = 70
	// StarvationDays is the number of unfed days that kills a pet.
	StarvationDays uint8 = 3

	decayStep uint8 = 1
)

// Stats is the mutable state of one pet.
type Stats struct {
	Hunger             uint8 `json:"hunger"`
	Happiness          uint8 `json:"happiness"`
	Health             uint8 `json:"health"`
	Alive              bool  `json:"isAlive"`
	LastFedUnixMilli   int64 `json:"lastFedTime"`
	DaysWithoutFeeding uint8 `json:"daysWithoutFeeding"`
	// LastDecayUnixMilli is the boundary of the last whole day of decay applied.
	// Zero means decay has never run and counts from LastFedUnixMilli.
	LastDecayUnixMilli int64 `json:"lastDecayTime,omitempty"`
}

// New returns the stats of a freshly minted pet.
func New(nowUnixMilli int64) Stats {
	return Stats{
		Hunger:             InitialHunger,
		Happiness:          InitialHappiness,
		Health:             InitialHealth,
		Alive:              true,
		LastFedUnixMilli:   nowUnixMilli,
		LastDecayUnixMilli: nowUnixMilli,
	}
}

// Dead reports whether the pet reached its terminal state.
func (stats Stats) Dead() bool {
	return !stats.Alive
}

// Feed lowers hunger by foodValue and raises happiness by half of it.
// Feeding a dead pet returns the stats unchanged.
func Feed(stats Stats, foodValue uint8, nowUnixMilli int64) Stats {
	if !stats.Alive {
		return stats
	}
	next := revealStaleness(stats, nowUnixMilli)
	if !next.Alive {
		return next
	}
	next.Hunger = subClamped(next.Hunger, foodValue)
	next.Happiness = addClamped(next.Happiness, foodValue/2)
	next.LastFedUnixMilli = nowUnixMilli
	next.DaysWithoutFeeding = 0
	return applyDeath(next)
}

// Play raises happiness by happinessValue. Playing with a dead pet returns the stats unchanged.
func Play(stats Stats, happinessValue uint8, nowUnixMilli int64) Stats {
	if !stats.Alive {
		return stats
	}
	next := revealStaleness(stats, nowUnixMilli)
	if !next.Alive {
		return next
	}
	next.Happiness = addClamped(next.Happiness, happinessValue)
	return applyDeath(next)
}

// DecayTick applies one decay step for every whole day elapsed since the last
// decay and advances the decay boundary by those days. Ticking again within the
// same day only recomputes daysWithoutFeeding. The death check runs on every tick.
func DecayTick(stats Stats, nowUnixMilli int64) Stats {
	next := stats
	next.DaysWithoutFeeding = DaysSince(stats.LastFedUnixMilli, nowUnixMilli)
	if !next.Alive {
		return next
	}
	lastDecay := decayAnchor(stats)
	steps := DaysSince(lastDecay, nowUnixMilli)
	next.LastDecayUnixMilli = lastDecay + int64(steps)*DayMillis
	for step := uint8(0); step < steps && next.Alive; step++ {
		next.Hunger = addClamped(next.Hunger, decayStep)
		next.Happiness = subClamped(next.Happiness, decayStep)
		if next.Hunger > HealthDecayHungerThreshold {
			next.Health = subClamped(next.Health, decayStep)
		}
		next = applyDeath(next)
	}
	return applyDeath(next)
}

// ShouldDie is the death predicate.
func ShouldDie(stats Stats) bool {
	starving := stats.Hunger >= MaxStat && stats.Happiness == 0
	return starving || stats.DaysWithoutFeeding >= StarvationDays
}

// DaysSince returns whole days elapsed between lastFed and now, saturating at 255.
func DaysSince(lastFedUnixMilli int64, nowUnixMilli int64) uint8 {
	if nowUnixMilli <= lastFedUnixMilli {
		return 0
	}
	days := (nowUnixMilli - lastFedUnixMilli) / DayMillis
	if days > 255 {
		return 255
	}
	return uint8(days)
}

// DisplayedHealth is the presentational health value derived from hunger and unfed days.
func DisplayedHealth(hunger uint8, daysWithoutFeeding uint8) int {
	if hunger <= HealthDecayHungerThreshold {
		return int(MaxStat)
	}
	displayed := 100 - float64(hunger-HealthDecayHungerThreshold)*3.33 - float64(daysWithoutFeeding)*10
	if displayed < 0 {
		return 0
	}
	return int(displayed)
}

func decayAnchor(stats Stats) int64 {
	if stats.LastDecayUnixMilli == 0 {
		return stats.LastFedUnixMilli
	}
	return stats.LastDecayUnixMilli
}

func revealStaleness(stats Stats, nowUnixMilli int64) Stats {
	stats.DaysWithoutFeeding = DaysSince(stats.LastFedUnixMilli, nowUnixMilli)
	return applyDeath(stats)
}

func applyDeath(stats Stats) Stats {
	if stats.Alive && ShouldDie(stats) {
		stats.Alive = false
		stats.Health = 0
	}
	return stats
}

func addClamped(value uint8, delta uint8) uint8 {
	sum := uint16(value) + uint16(delta)
	if sum > uint16(MaxStat) {
		return MaxStat
	}
	return uint8(sum)
}

func subClamped(value uint8, delta uint8) uint8 {
	if delta >= value {
		return 0
	}
	return value - delta
}
