package pet

import (
	"testing"
)

const (
	baseNowMillis     int64 = 1_700_000_000_000
	caseHungryAndSad        = "hungry and sad"
	caseStarved             = "three days unfed"
	caseHungryButHappy      = "hungry but happy"
	caseTwoDaysUnfed        = "two days unfed"
	caseHealthy             = "healthy"
)

func TestNewPetDefaults(test *testing.T) {
	test.Parallel()
	stats := New(baseNowMillis)
	if stats.Hunger != 50 || stats.Happiness != 50 || stats.Health != 100 || !stats.Alive {
		test.Fatalf("unexpected initial stats: %+v", stats)
	}
	if stats.LastFedUnixMilli != baseNowMillis || stats.LastDecayUnixMilli != baseNowMillis || stats.DaysWithoutFeeding != 0 {
		test.Fatalf("unexpected feeding bookkeeping: %+v", stats)
	}
}

func TestFeedAdjustsHungerAndHappiness(test *testing.T) {
	test.Parallel()
	stats := New(baseNowMillis)
	fed := Feed(stats, 20, baseNowMillis+1000)
	if fed.Hunger != 30 || fed.Happiness != 60 {
		test.Fatalf("expected hunger=30 happiness=60, got %+v", fed)
	}
	if fed.LastFedUnixMilli != baseNowMillis+1000 || fed.DaysWithoutFeeding != 0 {
		test.Fatalf("expected feeding timestamp to advance, got %+v", fed)
	}
}

func TestFeedClampsAtBounds(test *testing.T) {
	test.Parallel()
	stats := Stats{Hunger: 10, Happiness: 95, Health: 100, Alive: true, LastFedUnixMilli: baseNowMillis}
	fed := Feed(stats, 40, baseNowMillis)
	if fed.Hunger != 0 || fed.Happiness != 100 {
		test.Fatalf("expected clamped stats, got %+v", fed)
	}
}

func TestPlayClampsHappiness(test *testing.T) {
	test.Parallel()
	stats := Stats{Hunger: 10, Happiness: 90, Health: 100, Alive: true, LastFedUnixMilli: baseNowMillis}
	played := Play(stats, 25, baseNowMillis)
	if played.Happiness != 100 || played.Hunger != 10 {
		test.Fatalf("expected happiness=100, got %+v", played)
	}
}

func TestDecayTickKillsStarvedPet(test *testing.T) {
	test.Parallel()
	stats := New(baseNowMillis)
	ticked := DecayTick(stats, baseNowMillis+4*DayMillis)
	if ticked.DaysWithoutFeeding != 4 {
		test.Fatalf("expected 4 days without feeding, got %d", ticked.DaysWithoutFeeding)
	}
	if ticked.Alive || ticked.Health != 0 {
		test.Fatalf("expected dead pet with zero health, got %+v", ticked)
	}
}

func TestDecayTickAppliesStepDecay(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name       string
		stats      Stats
		wantHunger uint8
		wantHappy  uint8
		wantHealth uint8
	}{
		{
			name:       caseHealthy,
			stats:      Stats{Hunger: 50, Happiness: 50, Health: 100, Alive: true, LastFedUnixMilli: baseNowMillis},
			wantHunger: 51,
			wantHappy:  49,
			wantHealth: 100,
		},
		{
			name:       caseHungryButHappy,
			stats:      Stats{Hunger: 71, Happiness: 50, Health: 90, Alive: true, LastFedUnixMilli: baseNowMillis},
			wantHunger: 72,
			wantHappy:  49,
			wantHealth: 89,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			ticked := DecayTick(testCase.stats, baseNowMillis+DayMillis+DayMillis/2)
			if ticked.Hunger != testCase.wantHunger || ticked.Happiness != testCase.wantHappy || ticked.Health != testCase.wantHealth {
				test.Fatalf("unexpected stats after tick: %+v", ticked)
			}
			if !ticked.Alive || ticked.DaysWithoutFeeding != 1 {
				test.Fatalf("expected pet to stay alive one day unfed, got %+v", ticked)
			}
			if ticked.LastDecayUnixMilli != baseNowMillis+DayMillis {
				test.Fatalf("expected decay boundary at one day, got %d", ticked.LastDecayUnixMilli)
			}
		})
	}
}

func TestShouldDiePredicate(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name  string
		stats Stats
		want  bool
	}{
		{name: caseHungryAndSad, stats: Stats{Hunger: 100, Happiness: 0, Alive: true}, want: true},
		{name: caseStarved, stats: Stats{Hunger: 10, Happiness: 90, Alive: true, DaysWithoutFeeding: 3}, want: true},
		{name: caseHungryButHappy, stats: Stats{Hunger: 100, Happiness: 1, Alive: true}, want: false},
		{name: caseTwoDaysUnfed, stats: Stats{Hunger: 99, Happiness: 0, Alive: true, DaysWithoutFeeding: 2}, want: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := ShouldDie(testCase.stats); got != testCase.want {
				test.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}

func TestDeadPetIgnoresFeedAndPlay(test *testing.T) {
	test.Parallel()
	dead := Stats{Hunger: 100, Happiness: 0, Health: 0, Alive: false, LastFedUnixMilli: baseNowMillis, DaysWithoutFeeding: 5}
	if fed := Feed(dead, 50, baseNowMillis+DayMillis); fed != dead {
		test.Fatalf("expected feed to be a no-op, got %+v", fed)
	}
	if played := Play(dead, 50, baseNowMillis+DayMillis); played != dead {
		test.Fatalf("expected play to be a no-op, got %+v", played)
	}
}

func TestFeedRevealsStaleness(test *testing.T) {
	test.Parallel()
	stats := New(baseNowMillis)
	fed := Feed(stats, 20, baseNowMillis+3*DayMillis)
	if fed.Alive {
		test.Fatalf("expected stale pet to die on feed, got %+v", fed)
	}
	if fed.Hunger != stats.Hunger {
		test.Fatalf("expected food not to be applied to a dead pet, got %+v", fed)
	}
}

func TestDecayTickWithinOneDayOnlyRecomputesUnfedDays(test *testing.T) {
	test.Parallel()
	stats := New(baseNowMillis)
	stats.LastFedUnixMilli = baseNowMillis - DayMillis
	ticked := stats
	for tick := 0; tick < 50; tick++ {
		ticked = DecayTick(ticked, baseNowMillis+DayMillis/2)
	}
	want := stats
	want.DaysWithoutFeeding = 1
	if ticked != want {
		test.Fatalf("expected only daysWithoutFeeding to change, got %+v want %+v", ticked, want)
	}
}

func TestDecayTickCatchesUpWholeDays(test *testing.T) {
	test.Parallel()
	stats := Stats{Hunger: 69, Happiness: 50, Health: 100, Alive: true, LastFedUnixMilli: baseNowMillis, LastDecayUnixMilli: baseNowMillis}

	ticked := DecayTick(stats, baseNowMillis+2*DayMillis+DayMillis/2)
	if ticked.Hunger != 71 || ticked.Happiness != 48 || ticked.Health != 99 {
		test.Fatalf("expected two decay steps, got %+v", ticked)
	}
	if !ticked.Alive || ticked.DaysWithoutFeeding != 2 || ticked.LastDecayUnixMilli != baseNowMillis+2*DayMillis {
		test.Fatalf("unexpected bookkeeping after catch-up: %+v", ticked)
	}

	again := DecayTick(ticked, baseNowMillis+2*DayMillis+DayMillis-1)
	if again != ticked {
		test.Fatalf("expected no further decay inside the same day, got %+v", again)
	}
}

func TestDecayTickCountsFromLastFedWithoutBoundary(test *testing.T) {
	test.Parallel()
	stats := Stats{Hunger: 50, Happiness: 50, Health: 100, Alive: true, LastFedUnixMilli: baseNowMillis}
	ticked := DecayTick(stats, baseNowMillis+DayMillis)
	if ticked.Hunger != 51 || ticked.LastDecayUnixMilli != baseNowMillis+DayMillis {
		test.Fatalf("expected one step counted from the last feeding, got %+v", ticked)
	}
}

func TestDisplayedHealth(test *testing.T) {
	test.Parallel()
	if got := DisplayedHealth(70, 2); got != 100 {
		test.Fatalf("expected full health at threshold, got %d", got)
	}
	if got := DisplayedHealth(80, 1); got != 56 {
		test.Fatalf("expected 56, got %d", got)
	}
	if got := DisplayedHealth(100, 3); got != 0 {
		test.Fatalf("expected floor at zero, got %d", got)
	}
}
