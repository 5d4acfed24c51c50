package localstate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/events"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	baseNowMillis int64 = 1_700_000_000_000
	waitTimeout         = 3 * time.Second
)

type recordingPublisher struct {
	mutex  sync.Mutex
	events []events.Event
}

func (publisher *recordingPublisher) Publish(event events.Event) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.events = append(publisher.events, event)
}

func (publisher *recordingPublisher) count() int {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return len(publisher.events)
}

func fixedClock() time.Time {
	return time.UnixMilli(baseNowMillis)
}

func mustOpen(test *testing.T, backend Backend, options ...Option) *Store {
	test.Helper()
	store, err := Open(context.Background(), backend, append([]Option{WithClock(fixedClock)}, options...)...)
	if err != nil {
		test.Fatalf("open: %v", err)
	}
	return store
}

func waitFor(test *testing.T, condition func() bool) {
	test.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	test.Fatalf("condition not met within %s", waitTimeout)
}

func TestDecodeMigratesLegacyInventories(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name             string
		raw              string
		expectedFoods    map[economy.ItemID]uint64
		expectedToys     map[economy.ItemID]uint64
		expectedHealth   uint8
		expectedMigrated bool
	}{
		{
			name:             "id arrays",
			raw:              `{"coins":30,"inventory":{"foods":[1,1,2],"toys":[6],"cats":["default"]},"petStats":{"hunger":40}}`,
			expectedFoods:    map[economy.ItemID]uint64{1: 2, 2: 1},
			expectedToys:     map[economy.ItemID]uint64{6: 1},
			expectedMigrated: true,
		},
		{
			name:             "object arrays",
			raw:              `{"inventory":{"foods":[{"id":1,"quantity":3},{"id":"2","qty":4}],"toys":[{"id":7,"count":2},{"id":7}]},"petStats":{}}`,
			expectedFoods:    map[economy.ItemID]uint64{1: 3, 2: 4},
			expectedToys:     map[economy.ItemID]uint64{7: 3},
			expectedMigrated: true,
		},
		{
			name:             "current maps",
			raw:              `{"inventory":{"foods":{"3":5},"toys":{"10":1}},"petStats":{"hunger":10}}`,
			expectedFoods:    map[economy.ItemID]uint64{3: 5},
			expectedToys:     map[economy.ItemID]uint64{10: 1},
			expectedMigrated: false,
		},
		{
			name:             "missing pet stats",
			raw:              `{"inventory":{"foods":{},"toys":{}}}`,
			expectedFoods:    map[economy.ItemID]uint64{},
			expectedToys:     map[economy.ItemID]uint64{},
			expectedHealth:   100,
			expectedMigrated: true,
		},
		{
			name:             "living pet without health",
			raw:              `{"inventory":{"foods":{},"toys":{}},"petStats":{"hunger":60,"happiness":40,"isAlive":true,"lastFedTime":1700000000000,"daysWithoutFeeding":0}}`,
			expectedFoods:    map[economy.ItemID]uint64{},
			expectedToys:     map[economy.ItemID]uint64{},
			expectedHealth:   100,
			expectedMigrated: true,
		},
		{
			name:             "living pet with health",
			raw:              `{"inventory":{"foods":{},"toys":{}},"petStats":{"hunger":60,"happiness":40,"health":40,"isAlive":true}}`,
			expectedFoods:    map[economy.ItemID]uint64{},
			expectedToys:     map[economy.ItemID]uint64{},
			expectedHealth:   40,
			expectedMigrated: false,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			state, migrated, err := Decode([]byte(testCase.raw), baseNowMillis)
			if err != nil {
				test.Fatalf("decode: %v", err)
			}
			if migrated != testCase.expectedMigrated {
				test.Fatalf("expected migrated=%v, got %v", testCase.expectedMigrated, migrated)
			}
			assertCounts(test, "foods", state.Inventory.Foods, testCase.expectedFoods)
			assertCounts(test, "toys", state.Inventory.Toys, testCase.expectedToys)
			if state.PetStats.Health != testCase.expectedHealth {
				test.Fatalf("expected health %d, got %d", testCase.expectedHealth, state.PetStats.Health)
			}
			if state.PetTokenIDs == nil || state.PendingClaims == nil || state.SelectedPet != DefaultPetID {
				test.Fatalf("expected normalized state, got %+v", state)
			}
		})
	}
}

func assertCounts(test *testing.T, label string, actual map[economy.ItemID]uint64, expected map[economy.ItemID]uint64) {
	test.Helper()
	if len(actual) != len(expected) {
		test.Fatalf("%s: expected %v, got %v", label, expected, actual)
	}
	for itemID, quantity := range expected {
		if actual[itemID] != quantity {
			test.Fatalf("%s: expected %d of item %d, got %d", label, quantity, itemID, actual[itemID])
		}
	}
}

func TestDecodeRejectsCorruptState(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{`{`, `{"inventory":{"foods":[99]}}`, `{"inventory":{"toys":[{"qty":2}]}}`, `{"inventory":{"cats":[true]}}`} {
		if _, _, err := Decode([]byte(raw), baseNowMillis); !errors.Is(err, ErrCorruptState) {
			test.Fatalf("expected corrupt state for %s, got %v", raw, err)
		}
	}
}

func TestDisplayedHealthFollowsSelectedPet(test *testing.T) {
	test.Parallel()
	state := Default(baseNowMillis)
	if got := state.DisplayedHealth(); got != 100 {
		test.Fatalf("expected a fresh pet to show full health, got %d", got)
	}
	state.PetStats.Hunger = 80
	state.PetStats.DaysWithoutFeeding = 1
	if got := state.DisplayedHealth(); got != 56 {
		test.Fatalf("expected 56, got %d", got)
	}
	state.PetStats.Alive = false
	if got := state.DisplayedHealth(); got != 0 {
		test.Fatalf("expected a dead pet to show zero, got %d", got)
	}
}

func TestOpenFlushesMigratedStateAndRoundTrips(test *testing.T) {
	test.Parallel()
	backend := NewMemoryBackend([]byte(`{"coins":20,"completedSessions":2,"inventory":{"foods":[1,1,1],"toys":[{"id":8,"quantity":2}],"cats":["default"]},"petStats":{"hunger":40,"happiness":55,"isAlive":true}}`))
	store := mustOpen(test, backend)

	stored, err := backend.Load(context.Background())
	if err != nil {
		test.Fatalf("load: %v", err)
	}
	var persisted map[string]json.RawMessage
	if err := json.Unmarshal(stored, &persisted); err != nil {
		test.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(string(persisted["inventory"]), `"foods":{"1":3}`) {
		test.Fatalf("expected migrated inventory to be flushed, got %s", persisted["inventory"])
	}

	reopened := mustOpen(test, backend)
	first := store.Snapshot()
	second := reopened.Snapshot()
	if second.Coins != 20 || second.CompletedSessions != 2 || second.PetStats.Hunger != 40 {
		test.Fatalf("unexpected reloaded state: %+v", second)
	}
	assertCounts(test, "foods", second.Inventory.Foods, first.Inventory.Foods)
	assertCounts(test, "toys", second.Inventory.Toys, map[economy.ItemID]uint64{8: 2})
}

func TestUpdatePersistsAndPublishes(test *testing.T) {
	test.Parallel()
	backend := NewMemoryBackend(nil)
	publisher := &recordingPublisher{}
	store := mustOpen(test, backend, WithPublisher(publisher))

	updated, err := store.Update(context.Background(), func(state *State) error {
		state.Coins += 10
		state.CompletedSessions++
		return nil
	})
	if err != nil {
		test.Fatalf("update: %v", err)
	}
	if updated.Coins != 10 || publisher.count() != 1 {
		test.Fatalf("expected one published update, got coins=%d events=%d", updated.Coins, publisher.count())
	}
	if publisher.events[0].Topic != events.TopicStateUpdated {
		test.Fatalf("unexpected topic %s", publisher.events[0].Topic)
	}

	failure := errors.New("nope")
	if _, err := store.Update(context.Background(), func(state *State) error {
		state.Coins = 999
		return failure
	}); !errors.Is(err, failure) {
		test.Fatalf("expected mutate error, got %v", err)
	}
	if store.Snapshot().Coins != 10 || publisher.count() != 1 {
		test.Fatalf("expected failed update to leave state untouched")
	}
}

func TestWatchAppliesForeignWrites(test *testing.T) {
	test.Parallel()
	backend := NewMemoryBackend(nil)
	publisher := &recordingPublisher{}
	store := mustOpen(test, backend, WithPublisher(publisher))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = store.Watch(ctx)
	}()

	foreign := Default(baseNowMillis)
	foreign.Coins = 70
	encoded, err := Encode(foreign)
	if err != nil {
		test.Fatalf("encode: %v", err)
	}
	backend.Inject(encoded)

	waitFor(test, func() bool { return store.Snapshot().Coins == 70 })
	waitFor(test, func() bool { return publisher.count() == 1 })
}

func TestFileBackendsConvergeAcrossInstances(test *testing.T) {
	test.Parallel()
	dir := test.TempDir()
	firstBackend, err := NewFileBackend(dir, DefaultStorageKey, nil)
	if err != nil {
		test.Fatalf("backend: %v", err)
	}
	secondBackend, err := NewFileBackend(dir, DefaultStorageKey, nil)
	if err != nil {
		test.Fatalf("backend: %v", err)
	}
	first := mustOpen(test, firstBackend)
	second := mustOpen(test, secondBackend)

	info, err := os.Stat(firstBackend.Path())
	if err != nil {
		test.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != stateFileMode {
		test.Fatalf("expected mode %o, got %o", stateFileMode, info.Mode().Perm())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = second.Watch(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	if _, err := first.Update(ctx, func(state *State) error {
		state.Inventory.Foods[2] = 4
		return nil
	}); err != nil {
		test.Fatalf("update: %v", err)
	}
	waitFor(test, func() bool { return second.Snapshot().Inventory.Foods[2] == 4 })
}

func TestRedisBackendBroadcastsSaves(test *testing.T) {
	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		test.Skip("REDIS_URL not set")
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		test.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(options)
	defer client.Close()
	storageKey := "focusledger-test:" + uuid.NewString()
	defer client.Del(context.Background(), storageKey)

	first := mustOpen(test, NewRedisBackend(client, storageKey))
	second := mustOpen(test, NewRedisBackend(client, storageKey))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = second.Watch(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	if _, err := first.Update(ctx, func(state *State) error {
		state.Coins = 40
		return nil
	}); err != nil {
		test.Fatalf("update: %v", err)
	}
	waitFor(test, func() bool { return second.Snapshot().Coins == 40 })
}
