package localstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

var ErrCorruptState = errors.New("corrupt local state")

type inventoryWire struct {
	Foods json.RawMessage `json:"foods"`
	Toys  json.RawMessage `json:"toys"`
	Cats  json.RawMessage `json:"cats"`
}

// petHealthWire detects stats persisted before health was stored.
type petHealthWire struct {
	Health *uint8 `json:"health"`
}

type stateWire struct {
	State
	Inventory inventoryWire   `json:"inventory"`
	PetStats  json.RawMessage `json:"petStats"`
}

// Decode parses persisted state. Array-shaped inventories from older versions are
// converted to id→quantity maps; migrated reports whether that happened.
func Decode(raw []byte, nowUnixMilli int64) (State, bool, error) {
	var wire stateWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return State{}, false, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	state := wire.State
	foods, foodsMigrated, err := decodeCounts(wire.Inventory.Foods)
	if err != nil {
		return State{}, false, fmt.Errorf("%w: foods: %v", ErrCorruptState, err)
	}
	toys, toysMigrated, err := decodeCounts(wire.Inventory.Toys)
	if err != nil {
		return State{}, false, fmt.Errorf("%w: toys: %v", ErrCorruptState, err)
	}
	cats, err := decodeIDs(wire.Inventory.Cats)
	if err != nil {
		return State{}, false, fmt.Errorf("%w: cats: %v", ErrCorruptState, err)
	}
	state.Inventory = Inventory{Foods: foods, Toys: toys, Cats: cats}

	statsMissing := isAbsent(wire.PetStats)
	healthMissing := false
	if statsMissing {
		state.PetStats = Default(nowUnixMilli).PetStats
	} else {
		if err := json.Unmarshal(wire.PetStats, &state.PetStats); err != nil {
			return State{}, false, fmt.Errorf("%w: petStats: %v", ErrCorruptState, err)
		}
		var health petHealthWire
		if err := json.Unmarshal(wire.PetStats, &health); err != nil {
			return State{}, false, fmt.Errorf("%w: petStats: %v", ErrCorruptState, err)
		}
		if health.Health == nil && state.PetStats.Alive {
			state.PetStats.Health = pet.InitialHealth
			healthMissing = true
		}
	}
	state.normalize()
	return state, foodsMigrated || toysMigrated || statsMissing || healthMissing, nil
}

// Encode serializes state in the current schema.
func Encode(state State) ([]byte, error) {
	normalized := state.Clone()
	normalized.normalize()
	return json.Marshal(normalized)
}

// decodeCounts accepts the current {id: qty} map or a legacy array of ids
// (one unit per occurrence) or of {id, quantity|qty|count} objects.
func decodeCounts(raw json.RawMessage) (map[economy.ItemID]uint64, bool, error) {
	counts := map[economy.ItemID]uint64{}
	if isAbsent(raw) {
		return counts, false, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '[' {
		if err := json.Unmarshal(trimmed, &counts); err != nil {
			return nil, false, err
		}
		return counts, false, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var elements []any
	if err := decoder.Decode(&elements); err != nil {
		return nil, false, err
	}
	for _, element := range elements {
		itemID, quantity, err := legacyCount(element)
		if err != nil {
			return nil, false, err
		}
		counts[itemID] += quantity
	}
	return counts, true, nil
}

func legacyCount(element any) (economy.ItemID, uint64, error) {
	object, isObject := element.(map[string]any)
	if !isObject {
		itemID, err := parseItemID(element)
		return itemID, 1, err
	}
	itemID, err := parseItemID(object["id"])
	if err != nil {
		return 0, 0, err
	}
	for _, field := range []string{"quantity", "qty", "count"} {
		if value, ok := object[field]; ok {
			quantity, err := parseUint(value)
			return itemID, quantity, err
		}
	}
	return itemID, 1, nil
}

func parseItemID(value any) (economy.ItemID, error) {
	raw, err := parseUint(value)
	if err != nil {
		return 0, err
	}
	return economy.NewItemID(raw)
}

func parseUint(value any) (uint64, error) {
	switch typed := value.(type) {
	case json.Number:
		return strconv.ParseUint(typed.String(), 10, 64)
	case string:
		return strconv.ParseUint(strings.TrimSpace(typed), 10, 64)
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unexpected value %v", value)
	}
}

func decodeIDs(raw json.RawMessage) ([]string, error) {
	if isAbsent(raw) {
		return []string{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var elements []any
	if err := decoder.Decode(&elements); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(elements))
	for _, element := range elements {
		switch typed := element.(type) {
		case string:
			ids = append(ids, typed)
		case json.Number:
			ids = append(ids, typed.String())
		default:
			return nil, fmt.Errorf("unexpected pet id %v", element)
		}
	}
	return ids, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
