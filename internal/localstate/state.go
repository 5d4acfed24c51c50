// Package localstate is the optimistic local mirror of coins, inventory and pet
// stats. It is loaded and migrated once, flushed on every mutation and kept in
// step with other instances through its storage backend (last writer wins).
package localstate

import (
	"encoding/json"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

const (
	// DefaultStorageKey names the persisted state in every backend.
	DefaultStorageKey = "focusledger.state"
	// DefaultPetID is the local, never-minted starter pet.
	DefaultPetID = "default"
)

// HistoryKind labels a transaction history entry.
type HistoryKind string

const (
	HistoryClaim       HistoryKind = "claim"
	HistoryPurchase    HistoryKind = "purchase"
	HistoryPetPurchase HistoryKind = "pet_purchase"
	HistoryFeed        HistoryKind = "feed"
	HistoryPlay        HistoryKind = "play"
)

// Inventory holds item counts by catalog id and the owned pet ids.
type Inventory struct {
	Foods map[economy.ItemID]uint64 `json:"foods"`
	Toys  map[economy.ItemID]uint64 `json:"toys"`
	Cats  []string                  `json:"cats"`
}

// HistoryEntry is one confirmed ledger operation. Entries are never edited.
type HistoryEntry struct {
	Kind        HistoryKind `json:"kind"`
	Digest      string      `json:"digest"`
	Amount      uint64      `json:"amount"`
	Points      uint64      `json:"points,omitempty"`
	ItemID      uint8       `json:"itemId,omitempty"`
	PetID       string      `json:"petId,omitempty"`
	AtUnixMilli int64       `json:"at"`
}

// PendingClaim is a claim whose outcome is not yet confirmed.
type PendingClaim struct {
	IdempotencyKey   string `json:"idempotencyKey"`
	Digest           string `json:"digest,omitempty"`
	CreatedUnixMilli int64  `json:"createdAt"`
	Attempts         int    `json:"attempts"`
}

// State is the persisted local cache.
type State struct {
	Coins              uint64            `json:"coins"`
	Inventory          Inventory         `json:"inventory"`
	PetTokenIDs        map[string]string `json:"petTokenIds"`
	SelectedPet        string            `json:"selectedPet"`
	CompletedSessions  uint64            `json:"completedSessions"`
	RoomItems          []json.RawMessage `json:"roomItems"`
	PetStats           pet.Stats         `json:"petStats"`
	TransactionHistory []HistoryEntry    `json:"transactionHistory"`
	PendingClaims      []PendingClaim    `json:"pendingClaims"`
}

// Default returns the state of a first launch: no coins, no items and a fresh default pet.
func Default(nowUnixMilli int64) State {
	state := State{
		SelectedPet: DefaultPetID,
		PetStats:    pet.New(nowUnixMilli),
		Inventory:   Inventory{Cats: []string{DefaultPetID}},
	}
	state.normalize()
	return state
}

// Clone returns a deep copy.
func (state State) Clone() State {
	cloned := state
	cloned.Inventory.Foods = cloneCounts(state.Inventory.Foods)
	cloned.Inventory.Toys = cloneCounts(state.Inventory.Toys)
	cloned.Inventory.Cats = append([]string{}, state.Inventory.Cats...)
	cloned.PetTokenIDs = make(map[string]string, len(state.PetTokenIDs))
	for petID, objectID := range state.PetTokenIDs {
		cloned.PetTokenIDs[petID] = objectID
	}
	cloned.RoomItems = make([]json.RawMessage, len(state.RoomItems))
	for index, item := range state.RoomItems {
		cloned.RoomItems[index] = append(json.RawMessage{}, item...)
	}
	cloned.TransactionHistory = append([]HistoryEntry{}, state.TransactionHistory...)
	cloned.PendingClaims = append([]PendingClaim{}, state.PendingClaims...)
	return cloned
}

// PendingClaim returns the pending claim with key.
func (state State) PendingClaim(idempotencyKey string) (PendingClaim, bool) {
	for _, claim := range state.PendingClaims {
		if claim.IdempotencyKey == idempotencyKey {
			return claim, true
		}
	}
	return PendingClaim{}, false
}

// UpsertPendingClaim records or replaces a pending claim.
func (state *State) UpsertPendingClaim(claim PendingClaim) {
	for index := range state.PendingClaims {
		if state.PendingClaims[index].IdempotencyKey == claim.IdempotencyKey {
			state.PendingClaims[index] = claim
			return
		}
	}
	state.PendingClaims = append(state.PendingClaims, claim)
}

// RemovePendingClaim drops the pending claim with key.
func (state *State) RemovePendingClaim(idempotencyKey string) {
	kept := state.PendingClaims[:0]
	for _, claim := range state.PendingClaims {
		if claim.IdempotencyKey != idempotencyKey {
			kept = append(kept, claim)
		}
	}
	state.PendingClaims = kept
}

// DisplayedHealth is the health shown for the selected pet; a dead pet shows zero.
func (state State) DisplayedHealth() int {
	if state.PetStats.Dead() {
		return 0
	}
	return pet.DisplayedHealth(state.PetStats.Hunger, state.PetStats.DaysWithoutFeeding)
}

// HasHistory reports whether a confirmed digest was already recorded.
func (state State) HasHistory(digest string) bool {
	for _, entry := range state.TransactionHistory {
		if entry.Digest == digest {
			return true
		}
	}
	return false
}

// AddPet registers a pet id, optionally bound to a minted ledger object.
func (state *State) AddPet(petID string, objectID string) {
	for _, existing := range state.Inventory.Cats {
		if existing == petID {
			if objectID != "" {
				state.PetTokenIDs[petID] = objectID
			}
			return
		}
	}
	state.Inventory.Cats = append(state.Inventory.Cats, petID)
	if objectID != "" {
		state.PetTokenIDs[petID] = objectID
	}
}

func (state *State) normalize() {
	if state.Inventory.Foods == nil {
		state.Inventory.Foods = map[economy.ItemID]uint64{}
	}
	if state.Inventory.Toys == nil {
		state.Inventory.Toys = map[economy.ItemID]uint64{}
	}
	if state.Inventory.Cats == nil {
		state.Inventory.Cats = []string{}
	}
	if state.PetTokenIDs == nil {
		state.PetTokenIDs = map[string]string{}
	}
	if state.RoomItems == nil {
		state.RoomItems = []json.RawMessage{}
	}
	if state.TransactionHistory == nil {
		state.TransactionHistory = []HistoryEntry{}
	}
	if state.PendingClaims == nil {
		state.PendingClaims = []PendingClaim{}
	}
	if state.SelectedPet == "" {
		state.SelectedPet = DefaultPetID
	}
}

func cloneCounts(source map[economy.ItemID]uint64) map[economy.ItemID]uint64 {
	cloned := make(map[economy.ItemID]uint64, len(source))
	for itemID, quantity := range source {
		cloned[itemID] = quantity
	}
	return cloned
}
