package client

import (
	"context"
	"errors"
	"reflect"

	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

var errUnchanged = errors.New("local state unchanged")

// Status is the ledger view of the wallet next to its local cache.
type Status struct {
	Address         economy.Address  `json:"address"`
	Network         string           `json:"network"`
	Account         economy.Account  `json:"account"`
	Treasury        economy.Treasury `json:"treasury"`
	State           localstate.State `json:"state"`
	DisplayedHealth int              `json:"displayedHealth"`
}

// Status reads the wallet account and the treasury.
func (client *Client) Status(ctx context.Context) (Status, error) {
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return Status{}, Classify(StagePreflight, err)
	}
	network, err := client.wallet.Network(ctx)
	if err != nil {
		return Status{}, Classify(StagePreflight, err)
	}
	account, err := client.wallet.Account(ctx)
	if err != nil {
		return Status{}, Classify(StagePreflight, err)
	}
	treasury, err := client.ledger.Treasury(ctx)
	if err != nil {
		return Status{}, Classify(StagePreflight, err)
	}
	state := client.cache.Snapshot()
	return Status{
		Address:         address,
		Network:         network,
		Account:         account,
		Treasury:        treasury,
		State:           state,
		DisplayedHealth: state.DisplayedHealth(),
	}, nil
}

// SyncInventory replaces local toy counts and minted pets with what the ledger holds
// for the wallet. Pets the wallet no longer owns are dropped; if the selected pet
// was one of them the default pet is selected again.
func (client *Client) SyncInventory(ctx context.Context) (localstate.State, error) {
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return localstate.State{}, Classify(StagePreflight, err)
	}
	toys, err := client.ledger.Toys(ctx, address)
	if err != nil {
		return localstate.State{}, Classify(StagePreflight, err)
	}
	pets, err := client.ledger.Pets(ctx, address)
	if err != nil {
		return localstate.State{}, Classify(StagePreflight, err)
	}
	toyCounts := make(map[economy.ItemID]uint64, len(toys))
	for _, toy := range toys {
		toyCounts[toy.ItemID]++
	}
	owned := make(map[string]economy.PetRecord, len(pets))
	for _, record := range pets {
		owned[record.ID.String()] = record
	}

	return client.applyIfChanged(ctx, func(state *localstate.State) {
		state.Inventory.Toys = toyCounts
		keptCats := make([]string, 0, len(state.Inventory.Cats))
		for _, petID := range state.Inventory.Cats {
			if objectID, minted := state.PetTokenIDs[petID]; minted {
				if _, stillOwned := owned[objectID]; !stillOwned {
					delete(state.PetTokenIDs, petID)
					continue
				}
			}
			keptCats = append(keptCats, petID)
		}
		state.Inventory.Cats = keptCats
		for petID := range owned {
			state.AddPet(petID, petID)
		}
		if !containsPet(state.Inventory.Cats, state.SelectedPet) {
			state.SelectedPet = localstate.DefaultPetID
			state.AddPet(localstate.DefaultPetID, "")
		}
		if objectID, minted := mintedPet(*state); minted {
			state.PetStats = owned[objectID.String()].Stats
		}
	})
}

// SyncPetStats mirrors the selected minted pet's ledger stats. The local default
// pet has no ledger record and is left alone.
func (client *Client) SyncPetStats(ctx context.Context) (localstate.State, error) {
	objectID, minted := mintedPet(client.cache.Snapshot())
	if !minted {
		return client.cache.Snapshot(), nil
	}
	record, err := client.ledger.Pet(ctx, objectID)
	if err != nil {
		return localstate.State{}, Classify(StagePreflight, err)
	}
	return client.applyIfChanged(ctx, func(state *localstate.State) {
		if current, stillSelected := mintedPet(*state); stillSelected && current == objectID {
			state.PetStats = record.Stats
		}
	})
}

// TickDecay applies the selected pet's owed decay: on the ledger for a minted
// pet, locally for the default pet. A minted pet with nothing due is not submitted.
func (client *Client) TickDecay(ctx context.Context) (localstate.State, error) {
	snapshot := client.cache.Snapshot()
	if snapshot.PetStats.Dead() {
		return snapshot, nil
	}
	objectID, minted := mintedPet(snapshot)
	if !minted {
		return client.applyIfChanged(ctx, func(state *localstate.State) {
			state.PetStats = pet.DecayTick(state.PetStats, client.nowMillis())
		})
	}
	if pet.DecayTick(snapshot.PetStats, client.nowMillis()) == snapshot.PetStats {
		return snapshot, nil
	}
	_, record, err := client.submitAndConfirm(ctx, economy.Call{Kind: economy.CallTickDecay, PetID: objectID})
	if err != nil {
		return localstate.State{}, err
	}
	if record.Effects.Pet == nil {
		return client.cache.Snapshot(), nil
	}
	return client.applyIfChanged(ctx, func(state *localstate.State) {
		if current, stillSelected := mintedPet(*state); stillSelected && current == objectID {
			state.PetStats = record.Effects.Pet.Stats
		}
	})
}

// RequestGas asks the faucet to top up the wallet's gas.
func (client *Client) RequestGas(ctx context.Context) (economy.Account, error) {
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return economy.Account{}, Classify(StagePreflight, err)
	}
	account, err := client.ledger.RequestGas(ctx, address)
	if err != nil {
		return economy.Account{}, Classify(StageSubmit, err)
	}
	return account, nil
}

// applyIfChanged persists mutate only when it changes the state, so periodic syncs
// do not rewrite the cache or notify subscribers for nothing.
func (client *Client) applyIfChanged(ctx context.Context, mutate func(state *localstate.State)) (localstate.State, error) {
	state, err := client.cache.Update(ctx, func(state *localstate.State) error {
		before := state.Clone()
		mutate(state)
		if reflect.DeepEqual(before, *state) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return client.cache.Snapshot(), nil
	}
	if err != nil {
		return localstate.State{}, Classify(StageReconcile, err)
	}
	return state, nil
}

func containsPet(petIDs []string, petID string) bool {
	for _, candidate := range petIDs {
		if candidate == petID {
			return true
		}
	}
	return false
}
