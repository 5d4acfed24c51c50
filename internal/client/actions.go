package client

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

// PurchaseResult describes a confirmed purchase.
type PurchaseResult struct {
	Digest string             `json:"txRef"`
	Paid   economy.Amount     `json:"paid"`
	Burned economy.Amount     `json:"burned"`
	Toys   []economy.Toy      `json:"toys,omitempty"`
	Pet    *economy.PetRecord `json:"pet,omitempty"`
	State  localstate.State   `json:"state"`
}

// PurchaseItem buys quantity units of a food or toy, paying the exact price.
// Purchases carry no idempotency key, so a failed submission is never retried here.
func (client *Client) PurchaseItem(ctx context.Context, rawItemID uint64, quantity uint64) (PurchaseResult, error) {
	itemID, err := economy.NewItemID(rawItemID)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	if quantity == 0 || quantity > economy.MaxPurchaseQuantity {
		return PurchaseResult{}, Classify(StagePreflight, fmt.Errorf("%w: %d", economy.ErrInvalidQuantity, quantity))
	}
	config, err := client.ledger.EconomyConfig(ctx)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	unitPrice, err := config.ItemPrice(itemID)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	payment, err := unitPrice.Mul(quantity)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	digest, record, err := client.submitAndConfirm(ctx, economy.Call{
		Kind:     economy.CallPurchaseConsumable,
		ItemID:   itemID,
		Quantity: quantity,
		Payment:  payment,
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	state, err := client.cache.Update(ctx, func(state *localstate.State) error {
		if state.HasHistory(digest) {
			return nil
		}
		if itemID.IsFood() {
			state.Inventory.Foods[itemID] += quantity
		} else {
			state.Inventory.Toys[itemID] += quantity
		}
		state.TransactionHistory = append(state.TransactionHistory, localstate.HistoryEntry{
			Kind:        localstate.HistoryPurchase,
			Digest:      digest,
			Amount:      payment.Uint64(),
			ItemID:      uint8(itemID),
			AtUnixMilli: record.ExecutedUnixMilli,
		})
		return nil
	})
	if err != nil {
		return PurchaseResult{}, Classify(StageReconcile, err)
	}
	return PurchaseResult{Digest: digest, Paid: payment, Burned: record.Effects.Burned, Toys: record.Effects.Toys, State: state}, nil
}

// PurchasePet mints a pet of speciesID and selects it.
func (client *Client) PurchasePet(ctx context.Context, rawSpeciesID uint64) (PurchaseResult, error) {
	speciesID, err := economy.NewSpeciesID(rawSpeciesID)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	config, err := client.ledger.EconomyConfig(ctx)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	price, err := config.SpeciesPrice(speciesID)
	if err != nil {
		return PurchaseResult{}, Classify(StagePreflight, err)
	}
	digest, record, err := client.submitAndConfirm(ctx, economy.Call{
		Kind:      economy.CallPurchasePetSpecies,
		SpeciesID: speciesID,
		Payment:   price,
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	minted := record.Effects.Pet
	if minted == nil {
		return PurchaseResult{}, Classify(StageConfirm, fmt.Errorf("transaction %s minted no pet", digest))
	}
	state, err := client.cache.Update(ctx, func(state *localstate.State) error {
		petID := minted.ID.String()
		state.AddPet(petID, petID)
		state.SelectedPet = petID
		state.PetStats = minted.Stats
		if !state.HasHistory(digest) {
			state.TransactionHistory = append(state.TransactionHistory, localstate.HistoryEntry{
				Kind:        localstate.HistoryPetPurchase,
				Digest:      digest,
				Amount:      price.Uint64(),
				PetID:       petID,
				AtUnixMilli: record.ExecutedUnixMilli,
			})
		}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, Classify(StageReconcile, err)
	}
	return PurchaseResult{Digest: digest, Paid: price, Burned: record.Effects.Burned, Pet: minted, State: state}, nil
}

// FeedPet feeds the selected pet one unit of food. Feeding a dead pet changes nothing
// and consumes no food.
func (client *Client) FeedPet(ctx context.Context, rawFoodID uint64) (localstate.State, error) {
	foodID, err := economy.NewItemID(rawFoodID)
	if err != nil {
		return localstate.State{}, Classify(StagePreflight, err)
	}
	foodValue, err := economy.FoodValue(foodID)
	if err != nil {
		return localstate.State{}, Classify(StagePreflight, err)
	}
	snapshot := client.cache.Snapshot()
	if snapshot.Inventory.Foods[foodID] == 0 {
		return localstate.State{}, Classify(StagePreflight, fmt.Errorf("%w: %d", ErrNoFood, foodID))
	}
	if snapshot.PetStats.Dead() {
		return snapshot, nil
	}

	objectID, minted := mintedPet(snapshot)
	nextStats := pet.Feed(snapshot.PetStats, foodValue, client.nowMillis())
	digest := ""
	if minted {
		submitted, record, err := client.submitAndConfirm(ctx, economy.Call{Kind: economy.CallFeedPet, PetID: objectID, ItemID: foodID})
		if err != nil {
			return localstate.State{}, err
		}
		if record.Effects.Pet != nil {
			nextStats = record.Effects.Pet.Stats
		}
		digest = submitted
	}
	state, err := client.cache.Update(ctx, func(state *localstate.State) error {
		if state.Inventory.Foods[foodID] > 0 {
			state.Inventory.Foods[foodID]--
		}
		state.PetStats = nextStats
		if digest != "" && !state.HasHistory(digest) {
			state.TransactionHistory = append(state.TransactionHistory, localstate.HistoryEntry{
				Kind:        localstate.HistoryFeed,
				Digest:      digest,
				ItemID:      uint8(foodID),
				PetID:       state.SelectedPet,
				AtUnixMilli: client.nowMillis(),
			})
		}
		return nil
	})
	if err != nil {
		return localstate.State{}, Classify(StageReconcile, err)
	}
	return state, nil
}

// PlayWithPet plays with the selected pet, with a toy item or, when rawToyID is nil,
// by petting it directly. A minted pet consumes one ledger toy of that kind; the
// local default pet plays without using up the toy.
func (client *Client) PlayWithPet(ctx context.Context, rawToyID *uint64) (localstate.State, error) {
	happiness := economy.PetDirectlyHappiness
	var toyItem economy.ItemID
	if rawToyID != nil {
		itemID, err := economy.NewItemID(*rawToyID)
		if err != nil {
			return localstate.State{}, Classify(StagePreflight, err)
		}
		value, err := economy.ToyHappiness(itemID)
		if err != nil {
			return localstate.State{}, Classify(StagePreflight, err)
		}
		toyItem, happiness = itemID, value
	}
	snapshot := client.cache.Snapshot()
	if toyItem != 0 && snapshot.Inventory.Toys[toyItem] == 0 {
		return localstate.State{}, Classify(StagePreflight, fmt.Errorf("%w: %d", ErrNoToy, toyItem))
	}
	if snapshot.PetStats.Dead() {
		return snapshot, nil
	}

	objectID, minted := mintedPet(snapshot)
	nextStats := pet.Play(snapshot.PetStats, happiness, client.nowMillis())
	digest := ""
	if minted {
		call := economy.Call{Kind: economy.CallPetDirectly, PetID: objectID}
		if toyItem != 0 {
			toyID, err := client.findToy(ctx, toyItem)
			if err != nil {
				return localstate.State{}, err
			}
			call = economy.Call{Kind: economy.CallPlayWithToy, PetID: objectID, ToyID: toyID}
		}
		submitted, record, err := client.submitAndConfirm(ctx, call)
		if err != nil {
			return localstate.State{}, err
		}
		if record.Effects.Pet != nil {
			nextStats = record.Effects.Pet.Stats
		}
		digest = submitted
	}
	state, err := client.cache.Update(ctx, func(state *localstate.State) error {
		if minted && toyItem != 0 && state.Inventory.Toys[toyItem] > 0 {
			state.Inventory.Toys[toyItem]--
		}
		state.PetStats = nextStats
		if digest != "" && !state.HasHistory(digest) {
			state.TransactionHistory = append(state.TransactionHistory, localstate.HistoryEntry{
				Kind:        localstate.HistoryPlay,
				Digest:      digest,
				ItemID:      uint8(toyItem),
				PetID:       state.SelectedPet,
				AtUnixMilli: client.nowMillis(),
			})
		}
		return nil
	})
	if err != nil {
		return localstate.State{}, Classify(StageReconcile, err)
	}
	return state, nil
}

// ReviveDefaultPet gives the local default pet fresh stats. Minted pets stay dead.
func (client *Client) ReviveDefaultPet(ctx context.Context) (localstate.State, error) {
	state, err := client.cache.Update(ctx, func(state *localstate.State) error {
		if _, minted := mintedPet(*state); minted {
			return ErrMintedPetTerminal
		}
		if !state.PetStats.Dead() {
			return ErrPetAlive
		}
		state.PetStats = pet.New(client.nowMillis())
		return nil
	})
	if err != nil {
		return localstate.State{}, Classify(StageLocal, err)
	}
	return state, nil
}

func (client *Client) findToy(ctx context.Context, itemID economy.ItemID) (economy.ObjectID, error) {
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return "", Classify(StagePreflight, err)
	}
	toys, err := client.ledger.Toys(ctx, address)
	if err != nil {
		return "", Classify(StagePreflight, err)
	}
	for _, toy := range toys {
		if toy.ItemID == itemID {
			return toy.ID, nil
		}
	}
	return "", Classify(StagePreflight, fmt.Errorf("%w: no ledger toy %d", ErrNoToy, itemID))
}

func mintedPet(state localstate.State) (economy.ObjectID, bool) {
	objectID, ok := state.PetTokenIDs[state.SelectedPet]
	if !ok || objectID == "" {
		return "", false
	}
	return economy.ObjectID(objectID), true
}
