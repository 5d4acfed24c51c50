package client

import (
	"context"
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/focusledger/internal/events"
	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

const mintedPetID economy.ObjectID = "pet-object-1"

func seedState(test *testing.T, fixture clientFixture, mutate func(state *localstate.State)) {
	test.Helper()
	if _, err := fixture.cache.Update(context.Background(), func(state *localstate.State) error {
		mutate(state)
		return nil
	}); err != nil {
		test.Fatalf("seed state: %v", err)
	}
}

func TestPurchaseItemPaysExactPriceAndStocksInventory(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	gateway.records["digest-1"] = economy.TransactionRecord{
		Digest:            "digest-1",
		Effects:           economy.Effects{Toys: []economy.Toy{{ID: "toy-1", ItemID: 6}, {ID: "toy-2", ItemID: 6}}},
		ExecutedUnixMilli: testNowMillis,
	}
	fixture := newClientFixture(test, gateway)

	result, err := fixture.client.PurchaseItem(context.Background(), 6, 2)
	if err != nil {
		test.Fatalf("purchase: %v", err)
	}
	calls := gateway.submittedCalls()
	if len(calls) != 1 || calls[0].Payment != economy.Amount(4*economy.TokenScale) || calls[0].Quantity != 2 {
		test.Fatalf("unexpected submission: %+v", calls)
	}
	if result.State.Inventory.Toys[6] != 2 || len(result.Toys) != 2 {
		test.Fatalf("unexpected result: %+v", result)
	}
	if len(result.State.TransactionHistory) != 1 || result.State.TransactionHistory[0].Kind != localstate.HistoryPurchase {
		test.Fatalf("expected one purchase history entry, got %+v", result.State.TransactionHistory)
	}
}

func TestPurchaseItemValidatesBeforeSubmitting(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		itemID   uint64
		quantity uint64
		expected error
	}{
		{name: "zero quantity", itemID: 1, quantity: 0, expected: economy.ErrInvalidQuantity},
		{name: "too many", itemID: 1, quantity: economy.MaxPurchaseQuantity + 1, expected: economy.ErrInvalidQuantity},
		{name: "unknown item", itemID: 42, quantity: 1, expected: economy.ErrInvalidItemID},
		{name: "unpriced item", itemID: 2, quantity: 1, expected: economy.ErrInvalidItemID},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			gateway := newStubGateway()
			fixture := newClientFixture(test, gateway)
			_, err := fixture.client.PurchaseItem(context.Background(), testCase.itemID, testCase.quantity)
			if !errors.Is(err, testCase.expected) || mustClientError(test, err).Kind != KindInvalidRequest {
				test.Fatalf("expected %v, got %v", testCase.expected, err)
			}
			if len(gateway.submittedCalls()) != 0 {
				test.Fatalf("expected nothing submitted")
			}
		})
	}
}

func TestPurchasePetSelectsMintedPet(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	minted := economy.PetRecord{ID: mintedPetID, Owner: testAddress, Species: 1, Stats: pet.New(testNowMillis)}
	gateway.records["digest-1"] = economy.TransactionRecord{Digest: "digest-1", Effects: economy.Effects{Pet: &minted}}
	fixture := newClientFixture(test, gateway)

	result, err := fixture.client.PurchasePet(context.Background(), 1)
	if err != nil {
		test.Fatalf("purchase pet: %v", err)
	}
	if result.State.SelectedPet != mintedPetID.String() || result.State.PetTokenIDs[mintedPetID.String()] != mintedPetID.String() {
		test.Fatalf("expected minted pet selected, got %+v", result.State)
	}
	if gateway.submittedCalls()[0].Payment != economy.Amount(50*economy.TokenScale) {
		test.Fatalf("expected exact species price")
	}
}

func TestFeedDefaultPetStaysLocal(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	fixture := newClientFixture(test, gateway)

	if _, err := fixture.client.FeedPet(context.Background(), 1); !errors.Is(err, ErrNoFood) {
		test.Fatalf("expected no food, got %v", err)
	}
	seedState(test, fixture, func(state *localstate.State) {
		state.Inventory.Foods[1] = 2
	})

	state, err := fixture.client.FeedPet(context.Background(), 1)
	if err != nil {
		test.Fatalf("feed: %v", err)
	}
	if state.Inventory.Foods[1] != 1 || state.PetStats.Hunger >= pet.InitialHunger {
		test.Fatalf("unexpected state after feeding: %+v", state)
	}
	if len(gateway.submittedCalls()) != 0 {
		test.Fatalf("expected the default pet to be fed without the ledger")
	}
}

func TestFeedMintedPetUsesLedgerStats(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	fed := economy.PetRecord{ID: mintedPetID, Stats: pet.Stats{Hunger: 7, Happiness: 80, Health: 100, Alive: true}}
	gateway.records["digest-1"] = economy.TransactionRecord{Digest: "digest-1", Effects: economy.Effects{Pet: &fed}}
	fixture := newClientFixture(test, gateway)
	seedState(test, fixture, func(state *localstate.State) {
		state.Inventory.Foods[1] = 1
		state.AddPet(mintedPetID.String(), mintedPetID.String())
		state.SelectedPet = mintedPetID.String()
	})

	state, err := fixture.client.FeedPet(context.Background(), 1)
	if err != nil {
		test.Fatalf("feed: %v", err)
	}
	calls := gateway.submittedCalls()
	if len(calls) != 1 || calls[0].Kind != economy.CallFeedPet || calls[0].PetID != mintedPetID {
		test.Fatalf("unexpected submissions: %+v", calls)
	}
	if state.PetStats != fed.Stats || state.Inventory.Foods[1] != 0 {
		test.Fatalf("unexpected state: %+v", state)
	}
}

func TestDeadPetIgnoresCareAndKeepsFood(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	fixture := newClientFixture(test, gateway)
	seedState(test, fixture, func(state *localstate.State) {
		state.Inventory.Foods[1] = 1
		state.PetStats.Alive = false
	})

	state, err := fixture.client.FeedPet(context.Background(), 1)
	if err != nil {
		test.Fatalf("feed: %v", err)
	}
	if state.Inventory.Foods[1] != 1 {
		test.Fatalf("expected food to be kept")
	}
	if _, err := fixture.client.PlayWithPet(context.Background(), nil); err != nil {
		test.Fatalf("play: %v", err)
	}
	if len(gateway.submittedCalls()) != 0 {
		test.Fatalf("expected no ledger calls for a dead pet")
	}
}

func TestPlayWithMintedPetConsumesLedgerToy(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	gateway.toys = []economy.Toy{{ID: "toy-9", ItemID: 6}}
	played := economy.PetRecord{ID: mintedPetID, Stats: pet.Stats{Hunger: 50, Happiness: 65, Health: 100, Alive: true}}
	gateway.records["digest-1"] = economy.TransactionRecord{Digest: "digest-1", Effects: economy.Effects{Pet: &played}}
	fixture := newClientFixture(test, gateway)
	seedState(test, fixture, func(state *localstate.State) {
		state.Inventory.Toys[6] = 1
		state.AddPet(mintedPetID.String(), mintedPetID.String())
		state.SelectedPet = mintedPetID.String()
	})

	toyID := uint64(6)
	state, err := fixture.client.PlayWithPet(context.Background(), &toyID)
	if err != nil {
		test.Fatalf("play: %v", err)
	}
	calls := gateway.submittedCalls()
	if len(calls) != 1 || calls[0].Kind != economy.CallPlayWithToy || calls[0].ToyID != "toy-9" {
		test.Fatalf("unexpected submissions: %+v", calls)
	}
	if state.Inventory.Toys[6] != 0 || state.PetStats.Happiness != 65 {
		test.Fatalf("unexpected state: %+v", state)
	}
}

func TestReviveDefaultPet(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	fixture := newClientFixture(test, gateway)

	if _, err := fixture.client.ReviveDefaultPet(context.Background()); !errors.Is(err, ErrPetAlive) {
		test.Fatalf("expected alive pet to refuse revive, got %v", err)
	}
	seedState(test, fixture, func(state *localstate.State) {
		state.PetStats = pet.Stats{Alive: false, Health: 0, DaysWithoutFeeding: pet.StarvationDays}
	})
	state, err := fixture.client.ReviveDefaultPet(context.Background())
	if err != nil {
		test.Fatalf("revive: %v", err)
	}
	if state.PetStats != pet.New(testNowMillis) {
		test.Fatalf("expected fresh stats, got %+v", state.PetStats)
	}

	seedState(test, fixture, func(state *localstate.State) {
		state.AddPet(mintedPetID.String(), mintedPetID.String())
		state.SelectedPet = mintedPetID.String()
		state.PetStats.Alive = false
	})
	if _, err := fixture.client.ReviveDefaultPet(context.Background()); !errors.Is(err, ErrMintedPetTerminal) {
		test.Fatalf("expected minted pet to stay dead, got %v", err)
	}
}

func TestSyncInventoryMirrorsLedgerOwnership(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	owned := economy.PetRecord{ID: "pet-kept", Stats: pet.Stats{Hunger: 12, Happiness: 40, Health: 90, Alive: true}}
	gateway.pets[owned.ID] = owned
	gateway.toys = []economy.Toy{{ID: "toy-1", ItemID: 7}, {ID: "toy-2", ItemID: 7}}
	fixture := newClientFixture(test, gateway)
	seedState(test, fixture, func(state *localstate.State) {
		state.Inventory.Toys[6] = 3
		state.AddPet("pet-gone", "pet-gone")
		state.SelectedPet = "pet-gone"
	})

	state, err := fixture.client.SyncInventory(context.Background())
	if err != nil {
		test.Fatalf("sync: %v", err)
	}
	if state.Inventory.Toys[6] != 0 || state.Inventory.Toys[7] != 2 {
		test.Fatalf("unexpected toys: %v", state.Inventory.Toys)
	}
	if _, stillThere := state.PetTokenIDs["pet-gone"]; stillThere || containsPet(state.Inventory.Cats, "pet-gone") {
		test.Fatalf("expected transferred pet to be dropped, got %+v", state)
	}
	if !containsPet(state.Inventory.Cats, "pet-kept") || state.SelectedPet != localstate.DefaultPetID {
		test.Fatalf("unexpected pets: %+v", state)
	}

	published := fixture.publisher.count(events.TopicStateUpdated)
	if _, err := fixture.client.SyncInventory(context.Background()); err != nil {
		test.Fatalf("second sync: %v", err)
	}
	if fixture.publisher.count(events.TopicStateUpdated) != published {
		test.Fatalf("expected an unchanged sync to write nothing")
	}
}

func TestTickDecayDefaultPetIsLocal(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	fixture := newClientFixture(test, gateway)
	yesterday := testNowMillis - pet.DayMillis
	seedState(test, fixture, func(state *localstate.State) {
		state.PetStats = pet.Stats{Hunger: 90, Happiness: pet.InitialHappiness, Health: pet.InitialHealth, Alive: true, LastFedUnixMilli: yesterday, LastDecayUnixMilli: yesterday}
	})

	state, err := fixture.client.TickDecay(context.Background())
	if err != nil {
		test.Fatalf("tick: %v", err)
	}
	want := pet.Stats{Hunger: 91, Happiness: pet.InitialHappiness - 1, Health: pet.InitialHealth - 1, Alive: true, LastFedUnixMilli: yesterday, DaysWithoutFeeding: 1, LastDecayUnixMilli: testNowMillis}
	if state.PetStats != want {
		test.Fatalf("unexpected stats: %+v", state.PetStats)
	}
	if len(gateway.submittedCalls()) != 0 {
		test.Fatalf("expected no ledger call")
	}
}

func TestTickDecayMintedPetSubmitsOnlyWhenDecayIsOwed(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	yesterday := testNowMillis - pet.DayMillis
	decayed := economy.PetRecord{ID: mintedPetID, Stats: pet.Stats{Hunger: 51, Happiness: 49, Health: 100, Alive: true, LastFedUnixMilli: yesterday, DaysWithoutFeeding: 1, LastDecayUnixMilli: testNowMillis}}
	gateway.records["digest-1"] = economy.TransactionRecord{Digest: "digest-1", Effects: economy.Effects{Pet: &decayed}}
	fixture := newClientFixture(test, gateway)
	seedState(test, fixture, func(state *localstate.State) {
		state.AddPet(mintedPetID.String(), mintedPetID.String())
		state.SelectedPet = mintedPetID.String()
		state.PetStats = pet.New(testNowMillis - pet.DayMillis/2)
	})

	if _, err := fixture.client.TickDecay(context.Background()); err != nil {
		test.Fatalf("tick within a day: %v", err)
	}
	if len(gateway.submittedCalls()) != 0 {
		test.Fatalf("expected no submission while no decay is owed")
	}

	seedState(test, fixture, func(state *localstate.State) {
		state.PetStats = pet.New(yesterday)
	})
	state, err := fixture.client.TickDecay(context.Background())
	if err != nil {
		test.Fatalf("tick after a day: %v", err)
	}
	calls := gateway.submittedCalls()
	if len(calls) != 1 || calls[0].Kind != economy.CallTickDecay || calls[0].PetID != mintedPetID {
		test.Fatalf("unexpected submissions: %+v", calls)
	}
	if state.PetStats != decayed.Stats {
		test.Fatalf("expected ledger stats mirrored, got %+v", state.PetStats)
	}
}

func TestRequestGasTopsUpWallet(test *testing.T) {
	test.Parallel()
	gateway := newStubGateway()
	fixture := newClientFixture(test, gateway)
	account, err := fixture.client.RequestGas(context.Background())
	if err != nil {
		test.Fatalf("request gas: %v", err)
	}
	if account.GasBalance != 11*DefaultGasBudget {
		test.Fatalf("unexpected gas balance %d", account.GasBalance)
	}
}
