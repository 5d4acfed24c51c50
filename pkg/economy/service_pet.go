package economy

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

// FeedPet feeds an owned pet with one food item. Food counts are tracked by the
// client; the ledger only applies the food value. Dead pets are left unchanged.
func (service *Service) FeedPet(ctx context.Context, sender Address, petID ObjectID, foodID ItemID) (PetRecord, error) {
	return service.runPetCall(ctx, sender, Call{Kind: CallFeedPet, PetID: petID, ItemID: foodID})
}

// PetDirectly plays with an owned pet without a toy.
func (service *Service) PetDirectly(ctx context.Context, sender Address, petID ObjectID) (PetRecord, error) {
	return service.runPetCall(ctx, sender, Call{Kind: CallPetDirectly, PetID: petID})
}

// PlayWithToy plays with an owned pet and consumes the toy.
func (service *Service) PlayWithToy(ctx context.Context, sender Address, petID ObjectID, toyID ObjectID) (PetRecord, error) {
	return service.runPetCall(ctx, sender, Call{Kind: CallPlayWithToy, PetID: petID, ToyID: toyID})
}

// TickDecay applies the decay owed for whole days elapsed since the owned pet's
// last decay. Repeated ticks within one day only refresh daysWithoutFeeding.
func (service *Service) TickDecay(ctx context.Context, sender Address, petID ObjectID) (PetRecord, error) {
	return service.runPetCall(ctx, sender, Call{Kind: CallTickDecay, PetID: petID})
}

// TransferPet hands an owned pet to another address.
func (service *Service) TransferPet(ctx context.Context, sender Address, petID ObjectID, recipient Address) (PetRecord, error) {
	return service.runPetCall(ctx, sender, Call{Kind: CallTransferPet, PetID: petID, Recipient: recipient})
}

func (service *Service) runPetCall(ctx context.Context, sender Address, call Call) (PetRecord, error) {
	effects, err := service.run(ctx, sender, call)
	if err != nil {
		return PetRecord{}, err
	}
	return *effects.Pet, nil
}

func (service *Service) feedPet(ctx context.Context, txStore Store, sender Address, call Call, nowUnixMilli int64) (Effects, error) {
	foodValue, err := FoodValue(call.ItemID)
	if err != nil {
		return Effects{}, err
	}
	petRecord, err := loadOwnedPet(ctx, txStore, sender, call.PetID)
	if err != nil {
		return Effects{}, err
	}
	return savePetStats(ctx, txStore, petRecord, pet.Feed(petRecord.Stats, foodValue, nowUnixMilli))
}

func (service *Service) petDirectly(ctx context.Context, txStore Store, sender Address, call Call, nowUnixMilli int64) (Effects, error) {
	petRecord, err := loadOwnedPet(ctx, txStore, sender, call.PetID)
	if err != nil {
		return Effects{}, err
	}
	return savePetStats(ctx, txStore, petRecord, pet.Play(petRecord.Stats, PetDirectlyHappiness, nowUnixMilli))
}

func (service *Service) playWithToy(ctx context.Context, txStore Store, sender Address, call Call, nowUnixMilli int64) (Effects, error) {
	petRecord, err := loadOwnedPet(ctx, txStore, sender, call.PetID)
	if err != nil {
		return Effects{}, err
	}
	if call.ToyID == "" {
		return Effects{}, fmt.Errorf("%w: toy id is empty", ErrInvalidObjectID)
	}
	toy, err := txStore.GetToy(ctx, call.ToyID)
	if err != nil {
		return Effects{}, err
	}
	if toy.Owner != sender {
		return Effects{}, fmt.Errorf("%w: toy %s", ErrNotOwner, toy.ID)
	}
	if petRecord.Stats.Dead() {
		return Effects{Pet: &petRecord}, nil
	}
	effects, err := savePetStats(ctx, txStore, petRecord, pet.Play(petRecord.Stats, toy.HappinessValue, nowUnixMilli))
	if err != nil {
		return Effects{}, err
	}
	if err := txStore.DeleteToy(ctx, toy.ID); err != nil {
		return Effects{}, err
	}
	effects.DeletedObjects = append(effects.DeletedObjects, toy.ID)
	return effects, nil
}

func (service *Service) tickDecay(ctx context.Context, txStore Store, sender Address, call Call, nowUnixMilli int64) (Effects, error) {
	petRecord, err := loadOwnedPet(ctx, txStore, sender, call.PetID)
	if err != nil {
		return Effects{}, err
	}
	return savePetStats(ctx, txStore, petRecord, pet.DecayTick(petRecord.Stats, nowUnixMilli))
}

func (service *Service) transferPet(ctx context.Context, txStore Store, sender Address, call Call) (Effects, error) {
	if call.Recipient.IsZero() {
		return Effects{}, fmt.Errorf("%w: recipient is empty", ErrInvalidAddress)
	}
	if call.Recipient == sender {
		return Effects{}, ErrRecipientMatchesSender
	}
	petRecord, err := loadOwnedPet(ctx, txStore, sender, call.PetID)
	if err != nil {
		return Effects{}, err
	}
	petRecord.Owner = call.Recipient
	saved, err := txStore.SavePet(ctx, petRecord)
	if err != nil {
		return Effects{}, err
	}
	return Effects{Pet: &saved}, nil
}

func loadPet(ctx context.Context, txStore Store, petID ObjectID) (PetRecord, error) {
	if petID == "" {
		return PetRecord{}, fmt.Errorf("%w: pet id is empty", ErrInvalidObjectID)
	}
	return txStore.GetPet(ctx, petID)
}

func loadOwnedPet(ctx context.Context, txStore Store, sender Address, petID ObjectID) (PetRecord, error) {
	petRecord, err := loadPet(ctx, txStore, petID)
	if err != nil {
		return PetRecord{}, err
	}
	if petRecord.Owner != sender {
		return PetRecord{}, fmt.Errorf("%w: pet %s", ErrNotOwner, petRecord.ID)
	}
	return petRecord, nil
}

// savePetStats persists changed stats; unchanged stats (a dead pet) are not written.
func savePetStats(ctx context.Context, txStore Store, petRecord PetRecord, next pet.Stats) (Effects, error) {
	if next == petRecord.Stats {
		return Effects{Pet: &petRecord}, nil
	}
	petRecord.Stats = next
	saved, err := txStore.SavePet(ctx, petRecord)
	if err != nil {
		return Effects{}, err
	}
	return Effects{Pet: &saved}, nil
}
