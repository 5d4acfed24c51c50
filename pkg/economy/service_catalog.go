package economy

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

// PurchaseRequest buys quantity units of a catalog item.
//
// Payment must cover price × quantity. The whole payment is burned: overpayment
// is not refunded, so callers send exact change.
type PurchaseRequest struct {
	ItemID   ItemID
	Quantity uint64
	Payment  Amount
}

// PurchaseConsumable burns the payment and, for toys, mints one toy per unit.
// Foods are not minted; their counts live in the client cache.
func (service *Service) PurchaseConsumable(ctx context.Context, sender Address, request PurchaseRequest) (Effects, error) {
	return service.run(ctx, sender, Call{
		Kind:     CallPurchaseConsumable,
		ItemID:   request.ItemID,
		Quantity: request.Quantity,
		Payment:  request.Payment,
	})
}

// PurchasePetSpecies burns the payment and mints one pet of the species.
func (service *Service) PurchasePetSpecies(ctx context.Context, sender Address, speciesID SpeciesID, payment Amount) (PetRecord, error) {
	effects, err := service.run(ctx, sender, Call{Kind: CallPurchasePetSpecies, SpeciesID: speciesID, Payment: payment})
	if err != nil {
		return PetRecord{}, err
	}
	return *effects.Pet, nil
}

// UpdatePrice changes one entry of a price table. Administrator only.
func (service *Service) UpdatePrice(ctx context.Context, sender Address, category PriceCategory, id uint8, price Amount) (EconomyConfig, error) {
	call := Call{Kind: CallUpdatePrice, PriceCategory: category, Amount: price}
	if category == PriceCategorySpecies {
		call.SpeciesID = SpeciesID(id)
	} else {
		call.ItemID = ItemID(id)
	}
	effects, err := service.run(ctx, sender, call)
	if err != nil {
		return EconomyConfig{}, err
	}
	return *effects.Config, nil
}

// SetSessionReward changes the per-session reward. Administrator only.
func (service *Service) SetSessionReward(ctx context.Context, sender Address, reward Amount) (EconomyConfig, error) {
	effects, err := service.run(ctx, sender, Call{Kind: CallSetSessionReward, Amount: reward})
	if err != nil {
		return EconomyConfig{}, err
	}
	return *effects.Config, nil
}

func (service *Service) purchaseConsumable(ctx context.Context, txStore Store, sender Address, call Call) (Effects, error) {
	if !call.ItemID.IsFood() && !call.ItemID.IsToy() {
		return Effects{}, fmt.Errorf("%w: %d", ErrInvalidItemID, call.ItemID)
	}
	if call.Quantity == 0 || call.Quantity > MaxPurchaseQuantity {
		return Effects{}, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidQuantity, MaxPurchaseQuantity)
	}
	config, err := txStore.GetEconomyConfig(ctx)
	if err != nil {
		return Effects{}, err
	}
	unitPrice, err := config.ItemPrice(call.ItemID)
	if err != nil {
		return Effects{}, err
	}
	totalPrice, err := unitPrice.Mul(call.Quantity)
	if err != nil {
		return Effects{}, err
	}
	if call.Payment < totalPrice {
		return Effects{}, fmt.Errorf("%w: payment %d, price %d", ErrPaymentBelowPrice, call.Payment, totalPrice)
	}
	if err := collectPayment(ctx, txStore, sender, call.Payment); err != nil {
		return Effects{}, err
	}
	effects := Effects{Burned: call.Payment}
	if call.ItemID.IsFood() {
		return effects, nil
	}
	happiness, err := ToyHappiness(call.ItemID)
	if err != nil {
		return Effects{}, err
	}
	for unit := uint64(0); unit < call.Quantity; unit++ {
		toy := Toy{ID: service.newObjectID(), Owner: sender, ItemID: call.ItemID, HappinessValue: happiness}
		if err := txStore.InsertToy(ctx, toy); err != nil {
			return Effects{}, err
		}
		effects.Toys = append(effects.Toys, toy)
		effects.CreatedObjects = append(effects.CreatedObjects, toy.ID)
	}
	return effects, nil
}

func (service *Service) purchasePetSpecies(ctx context.Context, txStore Store, sender Address, call Call, nowUnixMilli int64) (Effects, error) {
	if call.SpeciesID == 0 {
		return Effects{}, fmt.Errorf("%w: %d", ErrInvalidSpeciesID, call.SpeciesID)
	}
	config, err := txStore.GetEconomyConfig(ctx)
	if err != nil {
		return Effects{}, err
	}
	price, err := config.SpeciesPrice(call.SpeciesID)
	if err != nil {
		return Effects{}, err
	}
	if call.Payment < price {
		return Effects{}, fmt.Errorf("%w: payment %d, price %d", ErrPaymentBelowPrice, call.Payment, price)
	}
	if err := collectPayment(ctx, txStore, sender, call.Payment); err != nil {
		return Effects{}, err
	}
	minted, err := txStore.SavePet(ctx, PetRecord{
		ID:               service.newObjectID(),
		Owner:            sender,
		Species:          call.SpeciesID,
		Stats:            pet.New(nowUnixMilli),
		CreatedUnixMilli: nowUnixMilli,
	})
	if err != nil {
		return Effects{}, err
	}
	return Effects{Burned: call.Payment, Pet: &minted, CreatedObjects: []ObjectID{minted.ID}}, nil
}

func (service *Service) updatePrice(ctx context.Context, txStore Store, sender Address, call Call) (Effects, error) {
	config, err := loadAdminConfig(ctx, txStore, sender)
	if err != nil {
		return Effects{}, err
	}
	if call.Amount == 0 {
		return Effects{}, fmt.Errorf("%w: price must be greater than zero", ErrInvalidAmount)
	}
	switch call.PriceCategory {
	case PriceCategoryFood:
		if !call.ItemID.IsFood() {
			return Effects{}, fmt.Errorf("%w: %d is not food", ErrInvalidItemID, call.ItemID)
		}
		config.FoodPrices[call.ItemID] = call.Amount
	case PriceCategoryToy:
		if !call.ItemID.IsToy() {
			return Effects{}, fmt.Errorf("%w: %d is not a toy", ErrInvalidItemID, call.ItemID)
		}
		config.ToyPrices[call.ItemID] = call.Amount
	case PriceCategorySpecies:
		if call.SpeciesID == 0 {
			return Effects{}, fmt.Errorf("%w: %d", ErrInvalidSpeciesID, call.SpeciesID)
		}
		config.SpeciesPrices[call.SpeciesID] = call.Amount
	default:
		return Effects{}, fmt.Errorf("%w: %q", ErrInvalidPriceCategory, call.PriceCategory)
	}
	saved, err := txStore.SaveEconomyConfig(ctx, config)
	if err != nil {
		return Effects{}, err
	}
	return Effects{Config: &saved}, nil
}

func (service *Service) setSessionReward(ctx context.Context, txStore Store, sender Address, call Call) (Effects, error) {
	config, err := loadAdminConfig(ctx, txStore, sender)
	if err != nil {
		return Effects{}, err
	}
	if call.Amount == 0 {
		return Effects{}, fmt.Errorf("%w: reward must be greater than zero", ErrInvalidAmount)
	}
	config.SessionReward = call.Amount
	saved, err := txStore.SaveEconomyConfig(ctx, config)
	if err != nil {
		return Effects{}, err
	}
	return Effects{Config: &saved}, nil
}

func loadAdminConfig(ctx context.Context, txStore Store, sender Address) (EconomyConfig, error) {
	config, err := txStore.GetEconomyConfig(ctx)
	if err != nil {
		return EconomyConfig{}, err
	}
	if config.Admin != sender {
		return EconomyConfig{}, ErrUnauthorized
	}
	return config.Clone(), nil
}
