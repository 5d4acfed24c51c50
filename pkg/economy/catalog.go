package economy

import "fmt"

// ItemID identifies a catalog item. Foods are 1-5 and tracked off-ledger; toys are 6-10 and minted.
type ItemID uint8

// SpeciesID identifies a mintable pet species.
type SpeciesID uint8

const (
	firstFoodID ItemID = 1
	lastFoodID  ItemID = 5
	firstToyID  ItemID = 6
	lastToyID   ItemID = 10

	// PetDirectlyHappiness is the happiness gained from petting without a toy.
	PetDirectlyHappiness uint8 = 5
)

// IsFood reports whether the item is a consumable food.
func (id ItemID) IsFood() bool {
	return id >= firstFoodID && id <= lastFoodID
}

// IsToy reports whether the item is a mintable toy.
func (id ItemID) IsToy() bool {
	return id >= firstToyID && id <= lastToyID
}

// NewItemID validates a catalog item id.
func NewItemID(raw uint64) (ItemID, error) {
	id := ItemID(raw)
	if raw > uint64(lastToyID) || (!id.IsFood() && !id.IsToy()) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidItemID, raw)
	}
	return id, nil
}

// NewSpeciesID validates a species id.
func NewSpeciesID(raw uint64) (SpeciesID, error) {
	if raw == 0 || raw > 255 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSpeciesID, raw)
	}
	return SpeciesID(raw), nil
}

// CatalogItem is one entry of the built-in item catalog.
type CatalogItem struct {
	ID           ItemID
	Name         string
	Value        uint8
	DefaultPrice Amount
}

var foodCatalog = []CatalogItem{
	{ID: 1, Name: "kibble", Value: 10, DefaultPrice: Amount(1 * TokenScale)},
	{ID: 2, Name: "fish", Value: 20, DefaultPrice: Amount(2 * TokenScale)},
	{ID: 3, Name: "chicken", Value: 30, DefaultPrice: Amount(3 * TokenScale)},
	{ID: 4, Name: "salmon", Value: 40, DefaultPrice: Amount(4 * TokenScale)},
	{ID: 5, Name: "feast", Value: 50, DefaultPrice: Amount(5 * TokenScale)},
}

var toyCatalog = []CatalogItem{
	{ID: 6, Name: "yarn ball", Value: 10, DefaultPrice: Amount(2 * TokenScale)},
	{ID: 7, Name: "feather wand", Value: 15, DefaultPrice: Amount(3 * TokenScale)},
	{ID: 8, Name: "laser pointer", Value: 20, DefaultPrice: Amount(4 * TokenScale)},
	{ID: 9, Name: "scratching post", Value: 25, DefaultPrice: Amount(5 * TokenScale)},
	{ID: 10, Name: "cat tower", Value: 30, DefaultPrice: Amount(6 * TokenScale)},
}

var defaultSpeciesPrices = map[SpeciesID]Amount{
	1: Amount(10 * TokenScale),
	2: Amount(20 * TokenScale),
	3: Amount(30 * TokenScale),
}

// CatalogEntry looks up a food or toy in the built-in catalog.
func CatalogEntry(itemID ItemID) (CatalogItem, error) {
	for _, item := range foodCatalog {
		if item.ID == itemID {
			return item, nil
		}
	}
	for _, item := range toyCatalog {
		if item.ID == itemID {
			return item, nil
		}
	}
	return CatalogItem{}, fmt.Errorf("%w: %d", ErrInvalidItemID, itemID)
}

// FoodValue returns the hunger reduction of a food item.
func FoodValue(itemID ItemID) (uint8, error) {
	if !itemID.IsFood() {
		return 0, fmt.Errorf("%w: %d is not food", ErrInvalidItemID, itemID)
	}
	item, err := CatalogEntry(itemID)
	if err != nil {
		return 0, err
	}
	return item.Value, nil
}

// ToyHappiness returns the happiness gained from a toy item.
func ToyHappiness(itemID ItemID) (uint8, error) {
	if !itemID.IsToy() {
		return 0, fmt.Errorf("%w: %d is not a toy", ErrInvalidItemID, itemID)
	}
	item, err := CatalogEntry(itemID)
	if err != nil {
		return 0, err
	}
	return item.Value, nil
}

// DefaultGenesis returns a genesis with the built-in prices and limits.
func DefaultGenesis(admin Address) Genesis {
	genesis := Genesis{
		Admin:             admin,
		SessionReward:     DefaultSessionReward,
		DailyCap:          DefaultDailyCap,
		DailySessionLimit: DefaultDailySessionLimit,
		FoodPrices:        make(map[ItemID]Amount, len(foodCatalog)),
		ToyPrices:         make(map[ItemID]Amount, len(toyCatalog)),
		SpeciesPrices:     make(map[SpeciesID]Amount, len(defaultSpeciesPrices)),
	}
	for _, item := range foodCatalog {
		genesis.FoodPrices[item.ID] = item.DefaultPrice
	}
	for _, item := range toyCatalog {
		genesis.ToyPrices[item.ID] = item.DefaultPrice
	}
	for species, price := range defaultSpeciesPrices {
		genesis.SpeciesPrices[species] = price
	}
	return genesis
}
