// Package genesis reads the ledger bootstrap document.
//
// Amounts are in the smallest unit. Omitted limits and prices keep the built-in
// defaults; listed prices replace the default for that id only.
package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument reports a malformed genesis file.
var ErrInvalidDocument = errors.New("invalid genesis document")

type document struct {
	Admin             string            `yaml:"admin"`
	TreasuryBalance   uint64            `yaml:"treasury_balance"`
	SessionReward     uint64            `yaml:"session_reward"`
	DailyCap          uint64            `yaml:"daily_cap"`
	DailySessionLimit uint32            `yaml:"daily_session_limit"`
	FoodPrices        map[uint64]uint64 `yaml:"food_prices"`
	ToyPrices         map[uint64]uint64 `yaml:"toy_prices"`
	SpeciesPrices     map[uint64]uint64 `yaml:"species_prices"`
	Allocations       []allocation      `yaml:"allocations"`
}

type allocation struct {
	Address string `yaml:"address"`
	Tokens  uint64 `yaml:"tokens"`
	Gas     uint64 `yaml:"gas"`
}

// Load reads and validates the genesis file at path.
func Load(path string) (economy.Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return economy.Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a genesis document. Unknown keys are rejected.
func Parse(raw []byte) (economy.Genesis, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return economy.Genesis{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	admin, err := economy.NewAddress(doc.Admin)
	if err != nil {
		return economy.Genesis{}, fmt.Errorf("%w: admin: %v", ErrInvalidDocument, err)
	}

	genesis := economy.DefaultGenesis(admin)
	genesis.TreasuryBalance = economy.Amount(doc.TreasuryBalance)
	if doc.SessionReward != 0 {
		genesis.SessionReward = economy.Amount(doc.SessionReward)
	}
	if doc.DailyCap != 0 {
		genesis.DailyCap = economy.Amount(doc.DailyCap)
	}
	if doc.DailySessionLimit != 0 {
		genesis.DailySessionLimit = doc.DailySessionLimit
	}
	if err := mergeItemPrices(genesis.FoodPrices, doc.FoodPrices); err != nil {
		return economy.Genesis{}, err
	}
	if err := mergeItemPrices(genesis.ToyPrices, doc.ToyPrices); err != nil {
		return economy.Genesis{}, err
	}
	for rawID, price := range doc.SpeciesPrices {
		speciesID, err := economy.NewSpeciesID(rawID)
		if err != nil {
			return economy.Genesis{}, fmt.Errorf("%w: species_prices: %v", ErrInvalidDocument, err)
		}
		if price == 0 {
			return economy.Genesis{}, fmt.Errorf("%w: species %d price must be positive", ErrInvalidDocument, rawID)
		}
		genesis.SpeciesPrices[speciesID] = economy.Amount(price)
	}
	for index, entry := range doc.Allocations {
		address, err := economy.NewAddress(entry.Address)
		if err != nil {
			return economy.Genesis{}, fmt.Errorf("%w: allocations[%d]: %v", ErrInvalidDocument, index, err)
		}
		genesis.Allocations = append(genesis.Allocations, economy.Allocation{
			Address: address,
			Tokens:  economy.Amount(entry.Tokens),
			Gas:     entry.Gas,
		})
	}
	if err := genesis.Validate(); err != nil {
		return economy.Genesis{}, err
	}
	return genesis, nil
}

func mergeItemPrices(target map[economy.ItemID]economy.Amount, overrides map[uint64]uint64) error {
	for rawID, price := range overrides {
		itemID, err := economy.NewItemID(rawID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		if price == 0 {
			return fmt.Errorf("%w: item %d price must be positive", ErrInvalidDocument, rawID)
		}
		target[itemID] = economy.Amount(price)
	}
	return nil
}
