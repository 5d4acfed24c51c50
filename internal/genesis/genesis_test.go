package genesis

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

const (
	adminAddress = "0x1111111111111111111111111111111111111111111111111111111111111111"
	userAddress  = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

func TestParseAppliesOverridesOnTopOfDefaults(test *testing.T) {
	test.Parallel()
	raw := strings.Join([]string{
		"admin: \"" + adminAddress + "\"",
		"treasury_balance: 500000000000",
		"session_reward: 2000000000",
		"daily_session_limit: 12",
		"food_prices:",
		"  1: 7",
		"species_prices:",
		"  4: 40000000000",
		"allocations:",
		"  - address: \"" + userAddress + "\"",
		"    tokens: 5000000000",
		"    gas: 1000000",
	}, "\n")

	genesis, err := Parse([]byte(raw))
	if err != nil {
		test.Fatalf("parse: %v", err)
	}
	if genesis.Admin.String() != adminAddress {
		test.Fatalf("unexpected admin %s", genesis.Admin)
	}
	if genesis.TreasuryBalance != 500*economy.Amount(economy.TokenScale) {
		test.Fatalf("unexpected treasury balance %d", genesis.TreasuryBalance)
	}
	if genesis.SessionReward != 2*economy.Amount(economy.TokenScale) || genesis.DailySessionLimit != 12 {
		test.Fatalf("unexpected reward settings %d %d", genesis.SessionReward, genesis.DailySessionLimit)
	}
	if genesis.DailyCap != economy.DefaultDailyCap {
		test.Fatalf("expected default daily cap, got %d", genesis.DailyCap)
	}
	if genesis.FoodPrices[1] != 7 {
		test.Fatalf("expected overridden kibble price, got %d", genesis.FoodPrices[1])
	}
	if genesis.FoodPrices[2] != 2*economy.Amount(economy.TokenScale) {
		test.Fatalf("expected default fish price, got %d", genesis.FoodPrices[2])
	}
	if genesis.SpeciesPrices[4] != 40*economy.Amount(economy.TokenScale) {
		test.Fatalf("expected added species price, got %d", genesis.SpeciesPrices[4])
	}
	if len(genesis.Allocations) != 1 || genesis.Allocations[0].Address.String() != userAddress || genesis.Allocations[0].Gas != 1_000_000 {
		test.Fatalf("unexpected allocations %+v", genesis.Allocations)
	}
}

func TestParseRejectsInvalidDocuments(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		raw      string
		expected error
	}{
		{name: "missing admin", raw: "treasury_balance: 1", expected: ErrInvalidDocument},
		{name: "unknown key", raw: "admin: \"" + adminAddress + "\"\nfaucet: 3", expected: ErrInvalidDocument},
		{name: "unknown item", raw: "admin: \"" + adminAddress + "\"\nfood_prices:\n  11: 5", expected: ErrInvalidDocument},
		{name: "zero price", raw: "admin: \"" + adminAddress + "\"\ntoy_prices:\n  6: 0", expected: ErrInvalidDocument},
		{name: "toy listed as food", raw: "admin: \"" + adminAddress + "\"\nfood_prices:\n  7: 5", expected: economy.ErrInvalidGenesis},
		{name: "bad allocation", raw: "admin: \"" + adminAddress + "\"\nallocations:\n  - address: nope", expected: ErrInvalidDocument},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if _, err := Parse([]byte(testCase.raw)); !errors.Is(err, testCase.expected) {
				test.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestLoadReadsFile(test *testing.T) {
	test.Parallel()
	path := filepath.Join(test.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte("admin: \""+adminAddress+"\"\n"), 0o600); err != nil {
		test.Fatalf("write: %v", err)
	}
	genesis, err := Load(path)
	if err != nil {
		test.Fatalf("load: %v", err)
	}
	if genesis.SessionReward != economy.DefaultSessionReward {
		test.Fatalf("expected default session reward, got %d", genesis.SessionReward)
	}
	if _, err := Load(filepath.Join(test.TempDir(), "missing.yaml")); err == nil {
		test.Fatalf("expected missing file to fail")
	}
}
