package economy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
)

// Amount is a reward-token quantity in the smallest unit.
type Amount uint64

// NewPositiveAmount validates an amount and ensures it is strictly positive.
func NewPositiveAmount(raw uint64) (Amount, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Amount(raw), nil
}

// Uint64 exposes the raw value.
func (amount Amount) Uint64() uint64 {
	return uint64(amount)
}

// Tokens renders the amount as whole tokens with up to nine decimals.
func (amount Amount) Tokens() string {
	whole := uint64(amount) / TokenScale
	fraction := uint64(amount) % TokenScale
	if fraction == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%09d", whole, fraction), "0")
}

// Add returns the checked sum.
func (amount Amount) Add(other Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(amount), uint64(other), 0)
	if carry != 0 {
		return 0, WrapError(errorOperationService, errorSubjectAmount, errorCodeOverflow, ErrArithmeticOverflow)
	}
	return Amount(sum), nil
}

// Mul returns the checked product.
func (amount Amount) Mul(factor uint64) (Amount, error) {
	high, low := bits.Mul64(uint64(amount), factor)
	if high != 0 {
		return 0, WrapError(errorOperationService, errorSubjectAmount, errorCodeOverflow, ErrArithmeticOverflow)
	}
	return Amount(low), nil
}

// Address identifies a ledger account: "0x" followed by 64 lowercase hex digits.
type Address struct {
	value string
}

// NewAddress validates and normalizes an address.
func NewAddress(raw string) (Address, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(normalized, addressPrefix) {
		return Address{}, fmt.Errorf("%w: missing %s prefix", ErrInvalidAddress, addressPrefix)
	}
	digits := strings.TrimPrefix(normalized, addressPrefix)
	if len(digits) != addressHexLength {
		return Address{}, fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalidAddress, addressHexLength, len(digits))
	}
	if _, err := hex.DecodeString(digits); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{value: normalized}, nil
}

// AddressFromPublicKey derives the account address controlled by a public key.
func AddressFromPublicKey(publicKey []byte) Address {
	digest := sha256.Sum256(publicKey)
	return Address{value: addressPrefix + hex.EncodeToString(digest[:])}
}

// String returns the normalized address.
func (address Address) String() string {
	return address.value
}

// IsZero reports whether the address is unset.
func (address Address) IsZero() bool {
	return address.value == ""
}

// MarshalJSON encodes the address as a JSON string.
func (address Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(address.value)
}

// UnmarshalJSON decodes and validates an address. An empty string yields the zero address.
func (address *Address) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if raw == "" {
		*address = Address{}
		return nil
	}
	parsed, err := NewAddress(raw)
	if err != nil {
		return err
	}
	*address = parsed
	return nil
}

// ObjectID identifies an owned ledger object such as a pet or a toy.
type ObjectID string

// NewObjectID validates an object id.
func NewObjectID(raw string) (ObjectID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidObjectID)
	}
	return ObjectID(trimmed), nil
}

// String returns the identifier.
func (id ObjectID) String() string {
	return string(id)
}

// NormalizeIdempotencyKey validates a client-chosen claim key.
func NormalizeIdempotencyKey(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	if len(trimmed) > maxIdempotencyKeyLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidIdempotencyKey, maxIdempotencyKeyLength)
	}
	return trimmed, nil
}

const maxIdempotencyKeyLength = 128

// Day is the earning-day index: floor(unix millis / 86_400_000).
type Day uint64

// DayOf returns the earning day of a Unix-millisecond timestamp.
func DayOf(unixMilli int64) Day {
	if unixMilli <= 0 {
		return 0
	}
	return Day(unixMilli / DayMillis)
}

// Treasury holds the reward-funding balance.
type Treasury struct {
	Balance      Amount  `json:"balance"`
	Admin        Address `json:"admin"`
	TotalPaid    Amount  `json:"totalPaid"`
	TotalPayouts uint64  `json:"totalPayouts"`
	Version      uint64  `json:"version"`
}

// EconomyConfig carries price tables, the session reward and the earning limits.
type EconomyConfig struct {
	Admin             Address              `json:"admin"`
	SessionReward     Amount               `json:"sessionReward"`
	DailyCap          Amount               `json:"dailyCap"`
	DailySessionLimit uint32               `json:"dailySessionLimit"`
	FoodPrices        map[ItemID]Amount    `json:"foodPrices"`
	ToyPrices         map[ItemID]Amount    `json:"toyPrices"`
	SpeciesPrices     map[SpeciesID]Amount `json:"speciesPrices"`
	Version           uint64               `json:"version"`
}

// Clone returns a deep copy of the configuration.
func (config EconomyConfig) Clone() EconomyConfig {
	cloned := config
	cloned.FoodPrices = cloneItemPrices(config.FoodPrices)
	cloned.ToyPrices = cloneItemPrices(config.ToyPrices)
	cloned.SpeciesPrices = make(map[SpeciesID]Amount, len(config.SpeciesPrices))
	for species, price := range config.SpeciesPrices {
		cloned.SpeciesPrices[species] = price
	}
	return cloned
}

// ItemPrice returns the unit price of a food or toy item.
func (config EconomyConfig) ItemPrice(itemID ItemID) (Amount, error) {
	var (
		price Amount
		ok    bool
	)
	switch {
	case itemID.IsFood():
		price, ok = config.FoodPrices[itemID]
	case itemID.IsToy():
		price, ok = config.ToyPrices[itemID]
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidItemID, itemID)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %d is not priced", ErrInvalidItemID, itemID)
	}
	return price, nil
}

// SpeciesPrice returns the mint price of a pet species.
func (config EconomyConfig) SpeciesPrice(speciesID SpeciesID) (Amount, error) {
	price, ok := config.SpeciesPrices[speciesID]
	if !ok {
		return 0, fmt.Errorf("%w: %d is not priced", ErrInvalidSpeciesID, speciesID)
	}
	return price, nil
}

func cloneItemPrices(source map[ItemID]Amount) map[ItemID]Amount {
	cloned := make(map[ItemID]Amount, len(source))
	for itemID, price := range source {
		cloned[itemID] = price
	}
	return cloned
}

// DailyEarningRecord is the single per-user earning counter, overwritten on day rollover.
type DailyEarningRecord struct {
	Address           Address `json:"address"`
	Day               Day     `json:"day"`
	AmountEarnedToday Amount  `json:"amountEarnedToday"`
	SessionsToday     uint32  `json:"sessionsToday"`
	Version           uint64  `json:"version"`
}

// Account holds the token and gas balances of an address.
type Account struct {
	Address             Address `json:"address"`
	TokenBalance        Amount  `json:"tokenBalance"`
	GasBalance          uint64  `json:"gasBalance"`
	LastFaucetUnixMilli int64   `json:"lastFaucetUnixMilli"`
	Version             uint64  `json:"version"`
}

// PetRecord is a minted pet entity.
type PetRecord struct {
	ID               ObjectID  `json:"id"`
	Owner            Address   `json:"owner"`
	Species          SpeciesID `json:"species"`
	Stats            pet.Stats `json:"stats"`
	CreatedUnixMilli int64     `json:"createdUnixMilli"`
	Version          uint64    `json:"version"`
}

// Toy is a minted toy entity, consumed when played with.
type Toy struct {
	ID             ObjectID `json:"id"`
	Owner          Address  `json:"owner"`
	ItemID         ItemID   `json:"itemId"`
	HappinessValue uint8    `json:"happinessValue"`
}

// Payout is the immutable result of one session-reward claim.
type Payout struct {
	Recipient         Address `json:"recipient"`
	IdempotencyKey    string  `json:"idempotencyKey"`
	Amount            Amount  `json:"amount"`
	Day               Day     `json:"day"`
	AmountEarnedToday Amount  `json:"amountEarnedToday"`
	SessionsToday     uint32  `json:"sessionsToday"`
	TransactionDigest string  `json:"transactionDigest"`
	PaidUnixMilli     int64   `json:"paidUnixMilli"`
}

// PriceCategory selects the price table an update applies to.
type PriceCategory string

const (
	PriceCategoryFood    PriceCategory = "food"
	PriceCategoryToy     PriceCategory = "toy"
	PriceCategorySpecies PriceCategory = "species"
)

// CallKind enumerates ledger entry points.
type CallKind string

const (
	CallFundTreasury       CallKind = operationFundTreasury
	CallClaimSessionReward CallKind = operationClaimSessionReward
	CallPurchaseConsumable CallKind = operationPurchaseConsumable
	CallPurchasePetSpecies CallKind = operationPurchasePetSpecies
	CallFeedPet            CallKind = operationFeedPet
	CallPetDirectly        CallKind = operationPetDirectly
	CallPlayWithToy        CallKind = operationPlayWithToy
	CallTickDecay          CallKind = operationTickDecay
	CallTransferPet        CallKind = operationTransferPet
	CallUpdatePrice        CallKind = operationUpdatePrice
	CallSetSessionReward   CallKind = operationSetSessionReward
)

// Call is one ledger entry-point invocation. Only the fields of its Kind are read.
type Call struct {
	Kind            CallKind      `json:"kind"`
	IdempotencyKey  string        `json:"idempotencyKey,omitempty"`
	TreasuryVersion uint64        `json:"treasuryVersion,omitempty"`
	Payment         Amount        `json:"payment,omitempty"`
	ItemID          ItemID        `json:"itemId,omitempty"`
	Quantity        uint64        `json:"quantity,omitempty"`
	SpeciesID       SpeciesID     `json:"speciesId,omitempty"`
	PetID           ObjectID      `json:"petId,omitempty"`
	ToyID           ObjectID      `json:"toyId,omitempty"`
	Recipient       Address       `json:"recipient"`
	PriceCategory   PriceCategory `json:"priceCategory,omitempty"`
	Amount          Amount        `json:"amount,omitempty"`
}

// Submission is a verified, signed call bound to a network and a fee budget.
type Submission struct {
	Digest    string  `json:"digest"`
	Sender    Address `json:"sender"`
	Network   string  `json:"network"`
	GasBudget uint64  `json:"gasBudget"`
	Call      Call    `json:"call"`
}

// Effects describes what an executed call changed.
type Effects struct {
	PaidAmount     Amount         `json:"paidAmount,omitempty"`
	Replayed       bool           `json:"replayed,omitempty"`
	Payout         *Payout        `json:"payout,omitempty"`
	Burned         Amount         `json:"burned,omitempty"`
	Treasury       *Treasury      `json:"treasury,omitempty"`
	Config         *EconomyConfig `json:"config,omitempty"`
	Pet            *PetRecord     `json:"pet,omitempty"`
	Toys           []Toy          `json:"toys,omitempty"`
	CreatedObjects []ObjectID     `json:"createdObjects,omitempty"`
	DeletedObjects []ObjectID     `json:"deletedObjects,omitempty"`
	GasUsed        uint64         `json:"gasUsed,omitempty"`
}

// TransactionRecord is a confirmed submission. Failed submissions leave no record.
type TransactionRecord struct {
	Digest            string   `json:"digest"`
	Sender            Address  `json:"sender"`
	Kind              CallKind `json:"kind"`
	Effects           Effects  `json:"effects"`
	ExecutedUnixMilli int64    `json:"executedUnixMilli"`
}

// Allocation seeds an account at bootstrap.
type Allocation struct {
	Address Address `json:"address"`
	Tokens  Amount  `json:"tokens"`
	Gas     uint64  `json:"gas"`
}

// Genesis is the initial ledger state applied by Bootstrap.
type Genesis struct {
	Admin             Address
	TreasuryBalance   Amount
	SessionReward     Amount
	DailyCap          Amount
	DailySessionLimit uint32
	FoodPrices        map[ItemID]Amount
	ToyPrices         map[ItemID]Amount
	SpeciesPrices     map[SpeciesID]Amount
	Allocations       []Allocation
}

// Validate ensures the genesis can seed a working economy.
func (genesis Genesis) Validate() error {
	if genesis.Admin.IsZero() {
		return fmt.Errorf("%w: admin is required", ErrInvalidGenesis)
	}
	if genesis.SessionReward == 0 {
		return fmt.Errorf("%w: session reward must be positive", ErrInvalidGenesis)
	}
	if genesis.DailyCap == 0 || genesis.DailySessionLimit == 0 {
		return fmt.Errorf("%w: daily limits must be positive", ErrInvalidGenesis)
	}
	for itemID := range genesis.FoodPrices {
		if !itemID.IsFood() {
			return fmt.Errorf("%w: food price for non-food item %d", ErrInvalidGenesis, itemID)
		}
	}
	for itemID := range genesis.ToyPrices {
		if !itemID.IsToy() {
			return fmt.Errorf("%w: toy price for non-toy item %d", ErrInvalidGenesis, itemID)
		}
	}
	for _, allocation := range genesis.Allocations {
		if allocation.Address.IsZero() {
			return fmt.Errorf("%w: allocation without address", ErrInvalidGenesis)
		}
	}
	return nil
}
