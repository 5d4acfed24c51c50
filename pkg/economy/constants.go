package economy

const (
	// TokenScale is the number of smallest units in one reward token.
	TokenScale uint64 = 1_000_000_000
	// DayMillis is the length of one earning day.
	DayMillis int64 = 86_400_000

	DefaultSessionReward     = Amount(TokenScale)
	DefaultDailyCap          = Amount(100 * TokenScale)
	DefaultDailySessionLimit = uint32(100)

	DefaultNetwork                     = "focus-localnet"
	DefaultGasPerCall           uint64 = 1_000_000
	DefaultFaucetAmount         uint64 = 1_000_000_000
	DefaultFaucetCooldownMillis int64  = 60 * 60 * 1000

	// MaxPurchaseQuantity bounds a single consumable purchase.
	MaxPurchaseQuantity uint64 = 100

	operationFundTreasury       = "fund_treasury"
	operationClaimSessionReward = "claim_session_reward"
	operationPurchaseConsumable = "purchase_consumable"
	operationPurchasePetSpecies = "purchase_pet_species"
	operationFeedPet            = "feed_pet"
	operationPetDirectly        = "pet_directly"
	operationPlayWithToy        = "play_with_toy"
	operationTickDecay          = "tick_decay"
	operationTransferPet        = "transfer_pet"
	operationUpdatePrice        = "update_price"
	operationSetSessionReward   = "set_session_reward"
	operationSubmit             = "submit"
	operationRequestGas         = "request_gas"
	operationBootstrap          = "bootstrap"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationService = "service"
	errorSubjectAmount    = "amount"
	errorCodeOverflow     = "overflow"

	addressHexLength = 64
	addressPrefix    = "0x"
)

// BurnAddress receives every purchase payment. No key derives it.
var BurnAddress = Address{value: addressPrefix + "000000000000000000000000000000000000000000000000000000000000dead"}
