package client

import (
	"context"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

// Wallet is the signing capability bound to one account.
type Wallet interface {
	// Connect verifies the ledger endpoint is reachable and returns the wallet address.
	Connect(ctx context.Context) (economy.Address, error)
	// Account returns the wallet's ledger account. Unknown accounts read as empty.
	Account(ctx context.Context) (economy.Account, error)
	// Network returns the network the wallet signs for.
	Network(ctx context.Context) (string, error)
	// SignAndSubmit signs call with an explicit fee budget and dispatches it. The digest is
	// returned whenever the envelope was built, including alongside ErrOutcomeUnknown.
	SignAndSubmit(ctx context.Context, call economy.Call, gasBudget uint64) (string, error)
}

// Ledger is the read side of the ledger plus the gas faucet.
type Ledger interface {
	Treasury(ctx context.Context) (economy.Treasury, error)
	EconomyConfig(ctx context.Context) (economy.EconomyConfig, error)
	// WaitForTransaction blocks until digest is confirmed or ctx ends. An expired wait yields ErrOutcomeUnknown.
	WaitForTransaction(ctx context.Context, digest string) (economy.TransactionRecord, error)
	Payout(ctx context.Context, recipient economy.Address, idempotencyKey string) (economy.Payout, error)
	Pet(ctx context.Context, petID economy.ObjectID) (economy.PetRecord, error)
	Pets(ctx context.Context, owner economy.Address) ([]economy.PetRecord, error)
	Toys(ctx context.Context, owner economy.Address) ([]economy.Toy, error)
	RequestGas(ctx context.Context, address economy.Address) (economy.Account, error)
}

// Gateway bundles both capabilities, as every gateway implementation provides them together.
type Gateway interface {
	Wallet
	Ledger
}
