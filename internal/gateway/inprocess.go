package gateway

import (
	"context"

	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

// InProcess drives an economy.Service in the same process. Envelopes still go
// through signing and verification so both gateways exercise the same path.
type InProcess struct {
	service *economy.Service
	signer  *signer.Signer
	options options
}

// NewInProcess builds a gateway over a local service.
func NewInProcess(service *economy.Service, walletSigner *signer.Signer, opts ...Option) *InProcess {
	return &InProcess{service: service, signer: walletSigner, options: resolveOptions(opts)}
}

func (local *InProcess) Connect(context.Context) (economy.Address, error) {
	return local.signer.Address(), nil
}

func (local *InProcess) Account(ctx context.Context) (economy.Account, error) {
	return local.service.Account(ctx, local.signer.Address())
}

func (local *InProcess) Network(context.Context) (string, error) {
	return local.service.Network(), nil
}

func (local *InProcess) SignAndSubmit(ctx context.Context, call economy.Call, gasBudget uint64) (string, error) {
	envelope, err := local.signer.Sign(ctx, call, local.service.Network(), gasBudget)
	if err != nil {
		return "", err
	}
	submission, err := signer.Verify(envelope.Token)
	if err != nil {
		return envelope.Digest, err
	}
	if _, err := local.service.Submit(ctx, submission); err != nil {
		return envelope.Digest, err
	}
	return envelope.Digest, nil
}

func (local *InProcess) Treasury(ctx context.Context) (economy.Treasury, error) {
	return local.service.Treasury(ctx)
}

func (local *InProcess) EconomyConfig(ctx context.Context) (economy.EconomyConfig, error) {
	return local.service.EconomyConfig(ctx)
}

func (local *InProcess) WaitForTransaction(ctx context.Context, digest string) (economy.TransactionRecord, error) {
	return waitForTransaction(ctx, local.options.pollInterval, digest, local.service.Transaction)
}

func (local *InProcess) Payout(ctx context.Context, recipient economy.Address, idempotencyKey string) (economy.Payout, error) {
	return local.service.Payout(ctx, recipient, idempotencyKey)
}

func (local *InProcess) Pet(ctx context.Context, petID economy.ObjectID) (economy.PetRecord, error) {
	return local.service.Pet(ctx, petID)
}

func (local *InProcess) Pets(ctx context.Context, owner economy.Address) ([]economy.PetRecord, error) {
	return local.service.PetsByOwner(ctx, owner)
}

func (local *InProcess) Toys(ctx context.Context, owner economy.Address) ([]economy.Toy, error) {
	return local.service.ToysByOwner(ctx, owner)
}

func (local *InProcess) RequestGas(ctx context.Context, address economy.Address) (economy.Account, error) {
	return local.service.RequestGas(ctx, address)
}
