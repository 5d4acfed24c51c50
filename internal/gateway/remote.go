package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	economyv1 "github.com/MarkoPoloResearchLab/focusledger/api/economy/v1"
	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Remote talks to a ledger node over gRPC and signs with a local key.
type Remote struct {
	ledger  economyv1.EconomyServiceClient
	signer  *signer.Signer
	options options

	networkMutex sync.Mutex
	network      string
}

// NewRemote builds a gateway over an established client connection.
func NewRemote(conn grpc.ClientConnInterface, walletSigner *signer.Signer, opts ...Option) *Remote {
	return &Remote{
		ledger:  economyv1.NewEconomyServiceClient(conn),
		signer:  walletSigner,
		options: resolveOptions(opts),
	}
}

func (remote *Remote) Connect(ctx context.Context) (economy.Address, error) {
	if _, err := remote.Network(ctx); err != nil {
		return economy.Address{}, err
	}
	return remote.signer.Address(), nil
}

func (remote *Remote) Account(ctx context.Context) (economy.Account, error) {
	response, err := remote.ledger.GetAccount(ctx, &economyv1.GetAccountRequest{Address: remote.signer.Address().String()})
	if err != nil {
		return economy.Account{}, mapStatusError(err)
	}
	return response.Account, nil
}

// Network returns the network the node reports; it is fetched once per gateway.
func (remote *Remote) Network(ctx context.Context) (string, error) {
	remote.networkMutex.Lock()
	defer remote.networkMutex.Unlock()
	if remote.network != "" {
		return remote.network, nil
	}
	response, err := remote.ledger.GetNetwork(ctx, &economyv1.GetNetworkRequest{})
	if err != nil {
		return "", mapStatusError(err)
	}
	remote.network = response.Network
	return remote.network, nil
}

func (remote *Remote) SignAndSubmit(ctx context.Context, call economy.Call, gasBudget uint64) (string, error) {
	network, err := remote.Network(ctx)
	if err != nil {
		return "", err
	}
	envelope, err := remote.signer.Sign(ctx, call, network, gasBudget)
	if err != nil {
		return "", err
	}
	if _, err := remote.ledger.Submit(ctx, &economyv1.SubmitRequest{Token: envelope.Token}); err != nil {
		switch status.Code(err) {
		case codes.DeadlineExceeded, codes.Canceled:
			return envelope.Digest, fmt.Errorf("%w: %v", client.ErrOutcomeUnknown, err)
		}
		return envelope.Digest, mapStatusError(err)
	}
	return envelope.Digest, nil
}

func (remote *Remote) Treasury(ctx context.Context) (economy.Treasury, error) {
	response, err := remote.ledger.GetTreasury(ctx, &economyv1.GetTreasuryRequest{})
	if err != nil {
		return economy.Treasury{}, mapStatusError(err)
	}
	return response.Treasury, nil
}

func (remote *Remote) EconomyConfig(ctx context.Context) (economy.EconomyConfig, error) {
	response, err := remote.ledger.GetEconomyConfig(ctx, &economyv1.GetEconomyConfigRequest{})
	if err != nil {
		return economy.EconomyConfig{}, mapStatusError(err)
	}
	return response.Config, nil
}

func (remote *Remote) WaitForTransaction(ctx context.Context, digest string) (economy.TransactionRecord, error) {
	return waitForTransaction(ctx, remote.options.pollInterval, digest, remote.transaction)
}

func (remote *Remote) transaction(ctx context.Context, digest string) (economy.TransactionRecord, error) {
	response, err := remote.ledger.GetTransaction(ctx, &economyv1.GetTransactionRequest{Digest: digest})
	if err != nil {
		return economy.TransactionRecord{}, mapStatusError(err)
	}
	return response.Transaction, nil
}

func (remote *Remote) Payout(ctx context.Context, recipient economy.Address, idempotencyKey string) (economy.Payout, error) {
	response, err := remote.ledger.GetPayout(ctx, &economyv1.GetPayoutRequest{Address: recipient.String(), IdempotencyKey: idempotencyKey})
	if err != nil {
		return economy.Payout{}, mapStatusError(err)
	}
	return response.Payout, nil
}

func (remote *Remote) Pet(ctx context.Context, petID economy.ObjectID) (economy.PetRecord, error) {
	response, err := remote.ledger.GetPet(ctx, &economyv1.GetPetRequest{PetID: petID.String()})
	if err != nil {
		return economy.PetRecord{}, mapStatusError(err)
	}
	return response.Pet, nil
}

func (remote *Remote) Pets(ctx context.Context, owner economy.Address) ([]economy.PetRecord, error) {
	response, err := remote.ledger.ListPets(ctx, &economyv1.ListPetsRequest{Owner: owner.String()})
	if err != nil {
		return nil, mapStatusError(err)
	}
	return response.Pets, nil
}

func (remote *Remote) Toys(ctx context.Context, owner economy.Address) ([]economy.Toy, error) {
	response, err := remote.ledger.ListToys(ctx, &economyv1.ListToysRequest{Owner: owner.String()})
	if err != nil {
		return nil, mapStatusError(err)
	}
	return response.Toys, nil
}

func (remote *Remote) RequestGas(ctx context.Context, address economy.Address) (economy.Account, error) {
	response, err := remote.ledger.RequestGas(ctx, &economyv1.RequestGasRequest{Address: address.String()})
	if err != nil {
		return economy.Account{}, mapStatusError(err)
	}
	return response.Account, nil
}

// mapStatusError turns a gRPC status back into the sentinel the node mapped it from.
func mapStatusError(source error) error {
	statusValue, ok := status.FromError(source)
	if !ok {
		return source
	}
	info := findErrorInfo(statusValue)
	if info != nil {
		if violation, ok := ruleViolation(info); ok {
			return violation
		}
		switch info.Reason {
		case economyv1.ReasonInvalidEnvelope:
			return fmt.Errorf("%w: %s", signer.ErrInvalidEnvelope, statusValue.Message())
		case economyv1.ReasonRateLimited:
			return fmt.Errorf("%w: rate limited, retry after %sms", client.ErrUnavailable, info.Metadata[economyv1.MetadataRetryAfter])
		}
		if sentinel := economyv1.ErrorForReason(info.Reason); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, statusValue.Message())
		}
	}
	switch statusValue.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", client.ErrUnavailable, statusValue.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, statusValue.Message())
	}
	return errors.New(statusValue.Message())
}

func findErrorInfo(statusValue *status.Status) *errdetails.ErrorInfo {
	for _, detail := range statusValue.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == economyv1.ErrorDomain {
			return info
		}
	}
	return nil
}

func ruleViolation(info *errdetails.ErrorInfo) (*economy.RuleViolation, bool) {
	rule := economy.Rule(info.Metadata[economyv1.MetadataRule])
	if rule == "" || string(rule) != info.Reason {
		return nil, false
	}
	if _, known := economyv1.RuleError(rule); !known {
		return nil, false
	}
	return &economy.RuleViolation{
		Rule:      rule,
		Limit:     parseMetadataUint(info.Metadata[economyv1.MetadataLimit]),
		Used:      parseMetadataUint(info.Metadata[economyv1.MetadataUsed]),
		Remaining: parseMetadataUint(info.Metadata[economyv1.MetadataRemaining]),
	}, true
}

func parseMetadataUint(raw string) uint64 {
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
