package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service contains the ledger program over a Store.
type Service struct {
	store                Store
	nowFn                func() int64
	logger               OperationLogger
	network              string
	gasPerCall           uint64
	faucetAmount         uint64
	faucetCooldownMillis int64
	newObjectID          func() ObjectID
}

// NewService wires a Service. The clock returns Unix milliseconds.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:                store,
		nowFn:                now,
		network:              DefaultNetwork,
		gasPerCall:           DefaultGasPerCall,
		faucetAmount:         DefaultFaucetAmount,
		faucetCooldownMillis: DefaultFaucetCooldownMillis,
		newObjectID:          func() ObjectID { return ObjectID(uuid.NewString()) },
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if strings.TrimSpace(service.network) == "" {
		return nil, fmt.Errorf("%w: network is empty", ErrInvalidServiceConfig)
	}
	if service.gasPerCall == 0 {
		return nil, fmt.Errorf("%w: gas per call must be positive", ErrInvalidServiceConfig)
	}
	if service.newObjectID == nil {
		return nil, fmt.Errorf("%w: object id generator is nil", ErrInvalidServiceConfig)
	}
	return service, nil
}

// Network returns the network name submissions must carry.
func (service *Service) Network() string {
	return service.network
}

// GasPerCall returns the fee charged per executed submission.
func (service *Service) GasPerCall() uint64 {
	return service.gasPerCall
}

// Submit executes a verified submission exactly once per digest. Gas is charged
// in the same transaction as the call; a failing call leaves no trace.
func (service *Service) Submit(ctx context.Context, submission Submission) (TransactionRecord, error) {
	if strings.TrimSpace(submission.Digest) == "" {
		return TransactionRecord{}, fmt.Errorf("%w: digest is empty", ErrInvalidSubmission)
	}
	if submission.Sender.IsZero() {
		return TransactionRecord{}, fmt.Errorf("%w: sender is empty", ErrInvalidSubmission)
	}
	var (
		record   TransactionRecord
		replayed bool
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		existing, err := txStore.GetTransaction(ctx, submission.Digest)
		if err == nil {
			record = existing
			replayed = true
			return nil
		}
		if !errors.Is(err, ErrUnknownTransaction) {
			return err
		}
		if submission.Network != service.network {
			return fmt.Errorf("%w: submitted for %q, ledger is %q", ErrWrongNetwork, submission.Network, service.network)
		}
		if submission.GasBudget < service.gasPerCall {
			return fmt.Errorf("%w: budget %d, fee %d", ErrGasBudgetTooLow, submission.GasBudget, service.gasPerCall)
		}
		account, err := loadAccount(ctx, txStore, submission.Sender)
		if err != nil {
			return err
		}
		if account.GasBalance < submission.GasBudget {
			return fmt.Errorf("%w: balance %d, budget %d", ErrInsufficientGas, account.GasBalance, submission.GasBudget)
		}
		account.GasBalance -= service.gasPerCall
		if _, err := txStore.SaveAccount(ctx, account); err != nil {
			return err
		}
		effects, err := service.execute(ctx, txStore, submission.Sender, submission.Call, submission.Digest)
		if err != nil {
			return err
		}
		effects.GasUsed = service.gasPerCall
		record = TransactionRecord{
			Digest:            submission.Digest,
			Sender:            submission.Sender,
			Kind:              submission.Call.Kind,
			Effects:           effects,
			ExecutedUnixMilli: service.nowFn(),
		}
		return txStore.InsertTransaction(ctx, record)
	})
	service.logOperation(ctx, OperationLog{
		Operation:      operationSubmit + ":" + string(submission.Call.Kind),
		Sender:         submission.Sender,
		Digest:         submission.Digest,
		IdempotencyKey: submission.Call.IdempotencyKey,
		Amount:         record.Effects.PaidAmount,
		Replayed:       replayed || record.Effects.Replayed,
		Error:          operationError,
	})
	if operationError != nil {
		return TransactionRecord{}, operationError
	}
	return record, nil
}

// RequestGas credits faucet gas to an address at most once per cooldown.
func (service *Service) RequestGas(ctx context.Context, address Address) (Account, error) {
	if address.IsZero() {
		return Account{}, fmt.Errorf("%w: empty value", ErrInvalidAddress)
	}
	var account Account
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		loaded, err := loadAccount(ctx, txStore, address)
		if err != nil {
			return err
		}
		nowUnixMilli := service.nowFn()
		if loaded.LastFaucetUnixMilli != 0 && nowUnixMilli-loaded.LastFaucetUnixMilli < service.faucetCooldownMillis {
			return fmt.Errorf("%w: retry in %dms", ErrFaucetCooldown, service.faucetCooldownMillis-(nowUnixMilli-loaded.LastFaucetUnixMilli))
		}
		loaded.GasBalance += service.faucetAmount
		loaded.LastFaucetUnixMilli = nowUnixMilli
		saved, err := txStore.SaveAccount(ctx, loaded)
		if err != nil {
			return err
		}
		account = saved
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRequestGas,
		Sender:    address,
		Error:     operationError,
	})
	return account, operationError
}

// Bootstrap creates the treasury, the economy config and the genesis allocations
// that do not exist yet. Running it again is a no-op.
func (service *Service) Bootstrap(ctx context.Context, genesis Genesis) error {
	if err := genesis.Validate(); err != nil {
		return err
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.GetTreasury(ctx); errors.Is(err, ErrObjectNotFound) {
			if _, err := txStore.SaveTreasury(ctx, Treasury{Admin: genesis.Admin, Balance: genesis.TreasuryBalance}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if _, err := txStore.GetEconomyConfig(ctx); errors.Is(err, ErrObjectNotFound) {
			config := EconomyConfig{
				Admin:             genesis.Admin,
				SessionReward:     genesis.SessionReward,
				DailyCap:          genesis.DailyCap,
				DailySessionLimit: genesis.DailySessionLimit,
				FoodPrices:        genesis.FoodPrices,
				ToyPrices:         genesis.ToyPrices,
				SpeciesPrices:     genesis.SpeciesPrices,
			}
			if _, err := txStore.SaveEconomyConfig(ctx, config.Clone()); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		for _, allocation := range genesis.Allocations {
			if _, err := txStore.GetAccount(ctx, allocation.Address); err == nil {
				continue
			} else if !errors.Is(err, ErrObjectNotFound) {
				return err
			}
			account := Account{Address: allocation.Address, TokenBalance: allocation.Tokens, GasBalance: allocation.Gas}
			if _, err := txStore.SaveAccount(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationBootstrap,
		Sender:    genesis.Admin,
		Amount:    genesis.TreasuryBalance,
		Error:     operationError,
	})
	return operationError
}

// Treasury returns the current treasury.
func (service *Service) Treasury(ctx context.Context) (Treasury, error) {
	return service.store.GetTreasury(ctx)
}

// EconomyConfig returns the current economy configuration.
func (service *Service) EconomyConfig(ctx context.Context) (EconomyConfig, error) {
	return service.store.GetEconomyConfig(ctx)
}

// Account returns the balances of an address. Unknown addresses read as empty accounts.
func (service *Service) Account(ctx context.Context, address Address) (Account, error) {
	return loadAccount(ctx, service.store, address)
}

// DailyRecord returns the stored earning record of an address.
func (service *Service) DailyRecord(ctx context.Context, address Address) (DailyEarningRecord, error) {
	return service.store.GetDailyRecord(ctx, address)
}

// Payout returns the payout recorded for a claim key.
func (service *Service) Payout(ctx context.Context, recipient Address, idempotencyKey string) (Payout, error) {
	normalizedKey, err := NormalizeIdempotencyKey(idempotencyKey)
	if err != nil {
		return Payout{}, err
	}
	return service.store.GetPayout(ctx, recipient, normalizedKey)
}

// Transaction returns a confirmed transaction by digest.
func (service *Service) Transaction(ctx context.Context, digest string) (TransactionRecord, error) {
	return service.store.GetTransaction(ctx, digest)
}

// Pet returns one pet.
func (service *Service) Pet(ctx context.Context, petID ObjectID) (PetRecord, error) {
	return service.store.GetPet(ctx, petID)
}

// PetsByOwner lists the pets held by an address.
func (service *Service) PetsByOwner(ctx context.Context, owner Address) ([]PetRecord, error) {
	return service.store.ListPets(ctx, owner)
}

// ToysByOwner lists the toys held by an address.
func (service *Service) ToysByOwner(ctx context.Context, owner Address) ([]Toy, error) {
	return service.store.ListToys(ctx, owner)
}

func (service *Service) run(ctx context.Context, sender Address, call Call) (Effects, error) {
	var effects Effects
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		executed, err := service.execute(ctx, txStore, sender, call, "")
		if err != nil {
			return err
		}
		effects = executed
		return nil
	})
	service.logCall(ctx, sender, call, effects, operationError)
	if operationError != nil {
		return Effects{}, operationError
	}
	return effects, nil
}

func (service *Service) execute(ctx context.Context, txStore Store, sender Address, call Call, digest string) (Effects, error) {
	if sender.IsZero() {
		return Effects{}, fmt.Errorf("%w: sender is empty", ErrInvalidCall)
	}
	nowUnixMilli := service.nowFn()
	switch call.Kind {
	case CallFundTreasury:
		return service.fundTreasury(ctx, txStore, sender, call)
	case CallClaimSessionReward:
		return service.claimSessionReward(ctx, txStore, sender, call, digest, nowUnixMilli)
	case CallPurchaseConsumable:
		return service.purchaseConsumable(ctx, txStore, sender, call)
	case CallPurchasePetSpecies:
		return service.purchasePetSpecies(ctx, txStore, sender, call, nowUnixMilli)
	case CallFeedPet:
		return service.feedPet(ctx, txStore, sender, call, nowUnixMilli)
	case CallPetDirectly:
		return service.petDirectly(ctx, txStore, sender, call, nowUnixMilli)
	case CallPlayWithToy:
		return service.playWithToy(ctx, txStore, sender, call, nowUnixMilli)
	case CallTickDecay:
		return service.tickDecay(ctx, txStore, sender, call, nowUnixMilli)
	case CallTransferPet:
		return service.transferPet(ctx, txStore, sender, call)
	case CallUpdatePrice:
		return service.updatePrice(ctx, txStore, sender, call)
	case CallSetSessionReward:
		return service.setSessionReward(ctx, txStore, sender, call)
	default:
		return Effects{}, fmt.Errorf("%w: %q", ErrUnsupportedCallKind, call.Kind)
	}
}

func (service *Service) logCall(ctx context.Context, sender Address, call Call, effects Effects, operationError error) {
	entry := OperationLog{
		Operation:      string(call.Kind),
		Sender:         sender,
		IdempotencyKey: call.IdempotencyKey,
		Amount:         call.Payment,
		ObjectID:       call.PetID,
		Replayed:       effects.Replayed,
		Error:          operationError,
	}
	if effects.PaidAmount != 0 {
		entry.Amount = effects.PaidAmount
	}
	if effects.Pet != nil {
		entry.ObjectID = effects.Pet.ID
	}
	service.logOperation(ctx, entry)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func loadAccount(ctx context.Context, store Store, address Address) (Account, error) {
	account, err := store.GetAccount(ctx, address)
	if errors.Is(err, ErrObjectNotFound) {
		return Account{Address: address}, nil
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// collectPayment debits payment from the sender and credits the burn sink.
func collectPayment(ctx context.Context, txStore Store, sender Address, payment Amount) error {
	account, err := loadAccount(ctx, txStore, sender)
	if err != nil {
		return err
	}
	if account.TokenBalance < payment {
		return fmt.Errorf("%w: balance %d, payment %d", ErrInsufficientFunds, account.TokenBalance, payment)
	}
	account.TokenBalance -= payment
	if _, err := txStore.SaveAccount(ctx, account); err != nil {
		return err
	}
	burn, err := loadAccount(ctx, txStore, BurnAddress)
	if err != nil {
		return err
	}
	burn.TokenBalance, err = burn.TokenBalance.Add(payment)
	if err != nil {
		return err
	}
	_, err = txStore.SaveAccount(ctx, burn)
	return err
}
