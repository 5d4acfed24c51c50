package economy

import "context"

// Store is the persistence contract used by Service.
//
// Save methods implement optimistic concurrency: the stored version must equal
// the version carried by the record (zero means "create"), otherwise the save
// fails with ErrStaleObject. A successful save returns the record with its
// version incremented. Getters return ErrObjectNotFound for absent objects.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetTreasury(ctx context.Context) (Treasury, error)
	SaveTreasury(ctx context.Context, treasury Treasury) (Treasury, error)

	GetEconomyConfig(ctx context.Context) (EconomyConfig, error)
	SaveEconomyConfig(ctx context.Context, config EconomyConfig) (EconomyConfig, error)

	GetAccount(ctx context.Context, address Address) (Account, error)
	SaveAccount(ctx context.Context, account Account) (Account, error)

	GetDailyRecord(ctx context.Context, address Address) (DailyEarningRecord, error)
	SaveDailyRecord(ctx context.Context, record DailyEarningRecord) (DailyEarningRecord, error)

	GetPayout(ctx context.Context, recipient Address, idempotencyKey string) (Payout, error)
	InsertPayout(ctx context.Context, payout Payout) error

	GetPet(ctx context.Context, petID ObjectID) (PetRecord, error)
	SavePet(ctx context.Context, petRecord PetRecord) (PetRecord, error)
	ListPets(ctx context.Context, owner Address) ([]PetRecord, error)

	GetToy(ctx context.Context, toyID ObjectID) (Toy, error)
	InsertToy(ctx context.Context, toy Toy) error
	DeleteToy(ctx context.Context, toyID ObjectID) error
	ListToys(ctx context.Context, owner Address) ([]Toy, error)

	// GetTransaction returns ErrUnknownTransaction for digests never executed.
	GetTransaction(ctx context.Context, digest string) (TransactionRecord, error)
	InsertTransaction(ctx context.Context, record TransactionRecord) error
}
