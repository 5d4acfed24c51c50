// Package memstore implements economy.Store in process memory.
//
// One mutex serializes every transaction, so check-and-mutate sequences run as
// a single critical section. Each object carries a version counter; saves with
// a stale version fail with economy.ErrStaleObject like the SQL stores do.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

const (
	errorOperationStore     = "store"
	errorSubjectTreasury    = "treasury"
	errorSubjectConfig      = "economy_config"
	errorSubjectAccount     = "account"
	errorSubjectDaily       = "daily_record"
	errorSubjectPayout      = "payout"
	errorSubjectPet         = "pet"
	errorSubjectToy         = "toy"
	errorSubjectTransaction = "transaction"
	errorCodeGet            = "get"
	errorCodeSave           = "save"
	errorCodeDuplicate      = "duplicate"
	errorCodeDelete         = "delete"
)

type payoutKey struct {
	recipient      economy.Address
	idempotencyKey string
}

type data struct {
	treasury     *economy.Treasury
	config       *economy.EconomyConfig
	accounts     map[economy.Address]economy.Account
	dailyRecords map[economy.Address]economy.DailyEarningRecord
	payouts      map[payoutKey]economy.Payout
	pets         map[economy.ObjectID]economy.PetRecord
	toys         map[economy.ObjectID]economy.Toy
	transactions map[string]economy.TransactionRecord
}

type transaction struct {
	undo []func()
}

// Store implements economy.Store over in-memory maps.
type Store struct {
	mu   *sync.Mutex
	data *data
	tx   *transaction
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &data{
			accounts:     map[economy.Address]economy.Account{},
			dailyRecords: map[economy.Address]economy.DailyEarningRecord{},
			payouts:      map[payoutKey]economy.Payout{},
			pets:         map[economy.ObjectID]economy.PetRecord{},
			toys:         map[economy.ObjectID]economy.Toy{},
			transactions: map[string]economy.TransactionRecord{},
		},
	}
}

// WithTx executes fn while holding the store lock. Writes are rolled back when fn fails.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore economy.Store) error) error {
	if store.tx != nil {
		return fn(ctx, store)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	txStore := &Store{mu: store.mu, data: store.data, tx: &transaction{}}
	if err := fn(ctx, txStore); err != nil {
		for index := len(txStore.tx.undo) - 1; index >= 0; index-- {
			txStore.tx.undo[index]()
		}
		return err
	}
	return nil
}

// lock acquires the mutex for calls made outside a transaction.
func (store *Store) lock() func() {
	if store.tx != nil {
		return func() {}
	}
	store.mu.Lock()
	return store.mu.Unlock
}

func (store *Store) onRollback(undo func()) {
	if store.tx != nil {
		store.tx.undo = append(store.tx.undo, undo)
	}
}

func (store *Store) GetTreasury(ctx context.Context) (economy.Treasury, error) {
	defer store.lock()()
	if store.data.treasury == nil {
		return economy.Treasury{}, wrapStoreError(errorSubjectTreasury, errorCodeGet, economy.ErrObjectNotFound)
	}
	return *store.data.treasury, nil
}

func (store *Store) SaveTreasury(ctx context.Context, treasury economy.Treasury) (economy.Treasury, error) {
	defer store.lock()()
	previous := store.data.treasury
	var storedVersion uint64
	if previous != nil {
		storedVersion = previous.Version
	}
	if err := checkVersion(previous != nil, storedVersion, treasury.Version); err != nil {
		return economy.Treasury{}, wrapStoreError(errorSubjectTreasury, errorCodeSave, err)
	}
	treasury.Version++
	saved := treasury
	store.data.treasury = &saved
	store.onRollback(func() { store.data.treasury = previous })
	return saved, nil
}

func (store *Store) GetEconomyConfig(ctx context.Context) (economy.EconomyConfig, error) {
	defer store.lock()()
	if store.data.config == nil {
		return economy.EconomyConfig{}, wrapStoreError(errorSubjectConfig, errorCodeGet, economy.ErrObjectNotFound)
	}
	return store.data.config.Clone(), nil
}

func (store *Store) SaveEconomyConfig(ctx context.Context, config economy.EconomyConfig) (economy.EconomyConfig, error) {
	defer store.lock()()
	previous := store.data.config
	var storedVersion uint64
	if previous != nil {
		storedVersion = previous.Version
	}
	if err := checkVersion(previous != nil, storedVersion, config.Version); err != nil {
		return economy.EconomyConfig{}, wrapStoreError(errorSubjectConfig, errorCodeSave, err)
	}
	saved := config.Clone()
	saved.Version++
	store.data.config = &saved
	store.onRollback(func() { store.data.config = previous })
	return saved.Clone(), nil
}

func (store *Store) GetAccount(ctx context.Context, address economy.Address) (economy.Account, error) {
	defer store.lock()()
	account, ok := store.data.accounts[address]
	if !ok {
		return economy.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, economy.ErrObjectNotFound)
	}
	return account, nil
}

func (store *Store) SaveAccount(ctx context.Context, account economy.Account) (economy.Account, error) {
	defer store.lock()()
	previous, existed := store.data.accounts[account.Address]
	if err := checkVersion(existed, previous.Version, account.Version); err != nil {
		return economy.Account{}, wrapStoreError(errorSubjectAccount, errorCodeSave, err)
	}
	account.Version++
	store.data.accounts[account.Address] = account
	store.onRollback(func() { restore(store.data.accounts, account.Address, previous, existed) })
	return account, nil
}

func (store *Store) GetDailyRecord(ctx context.Context, address economy.Address) (economy.DailyEarningRecord, error) {
	defer store.lock()()
	record, ok := store.data.dailyRecords[address]
	if !ok {
		return economy.DailyEarningRecord{}, wrapStoreError(errorSubjectDaily, errorCodeGet, economy.ErrObjectNotFound)
	}
	return record, nil
}

func (store *Store) SaveDailyRecord(ctx context.Context, record economy.DailyEarningRecord) (economy.DailyEarningRecord, error) {
	defer store.lock()()
	previous, existed := store.data.dailyRecords[record.Address]
	if err := checkVersion(existed, previous.Version, record.Version); err != nil {
		return economy.DailyEarningRecord{}, wrapStoreError(errorSubjectDaily, errorCodeSave, err)
	}
	record.Version++
	store.data.dailyRecords[record.Address] = record
	store.onRollback(func() { restore(store.data.dailyRecords, record.Address, previous, existed) })
	return record, nil
}

func (store *Store) GetPayout(ctx context.Context, recipient economy.Address, idempotencyKey string) (economy.Payout, error) {
	defer store.lock()()
	payout, ok := store.data.payouts[payoutKey{recipient: recipient, idempotencyKey: idempotencyKey}]
	if !ok {
		return economy.Payout{}, wrapStoreError(errorSubjectPayout, errorCodeGet, economy.ErrObjectNotFound)
	}
	return payout, nil
}

func (store *Store) InsertPayout(ctx context.Context, payout economy.Payout) error {
	defer store.lock()()
	key := payoutKey{recipient: payout.Recipient, idempotencyKey: payout.IdempotencyKey}
	if _, exists := store.data.payouts[key]; exists {
		return wrapStoreError(errorSubjectPayout, errorCodeDuplicate, economy.ErrDuplicateIdempotencyKey)
	}
	store.data.payouts[key] = payout
	store.onRollback(func() { delete(store.data.payouts, key) })
	return nil
}

func (store *Store) GetPet(ctx context.Context, petID economy.ObjectID) (economy.PetRecord, error) {
	defer store.lock()()
	petRecord, ok := store.data.pets[petID]
	if !ok {
		return economy.PetRecord{}, wrapStoreError(errorSubjectPet, errorCodeGet, economy.ErrObjectNotFound)
	}
	return petRecord, nil
}

func (store *Store) SavePet(ctx context.Context, petRecord economy.PetRecord) (economy.PetRecord, error) {
	defer store.lock()()
	previous, existed := store.data.pets[petRecord.ID]
	if err := checkVersion(existed, previous.Version, petRecord.Version); err != nil {
		return economy.PetRecord{}, wrapStoreError(errorSubjectPet, errorCodeSave, err)
	}
	petRecord.Version++
	store.data.pets[petRecord.ID] = petRecord
	store.onRollback(func() { restore(store.data.pets, petRecord.ID, previous, existed) })
	return petRecord, nil
}

func (store *Store) ListPets(ctx context.Context, owner economy.Address) ([]economy.PetRecord, error) {
	defer store.lock()()
	pets := make([]economy.PetRecord, 0)
	for _, petRecord := range store.data.pets {
		if petRecord.Owner == owner {
			pets = append(pets, petRecord)
		}
	}
	sort.Slice(pets, func(left, right int) bool {
		if pets[left].CreatedUnixMilli != pets[right].CreatedUnixMilli {
			return pets[left].CreatedUnixMilli < pets[right].CreatedUnixMilli
		}
		return pets[left].ID < pets[right].ID
	})
	return pets, nil
}

func (store *Store) GetToy(ctx context.Context, toyID economy.ObjectID) (economy.Toy, error) {
	defer store.lock()()
	toy, ok := store.data.toys[toyID]
	if !ok {
		return economy.Toy{}, wrapStoreError(errorSubjectToy, errorCodeGet, economy.ErrObjectNotFound)
	}
	return toy, nil
}

func (store *Store) InsertToy(ctx context.Context, toy economy.Toy) error {
	defer store.lock()()
	if _, exists := store.data.toys[toy.ID]; exists {
		return wrapStoreError(errorSubjectToy, errorCodeDuplicate, fmt.Errorf("%w: toy %s exists", economy.ErrInvalidObjectID, toy.ID))
	}
	store.data.toys[toy.ID] = toy
	store.onRollback(func() { delete(store.data.toys, toy.ID) })
	return nil
}

func (store *Store) DeleteToy(ctx context.Context, toyID economy.ObjectID) error {
	defer store.lock()()
	previous, exists := store.data.toys[toyID]
	if !exists {
		return wrapStoreError(errorSubjectToy, errorCodeDelete, economy.ErrObjectNotFound)
	}
	delete(store.data.toys, toyID)
	store.onRollback(func() { store.data.toys[toyID] = previous })
	return nil
}

func (store *Store) ListToys(ctx context.Context, owner economy.Address) ([]economy.Toy, error) {
	defer store.lock()()
	toys := make([]economy.Toy, 0)
	for _, toy := range store.data.toys {
		if toy.Owner == owner {
			toys = append(toys, toy)
		}
	}
	sort.Slice(toys, func(left, right int) bool { return toys[left].ID < toys[right].ID })
	return toys, nil
}

func (store *Store) GetTransaction(ctx context.Context, digest string) (economy.TransactionRecord, error) {
	defer store.lock()()
	record, ok := store.data.transactions[digest]
	if !ok {
		return economy.TransactionRecord{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, economy.ErrUnknownTransaction)
	}
	return record, nil
}

func (store *Store) InsertTransaction(ctx context.Context, record economy.TransactionRecord) error {
	defer store.lock()()
	if _, exists := store.data.transactions[record.Digest]; exists {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, economy.ErrInvalidSubmission)
	}
	store.data.transactions[record.Digest] = record
	store.onRollback(func() { delete(store.data.transactions, record.Digest) })
	return nil
}

func checkVersion(exists bool, storedVersion uint64, incomingVersion uint64) error {
	if !exists && incomingVersion != 0 {
		return fmt.Errorf("%w: object vanished at version %d", economy.ErrStaleObject, incomingVersion)
	}
	if exists && storedVersion != incomingVersion {
		return fmt.Errorf("%w: stored %d, incoming %d", economy.ErrStaleObject, storedVersion, incomingVersion)
	}
	return nil
}

func restore[K comparable, V any](table map[K]V, key K, previous V, existed bool) {
	if existed {
		table[key] = previous
		return
	}
	delete(table, key)
}

func wrapStoreError(subject string, code string, err error) error {
	return economy.WrapError(errorOperationStore, subject, code, err)
}
