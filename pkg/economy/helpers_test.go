package economy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"testing"
)

const (
	baseNowMillis  int64 = 1_700_000_000_000
	adminSeed            = "admin"
	userSeed             = "user-1"
	otherUserSeed        = "user-2"
	testNetwork          = "focus-testnet"
	testGasPerCall       = uint64(1_000)
)

type testClock struct {
	now int64
}

func (clock *testClock) Now() int64 {
	return clock.now
}

func (clock *testClock) Advance(millis int64) {
	clock.now += millis
}

type stubState struct {
	treasury     *Treasury
	config       *EconomyConfig
	accounts     map[Address]Account
	daily        map[Address]DailyEarningRecord
	payouts      map[string]Payout
	pets         map[ObjectID]PetRecord
	toys         map[ObjectID]Toy
	transactions map[string]TransactionRecord
}

// stubStore is a map-backed Store with snapshot rollback and injectable failures.
type stubStore struct {
	state stubState

	getTreasuryError       error
	saveTreasuryError      error
	getConfigError         error
	saveAccountError       error
	saveDailyError         error
	insertPayoutError      error
	insertTransactionError error
	savePetError           error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{state: stubState{
		accounts:     map[Address]Account{},
		daily:        map[Address]DailyEarningRecord{},
		payouts:      map[string]Payout{},
		pets:         map[ObjectID]PetRecord{},
		toys:         map[ObjectID]Toy{},
		transactions: map[string]TransactionRecord{},
	}}
}

func (store *stubStore) snapshot() stubState {
	copied := stubState{
		accounts:     map[Address]Account{},
		daily:        map[Address]DailyEarningRecord{},
		payouts:      map[string]Payout{},
		pets:         map[ObjectID]PetRecord{},
		toys:         map[ObjectID]Toy{},
		transactions: map[string]TransactionRecord{},
	}
	if store.state.treasury != nil {
		treasury := *store.state.treasury
		copied.treasury = &treasury
	}
	if store.state.config != nil {
		config := store.state.config.Clone()
		copied.config = &config
	}
	for key, value := range store.state.accounts {
		copied.accounts[key] = value
	}
	for key, value := range store.state.daily {
		copied.daily[key] = value
	}
	for key, value := range store.state.payouts {
		copied.payouts[key] = value
	}
	for key, value := range store.state.pets {
		copied.pets[key] = value
	}
	for key, value := range store.state.toys {
		copied.toys[key] = value
	}
	for key, value := range store.state.transactions {
		copied.transactions[key] = value
	}
	return copied
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	saved := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.state = saved
		return err
	}
	return nil
}

func (store *stubStore) GetTreasury(context.Context) (Treasury, error) {
	if store.getTreasuryError != nil {
		return Treasury{}, store.getTreasuryError
	}
	if store.state.treasury == nil {
		return Treasury{}, ErrObjectNotFound
	}
	return *store.state.treasury, nil
}

func (store *stubStore) SaveTreasury(_ context.Context, treasury Treasury) (Treasury, error) {
	if store.saveTreasuryError != nil {
		return Treasury{}, store.saveTreasuryError
	}
	var stored uint64
	if store.state.treasury != nil {
		stored = store.state.treasury.Version
	}
	if err := stubCheckVersion(store.state.treasury != nil, stored, treasury.Version); err != nil {
		return Treasury{}, err
	}
	treasury.Version++
	store.state.treasury = &treasury
	return treasury, nil
}

func (store *stubStore) GetEconomyConfig(context.Context) (EconomyConfig, error) {
	if store.getConfigError != nil {
		return EconomyConfig{}, store.getConfigError
	}
	if store.state.config == nil {
		return EconomyConfig{}, ErrObjectNotFound
	}
	return store.state.config.Clone(), nil
}

func (store *stubStore) SaveEconomyConfig(_ context.Context, config EconomyConfig) (EconomyConfig, error) {
	var stored uint64
	if store.state.config != nil {
		stored = store.state.config.Version
	}
	if err := stubCheckVersion(store.state.config != nil, stored, config.Version); err != nil {
		return EconomyConfig{}, err
	}
	saved := config.Clone()
	saved.Version++
	store.state.config = &saved
	return saved.Clone(), nil
}

func (store *stubStore) GetAccount(_ context.Context, address Address) (Account, error) {
	account, ok := store.state.accounts[address]
	if !ok {
		return Account{}, ErrObjectNotFound
	}
	return account, nil
}

func (store *stubStore) SaveAccount(_ context.Context, account Account) (Account, error) {
	if store.saveAccountError != nil {
		return Account{}, store.saveAccountError
	}
	previous, exists := store.state.accounts[account.Address]
	if err := stubCheckVersion(exists, previous.Version, account.Version); err != nil {
		return Account{}, err
	}
	account.Version++
	store.state.accounts[account.Address] = account
	return account, nil
}

func (store *stubStore) GetDailyRecord(_ context.Context, address Address) (DailyEarningRecord, error) {
	record, ok := store.state.daily[address]
	if !ok {
		return DailyEarningRecord{}, ErrObjectNotFound
	}
	return record, nil
}

func (store *stubStore) SaveDailyRecord(_ context.Context, record DailyEarningRecord) (DailyEarningRecord, error) {
	if store.saveDailyError != nil {
		return DailyEarningRecord{}, store.saveDailyError
	}
	previous, exists := store.state.daily[record.Address]
	if err := stubCheckVersion(exists, previous.Version, record.Version); err != nil {
		return DailyEarningRecord{}, err
	}
	record.Version++
	store.state.daily[record.Address] = record
	return record, nil
}

func (store *stubStore) GetPayout(_ context.Context, recipient Address, idempotencyKey string) (Payout, error) {
	payout, ok := store.state.payouts[recipient.String()+"/"+idempotencyKey]
	if !ok {
		return Payout{}, ErrObjectNotFound
	}
	return payout, nil
}

func (store *stubStore) InsertPayout(_ context.Context, payout Payout) error {
	if store.insertPayoutError != nil {
		return store.insertPayoutError
	}
	key := payout.Recipient.String() + "/" + payout.IdempotencyKey
	if _, exists := store.state.payouts[key]; exists {
		return ErrDuplicateIdempotencyKey
	}
	store.state.payouts[key] = payout
	return nil
}

func (store *stubStore) GetPet(_ context.Context, petID ObjectID) (PetRecord, error) {
	petRecord, ok := store.state.pets[petID]
	if !ok {
		return PetRecord{}, ErrObjectNotFound
	}
	return petRecord, nil
}

func (store *stubStore) SavePet(_ context.Context, petRecord PetRecord) (PetRecord, error) {
	if store.savePetError != nil {
		return PetRecord{}, store.savePetError
	}
	previous, exists := store.state.pets[petRecord.ID]
	if err := stubCheckVersion(exists, previous.Version, petRecord.Version); err != nil {
		return PetRecord{}, err
	}
	petRecord.Version++
	store.state.pets[petRecord.ID] = petRecord
	return petRecord, nil
}

func (store *stubStore) ListPets(_ context.Context, owner Address) ([]PetRecord, error) {
	pets := []PetRecord{}
	for _, petRecord := range store.state.pets {
		if petRecord.Owner == owner {
			pets = append(pets, petRecord)
		}
	}
	sort.Slice(pets, func(left, right int) bool { return pets[left].ID < pets[right].ID })
	return pets, nil
}

func (store *stubStore) GetToy(_ context.Context, toyID ObjectID) (Toy, error) {
	toy, ok := store.state.toys[toyID]
	if !ok {
		return Toy{}, ErrObjectNotFound
	}
	return toy, nil
}

func (store *stubStore) InsertToy(_ context.Context, toy Toy) error {
	store.state.toys[toy.ID] = toy
	return nil
}

func (store *stubStore) DeleteToy(_ context.Context, toyID ObjectID) error {
	if _, ok := store.state.toys[toyID]; !ok {
		return ErrObjectNotFound
	}
	delete(store.state.toys, toyID)
	return nil
}

func (store *stubStore) ListToys(_ context.Context, owner Address) ([]Toy, error) {
	toys := []Toy{}
	for _, toy := range store.state.toys {
		if toy.Owner == owner {
			toys = append(toys, toy)
		}
	}
	sort.Slice(toys, func(left, right int) bool { return toys[left].ID < toys[right].ID })
	return toys, nil
}

func (store *stubStore) GetTransaction(_ context.Context, digest string) (TransactionRecord, error) {
	record, ok := store.state.transactions[digest]
	if !ok {
		return TransactionRecord{}, ErrUnknownTransaction
	}
	return record, nil
}

func (store *stubStore) InsertTransaction(_ context.Context, record TransactionRecord) error {
	if store.insertTransactionError != nil {
		return store.insertTransactionError
	}
	store.state.transactions[record.Digest] = record
	return nil
}

func stubCheckVersion(exists bool, stored uint64, incoming uint64) error {
	if (!exists && incoming != 0) || (exists && stored != incoming) {
		return fmt.Errorf("%w: stored %d, incoming %d", ErrStaleObject, stored, incoming)
	}
	return nil
}

func mustAddress(test *testing.T, seed string) Address {
	test.Helper()
	digest := sha256.Sum256([]byte(seed))
	address, err := NewAddress("0x" + hex.EncodeToString(digest[:]))
	if err != nil {
		test.Fatalf("address: %v", err)
	}
	return address
}

func sequentialObjectIDs() func() ObjectID {
	counter := 0
	return func() ObjectID {
		counter++
		return ObjectID(fmt.Sprintf("object-%03d", counter))
	}
}

type economyFixture struct {
	store   *stubStore
	clock   *testClock
	service *Service
	admin   Address
	user    Address
	other   Address
}

// newEconomyFixture bootstraps the default economy with a funded treasury and funded users.
func newEconomyFixture(test *testing.T, treasuryBalance Amount, options ...ServiceOption) *economyFixture {
	test.Helper()
	store := newStubStore(test)
	clock := &testClock{now: baseNowMillis}
	allOptions := append([]ServiceOption{
		WithNetwork(testNetwork),
		WithGasPerCall(testGasPerCall),
		WithObjectIDGenerator(sequentialObjectIDs()),
	}, options...)
	service, err := NewService(store, clock.Now, allOptions...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	fixture := &economyFixture{
		store:   store,
		clock:   clock,
		service: service,
		admin:   mustAddress(test, adminSeed),
		user:    mustAddress(test, userSeed),
		other:   mustAddress(test, otherUserSeed),
	}
	genesis := DefaultGenesis(fixture.admin)
	genesis.TreasuryBalance = treasuryBalance
	genesis.Allocations = []Allocation{
		{Address: fixture.admin, Tokens: Amount(1_000 * TokenScale), Gas: 1_000_000},
		{Address: fixture.user, Tokens: Amount(100 * TokenScale), Gas: 1_000_000},
		{Address: fixture.other, Tokens: Amount(100 * TokenScale), Gas: 1_000_000},
	}
	if err := service.Bootstrap(context.Background(), genesis); err != nil {
		test.Fatalf("bootstrap failed: %v", err)
	}
	return fixture
}

func (fixture *economyFixture) claim(test *testing.T, key string) (Payout, error) {
	test.Helper()
	return fixture.service.ClaimSessionReward(context.Background(), fixture.user, ClaimRequest{IdempotencyKey: key})
}

func (fixture *economyFixture) account(test *testing.T, address Address) Account {
	test.Helper()
	account, err := fixture.service.Account(context.Background(), address)
	if err != nil {
		test.Fatalf("account lookup failed: %v", err)
	}
	return account
}

func (fixture *economyFixture) treasury(test *testing.T) Treasury {
	test.Helper()
	treasury, err := fixture.service.Treasury(context.Background())
	if err != nil {
		test.Fatalf("treasury lookup failed: %v", err)
	}
	return treasury
}
