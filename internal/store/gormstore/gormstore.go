package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19
	errorOperationStore     = "store"
	errorSubjectTreasury    = "treasury"
	errorSubjectConfig      = "economy_config"
	errorSubjectAccount     = "account"
	errorSubjectDaily       = "daily_record"
	errorSubjectPayout      = "payout"
	errorSubjectPet         = "pet"
	errorSubjectToy         = "toy"
	errorSubjectTransaction = "transaction"
	errorCodeCreate         = "create"
	errorCodeDelete         = "delete"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeUpdate         = "update"
)

// Store implements economy.Store using GORM.
//
// Reads inside a transaction take row locks (ignored by SQLite, which
// serializes writers), and every save is a compare-and-set on the version column.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore economy.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetTreasury(ctx context.Context) (economy.Treasury, error) {
	var row Treasury
	if err := store.lockedQuery(ctx).Where("id = ?", singletonRowID).Take(&row).Error; err != nil {
		return economy.Treasury{}, wrapLookupError(errorSubjectTreasury, err, economy.ErrObjectNotFound)
	}
	admin, err := parseOptionalAddress(row.Admin)
	if err != nil {
		return economy.Treasury{}, wrapStoreError(errorSubjectTreasury, errorCodeInvalid, err)
	}
	return economy.Treasury{
		Balance:      economy.Amount(row.Balance),
		Admin:        admin,
		TotalPaid:    economy.Amount(row.TotalPaid),
		TotalPayouts: row.TotalPayouts,
		Version:      row.Version,
	}, nil
}

func (store *Store) SaveTreasury(ctx context.Context, treasury economy.Treasury) (economy.Treasury, error) {
	row := Treasury{
		ID:           singletonRowID,
		Admin:        treasury.Admin.String(),
		Balance:      treasury.Balance.Uint64(),
		TotalPaid:    treasury.TotalPaid.Uint64(),
		TotalPayouts: treasury.TotalPayouts,
		Version:      treasury.Version + 1,
	}
	updates := map[string]any{
		"admin":         row.Admin,
		"balance":       row.Balance,
		"total_paid":    row.TotalPaid,
		"total_payouts": row.TotalPayouts,
	}
	if err := store.saveVersioned(ctx, &row, "id = ?", singletonRowID, treasury.Version, updates); err != nil {
		return economy.Treasury{}, wrapStoreError(errorSubjectTreasury, saveErrorCode(treasury.Version), err)
	}
	treasury.Version = row.Version
	return treasury, nil
}

func (store *Store) GetEconomyConfig(ctx context.Context) (economy.EconomyConfig, error) {
	var row EconomyConfig
	if err := store.lockedQuery(ctx).Where("id = ?", singletonRowID).Take(&row).Error; err != nil {
		return economy.EconomyConfig{}, wrapLookupError(errorSubjectConfig, err, economy.ErrObjectNotFound)
	}
	admin, err := parseOptionalAddress(row.Admin)
	if err != nil {
		return economy.EconomyConfig{}, wrapStoreError(errorSubjectConfig, errorCodeInvalid, err)
	}
	prices := row.Prices.Data()
	config := economy.EconomyConfig{
		Admin:             admin,
		SessionReward:     economy.Amount(row.SessionReward),
		DailyCap:          economy.Amount(row.DailyCap),
		DailySessionLimit: row.DailySessionLimit,
		FoodPrices:        prices.Food,
		ToyPrices:         prices.Toy,
		SpeciesPrices:     prices.Species,
		Version:           row.Version,
	}
	return config.Clone(), nil
}

func (store *Store) SaveEconomyConfig(ctx context.Context, config economy.EconomyConfig) (economy.EconomyConfig, error) {
	prices := datatypes.NewJSONType(PriceTables{Food: config.FoodPrices, Toy: config.ToyPrices, Species: config.SpeciesPrices})
	row := EconomyConfig{
		ID:                singletonRowID,
		Admin:             config.Admin.String(),
		SessionReward:     config.SessionReward.Uint64(),
		DailyCap:          config.DailyCap.Uint64(),
		DailySessionLimit: config.DailySessionLimit,
		Prices:            prices,
		Version:           config.Version + 1,
	}
	updates := map[string]any{
		"admin":               row.Admin,
		"session_reward":      row.SessionReward,
		"daily_cap":           row.DailyCap,
		"daily_session_limit": row.DailySessionLimit,
		"prices":              prices,
	}
	if err := store.saveVersioned(ctx, &row, "id = ?", singletonRowID, config.Version, updates); err != nil {
		return economy.EconomyConfig{}, wrapStoreError(errorSubjectConfig, saveErrorCode(config.Version), err)
	}
	saved := config.Clone()
	saved.Version = row.Version
	return saved, nil
}

func (store *Store) GetAccount(ctx context.Context, address economy.Address) (economy.Account, error) {
	var row Account
	if err := store.lockedQuery(ctx).Where("address = ?", address.String()).Take(&row).Error; err != nil {
		return economy.Account{}, wrapLookupError(errorSubjectAccount, err, economy.ErrObjectNotFound)
	}
	return economy.Account{
		Address:             address,
		TokenBalance:        economy.Amount(row.TokenBalance),
		GasBalance:          row.GasBalance,
		LastFaucetUnixMilli: row.LastFaucetUnixMilli,
		Version:             row.Version,
	}, nil
}

func (store *Store) SaveAccount(ctx context.Context, account economy.Account) (economy.Account, error) {
	row := Account{
		Address:             account.Address.String(),
		TokenBalance:        account.TokenBalance.Uint64(),
		GasBalance:          account.GasBalance,
		LastFaucetUnixMilli: account.LastFaucetUnixMilli,
		Version:             account.Version + 1,
	}
	updates := map[string]any{
		"token_balance":          row.TokenBalance,
		"gas_balance":            row.GasBalance,
		"last_faucet_unix_milli": row.LastFaucetUnixMilli,
	}
	if err := store.saveVersioned(ctx, &row, "address = ?", row.Address, account.Version, updates); err != nil {
		return economy.Account{}, wrapStoreError(errorSubjectAccount, saveErrorCode(account.Version), err)
	}
	account.Version = row.Version
	return account, nil
}

func (store *Store) GetDailyRecord(ctx context.Context, address economy.Address) (economy.DailyEarningRecord, error) {
	var row DailyRecord
	if err := store.lockedQuery(ctx).Where("address = ?", address.String()).Take(&row).Error; err != nil {
		return economy.DailyEarningRecord{}, wrapLookupError(errorSubjectDaily, err, economy.ErrObjectNotFound)
	}
	return economy.DailyEarningRecord{
		Address:           address,
		Day:               economy.Day(row.Day),
		AmountEarnedToday: economy.Amount(row.AmountEarnedToday),
		SessionsToday:     row.SessionsToday,
		Version:           row.Version,
	}, nil
}

func (store *Store) SaveDailyRecord(ctx context.Context, record economy.DailyEarningRecord) (economy.DailyEarningRecord, error) {
	row := DailyRecord{
		Address:           record.Address.String(),
		Day:               uint64(record.Day),
		AmountEarnedToday: record.AmountEarnedToday.Uint64(),
		SessionsToday:     record.SessionsToday,
		Version:           record.Version + 1,
	}
	updates := map[string]any{
		"day":                 row.Day,
		"amount_earned_today": row.AmountEarnedToday,
		"sessions_today":      row.SessionsToday,
	}
	if err := store.saveVersioned(ctx, &row, "address = ?", row.Address, record.Version, updates); err != nil {
		return economy.DailyEarningRecord{}, wrapStoreError(errorSubjectDaily, saveErrorCode(record.Version), err)
	}
	record.Version = row.Version
	return record, nil
}

func (store *Store) GetPayout(ctx context.Context, recipient economy.Address, idempotencyKey string) (economy.Payout, error) {
	var row Payout
	err := store.db.WithContext(ctx).
		Where("recipient = ? AND idempotency_key = ?", recipient.String(), idempotencyKey).
		Take(&row).Error
	if err != nil {
		return economy.Payout{}, wrapLookupError(errorSubjectPayout, err, economy.ErrObjectNotFound)
	}
	return economy.Payout{
		Recipient:         recipient,
		IdempotencyKey:    row.IdempotencyKey,
		Amount:            economy.Amount(row.Amount),
		Day:               economy.Day(row.Day),
		AmountEarnedToday: economy.Amount(row.AmountEarnedToday),
		SessionsToday:     row.SessionsToday,
		TransactionDigest: row.TransactionDigest,
		PaidUnixMilli:     row.PaidUnixMilli,
	}, nil
}

func (store *Store) InsertPayout(ctx context.Context, payout economy.Payout) error {
	row := Payout{
		Recipient:         payout.Recipient.String(),
		IdempotencyKey:    payout.IdempotencyKey,
		Amount:            payout.Amount.Uint64(),
		Day:               uint64(payout.Day),
		AmountEarnedToday: payout.AmountEarnedToday.Uint64(),
		SessionsToday:     payout.SessionsToday,
		TransactionDigest: payout.TransactionDigest,
		PaidUnixMilli:     payout.PaidUnixMilli,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectPayout, errorCodeDuplicate, economy.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayout, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetPet(ctx context.Context, petID economy.ObjectID) (economy.PetRecord, error) {
	var row Pet
	if err := store.lockedQuery(ctx).Where("id = ?", petID.String()).Take(&row).Error; err != nil {
		return economy.PetRecord{}, wrapLookupError(errorSubjectPet, err, economy.ErrObjectNotFound)
	}
	petRecord, err := mapPet(row)
	if err != nil {
		return economy.PetRecord{}, wrapStoreError(errorSubjectPet, errorCodeInvalid, err)
	}
	return petRecord, nil
}

func (store *Store) SavePet(ctx context.Context, petRecord economy.PetRecord) (economy.PetRecord, error) {
	stats := datatypes.NewJSONType(petRecord.Stats)
	row := Pet{
		ID:               petRecord.ID.String(),
		Owner:            petRecord.Owner.String(),
		Species:          uint8(petRecord.Species),
		Stats:            stats,
		CreatedUnixMilli: petRecord.CreatedUnixMilli,
		Version:          petRecord.Version + 1,
	}
	updates := map[string]any{
		"owner": row.Owner,
		"stats": stats,
	}
	if err := store.saveVersioned(ctx, &row, "id = ?", row.ID, petRecord.Version, updates); err != nil {
		return economy.PetRecord{}, wrapStoreError(errorSubjectPet, saveErrorCode(petRecord.Version), err)
	}
	petRecord.Version = row.Version
	return petRecord, nil
}

func (store *Store) ListPets(ctx context.Context, owner economy.Address) ([]economy.PetRecord, error) {
	var rows []Pet
	err := store.db.WithContext(ctx).
		Where("owner = ?", owner.String()).
		Order("created_unix_milli ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPet, errorCodeList, err)
	}
	pets := make([]economy.PetRecord, 0, len(rows))
	for _, row := range rows {
		petRecord, err := mapPet(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectPet, errorCodeInvalid, err)
		}
		pets = append(pets, petRecord)
	}
	return pets, nil
}

func (store *Store) GetToy(ctx context.Context, toyID economy.ObjectID) (economy.Toy, error) {
	var row Toy
	if err := store.lockedQuery(ctx).Where("id = ?", toyID.String()).Take(&row).Error; err != nil {
		return economy.Toy{}, wrapLookupError(errorSubjectToy, err, economy.ErrObjectNotFound)
	}
	toy, err := mapToy(row)
	if err != nil {
		return economy.Toy{}, wrapStoreError(errorSubjectToy, errorCodeInvalid, err)
	}
	return toy, nil
}

func (store *Store) InsertToy(ctx context.Context, toy economy.Toy) error {
	row := Toy{
		ID:             toy.ID.String(),
		Owner:          toy.Owner.String(),
		ItemID:         uint8(toy.ItemID),
		HappinessValue: toy.HappinessValue,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectToy, errorCodeDuplicate, fmt.Errorf("%w: toy %s exists", economy.ErrInvalidObjectID, toy.ID))
	}
	if err != nil {
		return wrapStoreError(errorSubjectToy, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) DeleteToy(ctx context.Context, toyID economy.ObjectID) error {
	result := store.db.WithContext(ctx).Where("id = ?", toyID.String()).Delete(&Toy{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectToy, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectToy, errorCodeDelete, economy.ErrObjectNotFound)
	}
	return nil
}

func (store *Store) ListToys(ctx context.Context, owner economy.Address) ([]economy.Toy, error) {
	var rows []Toy
	if err := store.db.WithContext(ctx).Where("owner = ?", owner.String()).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectToy, errorCodeList, err)
	}
	toys := make([]economy.Toy, 0, len(rows))
	for _, row := range rows {
		toy, err := mapToy(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectToy, errorCodeInvalid, err)
		}
		toys = append(toys, toy)
	}
	return toys, nil
}

func (store *Store) GetTransaction(ctx context.Context, digest string) (economy.TransactionRecord, error) {
	var row Transaction
	if err := store.db.WithContext(ctx).Where("digest = ?", digest).Take(&row).Error; err != nil {
		return economy.TransactionRecord{}, wrapLookupError(errorSubjectTransaction, err, economy.ErrUnknownTransaction)
	}
	sender, err := economy.NewAddress(row.Sender)
	if err != nil {
		return economy.TransactionRecord{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	var effects economy.Effects
	if err := json.Unmarshal(row.Effects, &effects); err != nil {
		return economy.TransactionRecord{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return economy.TransactionRecord{
		Digest:            row.Digest,
		Sender:            sender,
		Kind:              economy.CallKind(row.Kind),
		Effects:           effects,
		ExecutedUnixMilli: row.ExecutedUnixMilli,
	}, nil
}

func (store *Store) InsertTransaction(ctx context.Context, record economy.TransactionRecord) error {
	effects, err := json.Marshal(record.Effects)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	row := Transaction{
		Digest:            record.Digest,
		Sender:            record.Sender.String(),
		Kind:              string(record.Kind),
		Effects:           datatypes.JSON(effects),
		ExecutedUnixMilli: record.ExecutedUnixMilli,
	}
	err = store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, economy.ErrInvalidSubmission)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) lockedQuery(ctx context.Context) *gorm.DB {
	return store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// saveVersioned creates row when expectedVersion is zero and otherwise updates
// the row matching where/key only if its version still equals expectedVersion.
func (store *Store) saveVersioned(ctx context.Context, row any, where string, key any, expectedVersion uint64, updates map[string]any) error {
	db := store.db.WithContext(ctx)
	if expectedVersion == 0 {
		err := db.Create(row).Error
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: object already exists", economy.ErrStaleObject)
		}
		return err
	}
	updates["version"] = expectedVersion + 1
	result := db.Model(row).Where(where, key).Where("version = ?", expectedVersion).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: expected version %d", economy.ErrStaleObject, expectedVersion)
	}
	return nil
}

func saveErrorCode(version uint64) string {
	if version == 0 {
		return errorCodeCreate
	}
	return errorCodeUpdate
}

func mapPet(row Pet) (economy.PetRecord, error) {
	id, err := economy.NewObjectID(row.ID)
	if err != nil {
		return economy.PetRecord{}, err
	}
	owner, err := economy.NewAddress(row.Owner)
	if err != nil {
		return economy.PetRecord{}, err
	}
	species, err := economy.NewSpeciesID(uint64(row.Species))
	if err != nil {
		return economy.PetRecord{}, err
	}
	return economy.PetRecord{
		ID:               id,
		Owner:            owner,
		Species:          species,
		Stats:            row.Stats.Data(),
		CreatedUnixMilli: row.CreatedUnixMilli,
		Version:          row.Version,
	}, nil
}

func mapToy(row Toy) (economy.Toy, error) {
	id, err := economy.NewObjectID(row.ID)
	if err != nil {
		return economy.Toy{}, err
	}
	owner, err := economy.NewAddress(row.Owner)
	if err != nil {
		return economy.Toy{}, err
	}
	itemID, err := economy.NewItemID(uint64(row.ItemID))
	if err != nil {
		return economy.Toy{}, err
	}
	return economy.Toy{ID: id, Owner: owner, ItemID: itemID, HappinessValue: row.HappinessValue}, nil
}

func parseOptionalAddress(raw string) (economy.Address, error) {
	if raw == "" {
		return economy.Address{}, nil
	}
	return economy.NewAddress(raw)
}

func wrapLookupError(subject string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStoreError(subject, errorCodeGet, notFound)
	}
	return wrapStoreError(subject, errorCodeGet, err)
}

func wrapStoreError(subject string, code string, err error) error {
	return economy.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
