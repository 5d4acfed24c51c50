package gormstore

import (
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/pet"
	"gorm.io/datatypes"
)

const singletonRowID = 1

// Treasury represents the single-row treasury table.
type Treasury struct {
	ID           uint   `gorm:"primaryKey"`
	Admin        string `gorm:"not null"`
	Balance      uint64 `gorm:"not null"`
	TotalPaid    uint64 `gorm:"not null"`
	TotalPayouts uint64 `gorm:"not null"`
	Version      uint64 `gorm:"not null"`
}

func (Treasury) TableName() string { return "treasury" }

// PriceTables is the JSON document stored in economy_config.prices.
type PriceTables struct {
	Food    map[economy.ItemID]economy.Amount    `json:"food"`
	Toy     map[economy.ItemID]economy.Amount    `json:"toy"`
	Species map[economy.SpeciesID]economy.Amount `json:"species"`
}

// EconomyConfig represents the single-row economy_config table.
type EconomyConfig struct {
	ID                uint                            `gorm:"primaryKey"`
	Admin             string                          `gorm:"not null"`
	SessionReward     uint64                          `gorm:"not null"`
	DailyCap          uint64                          `gorm:"not null"`
	DailySessionLimit uint32                          `gorm:"not null"`
	Prices            datatypes.JSONType[PriceTables] `gorm:"not null"`
	Version           uint64                          `gorm:"not null"`
}

func (EconomyConfig) TableName() string { return "economy_config" }

// Account represents the accounts table.
type Account struct {
	Address             string `gorm:"primaryKey"`
	TokenBalance        uint64 `gorm:"not null"`
	GasBalance          uint64 `gorm:"not null"`
	LastFaucetUnixMilli int64  `gorm:"not null"`
	Version             uint64 `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// DailyRecord represents the daily_records table: one row per address, overwritten on rollover.
type DailyRecord struct {
	Address           string `gorm:"primaryKey"`
	Day               uint64 `gorm:"not null"`
	AmountEarnedToday uint64 `gorm:"not null"`
	SessionsToday     uint32 `gorm:"not null"`
	Version           uint64 `gorm:"not null"`
}

func (DailyRecord) TableName() string { return "daily_records" }

// Payout represents the payouts table keyed by recipient and idempotency key.
type Payout struct {
	Recipient         string `gorm:"primaryKey"`
	IdempotencyKey    string `gorm:"primaryKey"`
	Amount            uint64 `gorm:"not null"`
	Day               uint64 `gorm:"not null"`
	AmountEarnedToday uint64 `gorm:"not null"`
	SessionsToday     uint32 `gorm:"not null"`
	TransactionDigest string `gorm:"not null;default:''"`
	PaidUnixMilli     int64  `gorm:"not null"`
}

func (Payout) TableName() string { return "payouts" }

// Pet represents the pets table.
type Pet struct {
	ID               string                        `gorm:"primaryKey"`
	Owner            string                        `gorm:"not null;index:idx_pets_owner_created,priority:1"`
	Species          uint8                         `gorm:"not null"`
	Stats            datatypes.JSONType[pet.Stats] `gorm:"not null"`
	CreatedUnixMilli int64                         `gorm:"not null;index:idx_pets_owner_created,priority:2"`
	Version          uint64                        `gorm:"not null"`
}

func (Pet) TableName() string { return "pets" }

// Toy represents the toys table.
type Toy struct {
	ID             string `gorm:"primaryKey"`
	Owner          string `gorm:"not null;index:idx_toys_owner"`
	ItemID         uint8  `gorm:"not null"`
	HappinessValue uint8  `gorm:"not null"`
}

func (Toy) TableName() string { return "toys" }

// Transaction mirrors the transactions table of executed submissions.
type Transaction struct {
	Digest            string         `gorm:"primaryKey"`
	Sender            string         `gorm:"not null;index:idx_transactions_sender"`
	Kind              string         `gorm:"not null"`
	Effects           datatypes.JSON `gorm:"not null"`
	ExecutedUnixMilli int64          `gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// Models lists every table model, in migration order.
func Models() []any {
	return []any{&Treasury{}, &EconomyConfig{}, &Account{}, &DailyRecord{}, &Payout{}, &Pet{}, &Toy{}, &Transaction{}}
}
