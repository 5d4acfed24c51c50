// Package pgstore prepares the PostgreSQL schema used by gormstore.
//
// SQLite databases are migrated by GORM; PostgreSQL gets explicit DDL with
// CHECK constraints that keep balances and stats inside their domains even
// if a faulty writer bypasses the service.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errorOperationStore     = "store"
	errorSubjectSchema      = "schema"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeConnect        = "connect"
	errorCodeMigrate        = "migrate"
	errorCodeVersion        = "version"

	// SchemaVersion is recorded in schema_migrations after a successful Migrate.
	SchemaVersion = 1

	pgUndefinedTableCode = "42P01"

	sqlCreateMigrations = `
		create table if not exists schema_migrations (
			version integer primary key,
			applied_at timestamptz not null default now()
		)
	`

	sqlSelectSchemaVersion = `select coalesce(max(version), 0) from schema_migrations`

	sqlRecordSchemaVersion = `insert into schema_migrations(version) values ($1) on conflict (version) do nothing`
)

var schemaStatements = []string{
	`create table if not exists treasury (
		id bigint primary key check (id = 1),
		admin text not null,
		balance bigint not null check (balance >= 0),
		total_paid bigint not null check (total_paid >= 0),
		total_payouts bigint not null check (total_payouts >= 0),
		version bigint not null
	)`,
	`create table if not exists economy_config (
		id bigint primary key check (id = 1),
		admin text not null,
		session_reward bigint not null check (session_reward > 0),
		daily_cap bigint not null check (daily_cap > 0),
		daily_session_limit bigint not null check (daily_session_limit > 0),
		prices jsonb not null,
		version bigint not null
	)`,
	`create table if not exists accounts (
		address text primary key,
		token_balance bigint not null check (token_balance >= 0),
		gas_balance bigint not null check (gas_balance >= 0),
		last_faucet_unix_milli bigint not null default 0,
		version bigint not null
	)`,
	`create table if not exists daily_records (
		address text primary key,
		day bigint not null,
		amount_earned_today bigint not null check (amount_earned_today >= 0),
		sessions_today bigint not null check (sessions_today >= 0),
		version bigint not null
	)`,
	`create table if not exists payouts (
		recipient text not null,
		idempotency_key text not null,
		amount bigint not null check (amount > 0),
		day bigint not null,
		amount_earned_today bigint not null,
		sessions_today bigint not null,
		transaction_digest text not null default '',
		paid_unix_milli bigint not null,
		primary key (recipient, idempotency_key)
	)`,
	`create table if not exists pets (
		id text primary key,
		owner text not null,
		species smallint not null check (species > 0),
		stats jsonb not null,
		created_unix_milli bigint not null,
		version bigint not null
	)`,
	`create index if not exists idx_pets_owner_created on pets(owner, created_unix_milli)`,
	`create table if not exists toys (
		id text primary key,
		owner text not null,
		item_id smallint not null check (item_id between 6 and 10),
		happiness_value smallint not null check (happiness_value between 0 and 100)
	)`,
	`create index if not exists idx_toys_owner on toys(owner)`,
	`create table if not exists transactions (
		digest text primary key,
		sender text not null,
		kind text not null,
		effects jsonb not null,
		executed_unix_milli bigint not null
	)`,
	`create index if not exists idx_transactions_sender on transactions(sender)`,
}

// Open connects a pgx pool and verifies the server is reachable.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, wrapStoreError(errorSubjectSchema, errorCodeConnect, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapStoreError(errorSubjectSchema, errorCodeConnect, err)
	}
	return pool, nil
}

// Migrate applies the schema in one transaction. It is a no-op once SchemaVersion is recorded.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	current, err := CurrentVersion(ctx, pool)
	if err != nil {
		return err
	}
	if current >= SchemaVersion {
		return nil
	}
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := applySchema(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// CurrentVersion returns the recorded schema version, or zero for a fresh database.
func CurrentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var version int
	err := pool.QueryRow(ctx, sqlSelectSchemaVersion).Scan(&version)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTableCode {
		return 0, nil
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectSchema, errorCodeVersion, err)
	}
	return version, nil
}

func applySchema(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, sqlCreateMigrations); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	for index, statement := range schemaStatements {
		if _, err := tx.Exec(ctx, statement); err != nil {
			return wrapStoreError(errorSubjectSchema, errorCodeMigrate, fmt.Errorf("statement %d: %w", index, err))
		}
	}
	if _, err := tx.Exec(ctx, sqlRecordSchemaVersion, SchemaVersion); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return economy.WrapError(errorOperationStore, subject, code, err)
}
