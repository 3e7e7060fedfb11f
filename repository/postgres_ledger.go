package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS wallets (
    address    TEXT PRIMARY KEY,
    balance    NUMERIC(38, 18) NOT NULL CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS transactions (
    id         UUID PRIMARY KEY,
    address    TEXT NOT NULL,
    sender     TEXT NOT NULL,
    recipient  TEXT NOT NULL,
    amount     NUMERIC(38, 18) NOT NULL,
    type       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_address_created_at_idx ON transactions (address, created_at DESC);
`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger persists balances and records in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
	pgStore
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db, pgStore: pgStore{q: db}}
}

// EnsureSchema creates the ledger tables if they are missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, postgresSchema)
	return err
}

func (l *PostgresLedger) ListRecords(ctx context.Context, address string) ([]entity.TransactionRecord, error) {
	const query = `
        SELECT id::text, address, sender, recipient, amount::text, type, created_at
        FROM transactions
        WHERE address = $1
        ORDER BY created_at DESC`
	rows, err := l.db.Query(ctx, query, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.TransactionRecord
	for rows.Next() {
		var (
			rec    entity.TransactionRecord
			amount string
			typ    string
		)
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.Sender, &rec.Recipient, &amount, &typ, &rec.Timestamp); err != nil {
			return nil, err
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		rec.Type = entity.RecordType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// WithinTx runs fn inside one database transaction. Balance reads in fn lock the row.
func (l *PostgresLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, pgStore{q: tx, forUpdate: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgStore struct {
	q         querier
	forUpdate bool
}

func (s pgStore) GetBalance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	query := `SELECT balance::text FROM wallets WHERE address = $1`
	if s.forUpdate {
		query += ` FOR UPDATE`
	}
	var balance string
	if err := s.q.QueryRow(ctx, query, address).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse balance of %s: %w", address, err)
	}
	return b, true, nil
}

func (s pgStore) SetBalance(ctx context.Context, address string, amount decimal.Decimal) error {
	_, err := s.q.Exec(ctx, `INSERT INTO wallets (address, balance) VALUES ($1, $2::numeric)
        ON CONFLICT (address) DO UPDATE SET balance = EXCLUDED.balance`, address, amount.String())
	return err
}

func (s pgStore) EnsureAccount(ctx context.Context, address string, initial decimal.Decimal) (bool, error) {
	tag, err := s.q.Exec(ctx, `INSERT INTO wallets (address, balance) VALUES ($1, $2::numeric)
        ON CONFLICT (address) DO NOTHING`, address, initial.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s pgStore) AppendRecord(ctx context.Context, rec entity.TransactionRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx, `INSERT INTO transactions (id, address, sender, recipient, amount, type, created_at)
        VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6, $7)`,
		rec.ID, rec.Address, rec.Sender, rec.Recipient, rec.Amount.String(), string(rec.Type), ts)
	return err
}

var _ domain.Ledger = (*PostgresLedger)(nil)
