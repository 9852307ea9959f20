package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PostgresStore persists wallets and the transaction log in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureWallet guarantees a wallet row exists for the user.
func (s *PostgresStore) EnsureWallet(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (user_id, balance, version, updated_at)
        VALUES ($1, 0, 0, now()) ON CONFLICT (user_id) DO NOTHING`, uid)
	return err
}

// Balance returns the wallet balance in minor currency units.
func (s *PostgresStore) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	return balance, err
}

// AdjustBalance applies delta in a single conditional UPDATE so concurrent
// adjustments to the same wallet serialize on the row instead of racing a
// stale read.
func (s *PostgresStore) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	return adjustBalance(ctx, s.db, userID, delta)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func adjustBalance(ctx context.Context, q execQuerier, userID string, delta int64) (int64, error) {
	const query = `
        UPDATE wallets
        SET balance = balance + $2, version = version + 1, updated_at = now()
        WHERE user_id = $1 AND balance + $2 >= 0
        RETURNING balance`

	var balance int64
	err := q.QueryRow(ctx, query, userID, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// No row updated: either the wallet is missing or the debit would go negative.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrWalletNotFound
	}
	return 0, ErrInsufficientBalance
}

// Reserve debits the wallet and marks the pending transaction as reserved in
// one storage transaction, so the refundability of the row is never ambiguous:
// either both the debit and the marker landed or neither did.
func (s *PostgresStore) Reserve(ctx context.Context, reference, userID string, amount int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `
        UPDATE transactions SET reserved = true, updated_at = now()
        WHERE reference = $1 AND status = 'pending'`, reference)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		_, err := s.pendingConflict(ctx, reference)
		return 0, err
	}

	balance, err := adjustBalance(ctx, tx, userID, -amount)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// RecordTransaction inserts a transaction row; the unique index on reference
// closes the duplicate race window.
func (s *PostgresStore) RecordTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Status == "" {
		txn.Status = StatusPending
	}

	detailsJSON, err := json.Marshal(txn.Details)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode details: %w", err)
	}

	const query = `
        INSERT INTO transactions (id, reference, user_id, type, amount, status, provider, recipient, details, reconcile, reserved, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, false, now(), now())
        RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query, txn.ID, txn.Reference, txn.UserID, txn.Type, txn.Amount,
		txn.Status, txn.Provider, txn.Recipient, detailsJSON).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			existing, lookupErr := s.Transaction(ctx, txn.Reference)
			if lookupErr != nil {
				return Transaction{}, ErrDuplicateReference
			}
			return existing, ErrDuplicateReference
		}
		return Transaction{}, err
	}
	return txn, nil
}

// Transaction fetches a transaction by reference.
func (s *PostgresStore) Transaction(ctx context.Context, reference string) (Transaction, error) {
	row := s.db.QueryRow(ctx, selectTransaction+` WHERE reference = $1`, reference)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, err
}

// UpdateDetails replaces the details of a still-pending transaction.
func (s *PostgresStore) UpdateDetails(ctx context.Context, reference string, details Details) (Transaction, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode details: %w", err)
	}

	row := s.db.QueryRow(ctx, `
        UPDATE transactions SET details = $2, updated_at = now()
        WHERE reference = $1 AND status = 'pending'`+
		returningTransaction, reference, detailsJSON)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.pendingConflict(ctx, reference)
	}
	return txn, err
}

// Settle transitions a pending transaction to a terminal status and applies
// the credit (if any) to the owner's wallet inside one storage transaction.
// The conditional status flip is the idempotency gate: a transaction that is
// already terminal never has the credit re-applied.
func (s *PostgresStore) Settle(ctx context.Context, reference string, status Status, details Details, credit int64) (Transaction, error) {
	if !status.Terminal() {
		return Transaction{}, fmt.Errorf("settle requires a terminal status, got %q", status)
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `
        UPDATE transactions SET status = $2, details = $3, reconcile = false, updated_at = now()
        WHERE reference = $1 AND status = 'pending'`+
		returningTransaction, reference, status, detailsJSON)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.pendingConflict(ctx, reference)
		}
		return Transaction{}, err
	}

	if credit != 0 {
		if _, err := adjustBalance(ctx, tx, txn.UserID, credit); err != nil {
			return Transaction{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// MarkReconcile flags a pending transaction for reconciliation.
func (s *PostgresStore) MarkReconcile(ctx context.Context, reference string, details Details) (Transaction, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode details: %w", err)
	}

	row := s.db.QueryRow(ctx, `
        UPDATE transactions SET reconcile = true, details = $2, updated_at = now()
        WHERE reference = $1 AND status = 'pending'`+
		returningTransaction, reference, detailsJSON)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.pendingConflict(ctx, reference)
	}
	return txn, err
}

// List returns transactions matching the filter, newest first.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Transaction, error) {
	var (
		clauses []string
		args    []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := selectTransaction
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// Unresolved lists pending transactions flagged for reconciliation or stale
// beyond the cutoff, oldest first.
func (s *PostgresStore) Unresolved(ctx context.Context, olderThan time.Duration) ([]Transaction, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.Query(ctx, selectTransaction+`
        WHERE status = 'pending' AND (reconcile = true OR updated_at < $1)
        ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// pendingConflict resolves the ambiguity of a conditional update matching no
// rows: the transaction is either missing or already terminal.
func (s *PostgresStore) pendingConflict(ctx context.Context, reference string) (Transaction, error) {
	txn, err := s.Transaction(ctx, reference)
	if err != nil {
		return Transaction{}, err
	}
	return txn, ErrAlreadySettled
}

const selectTransaction = `
    SELECT id, reference, user_id, type, amount, status, provider, recipient, details, reconcile, reserved, created_at, updated_at
    FROM transactions`

const returningTransaction = `
        RETURNING id, reference, user_id, type, amount, status, provider, recipient, details, reconcile, reserved, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn         Transaction
		id          uuid.UUID
		userID      uuid.UUID
		detailsJSON []byte
	)
	err := row.Scan(&id, &txn.Reference, &userID, &txn.Type, &txn.Amount, &txn.Status,
		&txn.Provider, &txn.Recipient, &detailsJSON, &txn.Reconcile, &txn.Reserved, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	txn.ID = id.String()
	txn.UserID = userID.String()
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &txn.Details); err != nil {
			return Transaction{}, fmt.Errorf("decode details: %w", err)
		}
	}
	txn.CreatedAt = txn.CreatedAt.UTC()
	txn.UpdatedAt = txn.UpdatedAt.UTC()
	return txn, nil
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	out := make([]Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}
