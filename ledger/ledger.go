// Package ledger is the value-custody collaborator. All transfers move
// balance between rows of the accounts table inside the caller's
// transaction, so an escrow or payout commits or aborts together with the
// state mutation it belongs to.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// EscrowAccount holds all value staked or escrowed against open bounties.
	EscrowAccount = "escrow"
	// FeeAccount collects platform fees, slashed dispute stakes, and
	// integer-division remainders.
	FeeAccount = "fees"
)

var (
	ErrNoAccount         = errors.New("ledger: account does not exist")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrTransferFailed    = errors.New("ledger: transfer failed")
)

// Ledger is the capability set the engine requires from value custody.
type Ledger interface {
	// Escrow moves amount from the payer's account into escrow custody.
	Escrow(ctx context.Context, tx pgx.Tx, payer string, amount int64) error
	// Payout releases amount from escrow custody to the recipient.
	Payout(ctx context.Context, tx pgx.Tx, recipient string, amount int64) error
	// Transfer moves amount directly between two accounts.
	Transfer(ctx context.Context, tx pgx.Tx, from, to string, amount int64) error
	// BalanceOf reads the current balance of an account.
	BalanceOf(ctx context.Context, account string) (int64, error)
}

// PGLedger implements Ledger against the accounts table.
type PGLedger struct {
	pool *pgxpool.Pool
}

func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

func (l *PGLedger) Escrow(ctx context.Context, tx pgx.Tx, payer string, amount int64) error {
	return l.Transfer(ctx, tx, payer, EscrowAccount, amount)
}

func (l *PGLedger) Payout(ctx context.Context, tx pgx.Tx, recipient string, amount int64) error {
	return l.Transfer(ctx, tx, EscrowAccount, recipient, amount)
}

func (l *PGLedger) Transfer(ctx context.Context, tx pgx.Tx, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("ledger: negative transfer %d: %w", amount, ErrTransferFailed)
	}
	if amount == 0 {
		return nil
	}

	tag, err := tx.Exec(ctx, `
        UPDATE accounts
        SET balance = balance - $2, updated_at = get_tx_timestamp()
        WHERE id = $1 AND balance >= $2
    `, from, amount)
	if err != nil {
		return fmt.Errorf("ledger: debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, from).Scan(&exists); err != nil {
			return fmt.Errorf("ledger: check account %s: %w", from, err)
		}
		if !exists {
			return ErrNoAccount
		}
		return ErrInsufficientFunds
	}

	tag, err = tx.Exec(ctx, `
        UPDATE accounts
        SET balance = balance + $2, updated_at = get_tx_timestamp()
        WHERE id = $1
    `, to, amount)
	if err != nil {
		return fmt.Errorf("ledger: credit %s: %w", to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: credit %s: %w", to, ErrNoAccount)
	}

	return nil
}

func (l *PGLedger) BalanceOf(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoAccount
		}
		return 0, fmt.Errorf("ledger: balance of %s: %w", account, err)
	}
	return balance, nil
}

// CreateAccount inserts a zero-balance account row inside the caller's
// transaction. Used when registering users and engines.
func CreateAccount(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return fmt.Errorf("ledger: create account %s: %w", id, err)
	}
	return nil
}

// Deposit credits externally sourced value to an account. It exists for
// bootstrap and test funding; production deposits arrive through the
// payment edge, not through the engine.
func Deposit(ctx context.Context, tx pgx.Tx, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: non-positive deposit %d: %w", amount, ErrTransferFailed)
	}
	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = get_tx_timestamp() WHERE id = $1`, account, amount)
	if err != nil {
		return fmt.Errorf("ledger: deposit to %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoAccount
	}
	return nil
}
