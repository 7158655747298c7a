package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// LedgerService owns all account balance state. Every balance mutation in
// the system funnels through ApplyTx, which updates the account row and
// appends the transaction log entry as one atomic unit inside the caller's
// database transaction. No other component writes balances.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Mutation describes a single atomic balance change. BalanceDelta is
// signed and becomes the transaction log amount. WithdrawableDelta moves
// the withdrawable portion; EarningsDelta must be >= 0 because lifetime
// earnings are monotonic.
type Mutation struct {
	BalanceDelta      int64
	WithdrawableDelta int64
	EarningsDelta     int64
	Type              string
	Reference         string
}

// ApplyTx locks the account row, validates the invariants and applies the
// mutation plus the ledger append. Returns the new spendable balance.
// The caller owns commit/rollback.
func (s *LedgerService) ApplyTx(tx *sql.Tx, accountID string, m Mutation) (int64, error) {
	if m.EarningsDelta < 0 {
		return 0, fmt.Errorf("ledger: negative earnings delta for account %s", accountID)
	}

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}

	newBalance := account.Balance + m.BalanceDelta
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	newWithdrawable := account.WithdrawableBalance + m.WithdrawableDelta
	if newWithdrawable < 0 {
		newWithdrawable = 0
	}
	// Debits can drop balance below the withdrawable portion; clamp so the
	// withdrawable <= balance invariant holds after every mutation.
	if newWithdrawable > newBalance {
		newWithdrawable = newBalance
	}

	if err := s.appendTransaction(tx, accountID, m); err != nil {
		return 0, err
	}

	if err := s.updateAccount(tx, accountID, newBalance, newWithdrawable, account.TotalEarnings+m.EarningsDelta, account.Version); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// Apply runs ApplyTx in its own transaction for callers that have no
// surrounding unit of work.
func (s *LedgerService) Apply(accountID string, m Mutation) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	newBalance, err := s.ApplyTx(tx, accountID, m)
	if err != nil {
		return 0, err
	}

	return newBalance, tx.Commit()
}

// ReserveWithdrawableTx removes amount from the withdrawable balance as a
// single conditional update. Zero rows affected means the funds are not
// there, which closes the race between two concurrent withdrawal requests.
func (s *LedgerService) ReserveWithdrawableTx(tx *sql.Tx, accountID string, amount int64) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET withdrawable_balance = withdrawable_balance - $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND withdrawable_balance >= $1`,
		amount, time.Now(), accountID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// ReleaseWithdrawableTx returns a previously reserved amount, capped at
// the current balance so the invariant survives intervening debits.
func (s *LedgerService) ReleaseWithdrawableTx(tx *sql.Tx, accountID string, amount int64) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET withdrawable_balance = LEAST(withdrawable_balance + $1, balance), version = version + 1, updated_at = $2
		WHERE id = $3`,
		amount, time.Now(), accountID)
	return err
}

// GetAccount is a point-in-time read.
func (s *LedgerService) GetAccount(accountID string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, balance, withdrawable_balance, total_earnings, kyc_status, referral_code, referred_by, role, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`, accountID).Scan(
		&account.ID, &account.Balance, &account.WithdrawableBalance, &account.TotalEarnings,
		&account.KycStatus, &account.ReferralCode, &account.ReferredBy, &account.Role,
		&account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// SumTransactions returns the signed sum of the account's ledger log. It
// exists for consistency verification, not the hot path: the result must
// always equal the account's balance.
func (s *LedgerService) SumTransactions(accountID string) (int64, error) {
	var sum int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1`,
		accountID).Scan(&sum)
	return sum, err
}

// ListTransactions returns the most recent ledger entries for an account.
func (s *LedgerService) ListTransactions(accountID string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, type, amount, COALESCE(reference, ''), created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (s *LedgerService) lockAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, balance, withdrawable_balance, total_earnings, version
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(
		&account.ID, &account.Balance, &account.WithdrawableBalance, &account.TotalEarnings, &account.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *LedgerService) appendTransaction(tx *sql.Tx, accountID string, m Mutation) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (id, account_id, type, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), accountID, m.Type, m.BalanceDelta, m.Reference, time.Now())
	return err
}

func (s *LedgerService) updateAccount(tx *sql.Tx, accountID string, balance, withdrawable, totalEarnings int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, withdrawable_balance = $2, total_earnings = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		balance, withdrawable, totalEarnings, time.Now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}
	return nil
}
