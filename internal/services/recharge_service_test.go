package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/wealthbridge/backend/internal/models"
)

const rechargeSelectPattern = `SELECT id, account_id, amount, screenshot_ref, status, processed_by, processed_at, admin_note, created_at FROM recharge_requests`

func rechargeRows(id, accountID string, amount int64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "amount", "screenshot_ref", "status", "processed_by", "processed_at", "admin_note", "created_at"}).
		AddRow(id, accountID, amount, "receipt.png", status, nil, nil, nil, time.Now())
}

func TestRechargeService_CreateRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRechargeService(db, NewLedgerService(db))

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := service.CreateRequest("account1", 0, "receipt.png")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = service.CreateRequest("account1", -500, "receipt.png")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects unknown account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, withdrawable_balance").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.CreateRequest("ghost", 1000, "receipt.png")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates pending request", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, withdrawable_balance").
			WithArgs("account1").
			WillReturnRows(accountRows("account1", 5000, 0, 0))

		mock.ExpectExec("INSERT INTO recharge_requests").
			WithArgs(sqlmock.AnyArg(), "account1", int64(10000), "receipt.png", models.RequestStatusPending, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		req, err := service.CreateRequest("account1", 10000, "receipt.png")
		assert.NoError(t, err)
		assert.Equal(t, models.RequestStatusPending, req.Status)
		assert.Equal(t, int64(10000), req.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRechargeService_Approve(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRechargeService(db, NewLedgerService(db))

	t.Run("approves pending request and credits balance", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectExec("UPDATE recharge_requests").
			WithArgs(models.RequestStatusApproved, "admin1", sqlmock.AnyArg(), "", "req1", models.RequestStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery(rechargeSelectPattern).
			WithArgs("req1").
			WillReturnRows(rechargeRows("req1", "account1", 10000, models.RequestStatusApproved))

		expectLockAccount(mock, "account1", 5000, 0, 0, 1)

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "account1", models.TxTypeRecharge, int64(10000), "req1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Recharge credits spendable balance only, not withdrawable.
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(15000), int64(0), int64(0), sqlmock.AnyArg(), "account1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		req, err := service.Approve("req1", "admin1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.RequestStatusApproved, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second approval is a no-op", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectExec("UPDATE recharge_requests").
			WithArgs(models.RequestStatusApproved, "admin1", sqlmock.AnyArg(), "", "req1", models.RequestStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// No credit; the current terminal state is returned instead.
		mock.ExpectQuery(rechargeSelectPattern).
			WithArgs("req1").
			WillReturnRows(rechargeRows("req1", "account1", 10000, models.RequestStatusApproved))

		mock.ExpectRollback()

		req, err := service.Approve("req1", "admin1", "")
		assert.NoError(t, err)
		assert.Equal(t, models.RequestStatusApproved, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectExec("UPDATE recharge_requests").
			WithArgs(models.RequestStatusApproved, "admin1", sqlmock.AnyArg(), "", "ghost", models.RequestStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectQuery(rechargeSelectPattern).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectRollback()

		_, err := service.Approve("ghost", "admin1", "")
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRechargeService_Reject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRechargeService(db, NewLedgerService(db))

	t.Run("rejects pending request without ledger effect", func(t *testing.T) {
		mock.ExpectExec("UPDATE recharge_requests").
			WithArgs(models.RequestStatusRejected, "admin1", sqlmock.AnyArg(), "blurry screenshot", "req1", models.RequestStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery(rechargeSelectPattern).
			WithArgs("req1").
			WillReturnRows(rechargeRows("req1", "account1", 10000, models.RequestStatusRejected))

		req, err := service.Reject("req1", "admin1", "blurry screenshot")
		assert.NoError(t, err)
		assert.Equal(t, models.RequestStatusRejected, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejecting an approved request fails", func(t *testing.T) {
		mock.ExpectExec("UPDATE recharge_requests").
			WithArgs(models.RequestStatusRejected, "admin1", sqlmock.AnyArg(), "", "req1", models.RequestStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectQuery(rechargeSelectPattern).
			WithArgs("req1").
			WillReturnRows(rechargeRows("req1", "account1", 10000, models.RequestStatusApproved))

		_, err := service.Reject("req1", "admin1", "")
		assert.ErrorIs(t, err, ErrRequestNotPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
