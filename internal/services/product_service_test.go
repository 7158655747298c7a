package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/wealthbridge/backend/internal/models"
)

func productRows(id string, price, dailyEarning int64, durationDays int, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "price", "daily_earning", "duration_days", "image_url", "status", "created_at", "updated_at"}).
		AddRow(id, "Starter Plan", price, dailyEarning, durationDays, "", status, now, now)
}

func TestProductService_Purchase(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(db)
	referrals := NewReferralService(db, ledger)
	referrals.PurchaseRate = 10.0
	service := NewProductService(db, ledger, referrals)

	t.Run("purchase with referrer pays 10 percent commission", func(t *testing.T) {
		referrerID := "referrer1"

		mock.ExpectQuery("SELECT id, name, price, daily_earning").
			WithArgs("prod1").
			WillReturnRows(productRows("prod1", 5000, 100, 60, models.ProductStatusActive))

		// Buyer account carries a referrer.
		now := time.Now()
		mock.ExpectQuery("SELECT id, balance, withdrawable_balance").
			WithArgs("buyer1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "balance", "withdrawable_balance", "total_earnings", "kyc_status",
				"referral_code", "referred_by", "role", "version", "created_at", "updated_at",
			}).AddRow("buyer1", 20000, 0, 0, "approved", "BUYER123", referrerID, "user", 1, now, now))

		mock.ExpectBegin()

		// Debit the buyer.
		expectLockAccount(mock, "buyer1", 20000, 0, 0, 1)
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "buyer1", models.TxTypeProductPurchase, int64(-5000), "prod1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(15000), int64(0), int64(0), sqlmock.AnyArg(), "buyer1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO user_products").
			WithArgs(sqlmock.AnyArg(), "buyer1", "prod1", int64(100), 60, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Commission: 10% of 5000 = 500, credited to balance and withdrawable.
		expectLockAccount(mock, referrerID, 1000, 0, 0, 1)
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), referrerID, models.TxTypeReferralCommission, int64(500), "buyer1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(1500), int64(500), int64(0), sqlmock.AnyArg(), referrerID, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE referrals").
			WithArgs(int64(500), referrerID, "buyer1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectCommit()

		up, err := service.Purchase("buyer1", "prod1")
		assert.NoError(t, err)
		assert.Equal(t, "buyer1", up.AccountID)
		assert.Equal(t, int64(100), up.DailyEarning)
		assert.Equal(t, 60, up.DaysRemaining)
		assert.True(t, up.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("purchase without referrer skips commission", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, price, daily_earning").
			WithArgs("prod1").
			WillReturnRows(productRows("prod1", 5000, 100, 60, models.ProductStatusActive))

		mock.ExpectQuery("SELECT id, balance, withdrawable_balance").
			WithArgs("buyer2").
			WillReturnRows(accountRows("buyer2", 20000, 0, 0))

		mock.ExpectBegin()

		expectLockAccount(mock, "buyer2", 20000, 0, 0, 1)
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "buyer2", models.TxTypeProductPurchase, int64(-5000), "prod1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(15000), int64(0), int64(0), sqlmock.AnyArg(), "buyer2", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO user_products").
			WithArgs(sqlmock.AnyArg(), "buyer2", "prod1", int64(100), 60, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		_, err := service.Purchase("buyer2", "prod1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, price, daily_earning").
			WithArgs("prod1").
			WillReturnRows(productRows("prod1", 5000, 100, 60, models.ProductStatusActive))

		mock.ExpectQuery("SELECT id, balance, withdrawable_balance").
			WithArgs("broke1").
			WillReturnRows(accountRows("broke1", 1000, 0, 0))

		mock.ExpectBegin()
		expectLockAccount(mock, "broke1", 1000, 0, 0, 1)
		mock.ExpectRollback()

		_, err := service.Purchase("broke1", "prod1")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive product", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, price, daily_earning").
			WithArgs("prod2").
			WillReturnRows(productRows("prod2", 5000, 100, 60, models.ProductStatusInactive))

		_, err := service.Purchase("buyer1", "prod2")
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductService_AccrueDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(db)
	referrals := NewReferralService(db, ledger)
	referrals.EarningRate = 5.0
	service := NewProductService(db, ledger, referrals)

	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	today := now.Truncate(24 * time.Hour)

	t.Run("credits earning and earning commission", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM user_products").
			WithArgs(today).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("up1"))

		mock.ExpectBegin()

		// Conditional accrual update wins; one day consumed of two left.
		mock.ExpectQuery("UPDATE user_products").
			WithArgs(today, "up1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "product_id", "daily_earning", "days_remaining", "total_earned", "is_active"}).
				AddRow("up1", "owner1", "prod1", 200, 1, 400, true))

		// Earning credit: balance, withdrawable and lifetime earnings.
		expectLockAccount(mock, "owner1", 10000, 1000, 400, 1)
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "owner1", models.TxTypeProductEarning, int64(200), "up1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(10200), int64(1200), int64(600), sqlmock.AnyArg(), "owner1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO daily_earnings").
			WithArgs(sqlmock.AnyArg(), "owner1", "up1", int64(200), today, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Owner has a referrer; 5% of 200 = 10.
		referrerID := "referrer1"
		mock.ExpectQuery("SELECT referred_by FROM accounts").
			WithArgs("owner1").
			WillReturnRows(sqlmock.NewRows([]string{"referred_by"}).AddRow(referrerID))

		expectLockAccount(mock, referrerID, 5000, 0, 0, 1)
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), referrerID, models.TxTypeReferralCommission, int64(10), "owner1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(5010), int64(10), int64(0), sqlmock.AnyArg(), referrerID, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE referrals").
			WithArgs(int64(10), referrerID, "owner1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectCommit()

		credited, err := service.AccrueDaily(context.Background(), now)
		assert.NoError(t, err)
		assert.Equal(t, 1, credited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second run same day is a no-op", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM user_products").
			WithArgs(today).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		credited, err := service.AccrueDaily(context.Background(), now)
		assert.NoError(t, err)
		assert.Equal(t, 0, credited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("final day credits earning and deactivates the product", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM user_products").
			WithArgs(today).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("up2"))

		mock.ExpectBegin()

		// Last remaining day: days_remaining hits zero and is_active flips
		// off, but the day's earning is still credited.
		mock.ExpectQuery("UPDATE user_products").
			WithArgs(today, "up2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "product_id", "daily_earning", "days_remaining", "total_earned", "is_active"}).
				AddRow("up2", "owner2", "prod1", 200, 0, 12000, false))

		expectLockAccount(mock, "owner2", 10000, 1000, 11800, 1)
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "owner2", models.TxTypeProductEarning, int64(200), "up2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(10200), int64(1200), int64(12000), sqlmock.AnyArg(), "owner2", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO daily_earnings").
			WithArgs(sqlmock.AnyArg(), "owner2", "up2", int64(200), today, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// No referrer, so no commission leg.
		mock.ExpectQuery("SELECT referred_by FROM accounts").
			WithArgs("owner2").
			WillReturnRows(sqlmock.NewRows([]string{"referred_by"}).AddRow(nil))

		mock.ExpectCommit()

		credited, err := service.AccrueDaily(context.Background(), now)
		assert.NoError(t, err)
		assert.Equal(t, 1, credited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivated product drops out of the candidate scan", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM user_products").
			WithArgs(today).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		credited, err := service.AccrueDaily(context.Background(), now)
		assert.NoError(t, err)
		assert.Equal(t, 0, credited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost date guard backs off without crediting", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM user_products").
			WithArgs(today).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("up1"))

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE user_products").
			WithArgs(today, "up1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "product_id", "daily_earning", "days_remaining", "total_earned", "is_active"}))
		mock.ExpectRollback()

		credited, err := service.AccrueDaily(context.Background(), now)
		assert.NoError(t, err)
		assert.Equal(t, 0, credited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductService_UpdateProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(db)
	service := NewProductService(db, ledger, NewReferralService(db, ledger))

	t.Run("unknown product", func(t *testing.T) {
		mock.ExpectExec("UPDATE products").
			WithArgs("Starter Plan", int64(5000), int64(100), 60, "", models.ProductStatusActive, sqlmock.AnyArg(), "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.UpdateProduct(&models.Product{
			ID: "ghost", Name: "Starter Plan", Price: 5000, DailyEarning: 100,
			DurationDays: 60, Status: models.ProductStatusActive,
		})
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		err := service.UpdateProduct(&models.Product{ID: "prod1", Price: 0, DailyEarning: 100})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}
