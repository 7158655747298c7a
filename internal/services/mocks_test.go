package services

import (
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// accountRows builds the row set returned by GetAccount.
func accountRows(accountID string, balance, withdrawable, earnings int64) *sqlmock.Rows {
	return accountRowsKyc(accountID, balance, withdrawable, earnings, "approved")
}

func accountRowsKyc(accountID string, balance, withdrawable, earnings int64, kycStatus string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "balance", "withdrawable_balance", "total_earnings", "kyc_status",
		"referral_code", "referred_by", "role", "version", "created_at", "updated_at",
	}).AddRow(accountID, balance, withdrawable, earnings, kycStatus, "REFCODE1", nil, "user", 1, now, now)
}
