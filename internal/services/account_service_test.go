package services

import (
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestAccountService_CreateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(db)
	service := NewAccountService(db, ledger, NewReferralService(db, ledger))

	t.Run("without referral code", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("user1", "none", sqlmock.AnyArg(), nil, "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		account, err := service.CreateAccount("user1", "")
		assert.NoError(t, err)
		assert.Equal(t, "user1", account.ID)
		assert.Nil(t, account.ReferredBy)
		assert.Len(t, account.ReferralCode, 8)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with valid referral code links referrer", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id FROM accounts WHERE referral_code").
			WithArgs("FRIEND42").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("referrer1"))

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("user2", "none", sqlmock.AnyArg(), "referrer1", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO referrals").
			WithArgs(sqlmock.AnyArg(), "referrer1", "user2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		account, err := service.CreateAccount("user2", "FRIEND42")
		assert.NoError(t, err)
		assert.NotNil(t, account.ReferredBy)
		assert.Equal(t, "referrer1", *account.ReferredBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown referral code is ignored", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id FROM accounts WHERE referral_code").
			WithArgs("NOSUCH99").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("user3", "none", sqlmock.AnyArg(), nil, "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		account, err := service.CreateAccount("user3", "NOSUCH99")
		assert.NoError(t, err)
		assert.Nil(t, account.ReferredBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := generateReferralCode()
		assert.Len(t, code, 8)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(referralCodeAlphabet, c), "unexpected character %q", c)
		}
		seen[code] = true
	}
	// 100 draws from a 32^8 space colliding would point at broken randomness.
	assert.Greater(t, len(seen), 95)
}
