package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/wealthbridge/backend/internal/services"
)

func newTestScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock, redismock.ClientMock) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()

	ledger := services.NewLedgerService(db)
	products := services.NewProductService(db, ledger, services.NewReferralService(db, ledger))

	return NewScheduler(products, redisClient), dbMock, redisMock
}

func accrualLockKey() string {
	return "accrual_lock:" + time.Now().UTC().Format("2006-01-02")
}

func TestScheduler_RunAccrual(t *testing.T) {
	t.Run("completed run keeps the lock", func(t *testing.T) {
		scheduler, dbMock, redisMock := newTestScheduler(t)

		redisMock.ExpectSetNX(accrualLockKey(), "1", 23*time.Hour).SetVal(true)
		dbMock.ExpectQuery("SELECT id FROM user_products").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		scheduler.runAccrual()

		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("skips when another instance holds the lock", func(t *testing.T) {
		scheduler, dbMock, redisMock := newTestScheduler(t)

		redisMock.ExpectSetNX(accrualLockKey(), "1", 23*time.Hour).SetVal(false)

		scheduler.runAccrual()

		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("failed run releases the lock for a retry", func(t *testing.T) {
		scheduler, dbMock, redisMock := newTestScheduler(t)

		redisMock.ExpectSetNX(accrualLockKey(), "1", 23*time.Hour).SetVal(true)
		dbMock.ExpectQuery("SELECT id FROM user_products").
			WillReturnError(errors.New("connection reset"))
		redisMock.ExpectDel(accrualLockKey()).SetVal(1)

		scheduler.runAccrual()

		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
