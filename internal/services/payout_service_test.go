package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/wealthbridge/backend/internal/models"
)

func approvedWithdrawal() *models.WithdrawalRequest {
	return &models.WithdrawalRequest{
		ID:          "req1",
		AccountID:   "account1",
		Amount:      12550,
		BankDetails: "GTB 0123456789",
		Status:      models.RequestStatusApproved,
		CreatedAt:   time.Now(),
	}
}

func TestPayoutService_BuildPacs008(t *testing.T) {
	service := NewPayoutService(nil)

	t.Run("builds credit transfer for approved request", func(t *testing.T) {
		doc, err := service.BuildPacs008(approvedWithdrawal())
		assert.NoError(t, err)

		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.InDelta(t, 125.50, doc.GrpHdr.TtlIntrBkSttlmAmt.Value, 0.001)
		assert.Len(t, doc.CdtTrfTxInf, 1)
		assert.Equal(t, "req1", string(doc.CdtTrfTxInf[0].PmtId.EndToEndId))
		assert.InDelta(t, 125.50, doc.CdtTrfTxInf[0].IntrBkSttlmAmt.Value, 0.001)
	})

	t.Run("refuses pending request", func(t *testing.T) {
		req := approvedWithdrawal()
		req.Status = models.RequestStatusPending

		_, err := service.BuildPacs008(req)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not approved")
	})
}

func TestPayoutService_QueuePayout(t *testing.T) {
	t.Run("pushes xml onto the payout queue", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		service := NewPayoutService(client)

		mock.Regexp().ExpectRPush("payout_queue", `(?s).*GrpHdr.*`).SetVal(1)

		err := service.QueuePayout(context.Background(), approvedWithdrawal())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil redis degrades to log only", func(t *testing.T) {
		service := NewPayoutService(nil)

		err := service.QueuePayout(context.Background(), approvedWithdrawal())
		assert.NoError(t, err)
	})
}
