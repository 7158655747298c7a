package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"
	"github.com/wealthbridge/backend/internal/models"
)

// PayoutService turns approved withdrawals into ISO 20022 pacs.008 credit
// transfer instructions and hands them to the bank integration via a
// redis queue. It runs strictly after the ledger debit has committed; a
// queue failure is logged for operator retry, never rolled back into the
// ledger.
type PayoutService struct {
	redis    *redis.Client
	currency string
	bicfi    string
}

const payoutQueueKey = "payout_queue"

func NewPayoutService(redisClient *redis.Client) *PayoutService {
	viper.SetDefault("payout.currency", "USD")
	viper.SetDefault("payout.bicfi", "WLTHBRDG")

	return &PayoutService{
		redis:    redisClient,
		currency: viper.GetString("payout.currency"),
		bicfi:    viper.GetString("payout.bicfi"),
	}
}

// BuildPacs008 creates the credit transfer message for one approved
// withdrawal. Amounts on the wire are major units.
func (s *PayoutService) BuildPacs008(req *models.WithdrawalRequest) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if req.Status != models.RequestStatusApproved {
		return nil, fmt.Errorf("payout: request %s is %s, not approved", req.ID, req.Status)
	}

	msgID := uuid.New().String()
	now := time.Now()
	amount := float64(req.Amount) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(s.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(req.ID)}[0],
					EndToEndId: common.Max35Text(req.ID),
					TxId:       &[]common.Max35Text{common.Max35Text(req.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(s.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(s.bicfi)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.AccountID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.BankDetails)}[0],
				},
			},
		},
	}

	return doc, nil
}

// QueuePayout serializes the instruction and pushes it onto the payout
// queue. With no redis configured the payout is only logged.
func (s *PayoutService) QueuePayout(ctx context.Context, req *models.WithdrawalRequest) error {
	doc, err := s.BuildPacs008(req)
	if err != nil {
		return err
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal payout message: %w", err)
	}

	if s.redis == nil {
		log.Printf("[PAYOUT] Redis unavailable, payout for %s not queued:\n%s", req.ID, xmlData)
		return nil
	}

	if err := s.redis.RPush(ctx, payoutQueueKey, xmlData).Err(); err != nil {
		return fmt.Errorf("failed to queue payout for %s: %w", req.ID, err)
	}

	log.Printf("[PAYOUT] Queued pacs.008 payout for withdrawal %s, amount %d", req.ID, req.Amount)
	return nil
}
