package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/wealthbridge/backend/internal/models"
)

// ReferralService credits one-hop referral commissions. Commission rates
// are configuration, never call-site constants; a rate of zero disables
// the corresponding trigger. Commissions never cascade: the credit to the
// referrer is a plain ledger credit, not a commission-bearing event.
type ReferralService struct {
	db           *sql.DB
	ledger       *LedgerService
	PurchaseRate float64 // percent of the purchase price
	EarningRate  float64 // percent of each daily earning
}

func NewReferralService(db *sql.DB, ledger *LedgerService) *ReferralService {
	viper.SetDefault("referral.purchase_rate_pct", 10.0)
	viper.SetDefault("referral.earning_rate_pct", 5.0)

	return &ReferralService{
		db:           db,
		ledger:       ledger,
		PurchaseRate: viper.GetFloat64("referral.purchase_rate_pct"),
		EarningRate:  viper.GetFloat64("referral.earning_rate_pct"),
	}
}

// CreditCommissionTx pays referrerID a commission of ratePct percent of
// baseAmount and bumps the referral row's running total. A nil referrer,
// zero rate or sub-cent commission is a no-op. Runs inside the caller's
// transaction so the commission lands atomically with its trigger event.
//
// The referral relationship is acyclic (referred_by is set once, at
// creation, to an account that already exists), so locking the buyer's
// row before the referrer's cannot deadlock.
func (s *ReferralService) CreditCommissionTx(tx *sql.Tx, referrerID *string, referredID string, baseAmount int64, ratePct float64) error {
	if referrerID == nil || ratePct <= 0 || baseAmount <= 0 {
		return nil
	}

	commission := int64(float64(baseAmount) * ratePct / 100)
	if commission <= 0 {
		return nil
	}

	_, err := s.ledger.ApplyTx(tx, *referrerID, Mutation{
		BalanceDelta:      commission,
		WithdrawableDelta: commission,
		Type:              models.TxTypeReferralCommission,
		Reference:         referredID,
	})
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE referrals
		SET commission_earned = commission_earned + $1
		WHERE referrer_id = $2 AND referred_id = $3`,
		commission, *referrerID, referredID)
	if err != nil {
		return err
	}

	log.Printf("[REFERRAL] Credited commission %d to %s for %s", commission, *referrerID, referredID)
	return nil
}

// CreateReferralTx records the referral relationship at account creation.
func (s *ReferralService) CreateReferralTx(tx *sql.Tx, referrerID, referredID string) error {
	_, err := tx.Exec(`
		INSERT INTO referrals (id, referrer_id, referred_id, commission_earned, created_at)
		VALUES ($1, $2, $3, 0, $4)`,
		uuid.New().String(), referrerID, referredID, time.Now())
	return err
}

// ListReferrals returns the accounts referred by referrerID.
func (s *ReferralService) ListReferrals(referrerID string) ([]models.Referral, error) {
	rows, err := s.db.Query(`
		SELECT id, referrer_id, referred_id, commission_earned, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referrals := []models.Referral{}
	for rows.Next() {
		var ref models.Referral
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.CommissionEarned, &ref.CreatedAt); err != nil {
			return nil, err
		}
		referrals = append(referrals, ref)
	}
	return referrals, rows.Err()
}

// Stats aggregates referral count and lifetime commission for a referrer.
func (s *ReferralService) Stats(referrerID string) (*models.ReferralStats, error) {
	var stats models.ReferralStats
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(commission_earned), 0)
		FROM referrals
		WHERE referrer_id = $1`, referrerID).Scan(&stats.TotalReferrals, &stats.TotalCommission)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListMyReferrals returns the caller's referrals
// @Summary List referrals
// @Description Get accounts referred by the authenticated user
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{referrals=[]models.Referral,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /referrals [get]
func (s *ReferralService) ListMyReferrals(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	referrals, err := s.ListReferrals(userID)
	if err != nil {
		log.Printf("[REFERRAL] Failed to list referrals for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch referrals", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"referrals": referrals,
		"count":     len(referrals),
	})
}

// GetMyReferralStats returns aggregate referral stats
// @Summary Referral stats
// @Description Total referred accounts and lifetime commission for the authenticated user
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ReferralStats
// @Failure 401 {object} ErrorResponse
// @Router /referrals/stats [get]
func (s *ReferralService) GetMyReferralStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	stats, err := s.Stats(userID)
	if err != nil {
		log.Printf("[REFERRAL] Failed to load stats for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch referral stats", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
