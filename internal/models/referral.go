package models

import "time"

// Referral links a referred account to its referrer. One row per referred
// account, created when the account registers with a valid referral code.
// CommissionEarned accumulates and never decreases.
type Referral struct {
	ID               string    `json:"id" db:"id"`
	ReferrerID       string    `json:"referrer_id" db:"referrer_id"`
	ReferredID       string    `json:"referred_id" db:"referred_id"`
	CommissionEarned int64     `json:"commission_earned" db:"commission_earned"` // in cents
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// ReferralStats is the aggregate view returned to the referring user.
type ReferralStats struct {
	TotalReferrals  int   `json:"total_referrals"`
	TotalCommission int64 `json:"total_commission"`
}
