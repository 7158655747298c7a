package models

import "time"

// LuckyDrawReward is an admin-managed reward table entry. Weights are
// relative and need not sum to anything in particular.
type LuckyDrawReward struct {
	ID                string    `json:"id" db:"id"`
	RewardName        string    `json:"reward_name" db:"reward_name"`
	RewardAmount      int64     `json:"reward_amount" db:"reward_amount"` // in cents
	ProbabilityWeight int       `json:"probability_weight" db:"probability_weight"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// LuckyDrawSpin records a completed spin. At most one row exists per
// (account_id, spin_date); the unique constraint is the once-per-day guard.
type LuckyDrawSpin struct {
	ID           string    `json:"id" db:"id"`
	AccountID    string    `json:"account_id" db:"account_id"`
	RewardID     string    `json:"reward_id" db:"reward_id"`
	RewardName   string    `json:"reward_name" db:"reward_name"`
	RewardAmount int64     `json:"reward_amount" db:"reward_amount"`
	SpinDate     time.Time `json:"spin_date" db:"spin_date"` // calendar date
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
