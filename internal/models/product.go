package models

import "time"

// Product is an admin-managed catalog entry for an income-generating product.
type Product struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Price        int64     `json:"price" db:"price"` // in cents
	DailyEarning int64     `json:"daily_earning" db:"daily_earning"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	ImageURL     string    `json:"image_url,omitempty" db:"image_url"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// UserProduct is an ownership instance created by a purchase. Rows are
// never deleted; IsActive flips off when the duration runs out.
type UserProduct struct {
	ID              string     `json:"id" db:"id"`
	AccountID       string     `json:"account_id" db:"account_id"`
	ProductID       string     `json:"product_id" db:"product_id"`
	DailyEarning    int64      `json:"daily_earning" db:"daily_earning"`
	DaysRemaining   int        `json:"days_remaining" db:"days_remaining"`
	TotalEarned     int64      `json:"total_earned" db:"total_earned"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	LastAccrualDate *time.Time `json:"last_accrual_date,omitempty" db:"last_accrual_date"`
	PurchasedAt     time.Time  `json:"purchased_at" db:"purchased_at"`
}

// DailyEarning is the user-facing accrual history row, one per user product
// per calendar day.
type DailyEarning struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	UserProductID string    `json:"user_product_id" db:"user_product_id"`
	Amount        int64     `json:"amount" db:"amount"`
	EarningDate   time.Time `json:"earning_date" db:"earning_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
