package models

import "time"

// Request lifecycle statuses. A request is created pending; approved and
// rejected are terminal and immutable.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// RechargeRequest is a user deposit awaiting admin review.
type RechargeRequest struct {
	ID            string     `json:"id" db:"id"`
	AccountID     string     `json:"account_id" db:"account_id"`
	Amount        int64      `json:"amount" db:"amount"` // in cents
	ScreenshotRef string     `json:"screenshot_ref" db:"screenshot_ref"`
	Status        string     `json:"status" db:"status"`
	ProcessedBy   *string    `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	AdminNote     *string    `json:"admin_note,omitempty" db:"admin_note"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// WithdrawalRequest is a cash-out request. The amount is reserved out of
// the account's withdrawable balance at creation time.
type WithdrawalRequest struct {
	ID          string     `json:"id" db:"id"`
	AccountID   string     `json:"account_id" db:"account_id"`
	Amount      int64      `json:"amount" db:"amount"` // in cents
	BankDetails string     `json:"bank_details" db:"bank_details"`
	Status      string     `json:"status" db:"status"`
	ProcessedBy *string    `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	AdminNote   *string    `json:"admin_note,omitempty" db:"admin_note"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
