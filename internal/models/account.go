package models

import "time"

// Account is the per-user ledger account. Balances are stored in cents.
type Account struct {
	ID                  string    `json:"id" db:"id"`
	Balance             int64     `json:"balance" db:"balance"`
	WithdrawableBalance int64     `json:"withdrawable_balance" db:"withdrawable_balance"`
	TotalEarnings       int64     `json:"total_earnings" db:"total_earnings"`
	KycStatus           string    `json:"kyc_status" db:"kyc_status"`
	ReferralCode        string    `json:"referral_code" db:"referral_code"`
	ReferredBy          *string   `json:"referred_by,omitempty" db:"referred_by"`
	Role                string    `json:"role" db:"role"`
	Version             int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// KYC status values
const (
	KycStatusNone     = "none"
	KycStatusPending  = "pending"
	KycStatusApproved = "approved"
	KycStatusRejected = "rejected"
)

// Transaction is an immutable row in the append-only ledger log.
// Amount is signed: credits positive, debits negative.
type Transaction struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Type      string    `json:"type" db:"type"`
	Amount    int64     `json:"amount" db:"amount"` // in cents
	Reference string    `json:"reference,omitempty" db:"reference"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Transaction types
const (
	TxTypeRecharge           = "recharge"
	TxTypeWithdrawal         = "withdrawal"
	TxTypeProductEarning     = "product_earning"
	TxTypeReferralCommission = "referral_commission"
	TxTypeLuckyDraw          = "lucky_draw"
	TxTypeProductPurchase    = "product_purchase"
)
