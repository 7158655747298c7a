package models

import "time"

// KycSubmission is an identity submission awaiting admin review. Approval
// flips the account's kyc_status; it never moves money.
type KycSubmission struct {
	ID                string     `json:"id" db:"id"`
	AccountID         string     `json:"account_id" db:"account_id"`
	IDFrontRef        string     `json:"id_front_ref" db:"id_front_ref"`
	IDBackRef         string     `json:"id_back_ref" db:"id_back_ref"`
	BankName          string     `json:"bank_name" db:"bank_name"`
	AccountNumber     string     `json:"account_number" db:"account_number"`
	AccountHolderName string     `json:"account_holder_name" db:"account_holder_name"`
	Status            string     `json:"status" db:"status"`
	ProcessedBy       *string    `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	AdminNote         *string    `json:"admin_note,omitempty" db:"admin_note"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
