package services

import "errors"

// Engine error taxonomy. These are returned to callers unchanged so the
// HTTP layer can map them to status codes; nothing is retried internally.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRequestNotPending   = errors.New("request is not pending")
	ErrAlreadySpunToday    = errors.New("already spun today")
	ErrNoRewardsConfigured = errors.New("no active rewards configured")
	ErrKycNotApproved      = errors.New("kyc not approved")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrProductNotFound     = errors.New("product not found")
	ErrRequestNotFound     = errors.New("request not found")
	ErrRewardNotFound      = errors.New("reward not found")
)
