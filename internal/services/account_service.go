package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/wealthbridge/backend/internal/models"
)

// AccountService creates accounts and serves account reads. The referral
// back-reference is resolved from the supplied code and set exactly once,
// here; it is never mutated afterwards.
type AccountService struct {
	db        *sql.DB
	ledger    *LedgerService
	referrals *ReferralService
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, ledger *LedgerService, referrals *ReferralService) *AccountService {
	return &AccountService{
		db:        db,
		ledger:    ledger,
		referrals: referrals,
		validator: NewValidationHelper(),
	}
}

// CreateAccount registers a new account with a fresh referral code. If
// referralCode names an existing account, the referral link and its
// Referral row are created in the same transaction. An unknown code is
// ignored rather than failing registration.
func (s *AccountService) CreateAccount(accountID, referralCode string) (*models.Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var referrerID *string
	if referralCode != "" {
		var id string
		err := tx.QueryRow(`SELECT id FROM accounts WHERE referral_code = $1`, referralCode).Scan(&id)
		switch err {
		case nil:
			referrerID = &id
		case sql.ErrNoRows:
			log.Printf("[ACCOUNT] Unknown referral code %q for new account %s", referralCode, accountID)
		default:
			return nil, err
		}
	}

	account := &models.Account{
		ID:           accountID,
		KycStatus:    models.KycStatusNone,
		ReferralCode: generateReferralCode(),
		ReferredBy:   referrerID,
		Role:         "user",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	_, err = tx.Exec(`
		INSERT INTO accounts (id, balance, withdrawable_balance, total_earnings, kyc_status, referral_code, referred_by, role, version, created_at, updated_at)
		VALUES ($1, 0, 0, 0, $2, $3, $4, $5, 1, $6, $7)`,
		account.ID, account.KycStatus, account.ReferralCode, account.ReferredBy, account.Role, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if referrerID != nil {
		if err := s.referrals.CreateReferralTx(tx, *referrerID, accountID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ACCOUNT] Created account %s, referred_by=%v", accountID, referrerID)
	return account, nil
}

// ListAccounts returns all accounts for the admin view, newest first.
func (s *AccountService) ListAccounts(limit int) ([]models.Account, error) {
	rows, err := s.db.Query(`
		SELECT id, balance, withdrawable_balance, total_earnings, kyc_status, referral_code, referred_by, role, version, created_at, updated_at
		FROM accounts
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Balance, &a.WithdrawableBalance, &a.TotalEarnings, &a.KycStatus,
			&a.ReferralCode, &a.ReferredBy, &a.Role, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for code generation
		panic(err)
	}
	for i := range buf {
		buf[i] = referralCodeAlphabet[int(buf[i])%len(referralCodeAlphabet)]
	}
	return string(buf)
}

// HTTP surface

// Register creates the ledger account for an authenticated identity
// @Summary Register account
// @Description Create the ledger account for the authenticated user, optionally with a referral code
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{referralCode=string} true "Registration"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Router /accounts [post]
func (s *AccountService) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		ReferralCode string `json:"referralCode" validate:"omitempty,max=16"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && err != io.EOF {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := s.CreateAccount(userID, req.ReferralCode)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to create account %s: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetMyAccount returns the caller's account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /account [get]
func (s *AccountService) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.ledger.GetAccount(userID)
	if err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// GetMyTransactions returns the caller's ledger history
// @Summary List transactions
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of rows (default 50, max 200)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Router /transactions [get]
func (s *AccountService) GetMyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 50, 200)
	transactions, err := s.ledger.ListTransactions(userID, limit)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to list transactions for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// AdminListAccounts lists accounts for the admin view
// @Summary List accounts (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of rows (default 100, max 500)"
// @Success 200 {object} object{accounts=[]models.Account,count=int}
// @Router /admin/accounts [get]
func (s *AccountService) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 100, 500)
	accounts, err := s.ListAccounts(limit)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to list accounts: %v", err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}
