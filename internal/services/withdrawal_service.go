package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// WithdrawalService runs the cash-out workflow. Creation atomically
// reserves the amount out of the withdrawable balance so two concurrent
// requests cannot over-commit the same funds; approval debits the full
// balance; rejection releases the reservation. Approval and rejection are
// idempotent the same way recharge approvals are.
type WithdrawalService struct {
	db        *sql.DB
	ledger    *LedgerService
	payout    *PayoutService
	validator *ValidationHelper
}

func NewWithdrawalService(db *sql.DB, ledger *LedgerService, payout *PayoutService) *WithdrawalService {
	return &WithdrawalService{
		db:        db,
		ledger:    ledger,
		payout:    payout,
		validator: NewValidationHelper(),
	}
}

// CreateRequest reserves amount from the withdrawable balance and records
// a pending request, in one transaction. Requires approved KYC.
func (s *WithdrawalService) CreateRequest(accountID string, amount int64, bankDetails string) (*models.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.ledger.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account.KycStatus != models.KycStatusApproved {
		return nil, ErrKycNotApproved
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Atomic conditional decrement; fails when the funds are not there.
	if err := s.ledger.ReserveWithdrawableTx(tx, accountID, amount); err != nil {
		return nil, err
	}

	req := &models.WithdrawalRequest{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      amount,
		BankDetails: bankDetails,
		Status:      models.RequestStatusPending,
		CreatedAt:   time.Now(),
	}

	_, err = tx.Exec(`
		INSERT INTO withdrawal_requests (id, account_id, amount, bank_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.AccountID, req.Amount, req.BankDetails, req.Status, req.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAWAL] Created request %s for account %s, reserved %d", req.ID, accountID, amount)
	return req, nil
}

// Approve finalizes the debit. The withdrawable portion was already
// reserved at creation, so only balance moves here. Retried approvals
// return the terminal request without a second debit. The pacs.008 payout
// is queued after commit.
func (s *WithdrawalService) Approve(requestID, adminID, note string) (*models.WithdrawalRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE withdrawal_requests
		SET status = $1, processed_by = $2, processed_at = $3, admin_note = NULLIF($4, '')
		WHERE id = $5 AND status = $6`,
		models.RequestStatusApproved, adminID, time.Now(), note, requestID, models.RequestStatusPending)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return s.GetRequest(requestID)
	}

	req, err := s.getRequestTx(tx, requestID)
	if err != nil {
		return nil, err
	}

	_, err = s.ledger.ApplyTx(tx, req.AccountID, Mutation{
		BalanceDelta: -req.Amount,
		Type:         models.TxTypeWithdrawal,
		Reference:    req.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAWAL] Approved request %s by %s, debited %d from %s", req.ID, adminID, req.Amount, req.AccountID)

	if err := s.payout.QueuePayout(context.Background(), req); err != nil {
		log.Printf("[WITHDRAWAL] Payout queueing failed for %s: %v", req.ID, err)
	}

	return req, nil
}

// Reject releases the reservation back into the withdrawable balance and
// marks the request rejected, atomically. Balance is untouched.
func (s *WithdrawalService) Reject(requestID, adminID, note string) (*models.WithdrawalRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE withdrawal_requests
		SET status = $1, processed_by = $2, processed_at = $3, admin_note = $4
		WHERE id = $5 AND status = $6`,
		models.RequestStatusRejected, adminID, time.Now(), note, requestID, models.RequestStatusPending)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		if _, err := s.GetRequest(requestID); err != nil {
			return nil, err
		}
		return nil, ErrRequestNotPending
	}

	req, err := s.getRequestTx(tx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.ReleaseWithdrawableTx(tx, req.AccountID, req.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[WITHDRAWAL] Rejected request %s by %s, released %d", req.ID, adminID, req.Amount)
	return req, nil
}

// GetRequest fetches a withdrawal request by id.
func (s *WithdrawalService) GetRequest(requestID string) (*models.WithdrawalRequest, error) {
	return scanWithdrawalRequest(s.db.QueryRow(withdrawalSelect+` WHERE id = $1`, requestID))
}

func (s *WithdrawalService) getRequestTx(tx *sql.Tx, requestID string) (*models.WithdrawalRequest, error) {
	return scanWithdrawalRequest(tx.QueryRow(withdrawalSelect+` WHERE id = $1`, requestID))
}

// ListByAccount returns an account's withdrawal requests, newest first.
func (s *WithdrawalService) ListByAccount(accountID string) ([]models.WithdrawalRequest, error) {
	rows, err := s.db.Query(withdrawalSelect+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	return collectWithdrawalRequests(rows)
}

// ListByStatus returns requests in a given state for the admin queue; an
// empty status means all requests.
func (s *WithdrawalService) ListByStatus(status string) ([]models.WithdrawalRequest, error) {
	if status == "" {
		rows, err := s.db.Query(withdrawalSelect + ` ORDER BY created_at DESC`)
		if err != nil {
			return nil, err
		}
		return collectWithdrawalRequests(rows)
	}

	rows, err := s.db.Query(withdrawalSelect+` WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	return collectWithdrawalRequests(rows)
}

const withdrawalSelect = `
	SELECT id, account_id, amount, bank_details, status, processed_by, processed_at, admin_note, created_at
	FROM withdrawal_requests`

func scanWithdrawalRequest(row rowScanner) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := row.Scan(&req.ID, &req.AccountID, &req.Amount, &req.BankDetails, &req.Status,
		&req.ProcessedBy, &req.ProcessedAt, &req.AdminNote, &req.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func collectWithdrawalRequests(rows *sql.Rows) ([]models.WithdrawalRequest, error) {
	defer rows.Close()
	requests := []models.WithdrawalRequest{}
	for rows.Next() {
		req, err := scanWithdrawalRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// HTTP surface

// CreateWithdrawal handles withdrawal request creation
// @Summary Create withdrawal request
// @Description Reserve withdrawable funds and submit a cash-out request (requires approved KYC)
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,bankDetails=string} true "Withdrawal request"
// @Success 201 {object} models.WithdrawalRequest
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /withdrawals [post]
func (s *WithdrawalService) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		BankDetails string `json:"bankDetails" validate:"required,max=500"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	created, err := s.CreateRequest(userID, req.Amount, req.BankDetails)
	if err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// ListMyWithdrawals lists the caller's withdrawal requests
// @Summary List withdrawal requests
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{requests=[]models.WithdrawalRequest,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /withdrawals [get]
func (s *WithdrawalService) ListMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requests, err := s.ListByAccount(userID)
	if err != nil {
		log.Printf("[WITHDRAWAL] Failed to list requests for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch withdrawal requests", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}
