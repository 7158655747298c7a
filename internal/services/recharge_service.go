package services

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/wealthbridge/backend/internal/models"
)

// RechargeService runs the deposit approval workflow. A request carries no
// balance effect until an admin approves it; approval flips the request
// state and credits the ledger in one database transaction, and repeating
// the approval is a safe no-op.
type RechargeService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewRechargeService(db *sql.DB, ledger *LedgerService) *RechargeService {
	return &RechargeService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// CreateRequest records a pending deposit. No money moves yet.
func (s *RechargeService) CreateRequest(accountID string, amount int64, screenshotRef string) (*models.RechargeRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.ledger.GetAccount(accountID); err != nil {
		return nil, err
	}

	req := &models.RechargeRequest{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Amount:        amount,
		ScreenshotRef: screenshotRef,
		Status:        models.RequestStatusPending,
		CreatedAt:     time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO recharge_requests (id, account_id, amount, screenshot_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.AccountID, req.Amount, req.ScreenshotRef, req.Status, req.CreatedAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[RECHARGE] Created request %s for account %s, amount %d", req.ID, accountID, amount)
	return req, nil
}

// Approve transitions a pending request to approved and credits the
// account, atomically. The status flip is a conditional update keyed on
// pending: a retried approval affects zero rows and returns the existing
// terminal request without a second credit.
func (s *RechargeService) Approve(requestID, adminID, note string) (*models.RechargeRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE recharge_requests
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
		// Already terminal (or unknown): surface the current state, credit nothing.
		return s.GetRequest(requestID)
	}

	req, err := s.getRequestTx(tx, requestID)
	if err != nil {
		return nil, err
	}

	_, err = s.ledger.ApplyTx(tx, req.AccountID, Mutation{
		BalanceDelta: req.Amount,
		Type:         models.TxTypeRecharge,
		Reference:    req.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[RECHARGE] Approved request %s by %s, credited %d to %s", req.ID, adminID, req.Amount, req.AccountID)
	return req, nil
}

// Reject is valid only from pending and never touches the ledger.
func (s *RechargeService) Reject(requestID, adminID, note string) (*models.RechargeRequest, error) {
	result, err := s.db.Exec(`
		UPDATE recharge_requests
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

	log.Printf("[RECHARGE] Rejected request %s by %s", requestID, adminID)
	return s.GetRequest(requestID)
}

// GetRequest fetches a recharge request by id.
func (s *RechargeService) GetRequest(requestID string) (*models.RechargeRequest, error) {
	return scanRechargeRequest(s.db.QueryRow(rechargeSelect+` WHERE id = $1`, requestID))
}

func (s *RechargeService) getRequestTx(tx *sql.Tx, requestID string) (*models.RechargeRequest, error) {
	return scanRechargeRequest(tx.QueryRow(rechargeSelect+` WHERE id = $1`, requestID))
}

// ListByAccount returns an account's recharge requests, newest first.
func (s *RechargeService) ListByAccount(accountID string) ([]models.RechargeRequest, error) {
	rows, err := s.db.Query(rechargeSelect+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	return collectRechargeRequests(rows)
}

// ListByStatus returns requests in a given state for the admin queue; an
// empty status means all requests.
func (s *RechargeService) ListByStatus(status string) ([]models.RechargeRequest, error) {
	if status == "" {
		rows, err := s.db.Query(rechargeSelect + ` ORDER BY created_at DESC`)
		if err != nil {
			return nil, err
		}
		return collectRechargeRequests(rows)
	}

	rows, err := s.db.Query(rechargeSelect+` WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	return collectRechargeRequests(rows)
}

const rechargeSelect = `
	SELECT id, account_id, amount, screenshot_ref, status, processed_by, processed_at, admin_note, created_at
	FROM recharge_requests`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRechargeRequest(row rowScanner) (*models.RechargeRequest, error) {
	var req models.RechargeRequest
	err := row.Scan(&req.ID, &req.AccountID, &req.Amount, &req.ScreenshotRef, &req.Status,
		&req.ProcessedBy, &req.ProcessedAt, &req.AdminNote, &req.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func collectRechargeRequests(rows *sql.Rows) ([]models.RechargeRequest, error) {
	defer rows.Close()
	requests := []models.RechargeRequest{}
	for rows.Next() {
		req, err := scanRechargeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// HTTP surface

// CreateRecharge handles deposit request creation
// @Summary Create recharge request
// @Description Submit a deposit request with a payment screenshot reference
// @Tags recharges
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,screenshotRef=string} true "Recharge request"
// @Success 201 {object} models.RechargeRequest
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /recharges [post]
func (s *RechargeService) CreateRecharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		ScreenshotRef string `json:"screenshotRef" validate:"required,max=500"`
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

	created, err := s.CreateRequest(userID, req.Amount, req.ScreenshotRef)
	if err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// ListMyRecharges lists the caller's recharge requests
// @Summary List recharge requests
// @Tags recharges
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{requests=[]models.RechargeRequest,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /recharges [get]
func (s *RechargeService) ListMyRecharges(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requests, err := s.ListByAccount(userID)
	if err != nil {
		log.Printf("[RECHARGE] Failed to list requests for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch recharge requests", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// PaymentQR renders a payment QR for a pending recharge
// @Summary Recharge payment QR
// @Description Returns a QR code (base64 PNG) encoding the payment reference for a pending deposit
// @Tags recharges
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Recharge request ID"
// @Success 200 {object} object{requestId=string,qrImage=string}
// @Failure 404 {object} ErrorResponse
// @Router /recharges/{requestId}/qr [get]
func (s *RechargeService) PaymentQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requestID := chi.URLParam(r, "requestId")
	req, err := s.GetRequest(requestID)
	if err != nil {
		SendEngineError(w, err)
		return
	}
	if req.AccountID != userID {
		SendErrorResponse(w, "Request not found", http.StatusNotFound, nil)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"requestId": req.ID,
		"accountId": req.AccountID,
		"amount":    req.Amount,
		"createdAt": req.CreatedAt.Unix(),
	})
	if err != nil {
		SendErrorResponse(w, "Failed to build QR payload", http.StatusInternalServerError, nil)
		return
	}

	qr, err := qrcode.New(base64.URLEncoding.EncodeToString(payload), qrcode.Medium)
	if err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to encode QR image", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"requestId": req.ID,
		"qrImage":   base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}
