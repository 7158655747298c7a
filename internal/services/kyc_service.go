package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// KycService reviews identity submissions. Approval flips the account's
// kyc_status, which gates withdrawal creation; no money moves here.
type KycService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewKycService(db *sql.DB) *KycService {
	return &KycService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// Submit records a new submission and marks the account pending. An
// account with an approved submission keeps its status; a rejected one
// may resubmit.
func (s *KycService) Submit(sub *models.KycSubmission) (*models.KycSubmission, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sub.ID = uuid.New().String()
	sub.Status = models.RequestStatusPending
	sub.CreatedAt = time.Now()

	_, err = tx.Exec(`
		INSERT INTO kyc_submissions (id, account_id, id_front_ref, id_back_ref, bank_name, account_number, account_holder_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.AccountID, sub.IDFrontRef, sub.IDBackRef, sub.BankName, sub.AccountNumber, sub.AccountHolderName, sub.Status, sub.CreatedAt)
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec(`
		UPDATE accounts SET kyc_status = $1, updated_at = $2
		WHERE id = $3 AND kyc_status <> $4`,
		models.KycStatusPending, time.Now(), sub.AccountID, models.KycStatusApproved)
	if err != nil {
		return nil, err
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		// Either already approved or the account does not exist.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, sub.AccountID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrAccountNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[KYC] Submission %s created for account %s", sub.ID, sub.AccountID)
	return sub, nil
}

// Approve marks the submission approved and the account KYC-approved,
// atomically. Idempotent under retry like the money workflows.
func (s *KycService) Approve(submissionID, adminID, note string) (*models.KycSubmission, error) {
	return s.decide(submissionID, adminID, note, models.RequestStatusApproved, models.KycStatusApproved)
}

// Reject marks the submission rejected; the account falls back to
// rejected so the user can resubmit.
func (s *KycService) Reject(submissionID, adminID, note string) (*models.KycSubmission, error) {
	return s.decide(submissionID, adminID, note, models.RequestStatusRejected, models.KycStatusRejected)
}

func (s *KycService) decide(submissionID, adminID, note, requestStatus, accountStatus string) (*models.KycSubmission, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE kyc_submissions
		SET status = $1, processed_by = $2, processed_at = $3, admin_note = NULLIF($4, '')
		WHERE id = $5 AND status = $6`,
		requestStatus, adminID, time.Now(), note, submissionID, models.RequestStatusPending)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		existing, err := s.GetSubmission(submissionID)
		if err != nil {
			return nil, err
		}
		// Approve retries are idempotent; reject on a decided
		// submission is an error, matching the money workflows.
		if requestStatus == models.RequestStatusRejected {
			return nil, ErrRequestNotPending
		}
		return existing, nil
	}

	sub, err := s.getSubmissionTx(tx, submissionID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		UPDATE accounts SET kyc_status = $1, updated_at = $2 WHERE id = $3`,
		accountStatus, time.Now(), sub.AccountID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[KYC] Submission %s %s by %s", submissionID, requestStatus, adminID)
	return sub, nil
}

// GetSubmission fetches one submission by id.
func (s *KycService) GetSubmission(submissionID string) (*models.KycSubmission, error) {
	return scanKycSubmission(s.db.QueryRow(kycSelect+` WHERE id = $1`, submissionID))
}

func (s *KycService) getSubmissionTx(tx *sql.Tx, submissionID string) (*models.KycSubmission, error) {
	return scanKycSubmission(tx.QueryRow(kycSelect+` WHERE id = $1`, submissionID))
}

// Latest returns an account's most recent submission, or nil.
func (s *KycService) Latest(accountID string) (*models.KycSubmission, error) {
	sub, err := scanKycSubmission(s.db.QueryRow(kycSelect+` WHERE account_id = $1 ORDER BY created_at DESC LIMIT 1`, accountID))
	if err == ErrRequestNotFound {
		return nil, nil
	}
	return sub, err
}

// ListByStatus returns submissions for the admin queue; empty status
// means all submissions.
func (s *KycService) ListByStatus(status string) ([]models.KycSubmission, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query(kycSelect + ` ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.Query(kycSelect+` WHERE status = $1 ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []models.KycSubmission{}
	for rows.Next() {
		sub, err := scanKycSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

const kycSelect = `
	SELECT id, account_id, id_front_ref, id_back_ref, bank_name, account_number, account_holder_name, status, processed_by, processed_at, admin_note, created_at
	FROM kyc_submissions`

func scanKycSubmission(row rowScanner) (*models.KycSubmission, error) {
	var sub models.KycSubmission
	err := row.Scan(&sub.ID, &sub.AccountID, &sub.IDFrontRef, &sub.IDBackRef, &sub.BankName,
		&sub.AccountNumber, &sub.AccountHolderName, &sub.Status, &sub.ProcessedBy, &sub.ProcessedAt,
		&sub.AdminNote, &sub.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// HTTP surface

// SubmitKyc handles identity submission
// @Summary Submit KYC
// @Tags kyc
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission body object{idFrontRef=string,idBackRef=string,bankName=string,accountNumber=string,accountHolderName=string} true "KYC submission"
// @Success 201 {object} models.KycSubmission
// @Failure 400 {object} ErrorResponse
// @Router /kyc [post]
func (s *KycService) SubmitKyc(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		IDFrontRef        string `json:"idFrontRef" validate:"required,max=500"`
		IDBackRef         string `json:"idBackRef" validate:"required,max=500"`
		BankName          string `json:"bankName" validate:"required,max=100"`
		AccountNumber     string `json:"accountNumber" validate:"required,max=30"`
		AccountHolderName string `json:"accountHolderName" validate:"required,max=100"`
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

	sub, err := s.Submit(&models.KycSubmission{
		AccountID:         userID,
		IDFrontRef:        req.IDFrontRef,
		IDBackRef:         req.IDBackRef,
		BankName:          req.BankName,
		AccountNumber:     req.AccountNumber,
		AccountHolderName: req.AccountHolderName,
	})
	if err != nil {
		SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sub)
}

// GetMyKyc returns the caller's latest submission
// @Summary KYC status
// @Tags kyc
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.KycSubmission
// @Failure 404 {object} ErrorResponse
// @Router /kyc [get]
func (s *KycService) GetMyKyc(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	sub, err := s.Latest(userID)
	if err != nil {
		log.Printf("[KYC] Failed to load submission for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch KYC submission", http.StatusInternalServerError, nil)
		return
	}
	if sub == nil {
		SendErrorResponse(w, "No KYC submission", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}
