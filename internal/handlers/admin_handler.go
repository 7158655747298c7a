package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wealthbridge/backend/internal/models"
	"github.com/wealthbridge/backend/internal/services"
)

// AdminHandler exposes the operator surface: the recharge, withdrawal and
// KYC approval queues plus lucky draw reward management.
type AdminHandler struct {
	recharges   *services.RechargeService
	withdrawals *services.WithdrawalService
	kyc         *services.KycService
	luckyDraw   *services.LuckyDrawService
	validator   *services.ValidationHelper
}

func NewAdminHandler(
	recharges *services.RechargeService,
	withdrawals *services.WithdrawalService,
	kyc *services.KycService,
	luckyDraw *services.LuckyDrawService,
) *AdminHandler {
	return &AdminHandler{
		recharges:   recharges,
		withdrawals: withdrawals,
		kyc:         kyc,
		luckyDraw:   luckyDraw,
		validator:   services.NewValidationHelper(),
	}
}

type decisionRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

func (h *AdminHandler) decodeDecision(w http.ResponseWriter, r *http.Request) (*decisionRequest, bool) {
	var req decisionRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	// An empty body means a decision with no note.
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

func adminID(r *http.Request) string {
	id, _ := r.Context().Value("userID").(string)
	return id
}

// ListRecharges lists recharge requests by status
// @Summary List recharge requests (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter (default pending)"
// @Success 200 {object} object{requests=[]models.RechargeRequest,count=int}
// @Router /admin/recharges [get]
func (h *AdminHandler) ListRecharges(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.RequestStatusPending
	}

	requests, err := h.recharges.ListByStatus(status)
	if err != nil {
		log.Printf("[ADMIN] Failed to list recharges: %v", err)
		services.SendErrorResponse(w, "Failed to fetch recharge requests", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// ApproveRecharge approves a pending recharge and credits the balance
// @Summary Approve recharge (admin)
// @Description Idempotent: re-approving returns the already processed request
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param decision body decisionRequest false "Optional note"
// @Success 200 {object} models.RechargeRequest
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/recharges/{requestId}/approve [post]
func (h *AdminHandler) ApproveRecharge(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	result, err := h.recharges.Approve(chi.URLParam(r, "requestId"), adminID(r), req.Note)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// RejectRecharge rejects a pending recharge
// @Summary Reject recharge (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param decision body decisionRequest false "Optional note"
// @Success 200 {object} models.RechargeRequest
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/recharges/{requestId}/reject [post]
func (h *AdminHandler) RejectRecharge(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	result, err := h.recharges.Reject(chi.URLParam(r, "requestId"), adminID(r), req.Note)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ListWithdrawals lists withdrawal requests by status
// @Summary List withdrawal requests (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter (default pending)"
// @Success 200 {object} object{requests=[]models.WithdrawalRequest,count=int}
// @Router /admin/withdrawals [get]
func (h *AdminHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.RequestStatusPending
	}

	requests, err := h.withdrawals.ListByStatus(status)
	if err != nil {
		log.Printf("[ADMIN] Failed to list withdrawals: %v", err)
		services.SendErrorResponse(w, "Failed to fetch withdrawal requests", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// ApproveWithdrawal approves a pending withdrawal, debits the balance and
// queues the payout
// @Summary Approve withdrawal (admin)
// @Description Idempotent: re-approving returns the already processed request
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param decision body decisionRequest false "Optional note"
// @Success 200 {object} models.WithdrawalRequest
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/withdrawals/{requestId}/approve [post]
func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	result, err := h.withdrawals.Approve(chi.URLParam(r, "requestId"), adminID(r), req.Note)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// RejectWithdrawal rejects a pending withdrawal and restores the reserved
// withdrawable balance
// @Summary Reject withdrawal (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param decision body decisionRequest false "Optional note"
// @Success 200 {object} models.WithdrawalRequest
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/withdrawals/{requestId}/reject [post]
func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	result, err := h.withdrawals.Reject(chi.URLParam(r, "requestId"), adminID(r), req.Note)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ListKycSubmissions lists KYC submissions by status
// @Summary List KYC submissions (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter (default pending)"
// @Success 200 {object} object{submissions=[]models.KycSubmission,count=int}
// @Router /admin/kyc [get]
func (h *AdminHandler) ListKycSubmissions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.RequestStatusPending
	}

	submissions, err := h.kyc.ListByStatus(status)
	if err != nil {
		log.Printf("[ADMIN] Failed to list KYC submissions: %v", err)
		services.SendErrorResponse(w, "Failed to fetch KYC submissions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"submissions": submissions,
		"count":       len(submissions),
	})
}

// ApproveKyc approves a pending KYC submission
// @Summary Approve KYC (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionId path string true "Submission ID"
// @Param decision body decisionRequest false "Optional note"
// @Success 200 {object} models.KycSubmission
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/kyc/{submissionId}/approve [post]
func (h *AdminHandler) ApproveKyc(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	result, err := h.kyc.Approve(chi.URLParam(r, "submissionId"), adminID(r), req.Note)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// RejectKyc rejects a pending KYC submission
// @Summary Reject KYC (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionId path string true "Submission ID"
// @Param decision body decisionRequest false "Optional note"
// @Success 200 {object} models.KycSubmission
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/kyc/{submissionId}/reject [post]
func (h *AdminHandler) RejectKyc(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	result, err := h.kyc.Reject(chi.URLParam(r, "submissionId"), adminID(r), req.Note)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type rewardRequest struct {
	RewardName        string `json:"rewardName" validate:"required,max=100"`
	RewardAmount      int64  `json:"rewardAmount" validate:"gte=0"`
	ProbabilityWeight int    `json:"probabilityWeight" validate:"required,gt=0"`
	IsActive          *bool  `json:"isActive" validate:"required"`
}

func (h *AdminHandler) decodeReward(w http.ResponseWriter, r *http.Request) (*rewardRequest, bool) {
	var req rewardRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

// ListAllRewards lists all rewards including inactive ones
// @Summary List all lucky draw rewards (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{rewards=[]models.LuckyDrawReward,count=int}
// @Router /admin/lucky-draw/rewards [get]
func (h *AdminHandler) ListAllRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.luckyDraw.AllRewards()
	if err != nil {
		log.Printf("[ADMIN] Failed to list rewards: %v", err)
		services.SendErrorResponse(w, "Failed to fetch rewards", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rewards": rewards,
		"count":   len(rewards),
	})
}

// CreateReward adds a reward to the wheel
// @Summary Create lucky draw reward (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reward body rewardRequest true "Reward"
// @Success 201 {object} models.LuckyDrawReward
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/lucky-draw/rewards [post]
func (h *AdminHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReward(w, r)
	if !ok {
		return
	}

	reward := &models.LuckyDrawReward{
		RewardName:        req.RewardName,
		RewardAmount:      req.RewardAmount,
		ProbabilityWeight: req.ProbabilityWeight,
		IsActive:          *req.IsActive,
	}
	if err := h.luckyDraw.CreateReward(reward); err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(reward)
}

// UpdateReward updates a reward
// @Summary Update lucky draw reward (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rewardId path string true "Reward ID"
// @Param reward body rewardRequest true "Reward"
// @Success 200 {object} models.LuckyDrawReward
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/lucky-draw/rewards/{rewardId} [put]
func (h *AdminHandler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReward(w, r)
	if !ok {
		return
	}

	reward := &models.LuckyDrawReward{
		ID:                chi.URLParam(r, "rewardId"),
		RewardName:        req.RewardName,
		RewardAmount:      req.RewardAmount,
		ProbabilityWeight: req.ProbabilityWeight,
		IsActive:          *req.IsActive,
	}
	if err := h.luckyDraw.UpdateReward(reward); err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reward)
}

// DeleteReward removes a reward from the wheel
// @Summary Delete lucky draw reward (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param rewardId path string true "Reward ID"
// @Success 204 "No Content"
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/lucky-draw/rewards/{rewardId} [delete]
func (h *AdminHandler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	if err := h.luckyDraw.DeleteReward(chi.URLParam(r, "rewardId")); err != nil {
		services.SendEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
