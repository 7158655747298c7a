package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/wealthbridge/backend/internal/services"
)

type LuckyDrawHandler struct {
	service *services.LuckyDrawService
}

func NewLuckyDrawHandler(service *services.LuckyDrawService) *LuckyDrawHandler {
	return &LuckyDrawHandler{service: service}
}

// ListRewards returns the active reward table shown on the wheel
// @Summary List lucky draw rewards
// @Tags lucky-draw
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{rewards=[]models.LuckyDrawReward,count=int}
// @Failure 500 {object} services.ErrorResponse
// @Router /lucky-draw/rewards [get]
func (h *LuckyDrawHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.ActiveRewards()
	if err != nil {
		log.Printf("[LUCKYDRAW] Failed to list rewards: %v", err)
		services.SendErrorResponse(w, "Failed to fetch rewards", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rewards": rewards,
		"count":   len(rewards),
	})
}

// CanSpin reports whether the caller still has a spin available today
// @Summary Check spin availability
// @Tags lucky-draw
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{canSpin=bool}
// @Failure 401 {object} services.ErrorResponse
// @Router /lucky-draw/can-spin [get]
func (h *LuckyDrawHandler) CanSpin(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	canSpin, err := h.service.CanSpin(userID, time.Now().UTC())
	if err != nil {
		log.Printf("[LUCKYDRAW] CanSpin check failed for %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to check spin availability", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"canSpin": canSpin,
	})
}

// Spin performs the daily spin and credits the won reward
// @Summary Spin the wheel
// @Description One spin per account per day; the reward is credited immediately
// @Tags lucky-draw
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LuckyDrawSpin
// @Failure 401 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /lucky-draw/spin [post]
func (h *LuckyDrawHandler) Spin(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	spin, err := h.service.Spin(userID)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	log.Printf("[LUCKYDRAW] Account %s won %q (%d)", userID, spin.RewardName, spin.RewardAmount)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spin)
}

// History lists the caller's past spins
// @Summary Spin history
// @Tags lucky-draw
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of rows (default 30, max 100)"
// @Success 200 {object} object{spins=[]models.LuckyDrawSpin,count=int}
// @Failure 401 {object} services.ErrorResponse
// @Router /lucky-draw/history [get]
func (h *LuckyDrawHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 30
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		if n > 100 {
			n = 100
		}
		limit = n
	}

	spins, err := h.service.History(userID, limit)
	if err != nil {
		log.Printf("[LUCKYDRAW] Failed to list history for %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch spin history", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"spins": spins,
		"count": len(spins),
	})
}
