package handlers

import (
	"context"
	"net/http"
	"time"

	"digitalDojoAPI/middleware"
	"digitalDojoAPI/services"
)

type ProgressionHandler struct {
	progressionService *services.ProgressionService
	beltService        *services.BeltService
}

func NewProgressionHandler(progressionService *services.ProgressionService, beltService *services.BeltService) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: progressionService,
		beltService:        beltService,
	}
}

// GetProgression backs the streak screen: current streak, progress toward
// the current belt and the belt itself.
func (h *ProgressionHandler) GetProgression(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.progressionService.GetProgression(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Progression not found")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetEarnedBelts lists the belts the authenticated user has earned.
func (h *ProgressionHandler) GetEarnedBelts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	earned, err := h.beltService.GetUserBelts(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch earned belts")
		return
	}

	respondWithJSON(w, http.StatusOK, earned)
}
