package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"digitalDojoAPI/internal/types/belt"
	"digitalDojoAPI/services"
)

type BeltHandler struct {
	beltService *services.BeltService
}

func NewBeltHandler(beltService *services.BeltService) *BeltHandler {
	return &BeltHandler{
		beltService: beltService,
	}
}

func (h *BeltHandler) ListBelts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	belts, err := h.beltService.ListBelts(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch belts")
		return
	}

	respondWithJSON(w, http.StatusOK, belts)
}

// CreateBelt is admin-only. Inserting a belt retargets users who had
// finished the ladder, so use sparingly.
func (h *BeltHandler) CreateBelt(w http.ResponseWriter, r *http.Request) {
	// The retarget cascade scans users, so this gets a longer deadline
	// than the usual read path.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req belt.CreateBeltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Belt name is required")
		return
	}

	created, err := h.beltService.CreateBelt(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *BeltHandler) UpdateBelt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	beltID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid belt id")
		return
	}

	var req belt.UpdateBeltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.beltService.UpdateBelt(ctx, beltID, &req)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Belt not found")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
