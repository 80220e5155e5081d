package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"digitalDojoAPI/internal/types/challenge"
	"digitalDojoAPI/middleware"
	"digitalDojoAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

// CreateChallenge is admin-only; routed behind AdminMiddleware.
func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Challenge name is required")
		return
	}

	created, err := h.challengeService.CreateChallenge(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := challenge.Status(r.URL.Query().Get("status"))

	challenges, err := h.challengeService.ListChallenges(ctx, status)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) ListWeeklies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	weeklies, err := h.challengeService.ListWeeklies(ctx, challengeID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch weekly challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, weeklies)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	if err := h.challengeService.JoinChallenge(ctx, userID, challengeID); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// ListWeeklyCompletions shows the user's day-by-day record for a weekly,
// skips included.
func (h *ChallengeHandler) ListWeeklyCompletions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	weeklyID, err := uuid.Parse(mux.Vars(r)["weeklyId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid weekly challenge id")
		return
	}

	completions, err := h.challengeService.ListWeeklyCompletions(ctx, userID, weeklyID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch weekly completions")
		return
	}

	respondWithJSON(w, http.StatusOK, completions)
}

// CompleteWeekly logs today's completion of a weekly sub-challenge and
// returns the updated progression.
func (h *ChallengeHandler) CompleteWeekly(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	vars := mux.Vars(r)
	challengeID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}
	weeklyID, err := uuid.Parse(vars["weeklyId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid weekly challenge id")
		return
	}

	result, err := h.challengeService.RecordWeeklyCompletion(ctx, userID, challengeID, weeklyID, time.Now())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
