package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"digitalDojoAPI/internal/jobs"
)

// JobsHandler lets admins kick a scheduled job off outside its cron window.
// The job still goes through the queue, so a manual trigger can never race a
// scheduled run of the same job.
type JobsHandler struct {
	scheduler *jobs.Scheduler
	runners   map[string]func(ctx context.Context) error
}

func NewJobsHandler(scheduler *jobs.Scheduler, runners map[string]func(ctx context.Context) error) *JobsHandler {
	return &JobsHandler{
		scheduler: scheduler,
		runners:   runners,
	}
}

func (h *JobsHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	run, ok := h.runners[name]
	if !ok {
		respondWithError(w, http.StatusNotFound, "Unknown job")
		return
	}

	h.scheduler.TriggerNow(name, run)
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued", "job": name})
}
