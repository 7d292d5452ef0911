package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zeru/price-oracle/internal/models"
)

// jobJSON is the wire shape for job status: token and network ride under a
// data envelope, separate from the lifecycle fields.
type jobJSON struct {
	JobID      string          `json:"jobId"`
	State      models.JobState `json:"state"`
	Progress   int             `json:"progress"`
	Data       jobData         `json:"data"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	FinishedOn *time.Time      `json:"finishedOn,omitempty"`
}

type jobData struct {
	Token   string `json:"token"`
	Network string `json:"network"`
}

func toJobJSON(j *models.BackfillJob) jobJSON {
	return jobJSON{
		JobID:      j.ID,
		State:      j.State,
		Progress:   j.Progress,
		Data:       jobData{Token: j.Token, Network: j.Network},
		Reason:     j.Reason,
		CreatedAt:  j.CreatedAt,
		FinishedOn: j.FinishedOn,
	}
}

type scheduleRequest struct {
	Token   string `json:"token"`
	Network string `json:"network"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, network, msg := validatePair(req.Token, req.Network)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	job, err := s.jobs.Enqueue(r.Context(), token, network)
	if err != nil {
		fmt.Printf("[API] Failed to schedule backfill for %s: %v\n", token, err)
		writeError(w, http.StatusInternalServerError, "failed to schedule backfill job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "scheduled",
		"jobId":  job.ID,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")

	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		fmt.Printf("[API] Job lookup failed for %s: %v\n", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobJSON(job))
}

type jobListResponse struct {
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Jobs  []jobJSON `json:"jobs"`
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	page := parsePositiveInt(r, "page", 1, 0)
	limit := parsePositiveInt(r, "limit", 10, maxQueryLimit)

	jobs, err := s.jobs.List(r.Context(), page, limit)
	if err != nil {
		fmt.Printf("[API] Job listing failed: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	out := make([]jobJSON, len(jobs))
	for i := range jobs {
		out[i] = toJobJSON(&jobs[i])
	}
	writeJSON(w, http.StatusOK, jobListResponse{Page: page, Limit: limit, Jobs: out})
}

func (s *Server) handleJobStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")

	job, err := s.jobs.RequestCancel(r.Context(), id)
	if job == nil && err == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		if job != nil && job.State.Terminal() {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("job already %s, nothing to cancel", job.State))
			return
		}
		fmt.Printf("[API] Cancel request failed for %s: %v\n", id, err)
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}

	// A waiting job is cancelled immediately; an active one stops at the
	// next batch boundary.
	status := "cancelling"
	if job.State == models.JobWaiting {
		status = "cancelled"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"jobId":  id,
	})
}
