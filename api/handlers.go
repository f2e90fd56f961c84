package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crisslavik/xStage/types"
)

type submitRequest struct {
	SourcePath string            `json:"source_path"`
	TargetPath string            `json:"target_path"`
	Options    *types.JobOptions `json:"options,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmitJob accepts a conversion job and enqueues it. Submission is
// asynchronous; clients poll the job resource or stream its progress.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "job submission rate exceeded")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, string(types.ErrInvalidJob), "malformed request body: "+err.Error())
		return
	}

	opts := types.DefaultJobOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	job, err := types.NewJob(req.SourcePath, req.TargetPath, opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(types.GetErrorCode(err)), err.Error())
		return
	}

	if err := s.checkSource(job); err != nil {
		s.writeError(w, http.StatusBadRequest, string(types.ErrInvalidJob), err.Error())
		return
	}

	if err := s.engine.Submit(job); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "QUEUE_FULL", err.Error())
		return
	}
	view, _ := s.engine.Job(job.ID)
	s.writeJSON(w, http.StatusAccepted, view)
}

// checkSource verifies the source exists and, where the content type is
// reliably detectable, that the bytes match the declared extension. Text
// formats detect as plain text and are not second-guessed here.
func (s *Server) checkSource(job *types.ConversionJob) error {
	if _, err := os.Stat(job.SourcePath); err != nil {
		return types.NewError(types.ErrInvalidJob, "source file is not readable").WithCause(err)
	}
	if job.Format != types.FormatGLB {
		return nil
	}
	detected, err := mimetype.DetectFile(job.SourcePath)
	if err != nil {
		return types.NewError(types.ErrInvalidJob, "source content detection failed").WithCause(err)
	}
	if !detected.Is("model/gltf-binary") {
		return types.NewError(types.ErrInvalidJob,
			"source declares glb but detected content type is "+detected.String())
	}
	return nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := s.engine.Job(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "no job with id "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Jobs())
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Availability(r.Context()))
}

func (s *Server) handleRefreshAvailability(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.RefreshAvailability(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "HISTORY_DISABLED", "job history is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "HISTORY_ERROR", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"pool": s.engine.Stats()}
	if s.history != nil {
		counts, err := s.history.CountByStatus(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "HISTORY_ERROR", err.Error())
			return
		}
		payload["jobs_by_status"] = counts
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]errorResponse{
		"error": {Code: code, Message: message},
	})
}
