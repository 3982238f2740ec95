package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeOrchestratorError maps the orchestrator's error taxonomy (spec.md
// §7) to an HTTP status, matching the teacher's handler-level error
// switch in internal/api's camera handlers.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	var oerr *orchestrator.Error
	if !errors.As(err, &oerr) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	switch oerr.Code {
	case orchestrator.CodeBadRequest:
		http.Error(w, oerr.Message, http.StatusBadRequest)
	case orchestrator.CodeNotFound:
		http.Error(w, oerr.Message, http.StatusNotFound)
	case orchestrator.CodeConflict, orchestrator.CodeLeaseConflict:
		http.Error(w, oerr.Message, http.StatusConflict)
	case orchestrator.CodeDependencyUnavailable:
		http.Error(w, oerr.Message, http.StatusServiceUnavailable)
	case orchestrator.CodeWorkerFailed:
		http.Error(w, oerr.Message, http.StatusInternalServerError)
	default:
		http.Error(w, oerr.Message, http.StatusInternalServerError)
	}
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.StartStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := s.streams.StartStream(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := s.streams.StopStream(r.Context(), id)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.StartRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := s.recordings.StartRecording(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := s.recordings.StopRecording(r.Context(), id)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStartAiTask(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.StartAiTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := s.aiTasks.StartAiTask(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStopAiTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := s.aiTasks.StopAiTask(r.Context(), id)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type aiTaskStatsPayload struct {
	FramesDelta        int64 `json:"frames_delta"`
	DetectionsDelta    int64 `json:"detections_delta"`
	LastProcessedFrame int64 `json:"last_processed_frame"`
}

// handleAiTaskStats applies an AI worker frame/detection counter delta,
// suppressing redelivered updates via frameDedup before they reach the
// orchestrator (SPEC_FULL.md §4.4 expansion).
func (s *Server) handleAiTaskStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload aiTaskStatsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if s.frameDedup.IsDuplicate(id, payload.LastProcessedFrame) {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.aiTasks.UpdateStats(r.Context(), id, payload.FramesDelta, payload.DetectionsDelta, payload.LastProcessedFrame); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleBootstrap exposes Bootstrap.Run as an operator-triggerable
// endpoint for manual reconciliation after a suspected split-brain
// (SPEC_FULL.md §4.5 expansion).
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	result, err := s.bootstrap.Run(r.Context())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
