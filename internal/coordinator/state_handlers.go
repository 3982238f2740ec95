package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	recs, err := s.states.ListStreams(r.Context(), r.URL.Query().Get("node_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	rec, err := s.states.GetStream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveStream(w http.ResponseWriter, r *http.Request) {
	var rec statestore.StreamRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec.StreamID = chi.URLParam(r, "id")
	if err := s.states.SaveStream(r.Context(), rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	if err := s.states.DeleteStream(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stateUpdatePayload struct {
	State     string  `json:"state"`
	LastError *string `json:"last_error,omitempty"`
}

func (s *Server) handleUpdateStreamState(w http.ResponseWriter, r *http.Request) {
	var payload stateUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	state := statestore.ParseStreamState(payload.State)
	if err := s.states.UpdateStreamState(r.Context(), chi.URLParam(r, "id"), state, payload.LastError); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.states.ListRecordings(r.Context(), r.URL.Query().Get("node_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.states.GetRecording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "recording not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveRecording(w http.ResponseWriter, r *http.Request) {
	var rec statestore.RecordingRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec.RecordingID = chi.URLParam(r, "id")
	if err := s.states.SaveRecording(r.Context(), rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.states.DeleteRecording(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateRecordingState(w http.ResponseWriter, r *http.Request) {
	var payload stateUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	state := statestore.ParseRecordingState(payload.State)
	if err := s.states.UpdateRecordingState(r.Context(), chi.URLParam(r, "id"), state, payload.LastError); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAiTasks(w http.ResponseWriter, r *http.Request) {
	recs, err := s.states.ListAiTasks(r.Context(), r.URL.Query().Get("node_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetAiTask(w http.ResponseWriter, r *http.Request) {
	rec, err := s.states.GetAiTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "ai task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveAiTask(w http.ResponseWriter, r *http.Request) {
	var rec statestore.AiTaskRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec.TaskID = chi.URLParam(r, "id")
	if err := s.states.SaveAiTask(r.Context(), rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAiTask(w http.ResponseWriter, r *http.Request) {
	if err := s.states.DeleteAiTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateAiTaskState(w http.ResponseWriter, r *http.Request) {
	var payload stateUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	state := statestore.ParseAiTaskState(payload.State)
	if err := s.states.UpdateAiTaskState(r.Context(), chi.URLParam(r, "id"), state, payload.LastError); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsUpdatePayload struct {
	FramesDelta        int64 `json:"frames_delta"`
	DetectionsDelta    int64 `json:"detections_delta"`
	LastProcessedFrame int64 `json:"last_processed_frame"`
}

func (s *Server) handleUpdateAiTaskStats(w http.ResponseWriter, r *http.Request) {
	var payload statsUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	taskID := chi.URLParam(r, "id")
	if err := s.states.UpdateAiTaskStats(r.Context(), taskID, payload.FramesDelta, payload.DetectionsDelta, payload.LastProcessedFrame); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
