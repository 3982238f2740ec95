package worker

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StubServer is a reference implementation of the HTTP surface HTTPClient
// talks to. It accepts start/stop calls and tracks active resource IDs in
// memory without performing any real transcoding, recording, or inference —
// it exists to exercise the orchestrator's worker-dispatch code path in
// tests and local runs, matching SPEC_FULL.md §6.2's reference-binary note.
type StubServer struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewStubServer() *StubServer {
	return &StubServer{active: make(map[string]bool)}
}

func (s *StubServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/streams", s.handleStart("stream_id", false))
	r.Delete("/streams/{id}", s.handleStop())
	r.Post("/recordings", s.handleStart("recording_id", true))
	r.Delete("/recordings/{id}", s.handleStop())
	r.Post("/ai-tasks", s.handleStart("task_id", true))
	r.Delete("/ai-tasks/{id}", s.handleStop())

	return r
}

// handleStart accepts every resource unconditionally — it exists to
// exercise dispatch, not to model capacity/configuration refusal. reportsAccepted
// is true for recorder/ai-task starts, whose wire reply carries
// {accepted, message} per spec.md §6.2; stream starts carry no body.
func (s *StubServer) handleStart(idField string, reportsAccepted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		id, _ := payload[idField].(string)
		if id == "" {
			http.Error(w, idField+" required", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.active[id] = true
		s.mu.Unlock()

		log.Printf("worker stub: started %s=%s", idField, id)
		if reportsAccepted {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(startResultPayload{Accepted: true})
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *StubServer) handleStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()

		log.Printf("worker stub: stopped %s", id)
		w.WriteHeader(http.StatusOK)
	}
}

// IsActive reports whether the stub believes the given resource id is
// currently started — used by tests to assert dispatch actually happened.
func (s *StubServer) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[id]
}
