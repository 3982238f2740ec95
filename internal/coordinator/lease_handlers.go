package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/metrics"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req leasestore.AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ResourceID == "" || req.HolderID == "" || !req.Kind.Valid() {
		http.Error(w, "resource_id, holder_id, and a valid kind are required", http.StatusBadRequest)
		return
	}
	if nodeID := nodeIDFromContext(r.Context()); nodeID != "" && nodeID != req.HolderID {
		http.Error(w, "holder_id does not match the node credential", http.StatusForbidden)
		return
	}

	resp, err := s.leases.Acquire(r.Context(), req)
	if err != nil {
		http.Error(w, "lease store error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if resp.Granted {
		s.notifier.Notify(req.Kind, req.ResourceID, "granted")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req leasestore.RenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.LeaseID == "" {
		http.Error(w, "lease_id is required", http.StatusBadRequest)
		return
	}

	resp, err := s.leases.Renew(r.Context(), req)
	if err != nil {
		http.Error(w, "lease store error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if resp.Renewed {
		metrics.LeaseRenewTotal.WithLabelValues(string(resp.Record.Kind), "renewed").Inc()
		s.notifier.Notify(resp.Record.Kind, resp.Record.ResourceID, "renewed")
	} else {
		metrics.LeaseRenewTotal.WithLabelValues("", "failed").Inc()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req leasestore.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.LeaseID == "" {
		http.Error(w, "lease_id is required", http.StatusBadRequest)
		return
	}

	resp, err := s.leases.Release(r.Context(), req)
	if err != nil {
		http.Error(w, "lease store error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if resp.Released {
		s.notifier.Notify(resp.Kind, resp.ResourceID, "released")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListLeases(w http.ResponseWriter, r *http.Request) {
	kind := leasestore.Kind(r.URL.Query().Get("kind"))
	records, err := s.leases.List(r.Context(), kind)
	if err != nil {
		http.Error(w, "lease store error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
