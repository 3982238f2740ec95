package leasestore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store backed by a mutex-guarded map. It mirrors
// the original coordinator's map-of-maps layout: leases by resource_id, plus
// a lease_id index for O(1) Renew/Release, plus a monotonic version counter
// per resource_id that survives the lease itself expiring (spec.md's
// version-monotonicity Open Question — decided in DESIGN.md: version never
// resets on expiry or release, only increments on a new grant).
type Memory struct {
	mu         sync.RWMutex
	byResource map[string]Record
	byLease    map[string]string // lease_id -> resource_id
	versions   map[string]int64  // resource_id -> last-used version

	defaultTTL int64
	maxTTL     int64
	now        func() time.Time
}

func NewMemory(defaultTTL, maxTTL int64) *Memory {
	if defaultTTL == 0 {
		defaultTTL = DefaultTTLSeconds
	}
	if maxTTL == 0 {
		maxTTL = MaxTTLSeconds
	}
	return &Memory{
		byResource: make(map[string]Record),
		byLease:    make(map[string]string),
		versions:   make(map[string]int64),
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        time.Now,
	}
}

func (m *Memory) Acquire(_ context.Context, req AcquireRequest) (AcquireResponse, error) {
	ttl := NormalizeTTL(req.TTLSecs, m.defaultTTL, m.maxTTL)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byResource[req.ResourceID]
	if ok && existing.Live(now) {
		if existing.HolderID != req.HolderID {
			return AcquireResponse{Granted: false}, nil
		}
		// Re-acquire by the same holder is an idempotent refresh (spec.md
		// §3's Lifecycle): the lease_id is preserved in place, only
		// expires_at/version advance, matching the original coordinator's
		// same-holder branch.
		version := m.versions[req.ResourceID] + 1
		rec := existing
		rec.ExpiresAtEpochSecs = now.Unix() + ttl
		rec.Version = version
		m.byResource[req.ResourceID] = rec
		m.versions[req.ResourceID] = version

		out := rec
		return AcquireResponse{Granted: true, Record: &out}, nil
	}

	version := m.versions[req.ResourceID] + 1
	rec := Record{
		LeaseID:            uuid.NewString(),
		ResourceID:         req.ResourceID,
		HolderID:           req.HolderID,
		Kind:               req.Kind,
		ExpiresAtEpochSecs: now.Unix() + ttl,
		Version:            version,
	}

	if ok {
		delete(m.byLease, existing.LeaseID)
	}
	m.byResource[req.ResourceID] = rec
	m.byLease[rec.LeaseID] = rec.ResourceID
	m.versions[req.ResourceID] = version

	out := rec
	return AcquireResponse{Granted: true, Record: &out}, nil
}

func (m *Memory) Renew(_ context.Context, req RenewRequest) (RenewResponse, error) {
	ttl := NormalizeTTL(req.TTLSecs, m.defaultTTL, m.maxTTL)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	resourceID, ok := m.byLease[req.LeaseID]
	if !ok {
		return RenewResponse{Renewed: false}, nil
	}
	rec, ok := m.byResource[resourceID]
	if !ok || rec.LeaseID != req.LeaseID || !rec.Live(now) {
		return RenewResponse{Renewed: false}, nil
	}

	rec.ExpiresAtEpochSecs = now.Unix() + ttl
	m.byResource[resourceID] = rec

	out := rec
	return RenewResponse{Renewed: true, Record: &out}, nil
}

func (m *Memory) Release(_ context.Context, req ReleaseRequest) (ReleaseResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resourceID, ok := m.byLease[req.LeaseID]
	if !ok {
		return ReleaseResponse{Released: false}, nil
	}
	delete(m.byLease, req.LeaseID)

	rec, ok := m.byResource[resourceID]
	if ok && rec.LeaseID == req.LeaseID {
		delete(m.byResource, resourceID)
		return ReleaseResponse{Released: true, ResourceID: rec.ResourceID, Kind: rec.Kind}, nil
	}
	return ReleaseResponse{Released: false}, nil
}

func (m *Memory) List(_ context.Context, kind Kind) ([]Record, error) {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.byResource))
	for _, rec := range m.byResource {
		if !rec.Live(now) {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) HealthCheck(_ context.Context) error {
	return nil
}

// PurgeExpired drops expired entries from the in-memory maps. It is not
// part of the Store contract — nothing depends on it for correctness (an
// expired entry is already treated as absent by Acquire/Renew/List) — but
// it bounds memory growth on a long-running single-node coordinator.
func (m *Memory) PurgeExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for resourceID, rec := range m.byResource {
		if rec.Live(now) {
			continue
		}
		delete(m.byResource, resourceID)
		delete(m.byLease, rec.LeaseID)
		purged++
	}
	return purged
}
