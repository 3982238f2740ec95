// Package leasestore implements the Lease Coordinator's primitive: atomic
// acquire/renew/release/list over (resource_id -> lease record), with
// in-memory, PostgreSQL, and Redis bindings behind a single Store interface.
package leasestore

import "time"

// Kind namespaces a lease for list filtering. The coordinator never mixes
// kinds on a filtered list, but a resource_id is globally unique regardless
// of kind — two different kinds may never hold the same resource_id live.
type Kind string

const (
	KindStream   Kind = "stream"
	KindRecorder Kind = "recorder"
	KindAi       Kind = "ai"
)

func (k Kind) Valid() bool {
	switch k {
	case KindStream, KindRecorder, KindAi:
		return true
	}
	return false
}

// Record is a granted lease. "Live" means ExpiresAtEpochSecs > now; past
// that instant the record is reclaimable by any acquire.
type Record struct {
	LeaseID            string `json:"lease_id"`
	ResourceID         string `json:"resource_id"`
	HolderID           string `json:"holder_id"`
	Kind               Kind   `json:"kind"`
	ExpiresAtEpochSecs int64  `json:"expires_at_epoch_secs"`
	Version            int64  `json:"version"`
}

func (r Record) Live(now time.Time) bool {
	return r.ExpiresAtEpochSecs > now.Unix()
}

type AcquireRequest struct {
	ResourceID string `json:"resource_id"`
	HolderID   string `json:"holder_id"`
	Kind       Kind   `json:"kind"`
	TTLSecs    int64  `json:"ttl_secs"`
}

type AcquireResponse struct {
	Granted bool    `json:"granted"`
	Record  *Record `json:"record,omitempty"`
}

type RenewRequest struct {
	LeaseID string `json:"lease_id"`
	TTLSecs int64  `json:"ttl_secs"`
}

type RenewResponse struct {
	Renewed bool    `json:"renewed"`
	Record  *Record `json:"record,omitempty"`
}

type ReleaseRequest struct {
	LeaseID string `json:"lease_id"`
}

type ReleaseResponse struct {
	Released   bool   `json:"released"`
	ResourceID string `json:"resource_id,omitempty"`
	Kind       Kind   `json:"kind,omitempty"`
}

// DefaultTTLSeconds and MaxTTLSeconds match spec.md's TTL policy: 30s
// default, 120s max, both overridable per Store instance; the 5s floor
// (MinTTLSeconds) is never configurable.
const (
	DefaultTTLSeconds int64 = 30
	MaxTTLSeconds     int64 = 120
	MinTTLSeconds     int64 = 5
)

// NormalizeTTL clamps ttl to [MinTTLSeconds, maxTTL], substituting
// defaultTTL for a zero input. maxTTL is per-Store configuration and is
// raised to defaultTTL when lower; the 5s floor is fixed.
func NormalizeTTL(ttl, defaultTTL, maxTTL int64) int64 {
	if ttl == 0 {
		ttl = defaultTTL
	}
	if maxTTL < defaultTTL {
		maxTTL = defaultTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}
	if ttl < MinTTLSeconds {
		ttl = MinTTLSeconds
	}
	return ttl
}
