package leasestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store binding for deployments that already run Redis for rate
// limiting and would rather avoid a Postgres round trip on the lease hot
// path. Each resource gets one string key (vms:lease:{resource_id}) holding
// the JSON-encoded record plus a parallel lease_id -> resource_id string key
// (vms:lease-id:{lease_id}) so Renew/Release can look up by lease_id. The
// acquire compare-and-set runs inside a single Lua script — the same
// atomic-script shape the ratelimit package already uses for INCR+PEXPIRE,
// just with a compare-and-set condition added. The version comes from a
// separate INCR on vms:lease-version:{resource_id} issued before the script.
type Redis struct {
	client     *redis.Client
	defaultTTL int64
	maxTTL     int64
	now        func() time.Time

	acquireScript *redis.Script
}

const redisKeyPrefix = "vms:lease:"
const redisLeaseIndexPrefix = "vms:lease-id:"

func NewRedis(client *redis.Client, defaultTTL, maxTTL int64) *Redis {
	if defaultTTL == 0 {
		defaultTTL = DefaultTTLSeconds
	}
	if maxTTL == 0 {
		maxTTL = MaxTTLSeconds
	}
	return &Redis{
		client:     client,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        time.Now,
		// Re-acquire by the same holder is an idempotent refresh (spec.md
		// §3's Lifecycle): the script decides whether to reuse the
		// existing lease_id (same live holder) or mint the candidate one
		// passed in from Go, then reports back which lease_id actually
		// won so the caller's Record matches what was persisted.
		acquireScript: redis.NewScript(`
			local resource_key = KEYS[1]
			local index_key_prefix = ARGV[1]
			local now = tonumber(ARGV[2])
			local expires_at = tonumber(ARGV[3])
			local holder_id = ARGV[4]
			local resource_id = ARGV[5]
			local kind = ARGV[6]
			local version = tonumber(ARGV[7])
			local candidate_lease_id = ARGV[8]
			local ttl_ms = tonumber(ARGV[9])

			local lease_id = candidate_lease_id
			local existing = redis.call("GET", resource_key)
			if existing then
				local rec = cjson.decode(existing)
				local live = tonumber(rec.expires_at_epoch_secs) > now
				if live and rec.holder_id ~= holder_id then
					return {0}
				end
				if live and rec.holder_id == holder_id then
					lease_id = rec.lease_id
				end
				if rec.lease_id ~= lease_id then
					redis.call("DEL", index_key_prefix .. rec.lease_id)
				end
			end

			local payload = cjson.encode({
				lease_id = lease_id,
				resource_id = resource_id,
				holder_id = holder_id,
				kind = kind,
				expires_at_epoch_secs = expires_at,
				version = version,
			})
			redis.call("SET", resource_key, payload, "PX", ttl_ms)
			redis.call("SET", index_key_prefix .. lease_id, resource_key, "PX", ttl_ms)
			return {1, lease_id}
		`),
	}
}

func (r *Redis) Acquire(ctx context.Context, req AcquireRequest) (AcquireResponse, error) {
	ttl := NormalizeTTL(req.TTLSecs, r.defaultTTL, r.maxTTL)
	now := r.now()

	version, err := r.nextVersion(ctx, req.ResourceID)
	if err != nil {
		return AcquireResponse{}, err
	}

	rec := Record{
		LeaseID:            uuid.NewString(),
		ResourceID:         req.ResourceID,
		HolderID:           req.HolderID,
		Kind:               req.Kind,
		ExpiresAtEpochSecs: now.Unix() + ttl,
		Version:            version,
	}

	resourceKey := redisKeyPrefix + req.ResourceID
	result, err := r.acquireScript.Run(ctx, r.client,
		[]string{resourceKey},
		redisLeaseIndexPrefix, now.Unix(), rec.ExpiresAtEpochSecs, req.HolderID,
		req.ResourceID, string(req.Kind), version, rec.LeaseID, ttl*1000,
	).Slice()
	if err != nil {
		return AcquireResponse{}, err
	}
	if len(result) == 0 || result[0].(int64) == 0 {
		return AcquireResponse{Granted: false}, nil
	}
	if leaseID, ok := result[1].(string); ok {
		rec.LeaseID = leaseID
	}

	out := rec
	return AcquireResponse{Granted: true, Record: &out}, nil
}

// nextVersion increments a dedicated version counter so it survives the
// lease record expiring — matching Memory's version semantics.
func (r *Redis) nextVersion(ctx context.Context, resourceID string) (int64, error) {
	return r.client.Incr(ctx, "vms:lease-version:"+resourceID).Result()
}

func (r *Redis) Renew(ctx context.Context, req RenewRequest) (RenewResponse, error) {
	ttl := NormalizeTTL(req.TTLSecs, r.defaultTTL, r.maxTTL)
	now := r.now()

	resourceKey, err := r.client.Get(ctx, redisLeaseIndexPrefix+req.LeaseID).Result()
	if errors.Is(err, redis.Nil) {
		return RenewResponse{Renewed: false}, nil
	}
	if err != nil {
		return RenewResponse{}, err
	}

	raw, err := r.client.Get(ctx, resourceKey).Result()
	if errors.Is(err, redis.Nil) {
		return RenewResponse{Renewed: false}, nil
	}
	if err != nil {
		return RenewResponse{}, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return RenewResponse{}, err
	}
	if rec.LeaseID != req.LeaseID || !rec.Live(now) {
		return RenewResponse{Renewed: false}, nil
	}

	rec.ExpiresAtEpochSecs = now.Unix() + ttl
	payload, err := json.Marshal(rec)
	if err != nil {
		return RenewResponse{}, err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, resourceKey, payload, time.Duration(ttl)*time.Second)
	pipe.Set(ctx, redisLeaseIndexPrefix+req.LeaseID, resourceKey, time.Duration(ttl)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return RenewResponse{}, err
	}

	out := rec
	return RenewResponse{Renewed: true, Record: &out}, nil
}

func (r *Redis) Release(ctx context.Context, req ReleaseRequest) (ReleaseResponse, error) {
	indexKey := redisLeaseIndexPrefix + req.LeaseID
	resourceKey, err := r.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return ReleaseResponse{Released: false}, nil
	}
	if err != nil {
		return ReleaseResponse{}, err
	}

	var rec Record
	raw, err := r.client.Get(ctx, resourceKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ReleaseResponse{}, err
	}
	if err == nil {
		_ = json.Unmarshal([]byte(raw), &rec)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, indexKey)
	pipe.Del(ctx, resourceKey)
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return ReleaseResponse{}, err
	}
	deleted := cmds[1].(*redis.IntCmd).Val() > 0
	if !deleted {
		return ReleaseResponse{Released: false}, nil
	}
	return ReleaseResponse{Released: true, ResourceID: rec.ResourceID, Kind: rec.Kind}, nil
}

func (r *Redis) List(ctx context.Context, kind Kind) ([]Record, error) {
	now := r.now()
	var out []Record
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		if !rec.Live(now) {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	return out, iter.Err()
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
