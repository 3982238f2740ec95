package leasestore

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// DBTX is the common surface of *sql.DB and *sql.Tx, matching the teacher's
// internal/data.DBTX — lets repository methods run standalone or inside a
// caller-managed transaction without duplicating SQL.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres is the authoritative multi-node Store binding. Acquire runs
// inside a transaction using SELECT ... FOR UPDATE to serialize concurrent
// acquire attempts on the same resource_id, mirroring the original
// PostgresLeaseStore's acquire algorithm.
type Postgres struct {
	db         *sql.DB
	defaultTTL int64
	maxTTL     int64
	now        func() time.Time
}

func NewPostgres(db *sql.DB, defaultTTL, maxTTL int64) *Postgres {
	if defaultTTL == 0 {
		defaultTTL = DefaultTTLSeconds
	}
	if maxTTL == 0 {
		maxTTL = MaxTTLSeconds
	}
	return &Postgres{db: db, defaultTTL: defaultTTL, maxTTL: maxTTL, now: time.Now}
}

func (p *Postgres) Acquire(ctx context.Context, req AcquireRequest) (AcquireResponse, error) {
	ttl := NormalizeTTL(req.TTLSecs, p.defaultTTL, p.maxTTL)
	now := p.now()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return AcquireResponse{}, err
	}
	defer tx.Rollback()

	var existing Record
	var expiresAt int64
	hasExisting := false
	err = tx.QueryRowContext(ctx,
		`SELECT lease_id, resource_id, holder_id, kind, expires_at_epoch_secs, version
		 FROM leases WHERE resource_id = $1 FOR UPDATE`, req.ResourceID,
	).Scan(&existing.LeaseID, &existing.ResourceID, &existing.HolderID, &existing.Kind, &expiresAt, &existing.Version)

	switch {
	case err == nil:
		existing.ExpiresAtEpochSecs = expiresAt
		hasExisting = true
		if existing.Live(now) && existing.HolderID != req.HolderID {
			return AcquireResponse{Granted: false}, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		// no row for this resource yet; fall through to insert path
	default:
		return AcquireResponse{}, err
	}

	// Re-acquire by the same holder is an idempotent refresh (spec.md §3's
	// Lifecycle): keep the existing lease_id in place rather than minting a
	// new one, matching the original coordinator's same-holder branch.
	leaseID := uuid.NewString()
	if hasExisting && existing.Live(now) && existing.HolderID == req.HolderID {
		leaseID = existing.LeaseID
	}

	version := existing.Version + 1
	rec := Record{
		LeaseID:            leaseID,
		ResourceID:         req.ResourceID,
		HolderID:           req.HolderID,
		Kind:               req.Kind,
		ExpiresAtEpochSecs: now.Unix() + ttl,
		Version:            version,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leases (resource_id, lease_id, holder_id, kind, expires_at_epoch_secs, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (resource_id) DO UPDATE SET
			lease_id = EXCLUDED.lease_id,
			holder_id = EXCLUDED.holder_id,
			kind = EXCLUDED.kind,
			expires_at_epoch_secs = EXCLUDED.expires_at_epoch_secs,
			version = EXCLUDED.version`,
		rec.ResourceID, rec.LeaseID, rec.HolderID, rec.Kind, rec.ExpiresAtEpochSecs, rec.Version,
	)
	if err != nil {
		return AcquireResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return AcquireResponse{}, err
	}

	out := rec
	return AcquireResponse{Granted: true, Record: &out}, nil
}

func (p *Postgres) Renew(ctx context.Context, req RenewRequest) (RenewResponse, error) {
	ttl := NormalizeTTL(req.TTLSecs, p.defaultTTL, p.maxTTL)
	now := p.now()

	var rec Record
	var expiresAt int64
	err := p.db.QueryRowContext(ctx, `
		UPDATE leases SET expires_at_epoch_secs = $1
		WHERE lease_id = $2 AND expires_at_epoch_secs > $3
		RETURNING lease_id, resource_id, holder_id, kind, expires_at_epoch_secs, version`,
		now.Unix()+ttl, req.LeaseID, now.Unix(),
	).Scan(&rec.LeaseID, &rec.ResourceID, &rec.HolderID, &rec.Kind, &expiresAt, &rec.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return RenewResponse{Renewed: false}, nil
	}
	if err != nil {
		return RenewResponse{}, err
	}
	rec.ExpiresAtEpochSecs = expiresAt
	out := rec
	return RenewResponse{Renewed: true, Record: &out}, nil
}

func (p *Postgres) Release(ctx context.Context, req ReleaseRequest) (ReleaseResponse, error) {
	var resourceID string
	var kind Kind
	err := p.db.QueryRowContext(ctx,
		`DELETE FROM leases WHERE lease_id = $1 RETURNING resource_id, kind`,
		req.LeaseID).Scan(&resourceID, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return ReleaseResponse{Released: false}, nil
	}
	if err != nil {
		return ReleaseResponse{}, err
	}
	return ReleaseResponse{Released: true, ResourceID: resourceID, Kind: kind}, nil
}

func (p *Postgres) List(ctx context.Context, kind Kind) ([]Record, error) {
	now := p.now()

	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT lease_id, resource_id, holder_id, kind, expires_at_epoch_secs, version
			FROM leases WHERE expires_at_epoch_secs > $1`, now.Unix())
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT lease_id, resource_id, holder_id, kind, expires_at_epoch_secs, version
			FROM leases WHERE expires_at_epoch_secs > $1 AND kind = $2`, now.Unix(), kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.LeaseID, &rec.ResourceID, &rec.HolderID, &rec.Kind, &rec.ExpiresAtEpochSecs, &rec.Version); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		log.Printf("leasestore: postgres health check failed: %v", err)
		return err
	}
	return nil
}
