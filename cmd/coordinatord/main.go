// Command coordinatord runs the Coordinator Service: the Lease Coordinator
// and Persistent State Store exposed over HTTP+JSON for Gateway Orchestrator
// processes (spec.md §6.1), following the teacher's cmd/hlsd env-var
// bootstrap shape.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/vms-coordinator/internal/audit"
	"github.com/technosupport/vms-coordinator/internal/config"
	"github.com/technosupport/vms-coordinator/internal/coordinator"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/middleware"
	"github.com/technosupport/vms-coordinator/internal/nodeauth"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
	"github.com/technosupport/vms-coordinator/internal/platform/paths"
	"github.com/technosupport/vms-coordinator/internal/ratelimit"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

func main() {
	configPath := paths.ResolveConfigPath(os.Getenv("VMS_CONFIG_PATH"))

	mgr, err := config.NewManager(configPath)
	if err != nil {
		log.Fatalf("coordinatord: failed to load config from %s: %v", configPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Watch(ctx)

	cfg := mgr.Current()
	if cfg.NodeID == "" {
		cfg.NodeID = "coordinator-1"
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("coordinatord: db open error: %v", err)
	}
	defer db.Close()

	var leases leasestore.Store
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		leases = leasestore.NewRedis(rdb, cfg.Leases.DefaultTTLSeconds, cfg.Leases.MaxTTLSeconds)
		log.Printf("coordinatord: leasestore bound to redis at %s", cfg.Redis.Addr)
	} else {
		leases = leasestore.NewPostgres(db, cfg.Leases.DefaultTTLSeconds, cfg.Leases.MaxTTLSeconds)
		log.Printf("coordinatord: leasestore bound to postgres")
	}

	states := statestore.NewPostgres(db)
	auditSvc := audit.NewService(db)
	auditSvc.StartReplayer(ctx)

	hub := coordinator.NewHub()

	var notifiers orchestrator.MultiNotifier
	notifiers = append(notifiers, coordinator.NewAuditNotifier(auditSvc, cfg.NodeID))
	notifiers = append(notifiers, coordinator.NewHubNotifier(hub))

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("vms-coordinatord"))
		if err != nil {
			log.Printf("coordinatord: nats connect failed, continuing without publish: %v", err)
		} else {
			defer nc.Close()
			notifiers = append(notifiers, coordinator.NewNATSNotifier(nc, cfg.NATS.Subject))
		}
	}

	var auth *nodeauth.Manager
	if cfg.NodeAuth.SigningKey != "" {
		auth = nodeauth.NewManager(cfg.NodeAuth.SigningKey, cfg.NodeAuth.TTL)
	} else {
		log.Printf("coordinatord: no node_auth.signing_key configured; running without credential enforcement")
	}

	srvCfg := coordinator.Config{
		Addr:     cfg.HTTPAddr,
		Auth:     auth,
		Leases:   leases,
		States:   states,
		Notifier: notifiers,
		Hub:      hub,
	}

	if rdb != nil {
		limiter := ratelimit.NewLimiter(rdb, "vms-coordinatord-salt")
		rlCfg := middleware.Config{
			GlobalIP:  cfg.RateLimits.GlobalIP,
			Node:      cfg.RateLimits.Node,
			Endpoints: cfg.RateLimits.Endpoints,
		}
		srvCfg.RateLimiter = middleware.NewRateLimitMiddleware(limiter, rlCfg, coordinator.NodeIDFromContext)
	}

	srv := coordinator.NewServer(srvCfg)

	go func() {
		log.Printf("coordinatord: listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("coordinatord: server error: %v", err)
		}
	}()

	waitForShutdown(srv, fmt.Sprintf("coordinatord (%s)", cfg.NodeID))
}

func waitForShutdown(srv interface {
	Shutdown(ctx context.Context) error
}, name string) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("%s: shutting down", name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("%s: shutdown error: %v", name, err)
	}
}
