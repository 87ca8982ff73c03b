// Command chrysalis-core boots the morphing core's orchestrator behind
// the diagnostics HTTP surface, wiring storage, signing, adapters, and
// the event bus from environment configuration. Grounded on
// reasoning-graph/cmd/reasoning-graph-service/main.go's wiring and
// graceful-shutdown shape.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"

	"github.com/chrysalis-dev/morph-core/internal/adapters/lmos"
	"github.com/chrysalis-dev/morph-core/internal/adapters/usa"
	"github.com/chrysalis-dev/morph-core/internal/config"
	"github.com/chrysalis-dev/morph-core/internal/events"
	"github.com/chrysalis-dev/morph-core/internal/httpserver"
	"github.com/chrysalis-dev/morph-core/internal/orchestrator"
	"github.com/chrysalis-dev/morph-core/internal/shadow"
	"github.com/chrysalis-dev/morph-core/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	st, closeStore := mustStore(cfg)
	defer closeStore()

	signer := mustSigner(cfg)

	bus := events.New(cfg.EventBusMaxHistory)
	registry := orchestrator.NewRegistry(bus)
	registry.Register(usa.New(), usaCanary())
	registry.Register(lmos.New(), lmosCanary())
	registry.StartHealthChecks(cfg.AdapterHealthInterval)
	defer registry.Stop()

	orch := orchestrator.New(st, registry, signer, bus, orchestrator.Options{
		EnableCache:      cfg.EnableCache,
		MinFidelityScore: cfg.MinFidelityScore,
		AutoPersist:      cfg.AutoPersist,
		Archiver:         mustArchiver(cfg),
	})
	defer orch.Close()

	server := httpserver.New(cfg, orch)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("chrysalis-core listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	shutdown(httpServer)
}

func mustStore(cfg config.Config) (store.TemporalStore, func()) {
	if cfg.DatabaseURL == "" {
		log.Printf("CHRYSALIS_DATABASE_URL not set, running against an in-memory store")
		return store.NewMemoryStore(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	return store.NewPGStore(db), func() { _ = db.Close() }
}

func mustSigner(cfg config.Config) shadow.Signer {
	if cfg.SignerKeyB64 == "" {
		log.Printf("CHRYSALIS_SIGNER_KEY_B64 not set, generating an ephemeral signing key for this process")
		signer, err := shadow.NewLocalSigner()
		if err != nil {
			log.Fatalf("ephemeral signer init: %v", err)
		}
		return signer
	}
	signer, err := shadow.NewLocalSignerFromB64(cfg.SignerKeyB64)
	if err != nil {
		log.Fatalf("signer init: %v", err)
	}
	return signer
}

// mustArchiver constructs an S3-backed cold-storage mirror for
// persisted snapshots when CHRYSALIS_S3_BUCKET is set, using whatever
// AWS credentials/region the environment provides. Returns nil when no
// bucket is configured, in which case snapshots only live in the
// primary store.
func mustArchiver(cfg config.Config) store.Archiver {
	if cfg.S3Bucket == "" {
		return nil
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("aws config load: %v", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return store.NewS3SnapshotArchiver(client, cfg.S3Bucket, cfg.S3Prefix)
}

func usaCanary() map[string]interface{} {
	return map[string]interface{}{
		"framework": "usa",
		"identity": map[string]interface{}{
			"id":   "health-check-canary",
			"name": "health-check-canary",
		},
	}
}

func lmosCanary() map[string]interface{} {
	return map[string]interface{}{
		"framework": "lmos",
		"id":        "health-check-canary",
		"title":     "health-check-canary",
	}
}

func shutdown(s *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
