package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"db-auditor/internal/alerts"
	"db-auditor/internal/audit"
	"db-auditor/internal/config"
	"db-auditor/internal/db"
	"db-auditor/internal/discovery"
	"db-auditor/internal/health"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	auditLog := audit.NewLog(cfg.AuditLogPath)
	archiver, err := audit.NewArchiver(ctx, auditLog, cfg.AuditS3Bucket, cfg.AuditS3Prefix)
	if err != nil {
		log.Fatalf("init audit archiver: %v", err)
	}

	var mu sync.Mutex
	sessions := make(map[string]*db.Session)
	disc := discovery.New(cfg, func(_ context.Context, project string) (discovery.Querier, error) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := sessions[project]; ok {
			return s, nil
		}
		s, err := db.NewForProject(cfg, project, auditLog)
		if err != nil {
			return nil, err
		}
		sessions[project] = s
		return s, nil
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	checker := health.NewChecker(cfg, disc, health.NewRedisStatusStore(redisClient), alerts.NewDispatcher(cfg))

	log.Printf("auditor checking %d projects every %s", len(cfg.KnownProjects), cfg.CheckInterval)
	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	runCycle(ctx, checker, archiver)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCycle(ctx, checker, archiver)
		}
	}
}

func runCycle(ctx context.Context, checker *health.Checker, archiver *audit.Archiver) {
	results := checker.CheckAllAndAlert(ctx)
	total, unhealthy := 0, 0
	for _, records := range results {
		total += len(records)
		for _, rec := range records {
			if rec.Status == string(health.StatusFailed) || rec.Status == string(health.StatusMissed) {
				unhealthy++
			}
		}
	}
	log.Printf("health check complete: %d jobs, %d unhealthy", total, unhealthy)

	if uploaded, err := archiver.Upload(ctx); err != nil {
		log.Printf("audit archive upload failed: %v", err)
	} else if uploaded {
		log.Printf("audit log archived to s3")
	}
}
