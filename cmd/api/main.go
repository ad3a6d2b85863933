package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"db-auditor/internal/alerts"
	apiserver "db-auditor/internal/api"
	"db-auditor/internal/audit"
	"db-auditor/internal/config"
	"db-auditor/internal/db"
	"db-auditor/internal/discovery"
	"db-auditor/internal/health"
	"db-auditor/internal/ratelimit"
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

	// one session per project, shared between the API and discovery
	var mu sync.Mutex
	sessions := make(map[string]*db.Session)
	open := func(project string) (*db.Session, error) {
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
	}

	disc := discovery.New(cfg, func(_ context.Context, project string) (discovery.Querier, error) {
		return open(project)
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	statusStore := health.NewRedisStatusStore(redisClient)
	dispatcher := alerts.NewDispatcher(cfg)
	checker := health.NewChecker(cfg, disc, statusStore, dispatcher)
	limiter := ratelimit.NewExecLimiter(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill)

	server := apiserver.New(cfg, open, disc, checker, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	mu.Lock()
	for project, s := range sessions {
		if err := s.Close(shutdownCtx); err != nil {
			log.Printf("close %s session: %v", project, err)
		}
	}
	mu.Unlock()
}
