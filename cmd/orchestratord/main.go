// cmd/orchestratord/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intent-orchestrator/internal/agents"
	registeragent "intent-orchestrator/internal/agents/register"
	swapagent "intent-orchestrator/internal/agents/swap"
	"intent-orchestrator/internal/common/config"
	"intent-orchestrator/internal/common/database"
	"intent-orchestrator/internal/common/logger"
	"intent-orchestrator/internal/common/observability"
	"intent-orchestrator/internal/dialogue"
	"intent-orchestrator/internal/history"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/orchestrator"
	"intent-orchestrator/internal/parser"
	"intent-orchestrator/internal/services/aggregator"
	"intent-orchestrator/internal/services/chain"
	"intent-orchestrator/internal/services/detector"
	"intent-orchestrator/internal/services/ipfs"
	"intent-orchestrator/internal/tokens"
	"intent-orchestrator/internal/transport"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intent orchestrator...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("intent-orchestrator")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init NATS with retry ---
	var nc *nats.Conn
	err = retryWithBackoff(func() error {
		var err error
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.App.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		return err
	}, 10, 2*time.Second, zapLog, "NATS connection")

	if err != nil {
		zapLog.Fatal("nats failed after retries", zap.Error(err))
	}
	defer nc.Drain()
	zapLog.Info("NATS connected successfully")

	// --- Init PostgreSQL with retry (history store is optional) ---
	var hist orchestrator.HistoryRecorder
	if cfg.Database.Postgres.Host != "" {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		hist = history.NewStore(pg, log)
		zapLog.Info("PostgreSQL connected successfully")
	} else {
		zapLog.Info("PostgreSQL not configured, history recording disabled")
	}

	// --- Init Redis with retry (session store is optional) ---
	var sessionStore dialogue.Store
	if cfg.Database.Redis.Address != "" {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		sessionStore = dialogue.NewRedisStore(rdb, time.Duration(cfg.Database.Redis.SessionTTL)*time.Second)
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis not configured, sessions are memory-only")
	}

	// --- Init chain client ---
	chainClient, err := chain.New(ctx, cfg.Chain, log)
	if err != nil {
		zapLog.Fatal("chain client failed", zap.Error(err))
	}
	zapLog.Info("Chain client connected successfully", zap.Int64("chainId", cfg.Chain.ChainID))

	// --- Init external service clients ---
	quotes := aggregator.New(cfg.Aggregator, log)
	pins := ipfs.New(cfg.IPFS, log)
	detect := detector.New(cfg.Detector, log)

	zapLog.Info("All external service clients initialized")

	// --- Token registry and parser ---
	tokenRegistry := tokens.NewRegistry(cfg.Tokens)
	intentParser := parser.New(tokenRegistry)

	// --- Register agents ---
	swapAg := swapagent.New(intentParser, tokenRegistry, quotes, chainClient, log)
	registerAg := registeragent.New(intentParser, pins, detect, chainClient, log)

	agentRegistry := agents.NewRegistry(log)
	agentRegistry.Register(swapAg)
	agentRegistry.Register(registerAg)

	orch := orchestrator.New(agentRegistry, cfg.Orchestrator, hist, obs, log)

	// --- Chat transport ---
	agentByKind := map[intent.Kind]string{
		intent.KindSwap:     swapAg.Name(),
		intent.KindRegister: registerAg.Name(),
	}
	chat := transport.NewHandler(cfg.NATS.ChatSubject, orch, tokenRegistry, detect, sessionStore, agentByKind, log)
	sub, err := chat.Start(nc)
	if err != nil {
		zapLog.Fatal("chat handler failed to start", zap.Error(err))
	}
	zapLog.Info("All agents registered successfully", zap.Int("agents", len(agentRegistry.All())))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			status := "ready"
			code := http.StatusOK
			if !nc.IsConnected() {
				status = "nats disconnected"
				code = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping chat handler...")

	if err := sub.Unsubscribe(); err != nil {
		zapLog.Error("Error unsubscribing chat handler", zap.Error(err))
	}

	zapLog.Info("Intent orchestrator stopped gracefully")
}
