// cmd/worker-manager/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fitmeal-workers/internal/common/camunda"
	"fitmeal-workers/internal/common/config"
	"fitmeal-workers/internal/common/database"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/common/observability"

	// Nutrition Workers (1)
	ct "fitmeal-workers/internal/workers/nutrition/calculate-targets"

	// Recommendation Workers (5)
	fc "fitmeal-workers/internal/workers/recommendation/filter-constraints"
	gc "fitmeal-workers/internal/workers/recommendation/generate-candidates"
	pr "fitmeal-workers/internal/workers/recommendation/parse-request"
	rd "fitmeal-workers/internal/workers/recommendation/rerank-diversity"
	sr "fitmeal-workers/internal/workers/recommendation/score-relevance"

	// Infrastructure Workers (1)
	br "fitmeal-workers/internal/workers/infrastructure/build-response"
)

var openWorkers []*camunda.Worker

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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
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
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- START: Register ALL 7 Workers ---

	// --- 1. Nutrition Workers (1) ---
	if cfg.Workers[ct.TaskType].Enabled {
		handler := ct.NewHandler(
			&ct.Config{
				Timeout: config.GetDuration(cfg.Workers[ct.TaskType].Timeout),
			},
			log,
		)
		startWorker(zeebeClient, ct.TaskType, cfg.Workers[ct.TaskType], handler.Handle, zapLog)
	}

	// --- 2. Recommendation Workers (5) ---
	if cfg.Workers[pr.TaskType].Enabled {
		handler := pr.NewHandler(
			&pr.Config{
				Timeout: config.GetDuration(cfg.Workers[pr.TaskType].Timeout),
			},
			log,
		)
		startWorker(zeebeClient, pr.TaskType, cfg.Workers[pr.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[gc.TaskType].Enabled {
		handler := gc.NewHandler(
			&gc.Config{
				Timeout:          config.GetDuration(cfg.Workers[gc.TaskType].Timeout),
				RetrievalTimeout: config.GetDuration(cfg.Engine.RetrievalTimeout),
				Index:            cfg.Database.Elasticsearch.MealIndex,
				DefaultPoolSize:  cfg.Engine.PoolSize,
				MaxPoolSize:      cfg.Engine.MaxPoolSize,
			},
			esClient.Client, log,
		)
		startWorker(zeebeClient, gc.TaskType, cfg.Workers[gc.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[fc.TaskType].Enabled {
		handler := fc.NewHandler(
			&fc.Config{
				Timeout:       config.GetDuration(cfg.Workers[fc.TaskType].Timeout),
				SurvivorFloor: cfg.Engine.SurvivorFloor,
			},
			log,
		)
		startWorker(zeebeClient, fc.TaskType, cfg.Workers[fc.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[sr.TaskType].Enabled {
		handler := sr.NewHandler(
			&sr.Config{
				Timeout:         config.GetDuration(cfg.Workers[sr.TaskType].Timeout),
				CacheTTL:        time.Duration(cfg.Engine.ProfileCacheTTL) * time.Second,
				WeightNutrition: cfg.Engine.WeightNutrition,
				WeightTaste:     cfg.Engine.WeightTaste,
				WeightHistory:   cfg.Engine.WeightHistory,
				WeightCost:      cfg.Engine.WeightCost,
			},
			pg.GetDB(), redisClient.GetClient(), log,
		)
		startWorker(zeebeClient, sr.TaskType, cfg.Workers[sr.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[rd.TaskType].Enabled {
		handler := rd.NewHandler(
			&rd.Config{
				Timeout: config.GetDuration(cfg.Workers[rd.TaskType].Timeout),
				Lambda:  cfg.Engine.MMRLambda,
				PoolTop: cfg.Engine.RerankPoolTop,
			},
			log,
		)
		startWorker(zeebeClient, rd.TaskType, cfg.Workers[rd.TaskType], handler.Handle, zapLog)
	}

	// --- 3. Infrastructure Workers (1) ---
	if cfg.Workers[br.TaskType].Enabled {
		handler := br.NewHandler(
			&br.Config{
				Timeout:          config.GetDuration(cfg.Workers[br.TaskType].Timeout),
				RegistryPath:     cfg.Registry.Path,
				NotableThreshold: cfg.Engine.NotableThreshold,
			},
			log,
		)
		startWorker(zeebeClient, br.TaskType, cfg.Workers[br.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All 7 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			status := "healthy"
			code := http.StatusOK
			if err := zeebeClient.HealthCheck(r.Context()); err != nil {
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			}
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range openWorkers {
		w.Close()
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client *camunda.Client, taskType string, wcfg config.WorkerConfig, handlerFunc camunda.JobHandlerFunc, log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	w := client.NewWorker(taskType, handlerFunc, wcfg.MaxJobsActive, time.Duration(wcfg.Timeout)*time.Millisecond, log)
	openWorkers = append(openWorkers, w)
}
