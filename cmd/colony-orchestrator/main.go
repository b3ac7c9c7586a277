// Colony Orchestrator — управляет выполнением pipelines.
//
// Orchestrator:
//   - Получает события pipeline.pending и job.completed из RabbitMQ
//   - Каждый цикл пересчитывает граф: multiplier, regression, retry,
//     каскад failed/skipped, агрегаты stage и pipeline
//   - Публикует job.ready для готовых jobs
//   - Polling по активным pipelines страхует потерю событий
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/orchestrator"
	"github.com/shaiso/Colony/internal/repo"
	"github.com/shaiso/Colony/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting colony-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn.Channel()); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	maxConcurrent := 0
	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxConcurrent = n
		}
	}

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		PipelineRepo:   repo.NewPipelineRepo(pool),
		StageRepo:      repo.NewStageRepo(pool),
		JobRepo:        repo.NewJobRepo(pool),
		DependencyRepo: repo.NewDependencyRepo(pool),
		ExpansionRepo:  repo.NewExpansionRepo(pool),
		ArtifactRepo:   repo.NewArtifactRepo(pool),
		TemplateRepo:   repo.NewTemplateRepo(pool),
		Publisher:      mq.NewPublisher(mqConn),
		Conn:           mqConn,
		MaxConcurrent:  maxConcurrent,
		Logger:         logger,
	})

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.MetricsHandler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	orch.Stop()
	logger.Info("colony-orchestrator stopped")
}
