// Colony Executor — выполняет отдельные jobs.
//
// Executor:
//   - Получает события job.ready из RabbitMQ
//   - Атомарно захватывает job (pending -> running), дубли событий
//     безвредны
//   - Запускает команду агента с контрактом окружения COLONY_*
//   - Собирает артефакты и публикует job.completed
//
// Executors масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/shaiso/Colony/internal/executor"
	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/repo"
	"github.com/shaiso/Colony/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting colony-executor")

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

	prefetch := 0
	if v := os.Getenv("EXECUTOR_PREFETCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			prefetch = n
		}
	}

	// Создаём Runner
	runner := executor.New(executor.Config{
		JobRepo:      repo.NewJobRepo(pool),
		PipelineRepo: repo.NewPipelineRepo(pool),
		ArtifactRepo: repo.NewArtifactRepo(pool),
		ActionRepo:   repo.NewActionRepo(pool),
		Publisher:    mq.NewPublisher(mqConn),
		Conn:         mqConn,
		Prefetch:     prefetch,
		Logger:       logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.MetricsHandler())

	port := ":8082"
	if v := os.Getenv("EXECUTOR_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Runner блокирует до отмены контекста
	if err := runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("executor error", "error", err)
	}

	runner.Stop()
	logger.Info("colony-executor stopped")
}
