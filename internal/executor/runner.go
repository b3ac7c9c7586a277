package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/repo"
	"github.com/shaiso/Colony/internal/telemetry"
)

const defaultPrefetch = 2

// Store-интерфейсы описывают операции хранилища, которые нужны
// executor'у. Реализуются репозиториями пакета repo; в тестах
// подменяются fakes.

// JobStore — захват и отчёт о выполнении jobs.
type JobStore interface {
	ClaimPending(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ReportResult(ctx context.Context, job *domain.Job) error
}

// PipelineStore — чтение pipeline job'а.
type PipelineStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error)
}

// ArtifactStore — регистрация произведённых артефактов.
type ArtifactStore interface {
	Record(ctx context.Context, a *domain.Artifact, overwrite bool) error
}

// ActionStore — запись лога действий.
type ActionStore interface {
	Append(ctx context.Context, a *domain.Action) error
}

// Runner управляет жизненным циклом executor'а: потребляет jobs.ready,
// выполняет jobs и публикует отчёты в jobs.completed.
type Runner struct {
	jobRepo      JobStore
	pipelineRepo PipelineStore
	artifactRepo ArtifactStore
	actionRepo   ActionStore

	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	executor Executor
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Runner.
type Config struct {
	JobRepo      JobStore
	PipelineRepo PipelineStore
	ArtifactRepo ArtifactStore
	ActionRepo   ActionStore

	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Executor (опционально; если nil — CommandExecutor)
	Executor Executor

	// Prefetch — сколько jobs executor держит в работе (default: 2)
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exec := cfg.Executor
	if exec == nil {
		exec = &CommandExecutor{}
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Runner{
		jobRepo:      cfg.JobRepo,
		pipelineRepo: cfg.PipelineRepo,
		artifactRepo: cfg.ArtifactRepo,
		actionRepo:   cfg.ActionRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		executor:     exec,
		prefetch:     prefetch,
		logger:       logger,
	}
}

// Start запускает потребление jobs.ready. Блокирует до остановки.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting executor", "prefetch", r.prefetch)

	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    mq.QueueJobsReady,
		Handler:  r.handleJobReady,
		Prefetch: r.prefetch,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("job consumer error", "error", err)
		}
	}()

	r.logger.Info("executor started")
	<-ctx.Done()
	return ctx.Err()
}

// Stop останавливает Runner.
func (r *Runner) Stop() {
	r.logger.Info("stopping executor...")

	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	if r.consumer != nil {
		r.consumer.Stop()
	}

	r.wg.Wait()
	r.logger.Info("executor stopped")
}

// handleJobReady обрабатывает событие job.ready из очереди.
func (r *Runner) handleJobReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobReadyPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse job.ready payload", "error", err)
		return err
	}

	logger := telemetry.WithJobID(
		telemetry.WithPipelineID(r.logger, payload.PipelineID.String()),
		payload.JobID.String(),
	)

	if err := r.processJob(ctx, payload.JobID, logger); err != nil {
		// Job уже захвачен или исчез — ожидаемая ситуация при
		// нескольких executor'ах, ack без retry.
		if errors.Is(err, ErrJobNotPending) || errors.Is(err, ErrJobNotFound) {
			logger.Debug("job not processed", "reason", err)
			return nil
		}
		logger.Error("failed to process job", "error", err)
		return err
	}

	return nil
}

// processJob захватывает job, выполняет его и записывает результат.
func (r *Runner) processJob(ctx context.Context, jobID uuid.UUID, logger *slog.Logger) error {
	// 1. Атомарный захват: pending -> running
	if err := r.jobRepo.ClaimPending(ctx, jobID); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrJobNotPending
		}
		return fmt.Errorf("claim job: %w", err)
	}

	job, err := r.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("get job: %w", err)
	}

	pipeline, err := r.pipelineRepo.GetByID(ctx, job.PipelineID)
	if err != nil {
		return fmt.Errorf("get pipeline: %w", err)
	}

	// 2. Отмена pipeline выигрывает у выполнения
	if pipeline.CancelRequested {
		job.MarkCancelled()
		reported, err := r.reportResult(ctx, job, logger)
		if err != nil {
			return fmt.Errorf("report cancelled job: %w", err)
		}
		if !reported {
			return nil
		}
		logger.Info("job cancelled before execution")
		return r.publishCompletion(ctx, job, nil, logger)
	}

	logger.Info("job started",
		"role", job.Role,
		"retry_count", job.RetryCount,
		"timeout_seconds", job.TimeoutSeconds,
	)

	// 3. Выполнение
	report, execErr := r.executor.Execute(ctx, job, pipeline.WorkspacePath)
	if execErr != nil {
		job.MarkFailed("executor_error", execErr.Error())
		reported, err := r.reportResult(ctx, job, logger)
		if err != nil {
			return fmt.Errorf("report failed job: %w", err)
		}
		if !reported {
			return nil
		}
		logger.Error("job execution error", "error", execErr)
		return r.publishCompletion(ctx, job, nil, logger)
	}

	// 4. Запись результата
	if report.Succeeded() {
		job.MarkCompleted(report.FinalOutput)
	} else {
		job.MarkFailed(report.TerminationReason, report.FinalOutput)
	}
	reported, err := r.reportResult(ctx, job, logger)
	if err != nil {
		return fmt.Errorf("report job result: %w", err)
	}
	if !reported {
		return nil
	}

	r.appendAction(ctx, job, report, logger)

	// 5. Артефакты собираются только для успешных jobs
	var artifacts []domain.Artifact
	if report.Succeeded() {
		artifacts = r.collectArtifacts(ctx, job, pipeline.WorkspacePath, report.FinalOutput, logger)
	}

	telemetry.JobsCompleted.WithLabelValues(string(job.Status)).Inc()

	logger.Info("job finished",
		"status", job.Status,
		"termination_reason", job.TerminationReason,
		"artifacts", len(artifacts),
	)

	return r.publishCompletion(ctx, job, artifacts, logger)
}

// reportResult записывает терминальный результат job. Возвращает
// false, если job уже не running: между захватом и завершением
// оркестратор успел каскадно отменить pipeline, и его слово последнее.
// Поздний отчёт отбрасывается целиком, без артефактов и публикации.
func (r *Runner) reportResult(ctx context.Context, job *domain.Job, logger *slog.Logger) (bool, error) {
	err := r.jobRepo.ReportResult(ctx, job)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repo.ErrInvalidState) {
		logger.Info("job no longer running, dropping result", "status", job.Status)
		return false, nil
	}
	return false, err
}

// collectArtifacts применяет стратегию job и регистрирует артефакты.
func (r *Runner) collectArtifacts(ctx context.Context, job *domain.Job, workspace, finalOutput string, logger *slog.Logger) []domain.Artifact {
	collector := CollectorFor(job.ArtifactStrategy)

	artifacts, err := collector.Collect(job, workspace, finalOutput)
	if err != nil {
		logger.Warn("artifact collection failed",
			"strategy", job.ArtifactStrategy,
			"error", err,
		)
		return nil
	}

	// Retry может перезаписывать артефакты предыдущей попытки
	overwrite := job.RetryCount > 0

	recorded := artifacts[:0]
	for i := range artifacts {
		a := &artifacts[i]
		if err := r.artifactRepo.Record(ctx, a, overwrite); err != nil {
			logger.Warn("failed to record artifact", "name", a.Name, "error", err)
			continue
		}
		recorded = append(recorded, *a)
	}

	return recorded
}

// appendAction пишет итоговую запись в лог действий job.
func (r *Runner) appendAction(ctx context.Context, job *domain.Job, report *Report, logger *slog.Logger) {
	action := &domain.Action{
		JobID:     job.ID,
		Iteration: job.Iteration + 1,
		Stdout:    report.FinalOutput,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.actionRepo.Append(ctx, action); err != nil {
		logger.Warn("failed to append action log", "error", err)
	}
}

// publishCompletion публикует отчёт job.completed.
func (r *Runner) publishCompletion(ctx context.Context, job *domain.Job, artifacts []domain.Artifact, logger *slog.Logger) error {
	if r.publisher == nil {
		logger.Warn("publisher not available, skipping job.completed publish")
		return nil
	}

	names := make([]string, 0, len(artifacts))
	for i := range artifacts {
		names = append(names, artifacts[i].Name)
	}

	payload := mq.JobCompletedPayload{
		JobID:             job.ID,
		PipelineID:        job.PipelineID,
		Status:            job.Status,
		TerminationReason: job.TerminationReason,
		FinalOutput:       job.Output,
		ArtifactsProduced: names,
	}

	if err := r.publisher.PublishJobCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку: job обновлён в БД, оркестратор
		// подхватит его через polling
		logger.Warn("failed to publish job.completed", "error", err)
	}

	return nil
}
