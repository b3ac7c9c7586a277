package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/engine"
	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/telemetry"
)

// handlePipelinePending обрабатывает событие о новом pipeline.
func (o *Orchestrator) handlePipelinePending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.PipelinePendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse pipeline.pending payload", "error", err)
		return err
	}

	o.logger.Debug("received pipeline.pending event", "pipeline_id", payload.PipelineID)

	if err := o.processPipeline(ctx, payload.PipelineID); err != nil {
		if errors.Is(err, ErrPipelineNotFound) || errors.Is(err, ErrPipelineFinished) {
			o.logger.Debug("pipeline not processed", "pipeline_id", payload.PipelineID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process pipeline", "pipeline_id", payload.PipelineID, "error", err)
		return err
	}

	return nil
}

// handleJobCompleted обрабатывает отчёт executor'а.
//
// Отчёт — только сигнал: состояние job уже записано executor'ом в БД,
// поэтому обработка сводится к внеочередному циклу его pipeline.
func (o *Orchestrator) handleJobCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse job.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received job.completed event",
		"job_id", payload.JobID,
		"pipeline_id", payload.PipelineID,
		"status", payload.Status,
	)

	if err := o.processPipeline(ctx, payload.PipelineID); err != nil {
		if errors.Is(err, ErrPipelineNotFound) || errors.Is(err, ErrPipelineFinished) {
			return nil
		}
		o.logger.Error("failed to process pipeline after job completion",
			"pipeline_id", payload.PipelineID,
			"error", err,
		)
		return err
	}

	return nil
}

// processPipeline выполняет один цикл оркестрации для pipeline:
// снимок → план → применение.
func (o *Orchestrator) processPipeline(ctx context.Context, pipelineID uuid.UUID) error {
	key := pipelineID.String()
	if !o.tryAcquire(key) {
		return nil
	}
	defer o.release(key)

	s, err := o.loadSnapshot(ctx, pipelineID)
	if err != nil {
		return err
	}

	logger := telemetry.WithPipelineID(o.logger, key)

	if s.Pipeline.Status.IsTerminal() {
		return ErrPipelineFinished
	}

	// Отмена выигрывает у любого прогресса
	if s.Pipeline.CancelRequested {
		return o.cancelPipeline(ctx, s, logger)
	}

	plan := PlanCycle(s, CycleOptions{
		MaxConcurrent: o.maxConcurrent,
		SourceOutput:  o.multiplierSource(ctx),
	})

	return o.applyPlan(ctx, s, plan, logger)
}

// cancelPipeline каскадно отменяет jobs и финализирует pipeline.
func (o *Orchestrator) cancelPipeline(ctx context.Context, s *engine.Snapshot, logger *slog.Logger) error {
	cancelled, err := o.jobRepo.CancelNonTerminal(ctx, s.Pipeline.ID)
	if err != nil {
		return fmt.Errorf("cancel jobs: %w", err)
	}

	s.Pipeline.MarkCancelled()
	if err := o.pipelineRepo.Update(ctx, s.Pipeline); err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}

	logger.Info("pipeline cancelled", "cancelled_jobs", cancelled)
	telemetry.PipelineDuration.WithLabelValues(string(domain.PipelineStatusCancelled)).
		Observe(s.Pipeline.Duration().Seconds())

	return nil
}

// applyPlan записывает план цикла в БД и публикует dispatch-события.
//
// Порядок применения повторяет порядок планирования; каждая запись
// идемпотентна (ON CONFLICT / conditional UPDATE), поэтому частично
// применённый план безопасно доигрывается следующим циклом.
func (o *Orchestrator) applyPlan(ctx context.Context, s *engine.Snapshot, plan *CyclePlan, logger *slog.Logger) error {
	for _, w := range plan.Warnings {
		logger.Warn("cycle warning", "job_id", w.JobID, "error", w.Err)
	}

	for i := range plan.Spawned {
		batch := &plan.Spawned[i]
		if err := o.jobRepo.CreateWithEdges(ctx, batch.Jobs, batch.Dependencies, batch.Marker); err != nil {
			return fmt.Errorf("create spawned jobs: %w", err)
		}

		if batch.Marker != nil {
			telemetry.MultiplierExpansions.Inc()
			telemetry.MultiplierJobsSpawned.Add(float64(len(batch.Jobs)))
			logger.Info("multiplier expanded",
				"source_job_id", batch.Marker.SourceJobID,
				"spawned", batch.Marker.SpawnedCount,
			)
		} else if len(batch.Jobs) > 0 {
			telemetry.RegressionsSpawned.Inc()
			logger.Info("regression job spawned",
				"job_id", batch.Jobs[0].ID,
				"parent_job_id", batch.Jobs[0].ParentJobID,
				"reason", batch.Jobs[0].RegressionContext,
			)
		}
	}

	for _, ids := range [][]uuid.UUID{plan.Retries, plan.Failed, plan.Skipped} {
		for _, id := range ids {
			if err := o.jobRepo.Update(ctx, s.JobByID(id)); err != nil {
				return fmt.Errorf("update job %s: %w", id, err)
			}
		}
	}
	if n := len(plan.Retries); n > 0 {
		telemetry.JobRetries.Add(float64(n))
		logger.Info("jobs rescheduled for retry", "count", n)
	}
	if len(plan.Skipped) > 0 {
		logger.Info("jobs skipped after upstream failure", "count", len(plan.Skipped))
	}

	for _, stageID := range plan.StageUpdates {
		stage := s.StageByID(stageID)
		if err := o.stageRepo.UpdateStatus(ctx, stageID, stage.Status); err != nil {
			return fmt.Errorf("update stage %s: %w", stageID, err)
		}
	}

	if plan.PipelineStatus != s.Pipeline.Status {
		o.transitionPipeline(s.Pipeline, plan.PipelineStatus, logger)
		if err := o.pipelineRepo.Update(ctx, s.Pipeline); err != nil {
			return fmt.Errorf("update pipeline: %w", err)
		}
	}

	for _, jobID := range plan.Dispatch {
		if err := o.dispatchJob(ctx, s, jobID, logger); err != nil {
			logger.Error("failed to dispatch job", "job_id", jobID, "error", err)
			// Продолжаем с остальными: job остаётся pending
			// и уйдёт на следующем цикле
		}
	}

	return nil
}

// transitionPipeline применяет агрегатный статус к pipeline.
func (o *Orchestrator) transitionPipeline(p *domain.Pipeline, status domain.PipelineStatus, logger *slog.Logger) {
	switch status {
	case domain.PipelineStatusRunning:
		p.MarkRunning()
		logger.Info("pipeline started")
	case domain.PipelineStatusCompleted:
		p.MarkCompleted()
		logger.Info("pipeline completed", "duration", p.Duration())
	case domain.PipelineStatusFailed:
		p.MarkFailed()
		logger.Warn("pipeline failed", "duration", p.Duration())
	case domain.PipelineStatusCancelled:
		p.MarkCancelled()
		logger.Info("pipeline cancelled")
	}

	if status.IsTerminal() {
		telemetry.PipelineDuration.WithLabelValues(string(status)).
			Observe(p.Duration().Seconds())
	}
}

// dispatchJob регистрирует потребление входных артефактов
// и публикует job.ready.
func (o *Orchestrator) dispatchJob(ctx context.Context, s *engine.Snapshot, jobID uuid.UUID, logger *slog.Logger) error {
	// Артефакты прямых зависимостей считаются потреблёнными
	// в момент dispatch
	for _, sourceID := range engine.ArtifactSourceJobs(s, jobID) {
		artifacts, err := o.artifactRepo.ListByJob(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("list input artifacts: %w", err)
		}
		for i := range artifacts {
			if err := o.artifactRepo.RecordConsumption(ctx, jobID, artifacts[i].ID); err != nil {
				return fmt.Errorf("record consumption: %w", err)
			}
		}
	}

	if err := o.publisher.PublishJobReady(ctx, jobID, s.Pipeline.ID); err != nil {
		// Job остаётся pending; следующий poll опубликует снова
		return fmt.Errorf("publish job.ready: %w", err)
	}

	telemetry.JobsDispatched.Inc()
	logger.Debug("job dispatched",
		"job_id", jobID,
		"role", s.JobByID(jobID).Role,
	)

	return nil
}

// multiplierSource возвращает резолвер вывода source job: сначала
// артефакт, указанный в multiplier spec, затем поле Output.
func (o *Orchestrator) multiplierSource(ctx context.Context) func(*domain.TemplateJob, *domain.Job) string {
	return func(mult *domain.TemplateJob, source *domain.Job) string {
		artifact, err := o.artifactRepo.GetByJobAndName(ctx, source.ID, mult.Multiplier.SourceArtifactName())
		if err == nil && artifact.Content != "" {
			return artifact.Content
		}
		return source.Output
	}
}
