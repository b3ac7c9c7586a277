package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/engine"
	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/repo"
)

// Scheduler — планировщик, инстанцирующий templates по due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	templateRepo *repo.TemplateRepo
	pipelineRepo *repo.PipelineRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	TemplateRepo *repo.TemplateRepo
	PipelineRepo *repo.PipelineRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		templateRepo: cfg.TemplateRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Атомарно захватывает каждый (CAS по next_due_at)
// 3. Инстанцирует template в новый pipeline
// 4. Публикует pipeline.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var created int
	for i := range schedules {
		sched := &schedules[i]

		pipelineCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}
		if pipelineCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"pipelines_created", created,
	)

	return nil
}

// processSchedule обрабатывает один due schedule.
// Возвращает true, если pipeline был создан этим экземпляром.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	if sched.NextDueAt == nil {
		return false, nil
	}

	// 1. Вычисляем следующее срабатывание
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Schedule некорректный — не трогаем next_due_at,
		// чтобы проблему было видно
		s.logger.Warn("cannot calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		return false, nil
	}

	// 2. Атомарный захват: CAS по next_due_at гарантирует, что
	// это срабатывание достанется ровно одному экземпляру
	if err := s.scheduleRepo.ClaimDue(ctx, sched.ID, *sched.NextDueAt, nextDue); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			s.logger.Debug("schedule claimed by another instance", "schedule_id", sched.ID)
			return false, nil
		}
		return false, fmt.Errorf("claim schedule: %w", err)
	}

	// 3. Загружаем template
	template, err := s.templateRepo.GetByID(ctx, sched.TemplateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("template not found for schedule, skipping",
				"schedule_id", sched.ID,
				"template_id", sched.TemplateID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get template: %w", err)
	}

	// 4. Инстанцируем pipeline
	plan, err := engine.Instantiate(template, sched.Prompt, sched.WorkspacePath, nil)
	if err != nil {
		s.logger.Warn("template cannot be instantiated",
			"schedule_id", sched.ID,
			"template_id", template.ID,
			"error", err,
		)
		return false, nil
	}

	if err := s.pipelineRepo.CreateWithGraph(ctx, &plan.Pipeline, plan.Stages, plan.Jobs, plan.Dependencies); err != nil {
		return false, fmt.Errorf("create pipeline: %w", err)
	}

	if err := s.scheduleRepo.RecordRun(ctx, sched.ID, plan.Pipeline.ID); err != nil {
		s.logger.Warn("failed to record schedule run",
			"schedule_id", sched.ID,
			"error", err,
		)
	}

	s.logger.Info("created pipeline from schedule",
		"pipeline_id", plan.Pipeline.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"template", template.Name,
	)

	// 5. Публикуем событие (не фатально: orchestrator подхватит
	// pipeline через polling)
	if s.publisher != nil {
		if err := s.publisher.PublishPipelinePending(ctx, plan.Pipeline.ID); err != nil {
			s.logger.Warn("failed to publish pipeline.pending",
				"pipeline_id", plan.Pipeline.ID,
				"error", err,
			)
		}
	}

	return true, nil
}

// Run запускает планировщик с указанным интервалом тиков.
// Блокирует до отмены контекста.
func (s *Scheduler) Run(ctx context.Context, tickInterval time.Duration) error {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "tick_interval", tickInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}
