package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval  = 5 * time.Second
	defaultBatchSize     = 100
	defaultMaxConcurrent = 4
)

// Store-интерфейсы описывают ровно те операции хранилища, которые
// нужны циклу оркестрации. Реализуются репозиториями пакета repo;
// в тестах подменяются fakes.

// PipelineStore — операции над pipelines.
type PipelineStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error)
	ListActive(ctx context.Context, limit int) ([]domain.Pipeline, error)
	Update(ctx context.Context, p *domain.Pipeline) error
}

// StageStore — операции над stages.
type StageStore interface {
	ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Stage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.StageStatus) error
}

// JobStore — операции над jobs.
type JobStore interface {
	ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Job, error)
	CreateWithEdges(ctx context.Context, jobs []domain.Job, deps []domain.JobDependency, expansion *domain.MultiplierExpansion) error
	Update(ctx context.Context, job *domain.Job) error
	CancelNonTerminal(ctx context.Context, pipelineID uuid.UUID) (int64, error)
}

// DependencyStore — чтение рёбер зависимостей.
type DependencyStore interface {
	ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.JobDependency, error)
}

// ExpansionStore — чтение маркеров размножений.
type ExpansionStore interface {
	ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.MultiplierExpansion, error)
}

// ArtifactStore — операции над артефактами и их потреблением.
type ArtifactStore interface {
	GetByJobAndName(ctx context.Context, jobID uuid.UUID, name string) (*domain.Artifact, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Artifact, error)
	RecordConsumption(ctx context.Context, jobID, artifactID uuid.UUID) error
}

// TemplateStore — чтение templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)
}

// Orchestrator управляет выполнением pipelines.
//
// Orchestrator — "мозг" системы, но сам ничего не выполняет: он
// вычисляет готовность jobs по снимку БД и публикует их executor'ам.
// События очереди (pipeline.pending, job.completed) лишь ускоряют
// реакцию; polling по активным pipelines гарантирует прогресс и без
// них.
type Orchestrator struct {
	// Stores
	pipelineRepo   PipelineStore
	stageRepo      StageStore
	jobRepo        JobStore
	dependencyRepo DependencyStore
	expansionRepo  ExpansionStore
	artifactRepo   ArtifactStore
	templateRepo   TemplateStore

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Consumers
	pipelineConsumer *mq.Consumer
	jobConsumer      *mq.Consumer

	// Configuration
	pollInterval  time.Duration
	batchSize     int
	maxConcurrent int

	// processing защищает pipeline от параллельной обработки
	// одним процессом (событие + polling одновременно)
	processing   map[string]struct{}
	processingMu sync.Mutex

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	PipelineRepo   PipelineStore
	StageRepo      StageStore
	JobRepo        JobStore
	DependencyRepo DependencyStore
	ExpansionRepo  ExpansionStore
	ArtifactRepo   ArtifactStore
	TemplateRepo   TemplateStore

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 5s)
	BatchSize    int           // количество pipelines за один poll (default: 100)

	// MaxConcurrent — лимит одновременно выполняющихся jobs
	// на pipeline (default: 4; отрицательное значение — без лимита)
	MaxConcurrent int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if maxConcurrent < 0 {
		maxConcurrent = 0
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		pipelineRepo:   cfg.PipelineRepo,
		stageRepo:      cfg.StageRepo,
		jobRepo:        cfg.JobRepo,
		dependencyRepo: cfg.DependencyRepo,
		expansionRepo:  cfg.ExpansionRepo,
		artifactRepo:   cfg.ArtifactRepo,
		templateRepo:   cfg.TemplateRepo,
		publisher:      cfg.Publisher,
		conn:           cfg.Conn,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		maxConcurrent:  maxConcurrent,
		processing:     make(map[string]struct{}),
		logger:         logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для pipelines.pending
//   - Consumer для jobs.completed
//   - Polling горутину по активным pipelines
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
		"max_concurrent", o.maxConcurrent,
	)

	o.pipelineConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueuePipelinesPending,
		Handler:  o.handlePipelinePending,
		Prefetch: 10,
	})

	o.jobConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueueJobsCompleted,
		Handler:  o.handleJobCompleted,
		Prefetch: 10,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.pipelineConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("pipeline consumer error", "error", err)
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.jobConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("job consumer error", "error", err)
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	if o.pipelineConsumer != nil {
		o.pipelineConsumer.Stop()
	}
	if o.jobConsumer != nil {
		o.jobConsumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling по активным pipelines.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем pipelines,
	// созданные пока оркестратор был выключен)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл по всем активным pipelines.
func (o *Orchestrator) poll(ctx context.Context) {
	telemetry.OrchestratorCycles.Inc()

	pipelines, err := o.pipelineRepo.ListActive(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list active pipelines", "error", err)
		return
	}

	if len(pipelines) == 0 {
		return
	}

	o.logger.Debug("poll found active pipelines", "count", len(pipelines))

	for i := range pipelines {
		if err := o.processPipeline(ctx, pipelines[i].ID); err != nil {
			o.logger.Error("failed to process pipeline from poll",
				"pipeline_id", pipelines[i].ID,
				"error", err,
			)
		}
	}
}

// tryAcquire помечает pipeline обрабатываемым. Возвращает false,
// если он уже в обработке.
func (o *Orchestrator) tryAcquire(key string) bool {
	o.processingMu.Lock()
	defer o.processingMu.Unlock()

	if _, busy := o.processing[key]; busy {
		return false
	}
	o.processing[key] = struct{}{}
	return true
}

// release снимает пометку обработки.
func (o *Orchestrator) release(key string) {
	o.processingMu.Lock()
	defer o.processingMu.Unlock()
	delete(o.processing, key)
}
