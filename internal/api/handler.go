package api

import (
	"log/slog"

	"github.com/shaiso/Colony/internal/mq"
	"github.com/shaiso/Colony/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	templateRepo *repo.TemplateRepo
	pipelineRepo *repo.PipelineRepo
	stageRepo    *repo.StageRepo
	jobRepo      *repo.JobRepo
	artifactRepo *repo.ArtifactRepo
	actionRepo   *repo.ActionRepo
	scheduleRepo *repo.ScheduleRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	TemplateRepo *repo.TemplateRepo
	PipelineRepo *repo.PipelineRepo
	StageRepo    *repo.StageRepo
	JobRepo      *repo.JobRepo
	ArtifactRepo *repo.ArtifactRepo
	ActionRepo   *repo.ActionRepo
	ScheduleRepo *repo.ScheduleRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		templateRepo: cfg.TemplateRepo,
		pipelineRepo: cfg.PipelineRepo,
		stageRepo:    cfg.StageRepo,
		jobRepo:      cfg.JobRepo,
		artifactRepo: cfg.ArtifactRepo,
		actionRepo:   cfg.ActionRepo,
		scheduleRepo: cfg.ScheduleRepo,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
