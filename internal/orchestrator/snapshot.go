package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Colony/internal/engine"
	"github.com/shaiso/Colony/internal/repo"
)

// loadSnapshot собирает консистентный снимок pipeline из БД.
//
// Все коллекции читаются в рамках одного цикла; возможное отставание
// между чтениями безопасно: решения по устаревшему снимку идемпотентны
// и будут пересчитаны на следующем цикле.
func (o *Orchestrator) loadSnapshot(ctx context.Context, pipelineID uuid.UUID) (*engine.Snapshot, error) {
	pipeline, err := o.pipelineRepo.GetByID(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, pipelineID)
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}

	s := &engine.Snapshot{Pipeline: pipeline}

	if pipeline.TemplateID != nil {
		template, err := o.templateRepo.GetByID(ctx, *pipeline.TemplateID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, *pipeline.TemplateID)
			}
			return nil, fmt.Errorf("get template: %w", err)
		}
		s.Template = template
	}

	if s.Stages, err = o.stageRepo.ListByPipeline(ctx, pipelineID); err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	if s.Jobs, err = o.jobRepo.ListByPipeline(ctx, pipelineID); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if s.Dependencies, err = o.dependencyRepo.ListByPipeline(ctx, pipelineID); err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	if s.Expansions, err = o.expansionRepo.ListByPipeline(ctx, pipelineID); err != nil {
		return nil, fmt.Errorf("list expansions: %w", err)
	}

	s.Index()
	return s, nil
}
