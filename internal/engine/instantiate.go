package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// InstantiationPlan — материализованный pipeline: строки, которые
// orchestrator записывает в store одной транзакцией.
type InstantiationPlan struct {
	Pipeline     domain.Pipeline
	Stages       []domain.Stage
	Jobs         []domain.Job
	Dependencies []domain.JobDependency
}

// Instantiate разворачивает template в план pipeline.
//
// Multiplier template jobs не материализуются: их инстансы появляются
// только при размножении, после завершения source job. Template-рёбра,
// указывающие на multiplier, переносятся как template-уровневые
// (depends_on_template_job_id) и разрешаются в инстансы на каждом
// цикле. Рёбра, чей зависимый job сам является multiplier'ом,
// отбрасываются: инстансы при размножении получают единственное
// success-ребро на свой source job, упорядочивание относительно
// остального графа даёт stage-фронтир.
//
// excludedStageIDs позволяет инстанцировать усечённый pipeline
// (например, без deploy stage). Рёбра, упирающиеся в исключённый
// stage, отбрасываются вместе с ним.
func Instantiate(template *domain.Template, originalPrompt, workspacePath string, excludedStageIDs []uuid.UUID) (*InstantiationPlan, error) {
	if strings.TrimSpace(originalPrompt) == "" {
		return nil, ErrEmptyPrompt
	}

	excluded := make(map[uuid.UUID]struct{}, len(excludedStageIDs))
	for _, id := range excludedStageIDs {
		excluded[id] = struct{}{}
	}

	now := time.Now().UTC()
	plan := &InstantiationPlan{
		Pipeline: domain.Pipeline{
			ID:             uuid.New(),
			TemplateID:     &template.ID,
			OriginalPrompt: originalPrompt,
			WorkspacePath:  workspacePath,
			Status:         domain.PipelineStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}

	vars := map[string]string{"original_prompt": originalPrompt}

	// jobByTemplate: материализованный инстанс каждого обычного
	// template job. dropped: template jobs, не попавшие в план
	// (multiplier или исключённый stage).
	jobByTemplate := make(map[uuid.UUID]uuid.UUID)
	multipliers := make(map[uuid.UUID]struct{})
	dropped := make(map[uuid.UUID]struct{})

	stages := append([]domain.TemplateStage(nil), template.Stages...)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })

	for si := range stages {
		ts := &stages[si]
		if _, skip := excluded[ts.ID]; skip {
			for ji := range ts.Jobs {
				dropped[ts.Jobs[ji].ID] = struct{}{}
			}
			continue
		}

		stage := domain.Stage{
			ID:         uuid.New(),
			PipelineID: plan.Pipeline.ID,
			Name:       ts.Name,
			Order:      ts.Order,
			Status:     domain.StageStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		plan.Stages = append(plan.Stages, stage)

		for ji := range ts.Jobs {
			tj := &ts.Jobs[ji]
			if tj.Multiplier != nil {
				if !tj.Multiplier.ParseStrategy.Valid() {
					return nil, fmt.Errorf("%w: %q (template job %s)", ErrUnknownParseStrategy, tj.Multiplier.ParseStrategy, tj.ID)
				}
				multipliers[tj.ID] = struct{}{}
				continue
			}

			prompt := domain.RenderPrompt(tj.PromptTemplate, vars)
			job := domain.Job{
				ID:               uuid.New(),
				PipelineID:       plan.Pipeline.ID,
				StageID:          stage.ID,
				TemplateJobID:    &tj.ID,
				Role:             tj.Role,
				Prompt:           prompt,
				OriginalPrompt:   prompt,
				Command:          tj.CommandTemplate,
				MaxIterations:    tj.MaxIterations,
				TimeoutSeconds:   tj.TimeoutSeconds,
				MaxRetries:       tj.MaxRetries,
				Retry:            tj.Retry,
				ArtifactStrategy: tj.ArtifactStrategy,
				Status:           domain.JobStatusPending,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			plan.Jobs = append(plan.Jobs, job)
			jobByTemplate[tj.ID] = job.ID
		}
	}

	if len(plan.Jobs) == 0 {
		return nil, ErrEmptyTemplate
	}

	for _, td := range template.Dependencies {
		if _, skip := dropped[td.TemplateJobID]; skip {
			continue
		}
		if _, skip := dropped[td.DependsOnTemplateJobID]; skip {
			continue
		}
		if _, isMult := multipliers[td.TemplateJobID]; isMult {
			continue
		}

		dependerID, ok := jobByTemplate[td.TemplateJobID]
		if !ok {
			return nil, fmt.Errorf("%w: template job %s не материализован", ErrSourceNotFound, td.TemplateJobID)
		}

		edge := domain.JobDependency{
			JobID:     dependerID,
			Type:      td.Type,
			CreatedAt: now,
		}
		if _, isMult := multipliers[td.DependsOnTemplateJobID]; isMult {
			upstream := td.DependsOnTemplateJobID
			edge.DependsOnTemplateJobID = &upstream
		} else {
			upstreamID, ok := jobByTemplate[td.DependsOnTemplateJobID]
			if !ok {
				return nil, fmt.Errorf("%w: upstream template job %s не материализован", ErrSourceNotFound, td.DependsOnTemplateJobID)
			}
			edge.DependsOnJobID = &upstreamID
		}
		plan.Dependencies = append(plan.Dependencies, edge)
	}

	return plan, nil
}
