package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// ExpansionPlan — результат размножения: новые jobs, их рёбра
// и маркер, фиксирующий факт размножения. Orchestrator применяет
// план одной транзакцией.
type ExpansionPlan struct {
	Jobs         []domain.Job
	Dependencies []domain.JobDependency
	Marker       domain.MultiplierExpansion
}

// Expand строит план размножения multiplier template job от одного
// завершённого source job. output — финальный вывод source,
// из которого стратегия разбора извлекает элементы.
//
// Повторный вызов для пары (mult, source) с уже записанным маркером
// возвращает nil-план: размножение однократно. Ноль элементов — тоже
// валидное размножение: маркер записывается, инстансов не появляется,
// template-рёбра на mult удовлетворяются вакуумно.
func Expand(s *Snapshot, mult *domain.TemplateJob, source *domain.Job, output string) (*ExpansionPlan, error) {
	if mult.Multiplier == nil {
		return nil, fmt.Errorf("%w: template job %s", ErrNoMultiplier, mult.ID)
	}
	if s.ExpandedFrom(mult.ID, source.ID) != nil {
		return nil, nil
	}

	items, err := ParseItems(output, mult.Multiplier.ParseStrategy)
	if err != nil {
		return nil, err
	}

	stage, err := expansionStage(s, mult)
	if err != nil {
		return nil, err
	}

	promptTemplate := mult.Multiplier.PromptTemplate
	if promptTemplate == "" {
		promptTemplate = mult.PromptTemplate
	}

	now := time.Now().UTC()
	plan := &ExpansionPlan{
		Marker: domain.MultiplierExpansion{
			PipelineID:    s.Pipeline.ID,
			TemplateJobID: mult.ID,
			SourceJobID:   source.ID,
			SpawnedCount:  len(items),
			CreatedAt:     now,
		},
	}

	for i, item := range items {
		vars := map[string]string{
			"item":            item,
			"index":           strconv.Itoa(i),
			"original_prompt": s.Pipeline.OriginalPrompt,
		}
		prompt := domain.RenderPrompt(promptTemplate, vars)

		job := domain.Job{
			ID:               uuid.New(),
			PipelineID:       s.Pipeline.ID,
			StageID:          stage.ID,
			TemplateJobID:    &mult.ID,
			ParentJobID:      &source.ID,
			Role:             mult.Role,
			Prompt:           prompt,
			OriginalPrompt:   prompt,
			Command:          domain.RenderPrompt(mult.CommandTemplate, vars),
			MaxIterations:    mult.MaxIterations,
			TimeoutSeconds:   mult.TimeoutSeconds,
			MaxRetries:       mult.MaxRetries,
			Retry:            mult.Retry,
			ArtifactStrategy: mult.ArtifactStrategy,
			Status:           domain.JobStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		plan.Jobs = append(plan.Jobs, job)
		plan.Dependencies = append(plan.Dependencies, domain.JobDependency{
			JobID:          job.ID,
			DependsOnJobID: &source.ID,
			Type:           domain.DependencySuccess,
			CreatedAt:      now,
		})
	}

	return plan, nil
}

// expansionStage находит pipeline stage, в котором живут инстансы
// multiplier template job: stage с тем же именем, что и template
// stage, содержащий mult.
func expansionStage(s *Snapshot, mult *domain.TemplateJob) (*domain.Stage, error) {
	if s.Template == nil {
		return nil, fmt.Errorf("%w: snapshot без template", ErrUnknownStage)
	}
	for i := range s.Template.Stages {
		ts := &s.Template.Stages[i]
		for j := range ts.Jobs {
			if ts.Jobs[j].ID != mult.ID {
				continue
			}
			if stage := s.StageByName(ts.Name); stage != nil {
				return stage, nil
			}
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, ts.Name)
		}
	}
	return nil, fmt.Errorf("%w: template job %s вне всех stages", ErrUnknownStage, mult.ID)
}
