package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// RegressionPlan — результат обработки spawn-директивы: новый job
// в целевом stage и рёбра, которые должны удовлетвориться до того,
// как pipeline сможет считаться прошедшим этот stage.
type RegressionPlan struct {
	Job          domain.Job
	Dependencies []domain.JobDependency
}

// PlanRegression строит план повторного входа в stage по директиве
// завершённого parent job.
//
// Новый job собственных зависимостей не получает (он готов сразу,
// stage-гейт на regression jobs не действует). Вместо этого каждый
// ещё не запущенный потребитель целевого stage дополнительно
// зависит от нового job с типом success: regression не откатывает
// pipeline, а добавляет работу, которую агрегат завершения stage
// обязан учесть.
//
// Директива с неизвестным stage отклоняется. Ребро, замыкающее цикл
// в runtime-графе, отклоняется целиком: частично применённый план
// оставил бы граф в неопределённом состоянии.
func PlanRegression(s *Snapshot, parent *domain.Job, d *domain.SpawnDirective) (*RegressionPlan, error) {
	stage := s.StageByName(d.Stage)
	if stage == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, d.Stage)
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:                uuid.New(),
		PipelineID:        s.Pipeline.ID,
		StageID:           stage.ID,
		ParentJobID:       &parent.ID,
		Role:              parent.Role,
		Prompt:            d.Prompt,
		OriginalPrompt:    d.Prompt,
		MaxIterations:     parent.MaxIterations,
		TimeoutSeconds:    parent.TimeoutSeconds,
		MaxRetries:        parent.MaxRetries,
		Retry:             parent.Retry,
		ArtifactStrategy:  parent.ArtifactStrategy,
		AllowedPaths:      parent.AllowedPaths,
		RegressionContext: d.Reason,
		Status:            domain.JobStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Роль и лимиты наследуются от представителя целевого stage,
	// если template его знает: job повторного входа в dev должен
	// выглядеть как dev job, а не как спровоцировавший его verifier.
	if rep := stageRepresentative(s, stage); rep != nil {
		job.Role = rep.Role
		job.MaxIterations = rep.MaxIterations
		job.TimeoutSeconds = rep.TimeoutSeconds
		job.MaxRetries = rep.MaxRetries
		job.Retry = rep.Retry
		job.ArtifactStrategy = rep.ArtifactStrategy
	}

	plan := &RegressionPlan{Job: job}
	for _, consumer := range stageConsumers(s, stage) {
		if WouldCreateCycle(s, consumer.ID, parent.ID) {
			return nil, fmt.Errorf("%w: потребитель %s уже предок породившего job %s", ErrCyclicDependency, consumer.ID, parent.ID)
		}
		plan.Dependencies = append(plan.Dependencies, domain.JobDependency{
			JobID:          consumer.ID,
			DependsOnJobID: &plan.Job.ID,
			Type:           domain.DependencySuccess,
			CreatedAt:      now,
		})
	}

	return plan, nil
}

// stageRepresentative возвращает первый template job целевого stage.
func stageRepresentative(s *Snapshot, stage *domain.Stage) *domain.TemplateJob {
	if s.Template == nil {
		return nil
	}
	ts := s.Template.FindStageByName(stage.Name)
	if ts == nil || len(ts.Jobs) == 0 {
		return nil
	}
	return &ts.Jobs[0]
}

// stageConsumers возвращает изначально запланированные (не regression)
// нетерминальные jobs, зависящие хотя бы от одного job или template job
// целевого stage.
func stageConsumers(s *Snapshot, stage *domain.Stage) []*domain.Job {
	inStage := make(map[uuid.UUID]struct{})
	for _, j := range s.JobsOfStage(stage.ID) {
		inStage[j.ID] = struct{}{}
	}

	templateInStage := make(map[uuid.UUID]struct{})
	if s.Template != nil {
		if ts := s.Template.FindStageByName(stage.Name); ts != nil {
			for i := range ts.Jobs {
				templateInStage[ts.Jobs[i].ID] = struct{}{}
			}
		}
	}

	var consumers []*domain.Job
	for _, job := range s.sortedByCreation() {
		if job.IsRegression() || job.Status.IsTerminal() {
			continue
		}
		for _, dep := range s.DepsOf(job.ID) {
			hit := false
			switch {
			case dep.DependsOnJobID != nil:
				_, hit = inStage[*dep.DependsOnJobID]
			case dep.DependsOnTemplateJobID != nil:
				_, hit = templateInStage[*dep.DependsOnTemplateJobID]
			}
			if hit {
				consumers = append(consumers, job)
				break
			}
		}
	}
	return consumers
}
