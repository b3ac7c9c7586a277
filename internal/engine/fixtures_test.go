package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// fixture собирает snapshot по кусочкам. Каждый добавленный job
// получает монотонно растущий created_at, так что FIFO-порядок
// в тестах совпадает с порядком добавления.
type fixture struct {
	s     *Snapshot
	clock time.Time
}

func newFixture() *fixture {
	return &fixture{
		s: &Snapshot{
			Pipeline: &domain.Pipeline{
				ID:             uuid.New(),
				OriginalPrompt: "собрать проект и прогнать тесты",
				Status:         domain.PipelineStatusRunning,
			},
		},
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) stage(name string, order int) uuid.UUID {
	id := uuid.New()
	f.s.Stages = append(f.s.Stages, domain.Stage{
		ID:         id,
		PipelineID: f.s.Pipeline.ID,
		Name:       name,
		Order:      order,
		Status:     domain.StageStatusPending,
		CreatedAt:  f.tick(),
	})
	return id
}

type jobSpec struct {
	stage       uuid.UUID
	status      domain.JobStatus
	templateJob *uuid.UUID
	parent      *uuid.UUID
	regression  string
	prompt      string
	output      string
	reason      string
	retryCount  int
	maxRetries  int
	retry       *domain.RetrySpec
}

func (f *fixture) addJob(spec jobSpec) uuid.UUID {
	now := f.tick()
	job := domain.Job{
		ID:                uuid.New(),
		PipelineID:        f.s.Pipeline.ID,
		StageID:           spec.stage,
		TemplateJobID:     spec.templateJob,
		ParentJobID:       spec.parent,
		Role:              "agent",
		Prompt:            spec.prompt,
		OriginalPrompt:    spec.prompt,
		Status:            spec.status,
		RegressionContext: spec.regression,
		Output:            spec.output,
		TerminationReason: spec.reason,
		RetryCount:        spec.retryCount,
		MaxRetries:        spec.maxRetries,
		Retry:             spec.retry,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.s.Jobs = append(f.s.Jobs, job)
	return job.ID
}

func (f *fixture) job(stage uuid.UUID, status domain.JobStatus) uuid.UUID {
	return f.addJob(jobSpec{stage: stage, status: status})
}

func (f *fixture) dep(jobID, dependsOn uuid.UUID, typ domain.DependencyType) {
	f.s.Dependencies = append(f.s.Dependencies, domain.JobDependency{
		JobID:          jobID,
		DependsOnJobID: &dependsOn,
		Type:           typ,
		CreatedAt:      f.tick(),
	})
}

func (f *fixture) templateDep(jobID, templateJobID uuid.UUID, typ domain.DependencyType) {
	f.s.Dependencies = append(f.s.Dependencies, domain.JobDependency{
		JobID:                  jobID,
		DependsOnTemplateJobID: &templateJobID,
		Type:                   typ,
		CreatedAt:              f.tick(),
	})
}

func (f *fixture) expanded(templateJobID, sourceJobID uuid.UUID, count int) {
	f.s.Expansions = append(f.s.Expansions, domain.MultiplierExpansion{
		PipelineID:    f.s.Pipeline.ID,
		TemplateJobID: templateJobID,
		SourceJobID:   sourceJobID,
		SpawnedCount:  count,
		CreatedAt:     f.tick(),
	})
}

// snap индексирует и возвращает snapshot. Вызывать после каждой
// серии добавлений: accessors полагаются на индексы.
func (f *fixture) snap() *Snapshot {
	f.s.Index()
	return f.s
}

// fanOutTemplate строит типовой template plan → code[multiplier] → verify:
// plan выдаёт JSON-массив задач, code размножается по ним, verify
// зависит от code на template-уровне.
func fanOutTemplate() (*domain.Template, planIDs) {
	ids := planIDs{
		planJob:   uuid.New(),
		codeJob:   uuid.New(),
		verifyJob: uuid.New(),
	}
	tpl := &domain.Template{
		ID:   uuid.New(),
		Name: "plan-code-verify",
		Stages: []domain.TemplateStage{
			{
				ID:    uuid.New(),
				Name:  "plan",
				Order: 1,
				Jobs: []domain.TemplateJob{{
					ID:             ids.planJob,
					Role:           "planner",
					PromptTemplate: "Разбей задачу на подзадачи: {{original_prompt}}",
					MaxIterations:  10,
					TimeoutSeconds: 600,
				}},
			},
			{
				ID:    uuid.New(),
				Name:  "code",
				Order: 2,
				Jobs: []domain.TemplateJob{{
					ID:             ids.codeJob,
					Role:           "coder",
					PromptTemplate: "Реализуй подзадачу",
					MaxIterations:  30,
					TimeoutSeconds: 1800,
					MaxRetries:     2,
					Multiplier: &domain.MultiplierSpec{
						SourceTemplateJobID: ids.planJob,
						ParseStrategy:       domain.ParseJSONArray,
						PromptTemplate:      "Подзадача {{index}}: {{item}}\n\nИсходная задача: {{original_prompt}}",
					},
				}},
			},
			{
				ID:    uuid.New(),
				Name:  "verify",
				Order: 3,
				Jobs: []domain.TemplateJob{{
					ID:             ids.verifyJob,
					Role:           "verifier",
					PromptTemplate: "Проверь результат: {{original_prompt}}",
					MaxIterations:  15,
					TimeoutSeconds: 900,
				}},
			},
		},
		Dependencies: []domain.TemplateJobDependency{
			{TemplateJobID: ids.codeJob, DependsOnTemplateJobID: ids.planJob, Type: domain.DependencySuccess},
			{TemplateJobID: ids.verifyJob, DependsOnTemplateJobID: ids.codeJob, Type: domain.DependencySuccess},
		},
	}
	return tpl, ids
}

type planIDs struct {
	planJob   uuid.UUID
	codeJob   uuid.UUID
	verifyJob uuid.UUID
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
