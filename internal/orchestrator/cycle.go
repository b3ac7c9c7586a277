package orchestrator

import (
	"errors"

	"github.com/google/uuid"

	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/engine"
)

// TerminationMalformedOutput — source job завершился успешно, но его
// вывод не распарсился стратегией multiplier. Структурная ошибка,
// retry не применяется.
const TerminationMalformedOutput = "malformed_multiplier_output"

// CyclePlan — план мутаций одного цикла оркестратора.
//
// План строится чистой функцией PlanCycle по снимку pipeline
// и применяется к БД отдельно. Jobs из Retries, Failed и Skipped
// уже мутированы в снимке; их нужно только записать.
type CyclePlan struct {
	// Spawned — батчи новых jobs: multiplier-размножения
	// (с маркером) и regression-спавны (без).
	Spawned []SpawnBatch

	// Retries — jobs, сброшенные в pending для повторной попытки.
	Retries []uuid.UUID

	// Failed — jobs, переведённые в failed циклом (не executor'ом).
	Failed []uuid.UUID

	// Skipped — jobs, пропущенные каскадом от упавших зависимостей.
	Skipped []uuid.UUID

	// StageUpdates — stages с изменившимся агрегатным статусом.
	StageUpdates []uuid.UUID

	// Dispatch — готовые jobs для отправки executor'ам (FIFO).
	Dispatch []uuid.UUID

	// PipelineStatus — агрегатный статус pipeline после плана.
	PipelineStatus domain.PipelineStatus

	// Warnings — не фатальные проблемы цикла (битые директивы,
	// отклонённые спавны).
	Warnings []CycleWarning
}

// SpawnBatch — атомарно записываемая группа новых jobs.
type SpawnBatch struct {
	Jobs         []domain.Job
	Dependencies []domain.JobDependency
	Marker       *domain.MultiplierExpansion
}

// CycleWarning — проблема, обнаруженная циклом и требующая только
// логирования.
type CycleWarning struct {
	JobID uuid.UUID
	Err   error
}

// CycleOptions — параметры планирования цикла.
type CycleOptions struct {
	// MaxConcurrent — максимум одновременно выполняющихся jobs
	// pipeline. 0 — без ограничения.
	MaxConcurrent int

	// SourceOutput — откуда брать вывод source job для multiplier.
	// Nil — поле Output job. Оркестратор подставляет содержимое
	// артефакта, указанного в multiplier spec.
	SourceOutput func(mult *domain.TemplateJob, source *domain.Job) string
}

// PlanCycle строит план одного цикла по снимку pipeline.
//
// Порядок фиксирован: размножения → regression-спавны → retry →
// каскадный skip → агрегаты → dispatch. Retry идёт до propagation,
// чтобы ретраящийся job не утянул своих зависимых в skipped.
func PlanCycle(s *engine.Snapshot, opts CycleOptions) *CyclePlan {
	plan := &CyclePlan{}

	planExpansions(s, opts, plan)
	planRegressions(s, plan)
	planRetries(s, plan)

	plan.Skipped = engine.PropagateFailure(s)

	for i := range s.Stages {
		stage := &s.Stages[i]
		status := engine.StageStatusOf(s, stage)
		if status != stage.Status {
			stage.Status = status
			plan.StageUpdates = append(plan.StageUpdates, stage.ID)
		}
	}

	plan.PipelineStatus = engine.PipelineStatusOf(s)
	// Снимок не видит спавнов этого же цикла: терминальный агрегат
	// при непустых батчах преждевременен.
	if plan.PipelineStatus.IsTerminal() && len(plan.Spawned) > 0 {
		plan.PipelineStatus = domain.PipelineStatusRunning
	}

	planDispatch(s, opts, plan)

	return plan
}

// planExpansions находит завершённые source jobs без маркера
// и строит для каждого план размножения.
func planExpansions(s *engine.Snapshot, opts CycleOptions, plan *CyclePlan) {
	for _, mult := range s.MultiplierJobs() {
		for _, source := range s.InstancesOf(mult.Multiplier.SourceTemplateJobID) {
			if source.Status != domain.JobStatusCompleted {
				continue
			}
			if s.ExpandedFrom(mult.ID, source.ID) != nil {
				continue
			}

			output := source.Output
			if opts.SourceOutput != nil {
				output = opts.SourceOutput(mult, source)
			}

			exp, err := engine.Expand(s, mult, source, output)
			if err != nil {
				if errors.Is(err, engine.ErrMalformedItems) {
					// Невозможность распарсить вывод — структурный
					// провал source job, без retry
					source.MarkFailed(TerminationMalformedOutput, source.Output)
					plan.Failed = append(plan.Failed, source.ID)
				}
				plan.Warnings = append(plan.Warnings, CycleWarning{JobID: source.ID, Err: err})
				continue
			}
			if exp == nil {
				continue
			}

			plan.Spawned = append(plan.Spawned, SpawnBatch{
				Jobs:         exp.Jobs,
				Dependencies: exp.Dependencies,
				Marker:       &exp.Marker,
			})
		}
	}
}

// planRegressions разбирает spawn-директивы завершённых jobs.
// Каждый job порождает не более одного regression job за всю жизнь.
func planRegressions(s *engine.Snapshot, plan *CyclePlan) {
	for i := range s.Jobs {
		parent := &s.Jobs[i]
		if parent.Status != domain.JobStatusCompleted {
			continue
		}
		if hasRegressionChild(s, parent.ID) {
			continue
		}

		directive, err := engine.ParseSpawnDirective(parent.Output)
		if err != nil {
			plan.Warnings = append(plan.Warnings, CycleWarning{JobID: parent.ID, Err: err})
			continue
		}
		if directive == nil {
			continue
		}

		rp, err := engine.PlanRegression(s, parent, directive)
		if err != nil {
			plan.Warnings = append(plan.Warnings, CycleWarning{JobID: parent.ID, Err: err})
			continue
		}

		plan.Spawned = append(plan.Spawned, SpawnBatch{
			Jobs:         []domain.Job{rp.Job},
			Dependencies: rp.Dependencies,
		})
	}
}

// hasRegressionChild проверяет, породил ли job уже regression job.
func hasRegressionChild(s *engine.Snapshot, parentID uuid.UUID) bool {
	for i := range s.Jobs {
		j := &s.Jobs[i]
		if j.ParentJobID != nil && *j.ParentJobID == parentID && j.IsRegression() {
			return true
		}
	}
	return false
}

// planRetries сбрасывает в pending упавшие jobs с retryable причиной.
func planRetries(s *engine.Snapshot, plan *CyclePlan) {
	for i := range s.Jobs {
		job := &s.Jobs[i]
		if !engine.ShouldRetry(s.Pipeline, job) {
			continue
		}

		job.ResetForRetry(engine.BuildRetryPrompt(job))
		plan.Retries = append(plan.Retries, job.ID)
	}
}

// planDispatch отбирает готовые jobs с учётом лимита параллелизма.
func planDispatch(s *engine.Snapshot, opts CycleOptions, plan *CyclePlan) {
	ready := engine.ReadyJobs(s)
	if len(ready) == 0 {
		return
	}

	if opts.MaxConcurrent > 0 {
		running := 0
		for i := range s.Jobs {
			if s.Jobs[i].Status == domain.JobStatusRunning {
				running++
			}
		}

		budget := opts.MaxConcurrent - running
		if budget <= 0 {
			return
		}
		if len(ready) > budget {
			ready = ready[:budget]
		}
	}

	plan.Dispatch = ready
}
