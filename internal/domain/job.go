package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job — единица выполнения: один запуск LLM-агента.
//
// Job создаётся:
//   - При инстанцировании template (обычные jobs)
//   - Multiplier'ом — по одному на каждый элемент распарсенного вывода
//     source job
//   - Regression'ом — завершённый job может породить новый job
//     в уже пройденном stage
//
// Job выполняется внешним executor'ом; оркестратор видит только
// контракт (status, termination_reason, final_output, artifacts).
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// StageID — stage, которому принадлежит job.
	// Инвариант: stage принадлежит тому же pipeline.
	StageID uuid.UUID `json:"stage_id"`

	// TemplateJobID — template job, из которого инстанцирован этот job.
	// Nil для ad hoc и regression jobs. По этому ID multiplier находит
	// всех "siblings" — jobs, созданных из одного template job.
	TemplateJobID *uuid.UUID `json:"template_job_id,omitempty"`

	// ParentJobID — job, породивший этот (multiplier или regression).
	ParentJobID *uuid.UUID `json:"parent_job_id,omitempty"`

	// Role — роль агента (например, "planner", "coder", "verifier").
	Role string `json:"role"`

	// Prompt — текущий промпт. Мутабельный: retry, multiplier и
	// regression могут его переписывать.
	Prompt string `json:"prompt"`

	// OriginalPrompt — снимок промпта на момент создания job,
	// до любых retry-аугментаций. Никогда не меняется.
	OriginalPrompt string `json:"original_prompt"`

	// Command — команда запуска executor'а. Пустая строка означает
	// команду по умолчанию.
	Command string `json:"command,omitempty"`

	// MaxIterations — лимит итераций агента.
	MaxIterations int `json:"max_iterations"`

	// TimeoutSeconds — таймаут выполнения в секундах.
	TimeoutSeconds int `json:"timeout_seconds"`

	// AllowedPaths — пути, доступные executor'у.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Iteration — счётчик итераций агента (заполняется executor'ом).
	Iteration int `json:"iteration"`

	// RetryCount — номер текущей повторной попытки (0 для первой).
	RetryCount int `json:"retry_count"`

	// MaxRetries — максимум повторных попыток.
	MaxRetries int `json:"max_retries"`

	// Retry — стратегия повторных попыток. Nil — ретраить без
	// аугментации контекста.
	Retry *RetrySpec `json:"retry,omitempty"`

	// ArtifactStrategy — как executor собирает артефакты
	// ("stdout_final", "file_list"). Пустая строка — stdout_final.
	ArtifactStrategy string `json:"artifact_strategy,omitempty"`

	// RegressionContext — причина, по которой родительский job породил
	// этот (только для regression jobs).
	RegressionContext string `json:"regression_context,omitempty"`

	// Output — финальный вывод последней попытки.
	Output string `json:"output,omitempty"`

	// TerminationReason — причина завершения, сообщённая executor'ом.
	TerminationReason string `json:"termination_reason,omitempty"`

	// StartedAt — время начала выполнения текущей попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время достижения терминального статуса.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания. Определяет FIFO-порядок dispatch
	// среди одинаково готовых jobs.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// RetrySpec — стратегия повторных попыток job.
type RetrySpec struct {
	// IncludeContext — добавлять ли вывод предыдущей попытки в промпт.
	IncludeContext bool `json:"include_context"`

	// ContextInstruction — инструкция, предваряющая вывод предыдущей
	// попытки. Пустая строка — DefaultContextInstruction.
	ContextInstruction string `json:"context_instruction,omitempty"`
}

// DefaultContextInstruction — инструкция retry-аугментации по умолчанию.
const DefaultContextInstruction = "IMPORTANT: This is a retry. Previous attempt output is below. Continue from where you left off.\n\n"

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// IsRegression возвращает true, если job порождён regression'ом:
// у него есть родитель и контекст причины.
func (j *Job) IsRegression() bool {
	return j.ParentJobID != nil && j.RegressionContext != ""
}

// CanRetry проверяет, допустима ли ещё одна попытка.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// MarkRunning переводит job в статус running.
func (j *Job) MarkRunning() {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted переводит job в статус completed с финальным выводом.
func (j *Job) MarkCompleted(output string) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.TerminationReason = TerminationSuccess
	j.Output = output
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed переводит job в статус failed.
func (j *Job) MarkFailed(reason, output string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.TerminationReason = reason
	j.Output = output
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkCancelled переводит job в статус cancelled.
func (j *Job) MarkCancelled() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.TerminationReason = TerminationCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkSkipped переводит job в статус skipped.
func (j *Job) MarkSkipped() {
	now := time.Now().UTC()
	j.Status = JobStatusSkipped
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// ResetForRetry подготавливает job к повторной попытке: инкрементирует
// retry_count, переписывает prompt и возвращает job в pending.
//
// Retry переиспользует ту же строку job (тот же id) — в отличие от
// regression, который всегда создаёт новый job.
func (j *Job) ResetForRetry(augmentedPrompt string) {
	j.RetryCount++
	j.Prompt = augmentedPrompt
	j.Status = JobStatusPending
	j.Iteration = 0
	j.StartedAt = nil
	j.CompletedAt = nil
	j.TerminationReason = ""
	j.UpdatedAt = time.Now().UTC()
}

// RenderPrompt подставляет значения в шаблон промпта.
// Поддерживаемые плейсхолдеры: {{original_prompt}}, {{item}}, {{index}}.
func RenderPrompt(template string, vars map[string]string) string {
	out := template
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}
	return out
}
