package engine

import "github.com/shaiso/Colony/internal/domain"

// ShouldRetry решает, положена ли упавшему job ещё одна попытка.
//
// Retry применяется только к "операционным" причинам падения
// (max_iterations_reached, timeout_exceeded): агент не успел, но может
// успеть со второй попытки. Внешняя отмена и структурные ошибки
// повторной попытки не получают.
func ShouldRetry(pipeline *domain.Pipeline, job *domain.Job) bool {
	if pipeline.CancelRequested {
		return false
	}
	if job.Status != domain.JobStatusFailed {
		return false
	}
	if !domain.RetryableTermination(job.TerminationReason) {
		return false
	}
	return job.CanRetry()
}

// BuildRetryPrompt строит промпт следующей попытки.
//
// Аугментация всегда стартует от OriginalPrompt, а не от текущего
// Prompt: иначе каждый retry наслаивал бы контекст на контекст
// и промпт рос бы квадратично.
func BuildRetryPrompt(job *domain.Job) string {
	if job.Retry == nil || !job.Retry.IncludeContext {
		return job.OriginalPrompt
	}
	instruction := job.Retry.ContextInstruction
	if instruction == "" {
		instruction = domain.DefaultContextInstruction
	}
	return instruction +
		"=== PREVIOUS ATTEMPT OUTPUT ===\n" + job.Output +
		"\n\n=== ORIGINAL TASK ===\n" + job.OriginalPrompt
}
