package domain

// PipelineStatus — статус выполнения pipeline.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed
//	          (или) → cancelled (из pending или running)
type PipelineStatus string

const (
	// PipelineStatusPending — pipeline создан, но ещё не начал выполняться.
	PipelineStatusPending PipelineStatus = "pending"

	// PipelineStatusRunning — pipeline в процессе выполнения.
	PipelineStatusRunning PipelineStatus = "running"

	// PipelineStatusCompleted — все stages завершены успешно.
	PipelineStatusCompleted PipelineStatus = "completed"

	// PipelineStatusFailed — хотя бы один job упал без пути восстановления.
	PipelineStatusFailed PipelineStatus = "failed"

	// PipelineStatusCancelled — pipeline отменён внешним сигналом.
	PipelineStatusCancelled PipelineStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
func (s PipelineStatus) IsTerminal() bool {
	switch s {
	case PipelineStatusCompleted, PipelineStatusFailed, PipelineStatusCancelled:
		return true
	default:
		return false
	}
}

// StageStatus — статус выполнения stage.
//
// Stage "running", пока выполняется хотя бы один его job;
// "completed", когда все jobs достигли терминального успеха или skip;
// "failed", если job упал и ни retry, ни regression этого не исправили.
type StageStatus string

const (
	// StageStatusPending — stage ещё не достигнут.
	StageStatusPending StageStatus = "pending"

	// StageStatusRunning — хотя бы один job stage выполняется.
	StageStatusRunning StageStatus = "running"

	// StageStatusCompleted — все jobs stage завершены успешно или пропущены.
	StageStatusCompleted StageStatus = "completed"

	// StageStatusFailed — job stage упал окончательно.
	StageStatusFailed StageStatus = "failed"

	// StageStatusSkipped — stage исключён из выполнения.
	StageStatusSkipped StageStatus = "skipped"
)

// IsTerminal возвращает true, если статус финальный.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageStatusCompleted, StageStatusFailed, StageStatusSkipped:
		return true
	default:
		return false
	}
}

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed (retry может вернуть в pending)
//	          (или) → cancelled / skipped
type JobStatus string

const (
	// JobStatusPending — job ожидает выполнения зависимостей.
	JobStatusPending JobStatus = "pending"

	// JobStatusRunning — job выполняется executor'ом.
	JobStatusRunning JobStatus = "running"

	// JobStatusCompleted — job успешно завершён.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed — job завершился с ошибкой (после всех retry).
	JobStatusFailed JobStatus = "failed"

	// JobStatusCancelled — job отменён вместе с pipeline.
	JobStatusCancelled JobStatus = "cancelled"

	// JobStatusSkipped — job пропущен: его success-зависимость стала
	// невыполнимой из-за падения upstream.
	JobStatusSkipped JobStatus = "skipped"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusSkipped:
		return true
	default:
		return false
	}
}

// Причины завершения job, которые сообщает executor.
const (
	// TerminationSuccess — job завершился успешно.
	TerminationSuccess = "success"

	// TerminationMaxIterations — достигнут лимит итераций агента.
	TerminationMaxIterations = "max_iterations_reached"

	// TerminationTimeout — превышен таймаут выполнения.
	TerminationTimeout = "timeout_exceeded"

	// TerminationCancelled — выполнение прервано внешним сигналом.
	TerminationCancelled = "external_cancel"
)

// RetryableTermination возвращает true, если причина завершения допускает
// повторную попытку. Успех и внешняя отмена не ретраятся никогда.
func RetryableTermination(reason string) bool {
	switch reason {
	case TerminationMaxIterations, TerminationTimeout:
		return true
	default:
		return false
	}
}
