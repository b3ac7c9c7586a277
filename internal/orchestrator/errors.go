package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrPipelineNotFound — pipeline не найден в БД.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrPipelineFinished — pipeline уже в терминальном статусе.
	ErrPipelineFinished = errors.New("pipeline already finished")

	// ErrTemplateNotFound — template pipeline не найден.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
