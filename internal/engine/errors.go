package engine

import (
	"errors"
	"fmt"
)

// Структурные ошибки (spec-класс 7c): отклоняются в точке обнаружения,
// логируются против породившего job и не валят цикл оркестратора.
var (
	// ErrUnknownParseStrategy — неизвестная стратегия парсинга multiplier.
	ErrUnknownParseStrategy = errors.New("unknown parse strategy")

	// ErrMalformedItems — вывод source job не парсится как список элементов.
	ErrMalformedItems = errors.New("malformed multiplier items")

	// ErrUnknownStage — spawn-директива ссылается на stage вне pipeline.
	ErrUnknownStage = errors.New("spawn target stage not in pipeline")

	// ErrCyclicDependency — вставка ребра создала бы цикл в runtime-графе.
	ErrCyclicDependency = errors.New("dependency would create a cycle")

	// ErrSourceNotFound — у multiplier нет runtime-инстанса source job.
	ErrSourceNotFound = errors.New("multiplier source job not found")

	// ErrSourceArtifactMissing — у source job нет артефакта для парсинга.
	ErrSourceArtifactMissing = errors.New("multiplier source artifact missing")

	// ErrNoMultiplier — template job не несёт multiplier spec.
	ErrNoMultiplier = errors.New("template job has no multiplier spec")
)

// Ошибки инстанцирования template.
var (
	// ErrEmptyTemplate — template не содержит stages.
	ErrEmptyTemplate = errors.New("template has no stages")

	// ErrEmptyPrompt — не задан original_prompt.
	ErrEmptyPrompt = errors.New("original prompt is empty")
)

// DirectiveError — ошибка валидации spawn-директивы.
type DirectiveError struct {
	Field   string // поле, вызвавшее ошибку
	Message string // описание
}

// Error реализует интерфейс error.
func (e *DirectiveError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("spawn directive: field %s: %s", e.Field, e.Message)
	}
	return "spawn directive: " + e.Message
}
