package domain

import (
	"time"

	"github.com/google/uuid"
)

// DependencyType — семантика ребра зависимости.
type DependencyType string

const (
	// DependencySuccess — upstream должен завершиться успешно.
	DependencySuccess DependencyType = "success"

	// DependencyFailure — upstream должен упасть. Путь для
	// компенсирующих/cleanup jobs.
	DependencyFailure DependencyType = "failure"

	// DependencyAlways — достаточно любого терминального статуса upstream.
	DependencyAlways DependencyType = "always"
)

// Satisfied проверяет, удовлетворено ли ребро данным статусом upstream.
func (t DependencyType) Satisfied(upstream JobStatus) bool {
	switch t {
	case DependencySuccess:
		return upstream == JobStatusCompleted
	case DependencyFailure:
		return upstream == JobStatusFailed
	case DependencyAlways:
		return upstream.IsTerminal()
	default:
		return false
	}
}

// Unsatisfiable проверяет, что ребро уже никогда не будет удовлетворено:
// upstream терминален, но не в требуемом статусе. Для success-рёбер это
// сигнал пропустить (skip) зависимый job.
func (t DependencyType) Unsatisfiable(upstream JobStatus) bool {
	if !upstream.IsTerminal() {
		return false
	}
	return !t.Satisfied(upstream)
}

// JobDependency — направленное ребро зависимости между jobs.
//
// Ровно одно из DependsOnJobID / DependsOnTemplateJobID заполнено:
//   - DependsOnJobID — обычное ребро на конкретный runtime job.
//   - DependsOnTemplateJobID — template-уровневое ребро: разрешается
//     в "все текущие инстансы этого template job должны завершиться
//     успешно". Так фиксированный template выражает fan-in переменной
//     ширины, не зная её заранее.
//
// Множество рёбер append-only; на каждую вставку выполняется проверка
// на цикл (см. engine.WouldCreateCycle).
type JobDependency struct {
	// JobID — зависимый (downstream) job.
	JobID uuid.UUID `json:"job_id"`

	// DependsOnJobID — upstream job (instance-уровневое ребро).
	DependsOnJobID *uuid.UUID `json:"depends_on_job_id,omitempty"`

	// DependsOnTemplateJobID — upstream template job
	// (template-уровневое ребро).
	DependsOnTemplateJobID *uuid.UUID `json:"depends_on_template_job_id,omitempty"`

	// Type — семантика ребра.
	Type DependencyType `json:"type"`

	// CreatedAt — время создания ребра.
	CreatedAt time.Time `json:"created_at"`
}
