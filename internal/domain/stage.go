package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage — упорядоченный этап внутри pipeline.
//
// Пара (pipeline_id, stage_order) уникальна. Статус stage — всегда
// детерминированный агрегат статусов его jobs (см. engine.StageStatusOf);
// оркестратор пересчитывает его после каждого завершения job.
//
// Stage может быть "re-entered": regression добавляет новый job
// в уже completed stage, и агрегат снова станет running.
type Stage struct {
	// ID — уникальный идентификатор stage.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Name — имя stage из template (например, "plan", "dev", "test").
	Name string `json:"name"`

	// Order — порядковый номер stage внутри pipeline (с 1).
	Order int `json:"order"`

	// Status — текущий агрегатный статус.
	Status StageStatus `json:"status"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}
