package domain

import (
	"time"

	"github.com/google/uuid"
)

// MultiplierExpansion — маркер выполненного размножения.
//
// Записывается ровно один раз на пару (source job, multiplier template
// job) — даже если парсинг дал ноль элементов. Маркер решает две задачи:
//   - идемпотентность: повторная обработка завершения source job
//     не породит дубликаты;
//   - разрешение template-уровневых рёбер: пока маркера нет, ширина
//     fan-out неизвестна и downstream consumer не может быть готов.
type MultiplierExpansion struct {
	// PipelineID — pipeline, в котором произошло размножение.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// TemplateJobID — multiplier template job.
	TemplateJobID uuid.UUID `json:"template_job_id"`

	// SourceJobID — source job, чей вывод был распарсен.
	SourceJobID uuid.UUID `json:"source_job_id"`

	// SpawnedCount — количество порождённых jobs (может быть 0).
	SpawnedCount int `json:"spawned_count"`

	// CreatedAt — время размножения.
	CreatedAt time.Time `json:"created_at"`
}
