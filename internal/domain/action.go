package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action — запись append-only лога действий job.
//
// Executor пишет одну запись на каждую итерацию агента: ответ модели,
// результаты выполненных инструментов и сырой вывод. Лог используется
// для retry-контекста и аудита; записи никогда не изменяются.
type Action struct {
	// JobID — job, к которому относится запись.
	JobID uuid.UUID `json:"job_id"`

	// Iteration — номер итерации (с 1).
	Iteration int `json:"iteration"`

	// Response — ответ модели (сырой JSON).
	Response json.RawMessage `json:"response,omitempty"`

	// Results — результаты выполнения инструментов (сырой JSON).
	Results json.RawMessage `json:"results,omitempty"`

	// Stdout — сырой stdout итерации.
	Stdout string `json:"stdout,omitempty"`

	// Stderr — сырой stderr итерации.
	Stderr string `json:"stderr,omitempty"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}

// SpawnDirective — директива regression в выводе завершённого job.
//
// Job может объявить в своём финальном выводе, что нужно породить
// новый job в указанном stage (возможно, уже пройденном). Директива —
// строгий JSON-объект на отдельной строке вывода:
//
//	{"spawn": {"stage": "dev", "prompt": "...", "reason": "..."}}
type SpawnDirective struct {
	// Stage — имя целевого stage внутри того же pipeline.
	Stage string `json:"stage"`

	// Prompt — промпт для порождаемого job.
	Prompt string `json:"prompt"`

	// Reason — свободный текст причины (попадает в regression_context
	// нового job).
	Reason string `json:"reason"`
}
