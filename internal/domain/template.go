package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template — design-time чертёж pipeline.
//
// Template неизменяем, как только на него ссылается хотя бы один
// pipeline. Содержит упорядоченные stages, jobs внутри stages и
// template-уровневые зависимости между jobs.
type Template struct {
	// ID — уникальный идентификатор template.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя template (например, "plan-code-verify").
	Name string `json:"name"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// Stages — упорядоченные stages с jobs.
	Stages []TemplateStage `json:"stages,omitempty"`

	// Dependencies — template-уровневые рёбра между jobs.
	Dependencies []TemplateJobDependency `json:"dependencies,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateStage — stage внутри template.
// Пара (template_id, order) уникальна, имя уникально в рамках template.
type TemplateStage struct {
	// ID — уникальный идентификатор.
	ID uuid.UUID `json:"id"`

	// TemplateID — ссылка на template.
	TemplateID uuid.UUID `json:"template_id"`

	// Name — имя stage.
	Name string `json:"name"`

	// Order — порядковый номер stage (с 1).
	Order int `json:"order"`

	// Jobs — jobs этого stage.
	Jobs []TemplateJob `json:"jobs,omitempty"`
}

// TemplateJob — чертёж одного job.
type TemplateJob struct {
	// ID — уникальный идентификатор.
	ID uuid.UUID `json:"id"`

	// StageID — ссылка на template stage.
	StageID uuid.UUID `json:"stage_id"`

	// Role — роль агента.
	Role string `json:"role"`

	// PromptTemplate — шаблон промпта с плейсхолдерами
	// ({{original_prompt}}, для multiplier ещё {{item}}, {{index}}).
	PromptTemplate string `json:"prompt_template"`

	// CommandTemplate — шаблон команды запуска executor'а
	// (плейсхолдеры {{job_id}}, {{prompt}}, {{role}}). Пустая строка —
	// команда по умолчанию.
	CommandTemplate string `json:"command_template,omitempty"`

	// MaxIterations — лимит итераций агента.
	MaxIterations int `json:"max_iterations"`

	// TimeoutSeconds — таймаут выполнения.
	TimeoutSeconds int `json:"timeout_seconds"`

	// MaxRetries — максимум повторных попыток.
	MaxRetries int `json:"max_retries"`

	// ArtifactStrategy — стратегия сбора артефактов.
	ArtifactStrategy string `json:"artifact_strategy,omitempty"`

	// Retry — стратегия повторных попыток.
	Retry *RetrySpec `json:"retry,omitempty"`

	// Multiplier — спецификация размножения. Template job с multiplier
	// не материализуется при инстанцировании pipeline: его инстансы
	// появляются только после завершения source job, по одному на
	// каждый распарсенный элемент вывода.
	Multiplier *MultiplierSpec `json:"multiplier,omitempty"`
}

// ParseStrategy — способ разбора вывода source job в элементы fan-out.
type ParseStrategy string

const (
	// ParseJSONArray — вывод содержит JSON-массив строк.
	ParseJSONArray ParseStrategy = "json_array"

	// ParseLineDelimited — каждая непустая строка вывода является элементом.
	ParseLineDelimited ParseStrategy = "line_delimited"

	// ParseCommaSeparated — элементы разделены запятыми.
	ParseCommaSeparated ParseStrategy = "comma_separated"
)

// Valid проверяет, что стратегия известна.
func (p ParseStrategy) Valid() bool {
	switch p {
	case ParseJSONArray, ParseLineDelimited, ParseCommaSeparated:
		return true
	}
	return false
}

// MultiplierSpec — правило fan-out одного template job в N runtime jobs.
type MultiplierSpec struct {
	// SourceTemplateJobID — template job, чей вывод парсится.
	// Source находится среди runtime jobs по template_job_id
	// внутри того же pipeline.
	SourceTemplateJobID uuid.UUID `json:"source_template_job_id"`

	// ParseStrategy — как парсить вывод source job:
	// "json_array", "line_delimited", "comma_separated".
	ParseStrategy ParseStrategy `json:"parse_strategy"`

	// PromptTemplate — per-item шаблон промпта ({{item}}, {{index}},
	// {{original_prompt}}).
	PromptTemplate string `json:"prompt_template"`

	// ArtifactName — имя артефакта source job для парсинга.
	// Пустая строка — "final_output.txt".
	ArtifactName string `json:"artifact_name,omitempty"`
}

// SourceArtifactName возвращает имя артефакта source job.
func (m *MultiplierSpec) SourceArtifactName() string {
	if m.ArtifactName == "" {
		return "final_output.txt"
	}
	return m.ArtifactName
}

// TemplateJobDependency — template-уровневое ребро зависимости.
type TemplateJobDependency struct {
	// TemplateJobID — зависимый template job.
	TemplateJobID uuid.UUID `json:"template_job_id"`

	// DependsOnTemplateJobID — upstream template job.
	DependsOnTemplateJobID uuid.UUID `json:"depends_on_template_job_id"`

	// Type — семантика ребра.
	Type DependencyType `json:"type"`
}

// FindJob возвращает template job по ID (или nil).
func (t *Template) FindJob(id uuid.UUID) *TemplateJob {
	for si := range t.Stages {
		for ji := range t.Stages[si].Jobs {
			if t.Stages[si].Jobs[ji].ID == id {
				return &t.Stages[si].Jobs[ji]
			}
		}
	}
	return nil
}

// FindStageByName возвращает template stage по имени (или nil).
func (t *Template) FindStageByName(name string) *TemplateStage {
	for si := range t.Stages {
		if t.Stages[si].Name == name {
			return &t.Stages[si]
		}
	}
	return nil
}
