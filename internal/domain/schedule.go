package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического инстанцирования template.
//
// Scheduler проверяет next_due_at и создаёт pipeline, когда время
// подошло. Идемпотентность обеспечивается ключом
// "{schedule_id}_{next_due_at}" при создании pipeline.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// TemplateID — template, который нужно инстанцировать.
	TemplateID uuid.UUID `json:"template_id"`

	// Name — имя расписания для удобства.
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение ("минуты часы дни месяцы дни_недели").
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	// Используется если CronExpr не задан.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Prompt — original_prompt для каждого создаваемого pipeline.
	Prompt string `json:"prompt"`

	// WorkspacePath — workspace для создаваемых pipelines.
	WorkspacePath string `json:"workspace_path,omitempty"`

	// Enabled — флаг активности. Неактивные расписания игнорируются.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastPipelineID — ID последнего созданного pipeline.
	LastPipelineID *uuid.UUID `json:"last_pipeline_id,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о созданном pipeline.
func (s *Schedule) RecordRun(pipelineID uuid.UUID, nextDue time.Time) {
	now := time.Now().UTC()
	s.LastRunAt = &now
	s.LastPipelineID = &pipelineID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
