package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline — экземпляр многоэтапного выполнения.
//
// Pipeline создаётся когда:
//   - Пользователь инстанцирует template (через API/CLI)
//   - Scheduler инстанцирует template по расписанию
//
// Каждый pipeline владеет упорядоченным списком stages; форма графа jobs
// не фиксирована на момент старта — multiplier и regression добавляют
// jobs во время выполнения.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// TemplateID — template, из которого создан pipeline.
	// Nil для ad hoc pipelines.
	TemplateID *uuid.UUID `json:"template_id,omitempty"`

	// OriginalPrompt — исходный запрос пользователя.
	// Записывается один раз при создании и никогда не переписывается:
	// это единственный ground truth того, что просил пользователь.
	OriginalPrompt string `json:"original_prompt"`

	// WorkspacePath — рабочая директория, разрешённая jobs этого pipeline.
	WorkspacePath string `json:"workspace_path,omitempty"`

	// Status — текущий статус выполнения.
	// Всегда детерминированный агрегат статусов jobs — никогда
	// не выставляется независимо (кроме pending при создании).
	Status PipelineStatus `json:"status"`

	// CancelRequested — внешний сигнал отмены. Выставляется API,
	// наблюдается циклом оркестратора на следующей итерации.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// StartedAt — время первого dispatch (когда статус стал running).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время достижения терминального статуса.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если pipeline ещё не завершён.
func (p *Pipeline) Duration() time.Duration {
	if p.StartedAt == nil || p.CompletedAt == nil {
		return 0
	}
	return p.CompletedAt.Sub(*p.StartedAt)
}

// IsFinished возвращает true, если pipeline завершён (в любом статусе).
func (p *Pipeline) IsFinished() bool {
	return p.Status.IsTerminal()
}

// MarkRunning переводит pipeline в статус running.
func (p *Pipeline) MarkRunning() {
	now := time.Now().UTC()
	p.Status = PipelineStatusRunning
	p.StartedAt = &now
	p.UpdatedAt = now
}

// MarkCompleted переводит pipeline в статус completed.
func (p *Pipeline) MarkCompleted() {
	now := time.Now().UTC()
	p.Status = PipelineStatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// MarkFailed переводит pipeline в статус failed.
func (p *Pipeline) MarkFailed() {
	now := time.Now().UTC()
	p.Status = PipelineStatusFailed
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// MarkCancelled переводит pipeline в статус cancelled.
func (p *Pipeline) MarkCancelled() {
	now := time.Now().UTC()
	p.Status = PipelineStatusCancelled
	p.CompletedAt = &now
	p.UpdatedAt = now
}
