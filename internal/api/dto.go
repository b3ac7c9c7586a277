package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// Template DTOs

// CreateTemplateRequest — запрос на создание template.
type CreateTemplateRequest struct {
	Name         string                         `json:"name"`
	Description  string                         `json:"description,omitempty"`
	Stages       []domain.TemplateStage         `json:"stages"`
	Dependencies []domain.TemplateJobDependency `json:"dependencies,omitempty"`
}

// TemplateResponse — ответ с template.
type TemplateResponse struct {
	ID           uuid.UUID                      `json:"id"`
	Name         string                         `json:"name"`
	Description  string                         `json:"description,omitempty"`
	Stages       []domain.TemplateStage         `json:"stages,omitempty"`
	Dependencies []domain.TemplateJobDependency `json:"dependencies,omitempty"`
	CreatedAt    time.Time                      `json:"created_at"`
}

// TemplateFromDomain конвертирует domain.Template в TemplateResponse.
func TemplateFromDomain(t *domain.Template) TemplateResponse {
	if t == nil {
		return TemplateResponse{}
	}
	return TemplateResponse{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		Stages:       t.Stages,
		Dependencies: t.Dependencies,
		CreatedAt:    t.CreatedAt,
	}
}

// Pipeline DTOs

// InstantiateRequest — запрос на инстанцирование pipeline из template.
type InstantiateRequest struct {
	Prompt        string   `json:"prompt"`
	WorkspacePath string   `json:"workspace_path,omitempty"`
	ExcludeStages []string `json:"exclude_stages,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID              uuid.UUID  `json:"id"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty"`
	OriginalPrompt  string     `json:"original_prompt"`
	WorkspacePath   string     `json:"workspace_path,omitempty"`
	Status          string     `json:"status"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:              p.ID,
		TemplateID:      p.TemplateID,
		OriginalPrompt:  p.OriginalPrompt,
		WorkspacePath:   p.WorkspacePath,
		Status:          string(p.Status),
		CancelRequested: p.CancelRequested,
		StartedAt:       p.StartedAt,
		CompletedAt:     p.CompletedAt,
		CreatedAt:       p.CreatedAt,
	}
}

// Stage DTOs

// StageResponse — ответ со stage.
type StageResponse struct {
	ID         uuid.UUID `json:"id"`
	PipelineID uuid.UUID `json:"pipeline_id"`
	Name       string    `json:"name"`
	Order      int       `json:"order"`
	Status     string    `json:"status"`
}

// StageFromDomain конвертирует domain.Stage в StageResponse.
func StageFromDomain(s domain.Stage) StageResponse {
	return StageResponse{
		ID:         s.ID,
		PipelineID: s.PipelineID,
		Name:       s.Name,
		Order:      s.Order,
		Status:     string(s.Status),
	}
}

// Job DTOs

// JobResponse — ответ с job.
type JobResponse struct {
	ID                uuid.UUID  `json:"id"`
	PipelineID        uuid.UUID  `json:"pipeline_id"`
	StageID           uuid.UUID  `json:"stage_id"`
	ParentJobID       *uuid.UUID `json:"parent_job_id,omitempty"`
	Role              string     `json:"role"`
	Prompt            string     `json:"prompt"`
	Status            string     `json:"status"`
	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries"`
	RegressionContext string     `json:"regression_context,omitempty"`
	Output            string     `json:"output,omitempty"`
	TerminationReason string     `json:"termination_reason,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:                j.ID,
		PipelineID:        j.PipelineID,
		StageID:           j.StageID,
		ParentJobID:       j.ParentJobID,
		Role:              j.Role,
		Prompt:            j.Prompt,
		Status:            string(j.Status),
		RetryCount:        j.RetryCount,
		MaxRetries:        j.MaxRetries,
		RegressionContext: j.RegressionContext,
		Output:            j.Output,
		TerminationReason: j.TerminationReason,
		StartedAt:         j.StartedAt,
		CompletedAt:       j.CompletedAt,
		CreatedAt:         j.CreatedAt,
	}
}

// Artifact DTOs

// ArtifactResponse — ответ с артефактом.
type ArtifactResponse struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	FilePath    string    `json:"file_path,omitempty"`
	Content     string    `json:"content,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactFromDomain конвертирует domain.Artifact в ArtifactResponse.
func ArtifactFromDomain(a domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		ID:          a.ID,
		JobID:       a.JobID,
		Kind:        string(a.Kind),
		Name:        a.Name,
		FilePath:    a.FilePath,
		Content:     a.Content,
		ContentHash: a.ContentHash,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}

// Action DTOs

// ActionResponse — запись лога выполнения job.
type ActionResponse struct {
	JobID     uuid.UUID       `json:"job_id"`
	Iteration int             `json:"iteration"`
	Response  json.RawMessage `json:"response,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	Stdout    string          `json:"stdout,omitempty"`
	Stderr    string          `json:"stderr,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ActionFromDomain конвертирует domain.Action в ActionResponse.
func ActionFromDomain(a domain.Action) ActionResponse {
	return ActionResponse{
		JobID:     a.JobID,
		Iteration: a.Iteration,
		Response:  a.Response,
		Results:   a.Results,
		Stdout:    a.Stdout,
		Stderr:    a.Stderr,
		CreatedAt: a.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name          string `json:"name"`
	CronExpr      string `json:"cron_expr,omitempty"`
	IntervalSec   int    `json:"interval_sec,omitempty"`
	Prompt        string `json:"prompt"`
	WorkspacePath string `json:"workspace_path,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name          *string `json:"name,omitempty"`
	CronExpr      *string `json:"cron_expr,omitempty"`
	IntervalSec   *int    `json:"interval_sec,omitempty"`
	Prompt        *string `json:"prompt,omitempty"`
	WorkspacePath *string `json:"workspace_path,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID             uuid.UUID  `json:"id"`
	TemplateID     uuid.UUID  `json:"template_id"`
	Name           string     `json:"name,omitempty"`
	CronExpr       string     `json:"cron_expr,omitempty"`
	IntervalSec    int        `json:"interval_sec,omitempty"`
	Prompt         string     `json:"prompt"`
	WorkspacePath  string     `json:"workspace_path,omitempty"`
	Enabled        bool       `json:"enabled"`
	NextDueAt      *time.Time `json:"next_due_at,omitempty"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastPipelineID *uuid.UUID `json:"last_pipeline_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:             s.ID,
		TemplateID:     s.TemplateID,
		Name:           s.Name,
		CronExpr:       s.CronExpr,
		IntervalSec:    s.IntervalSec,
		Prompt:         s.Prompt,
		WorkspacePath:  s.WorkspacePath,
		Enabled:        s.Enabled,
		NextDueAt:      s.NextDueAt,
		LastRunAt:      s.LastRunAt,
		LastPipelineID: s.LastPipelineID,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
