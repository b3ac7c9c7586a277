package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Colony/internal/domain"
)

// PipelineRepo — репозиторий для работы с pipelines.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// Create создаёт новый pipeline.
func (r *PipelineRepo) Create(ctx context.Context, p *domain.Pipeline) error {
	query := `
		INSERT INTO pipelines (id, template_id, original_prompt, workspace_path,
		                       status, cancel_requested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		nullUUID(p.TemplateID),
		p.OriginalPrompt,
		nullString(p.WorkspacePath),
		p.Status,
		p.CancelRequested,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

// CreateWithGraph атомарно материализует pipeline вместе с его stages,
// jobs и рёбрами зависимостей. Частично записанный pipeline хуже
// незаписанного: resolver увидел бы jobs без рёбер.
func (r *PipelineRepo) CreateWithGraph(ctx context.Context, p *domain.Pipeline, stages []domain.Stage, jobs []domain.Job, deps []domain.JobDependency) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pipelines (id, template_id, original_prompt, workspace_path,
		                       status, cancel_requested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, query,
		p.ID, nullUUID(p.TemplateID), p.OriginalPrompt, nullString(p.WorkspacePath),
		p.Status, p.CancelRequested, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}

	for i := range stages {
		if err := insertStage(ctx, tx, &stages[i]); err != nil {
			return err
		}
	}
	for i := range jobs {
		if err := insertJob(ctx, tx, &jobs[i]); err != nil {
			return err
		}
	}
	for i := range deps {
		if err := insertDependency(ctx, tx, &deps[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID возвращает pipeline по ID.
func (r *PipelineRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	query := `
		SELECT id, template_id, original_prompt, workspace_path, status,
		       cancel_requested, started_at, completed_at, created_at, updated_at
		FROM pipelines
		WHERE id = $1
	`
	return scanPipeline(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список pipelines с фильтрацией.
func (r *PipelineRepo) List(ctx context.Context, filter PipelineFilter) ([]domain.Pipeline, error) {
	query := `
		SELECT id, template_id, original_prompt, workspace_path, status,
		       cancel_requested, started_at, completed_at, created_at, updated_at
		FROM pipelines
		WHERE ($1::uuid IS NULL OR template_id = $1)
		  AND ($2::text IS NULL OR status = $2::pipeline_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.TemplateID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()
	return collectPipelines(rows)
}

// ListActive возвращает незавершённые pipelines в порядке создания.
// Основной запрос цикла оркестратора.
func (r *PipelineRepo) ListActive(ctx context.Context, limit int) ([]domain.Pipeline, error) {
	query := `
		SELECT id, template_id, original_prompt, workspace_path, status,
		       cancel_requested, started_at, completed_at, created_at, updated_at
		FROM pipelines
		WHERE status IN ('pending', 'running')
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list active pipelines: %w", err)
	}
	defer rows.Close()
	return collectPipelines(rows)
}

// Update обновляет статус и временные метки pipeline.
func (r *PipelineRepo) Update(ctx context.Context, p *domain.Pipeline) error {
	query := `
		UPDATE pipelines
		SET status = $2, cancel_requested = $3, started_at = $4,
		    completed_at = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		p.ID, p.Status, p.CancelRequested, p.StartedAt, p.CompletedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RequestCancel выставляет флаг отмены. Сам каскад отмены выполняет
// цикл оркестратора на следующем проходе.
func (r *PipelineRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE pipelines
		SET cancel_requested = TRUE, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

// PipelineFilter — параметры фильтрации pipelines.
type PipelineFilter struct {
	TemplateID *uuid.UUID
	Status     domain.PipelineStatus
	Limit      int
	Offset     int
}

func scanPipeline(row pgx.Row) (*domain.Pipeline, error) {
	var p domain.Pipeline
	var workspacePath *string

	err := row.Scan(
		&p.ID,
		&p.TemplateID,
		&p.OriginalPrompt,
		&workspacePath,
		&p.Status,
		&p.CancelRequested,
		&p.StartedAt,
		&p.CompletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline: %w", err)
	}
	if workspacePath != nil {
		p.WorkspacePath = *workspacePath
	}
	return &p, nil
}

func collectPipelines(rows pgx.Rows) ([]domain.Pipeline, error) {
	var pipelines []domain.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, *p)
	}
	return pipelines, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
