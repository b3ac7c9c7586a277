package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Colony/internal/domain"
)

// ScheduleRepo — репозиторий для работы с schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, s *domain.Schedule) error {
	query := `
		INSERT INTO schedules (id, template_id, name, cron_expr, interval_sec,
		                       prompt, workspace_path, enabled, next_due_at,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.TemplateID,
		nullString(s.Name),
		nullString(s.CronExpr),
		nullInt(s.IntervalSec),
		s.Prompt,
		nullString(s.WorkspacePath),
		s.Enabled,
		s.NextDueAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := scheduleSelect + ` WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает schedules с фильтрацией.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	query := scheduleSelect + `
		WHERE ($1::uuid IS NULL OR template_id = $1)
		  AND ($2::boolean IS NULL OR enabled = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.TemplateID),
		filter.Enabled,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// ListDue возвращает активные schedules, чьё время пришло.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := scheduleSelect + `
		WHERE enabled = TRUE AND next_due_at IS NOT NULL AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// Update обновляет schedule.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	query := `
		UPDATE schedules
		SET name = $2, cron_expr = $3, interval_sec = $4, prompt = $5,
		    workspace_path = $6, enabled = $7, next_due_at = $8,
		    last_run_at = $9, last_pipeline_id = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		nullString(s.Name),
		nullString(s.CronExpr),
		nullInt(s.IntervalSec),
		s.Prompt,
		nullString(s.WorkspacePath),
		s.Enabled,
		s.NextDueAt,
		s.LastRunAt,
		s.LastPipelineID,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDue атомарно сдвигает next_due_at вперёд. Возвращает
// ErrInvalidState, если другой экземпляр scheduler'а успел раньше.
func (r *ScheduleRepo) ClaimDue(ctx context.Context, id uuid.UUID, due, nextDue time.Time) error {
	query := `
		UPDATE schedules
		SET next_due_at = $3, updated_at = NOW()
		WHERE id = $1 AND enabled = TRUE AND next_due_at = $2
	`
	result, err := r.pool.Exec(ctx, query, id, due, nextDue)
	if err != nil {
		return fmt.Errorf("claim schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// RecordRun записывает созданный pipeline.
func (r *ScheduleRepo) RecordRun(ctx context.Context, id, pipelineID uuid.UUID) error {
	query := `
		UPDATE schedules
		SET last_run_at = NOW(), last_pipeline_id = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, pipelineID)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ScheduleFilter — параметры фильтрации schedules.
type ScheduleFilter struct {
	TemplateID *uuid.UUID
	Enabled    *bool
	Limit      int
	Offset     int
}

const scheduleSelect = `
	SELECT id, template_id, name, cron_expr, interval_sec, prompt,
	       workspace_path, enabled, next_due_at, last_run_at,
	       last_pipeline_id, created_at, updated_at
	FROM schedules`

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var name, cronExpr, workspacePath *string
	var intervalSec *int

	err := row.Scan(
		&s.ID,
		&s.TemplateID,
		&name,
		&cronExpr,
		&intervalSec,
		&s.Prompt,
		&workspacePath,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastPipelineID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if name != nil {
		s.Name = *name
	}
	if cronExpr != nil {
		s.CronExpr = *cronExpr
	}
	if intervalSec != nil {
		s.IntervalSec = *intervalSec
	}
	if workspacePath != nil {
		s.WorkspacePath = *workspacePath
	}
	return &s, nil
}

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// nullInt возвращает nil для нулевого значения.
func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
