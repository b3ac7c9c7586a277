package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Colony/internal/domain"
)

// StageRepo — репозиторий для работы со stages.
type StageRepo struct {
	pool *pgxpool.Pool
}

// NewStageRepo создаёт новый StageRepo.
func NewStageRepo(pool *pgxpool.Pool) *StageRepo {
	return &StageRepo{pool: pool}
}

// GetByID возвращает stage по ID.
func (r *StageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error) {
	query := `
		SELECT id, pipeline_id, name, "order", status, created_at, updated_at
		FROM stages
		WHERE id = $1
	`
	var s domain.Stage
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.PipelineID, &s.Name, &s.Order, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stage: %w", err)
	}
	return &s, nil
}

// ListByPipeline возвращает stages pipeline в порядке выполнения.
func (r *StageRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Stage, error) {
	query := `
		SELECT id, pipeline_id, name, "order", status, created_at, updated_at
		FROM stages
		WHERE pipeline_id = $1
		ORDER BY "order" ASC
	`
	rows, err := r.pool.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		var s domain.Stage
		if err := rows.Scan(&s.ID, &s.PipelineID, &s.Name, &s.Order, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// UpdateStatus записывает агрегированный статус stage.
func (r *StageRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.StageStatus) error {
	query := `
		UPDATE stages
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update stage status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// execer покрывает pool и транзакцию: helpers вставки используются
// и напрямую, и внутри CreateWithGraph.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertStage(ctx context.Context, db execer, s *domain.Stage) error {
	query := `
		INSERT INTO stages (id, pipeline_id, name, "order", status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := db.Exec(ctx, query, s.ID, s.PipelineID, s.Name, s.Order, s.Status, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}
