package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Colony/internal/domain"
)

// ExpansionRepo — репозиторий маркеров размножения multiplier'ов.
// Уникальность (template_job_id, source_job_id) обеспечивает БД:
// повторная запись того же маркера — no-op.
type ExpansionRepo struct {
	pool *pgxpool.Pool
}

// NewExpansionRepo создаёт новый ExpansionRepo.
func NewExpansionRepo(pool *pgxpool.Pool) *ExpansionRepo {
	return &ExpansionRepo{pool: pool}
}

// Record записывает маркер размножения.
func (r *ExpansionRepo) Record(ctx context.Context, e *domain.MultiplierExpansion) error {
	return insertExpansion(ctx, r.pool, e)
}

// ListByPipeline возвращает все маркеры pipeline.
func (r *ExpansionRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.MultiplierExpansion, error) {
	query := `
		SELECT pipeline_id, template_job_id, source_job_id, spawned_count, created_at
		FROM multiplier_expansions
		WHERE pipeline_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list expansions: %w", err)
	}
	defer rows.Close()

	var expansions []domain.MultiplierExpansion
	for rows.Next() {
		var e domain.MultiplierExpansion
		if err := rows.Scan(&e.PipelineID, &e.TemplateJobID, &e.SourceJobID, &e.SpawnedCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expansion: %w", err)
		}
		expansions = append(expansions, e)
	}
	return expansions, rows.Err()
}

func insertExpansion(ctx context.Context, db execer, e *domain.MultiplierExpansion) error {
	query := `
		INSERT INTO multiplier_expansions (pipeline_id, template_job_id,
		                                   source_job_id, spawned_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (template_job_id, source_job_id) DO NOTHING
	`
	if _, err := db.Exec(ctx, query,
		e.PipelineID, e.TemplateJobID, e.SourceJobID, e.SpawnedCount, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert expansion: %w", err)
	}
	return nil
}
