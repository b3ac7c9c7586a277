package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Colony/internal/domain"
)

// DependencyRepo — репозиторий рёбер зависимостей между jobs.
// Множество рёбер append-only: рёбра никогда не изменяются и не
// удаляются, проверка на цикл выполняется до вставки (engine).
type DependencyRepo struct {
	pool *pgxpool.Pool
}

// NewDependencyRepo создаёт новый DependencyRepo.
func NewDependencyRepo(pool *pgxpool.Pool) *DependencyRepo {
	return &DependencyRepo{pool: pool}
}

// Create добавляет ребро.
func (r *DependencyRepo) Create(ctx context.Context, dep *domain.JobDependency) error {
	return insertDependency(ctx, r.pool, dep)
}

// ListByPipeline возвращает все рёбра pipeline.
func (r *DependencyRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.JobDependency, error) {
	query := `
		SELECT d.job_id, d.depends_on_job_id, d.depends_on_template_job_id,
		       d.type, d.created_at
		FROM job_dependencies d
		JOIN jobs j ON j.id = d.job_id
		WHERE j.pipeline_id = $1
		ORDER BY d.created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []domain.JobDependency
	for rows.Next() {
		var d domain.JobDependency
		if err := rows.Scan(&d.JobID, &d.DependsOnJobID, &d.DependsOnTemplateJobID, &d.Type, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

func insertDependency(ctx context.Context, db execer, dep *domain.JobDependency) error {
	query := `
		INSERT INTO job_dependencies (job_id, depends_on_job_id,
		                              depends_on_template_job_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`
	if _, err := db.Exec(ctx, query,
		dep.JobID,
		nullUUID(dep.DependsOnJobID),
		nullUUID(dep.DependsOnTemplateJobID),
		dep.Type,
		dep.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert dependency: %w", err)
	}
	return nil
}
