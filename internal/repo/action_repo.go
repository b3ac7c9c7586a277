package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Colony/internal/domain"
)

// ActionRepo — append-only лог действий jobs. Записи не изменяются
// и не удаляются.
type ActionRepo struct {
	pool *pgxpool.Pool
}

// NewActionRepo создаёт новый ActionRepo.
func NewActionRepo(pool *pgxpool.Pool) *ActionRepo {
	return &ActionRepo{pool: pool}
}

// Append добавляет запись об итерации.
func (r *ActionRepo) Append(ctx context.Context, a *domain.Action) error {
	query := `
		INSERT INTO actions (job_id, iteration, response, results, stdout, stderr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		a.JobID,
		a.Iteration,
		a.Response,
		a.Results,
		nullString(a.Stdout),
		nullString(a.Stderr),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// ListByJob возвращает лог job в порядке итераций.
func (r *ActionRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Action, error) {
	query := `
		SELECT job_id, iteration, response, results, stdout, stderr, created_at
		FROM actions
		WHERE job_id = $1
		ORDER BY iteration ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		var a domain.Action
		var stdout, stderr *string
		if err := rows.Scan(&a.JobID, &a.Iteration, &a.Response, &a.Results, &stdout, &stderr, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if stdout != nil {
			a.Stdout = *stdout
		}
		if stderr != nil {
			a.Stderr = *stderr
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
