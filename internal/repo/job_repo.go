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

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	return insertJob(ctx, r.pool, job)
}

// CreateWithEdges атомарно создаёт jobs вместе с их рёбрами. Так
// применяются планы размножения и regression: инстансы без рёбер
// были бы готовы раньше времени.
func (r *JobRepo) CreateWithEdges(ctx context.Context, jobs []domain.Job, deps []domain.JobDependency, expansion *domain.MultiplierExpansion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

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
	if expansion != nil {
		if err := insertExpansion(ctx, tx, expansion); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := jobSelect + ` WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// ListByPipeline возвращает все jobs pipeline в порядке создания.
func (r *JobRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Job, error) {
	query := jobSelect + ` WHERE pipeline_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Update записывает изменяемые поля job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET status = $2, prompt = $3, iteration = $4, retry_count = $5,
		    output = $6, termination_reason = $7, started_at = $8,
		    completed_at = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Prompt,
		job.Iteration,
		job.RetryCount,
		nullString(job.Output),
		nullString(job.TerminationReason),
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReportResult записывает терминальный результат выполнения job.
// Условный UPDATE: применяется только пока job в статусе running.
// Возвращает ErrInvalidState, если job уже покинул running — например,
// оркестратор каскадно отменил его, пока executor выполнял команду.
// Поздний отчёт не должен воскрешать отменённый job.
func (r *JobRepo) ReportResult(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET status = $2, output = $3, termination_reason = $4,
		    completed_at = $5, updated_at = $6
		WHERE id = $1 AND status = 'running'
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		nullString(job.Output),
		nullString(job.TerminationReason),
		job.CompletedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("report job result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ClaimPending атомарно переводит job из pending в running.
// Возвращает ErrInvalidState, если job уже забран: claim-before-dispatch
// исключает двойной dispatch при нескольких экземплярах оркестратора.
func (r *JobRepo) ClaimPending(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// CancelNonTerminal каскадно отменяет все незавершённые jobs pipeline.
// Возвращает количество отменённых.
func (r *JobRepo) CancelNonTerminal(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	query := `
		UPDATE jobs
		SET status = 'cancelled', termination_reason = $2,
		    completed_at = NOW(), updated_at = NOW()
		WHERE pipeline_id = $1 AND status IN ('pending', 'running')
	`
	result, err := r.pool.Exec(ctx, query, pipelineID, domain.TerminationCancelled)
	if err != nil {
		return 0, fmt.Errorf("cancel jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

const jobSelect = `
	SELECT id, pipeline_id, stage_id, template_job_id, parent_job_id, role,
	       prompt, original_prompt, command, max_iterations, timeout_seconds,
	       allowed_paths, status, iteration, retry_count, max_retries,
	       retry_include_context, retry_context_instruction, artifact_strategy,
	       regression_context, output, termination_reason, started_at,
	       completed_at, created_at, updated_at
	FROM jobs`

func insertJob(ctx context.Context, db execer, job *domain.Job) error {
	var includeContext bool
	var contextInstruction string
	if job.Retry != nil {
		includeContext = job.Retry.IncludeContext
		contextInstruction = job.Retry.ContextInstruction
	}

	query := `
		INSERT INTO jobs (id, pipeline_id, stage_id, template_job_id, parent_job_id,
		                  role, prompt, original_prompt, command, max_iterations,
		                  timeout_seconds, allowed_paths, status, iteration,
		                  retry_count, max_retries, retry_include_context,
		                  retry_context_instruction, artifact_strategy,
		                  regression_context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := db.Exec(ctx, query,
		job.ID,
		job.PipelineID,
		job.StageID,
		nullUUID(job.TemplateJobID),
		nullUUID(job.ParentJobID),
		job.Role,
		job.Prompt,
		job.OriginalPrompt,
		nullString(job.Command),
		job.MaxIterations,
		job.TimeoutSeconds,
		job.AllowedPaths,
		job.Status,
		job.Iteration,
		job.RetryCount,
		job.MaxRetries,
		includeContext,
		nullString(contextInstruction),
		nullString(job.ArtifactStrategy),
		nullString(job.RegressionContext),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var command, contextInstruction, artifactStrategy *string
	var regressionContext, output, terminationReason *string
	var includeContext bool

	err := row.Scan(
		&job.ID,
		&job.PipelineID,
		&job.StageID,
		&job.TemplateJobID,
		&job.ParentJobID,
		&job.Role,
		&job.Prompt,
		&job.OriginalPrompt,
		&command,
		&job.MaxIterations,
		&job.TimeoutSeconds,
		&job.AllowedPaths,
		&job.Status,
		&job.Iteration,
		&job.RetryCount,
		&job.MaxRetries,
		&includeContext,
		&contextInstruction,
		&artifactStrategy,
		&regressionContext,
		&output,
		&terminationReason,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if command != nil {
		job.Command = *command
	}
	if artifactStrategy != nil {
		job.ArtifactStrategy = *artifactStrategy
	}
	if regressionContext != nil {
		job.RegressionContext = *regressionContext
	}
	if output != nil {
		job.Output = *output
	}
	if terminationReason != nil {
		job.TerminationReason = *terminationReason
	}
	if includeContext || contextInstruction != nil {
		job.Retry = &domain.RetrySpec{IncludeContext: includeContext}
		if contextInstruction != nil {
			job.Retry.ContextInstruction = *contextInstruction
		}
	}

	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
