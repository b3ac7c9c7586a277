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

// TemplateRepo — репозиторий для работы с templates.
//
// Template сохраняется целиком (stages, jobs, рёбра) одной
// транзакцией и после этого считается неизменяемым: на него могут
// ссылаться pipelines.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepo создаёт новый TemplateRepo.
func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// Create сохраняет template со всем содержимым.
func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO templates (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query,
		t.ID, t.Name, nullString(t.Description), t.CreatedAt, t.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	for si := range t.Stages {
		ts := &t.Stages[si]
		stageQuery := `
			INSERT INTO template_stages (id, template_id, name, "order")
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, stageQuery, ts.ID, ts.TemplateID, ts.Name, ts.Order); err != nil {
			return fmt.Errorf("insert template stage: %w", err)
		}
		for ji := range ts.Jobs {
			if err := insertTemplateJob(ctx, tx, &ts.Jobs[ji]); err != nil {
				return err
			}
		}
	}

	for i := range t.Dependencies {
		td := &t.Dependencies[i]
		depQuery := `
			INSERT INTO template_job_dependencies (template_job_id, depends_on_template_job_id, type)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.Exec(ctx, depQuery, td.TemplateJobID, td.DependsOnTemplateJobID, td.Type); err != nil {
			return fmt.Errorf("insert template dependency: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID возвращает template целиком.
func (r *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM templates
		WHERE id = $1
	`
	t, err := r.scanTemplate(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadContents(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetByName возвращает template по имени.
func (r *TemplateRepo) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM templates
		WHERE name = $1
	`
	t, err := r.scanTemplate(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		return nil, err
	}
	if err := r.loadContents(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List возвращает заголовки templates без содержимого.
func (r *TemplateRepo) List(ctx context.Context) ([]domain.Template, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM templates
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []domain.Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// Delete удаляет template, если на него не ссылается ни один pipeline.
func (r *TemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	var refs int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pipelines WHERE template_id = $1`, id,
	).Scan(&refs); err != nil {
		return fmt.Errorf("count references: %w", err)
	}
	if refs > 0 {
		return ErrInvalidState
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *TemplateRepo) scanTemplate(row pgx.Row) (*domain.Template, error) {
	var t domain.Template
	var description *string

	err := row.Scan(&t.ID, &t.Name, &description, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if description != nil {
		t.Description = *description
	}
	return &t, nil
}

// loadContents дозагружает stages, jobs и рёбра template.
func (r *TemplateRepo) loadContents(ctx context.Context, t *domain.Template) error {
	stageQuery := `
		SELECT id, template_id, name, "order"
		FROM template_stages
		WHERE template_id = $1
		ORDER BY "order" ASC
	`
	rows, err := r.pool.Query(ctx, stageQuery, t.ID)
	if err != nil {
		return fmt.Errorf("list template stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts domain.TemplateStage
		if err := rows.Scan(&ts.ID, &ts.TemplateID, &ts.Name, &ts.Order); err != nil {
			return fmt.Errorf("scan template stage: %w", err)
		}
		t.Stages = append(t.Stages, ts)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for si := range t.Stages {
		jobs, err := r.listTemplateJobs(ctx, t.Stages[si].ID)
		if err != nil {
			return err
		}
		t.Stages[si].Jobs = jobs
	}

	depQuery := `
		SELECT d.template_job_id, d.depends_on_template_job_id, d.type
		FROM template_job_dependencies d
		JOIN template_jobs j ON j.id = d.template_job_id
		JOIN template_stages s ON s.id = j.stage_id
		WHERE s.template_id = $1
	`
	depRows, err := r.pool.Query(ctx, depQuery, t.ID)
	if err != nil {
		return fmt.Errorf("list template dependencies: %w", err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var td domain.TemplateJobDependency
		if err := depRows.Scan(&td.TemplateJobID, &td.DependsOnTemplateJobID, &td.Type); err != nil {
			return fmt.Errorf("scan template dependency: %w", err)
		}
		t.Dependencies = append(t.Dependencies, td)
	}
	return depRows.Err()
}

func (r *TemplateRepo) listTemplateJobs(ctx context.Context, stageID uuid.UUID) ([]domain.TemplateJob, error) {
	query := `
		SELECT id, stage_id, role, prompt_template, command_template,
		       max_iterations, timeout_seconds, max_retries,
		       retry_include_context, retry_context_instruction,
		       artifact_strategy, multiplier_source_job_id,
		       multiplier_parse_strategy, multiplier_prompt_template,
		       multiplier_artifact_name
		FROM template_jobs
		WHERE stage_id = $1
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, stageID)
	if err != nil {
		return nil, fmt.Errorf("list template jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.TemplateJob
	for rows.Next() {
		var tj domain.TemplateJob
		var commandTemplate, contextInstruction, artifactStrategy *string
		var includeContext bool
		var multSource *uuid.UUID
		var multStrategy, multPrompt, multArtifact *string

		if err := rows.Scan(
			&tj.ID, &tj.StageID, &tj.Role, &tj.PromptTemplate, &commandTemplate,
			&tj.MaxIterations, &tj.TimeoutSeconds, &tj.MaxRetries,
			&includeContext, &contextInstruction, &artifactStrategy,
			&multSource, &multStrategy, &multPrompt, &multArtifact,
		); err != nil {
			return nil, fmt.Errorf("scan template job: %w", err)
		}

		if commandTemplate != nil {
			tj.CommandTemplate = *commandTemplate
		}
		if artifactStrategy != nil {
			tj.ArtifactStrategy = *artifactStrategy
		}
		if includeContext || contextInstruction != nil {
			tj.Retry = &domain.RetrySpec{IncludeContext: includeContext}
			if contextInstruction != nil {
				tj.Retry.ContextInstruction = *contextInstruction
			}
		}
		if multSource != nil {
			tj.Multiplier = &domain.MultiplierSpec{SourceTemplateJobID: *multSource}
			if multStrategy != nil {
				tj.Multiplier.ParseStrategy = domain.ParseStrategy(*multStrategy)
			}
			if multPrompt != nil {
				tj.Multiplier.PromptTemplate = *multPrompt
			}
			if multArtifact != nil {
				tj.Multiplier.ArtifactName = *multArtifact
			}
		}
		jobs = append(jobs, tj)
	}
	return jobs, rows.Err()
}

func insertTemplateJob(ctx context.Context, db execer, tj *domain.TemplateJob) error {
	var includeContext bool
	var contextInstruction string
	if tj.Retry != nil {
		includeContext = tj.Retry.IncludeContext
		contextInstruction = tj.Retry.ContextInstruction
	}

	var multSource *uuid.UUID
	var multStrategy, multPrompt, multArtifact *string
	if tj.Multiplier != nil {
		src := tj.Multiplier.SourceTemplateJobID
		multSource = &src
		strategy := string(tj.Multiplier.ParseStrategy)
		multStrategy = &strategy
		multPrompt = nullString(tj.Multiplier.PromptTemplate)
		multArtifact = nullString(tj.Multiplier.ArtifactName)
	}

	query := `
		INSERT INTO template_jobs (id, stage_id, role, prompt_template,
		                           command_template, max_iterations, timeout_seconds,
		                           max_retries, retry_include_context,
		                           retry_context_instruction, artifact_strategy,
		                           multiplier_source_job_id, multiplier_parse_strategy,
		                           multiplier_prompt_template, multiplier_artifact_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if _, err := db.Exec(ctx, query,
		tj.ID, tj.StageID, tj.Role, tj.PromptTemplate,
		nullString(tj.CommandTemplate), tj.MaxIterations, tj.TimeoutSeconds,
		tj.MaxRetries, includeContext, nullString(contextInstruction),
		nullString(tj.ArtifactStrategy),
		multSource, multStrategy, multPrompt, multArtifact,
	); err != nil {
		return fmt.Errorf("insert template job: %w", err)
	}
	return nil
}
