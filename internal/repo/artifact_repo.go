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

// ArtifactRepo — репозиторий артефактов и записей их потребления.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Record регистрирует артефакт. Повторная регистрация той же пары
// (job, name) с тем же content hash — upsert; с другим hash без
// overwrite — ErrArtifactConflict. Hash сравнивает БД, гонка двух
// регистраций решается на уровне строки.
func (r *ArtifactRepo) Record(ctx context.Context, a *domain.Artifact, overwrite bool) error {
	query := `
		INSERT INTO artifacts (id, job_id, kind, name, description, file_path,
		                       content, content_hash, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id, name) DO UPDATE
		SET kind = EXCLUDED.kind,
		    description = EXCLUDED.description,
		    file_path = EXCLUDED.file_path,
		    content = EXCLUDED.content,
		    content_hash = EXCLUDED.content_hash,
		    size_bytes = EXCLUDED.size_bytes
		WHERE artifacts.content_hash = EXCLUDED.content_hash OR $11
	`
	result, err := r.pool.Exec(ctx, query,
		a.ID,
		a.JobID,
		a.Kind,
		a.Name,
		nullString(a.Description),
		nullString(a.FilePath),
		nullString(a.Content),
		a.ContentHash,
		a.SizeBytes,
		a.CreatedAt,
		overwrite,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrArtifactConflict
	}
	return nil
}

// GetByJobAndName возвращает артефакт job по имени.
func (r *ArtifactRepo) GetByJobAndName(ctx context.Context, jobID uuid.UUID, name string) (*domain.Artifact, error) {
	query := artifactSelect + ` WHERE job_id = $1 AND name = $2`
	return scanArtifact(r.pool.QueryRow(ctx, query, jobID, name))
}

// ListByJob возвращает артефакты, произведённые job'ом.
func (r *ArtifactRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Artifact, error) {
	query := artifactSelect + ` WHERE job_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

// RecordConsumption фиксирует потребление артефакта job'ом.
// Идемпотентна: повторная запись той же пары — no-op.
func (r *ArtifactRepo) RecordConsumption(ctx context.Context, jobID, artifactID uuid.UUID) error {
	query := `
		INSERT INTO artifact_consumption (job_id, artifact_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, artifact_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, jobID, artifactID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record consumption: %w", err)
	}
	return nil
}

// ListConsumers возвращает jobs, потребившие артефакт.
func (r *ArtifactRepo) ListConsumers(ctx context.Context, artifactID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT job_id FROM artifact_consumption
		WHERE artifact_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, artifactID)
	if err != nil {
		return nil, fmt.Errorf("list consumers: %w", err)
	}
	defer rows.Close()

	var consumers []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan consumer: %w", err)
		}
		consumers = append(consumers, id)
	}
	return consumers, rows.Err()
}

// --- Helpers ---

const artifactSelect = `
	SELECT id, job_id, kind, name, description, file_path, content,
	       content_hash, size_bytes, created_at
	FROM artifacts`

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	var a domain.Artifact
	var description, filePath, content *string

	err := row.Scan(
		&a.ID,
		&a.JobID,
		&a.Kind,
		&a.Name,
		&description,
		&filePath,
		&content,
		&a.ContentHash,
		&a.SizeBytes,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}

	if description != nil {
		a.Description = *description
	}
	if filePath != nil {
		a.FilePath = *filePath
	}
	if content != nil {
		a.Content = *content
	}
	return &a, nil
}

func collectArtifacts(rows pgx.Rows) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}
