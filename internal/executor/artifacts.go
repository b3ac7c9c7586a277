package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/engine"
)

// Collector собирает артефакты завершённого job.
//
// Стратегию выбирает template, а не модель: job не может
// зарегистрировать артефакт напрямую.
type Collector interface {
	Collect(job *domain.Job, workspace, finalOutput string) ([]domain.Artifact, error)
}

// CollectorFor возвращает collector для стратегии job.
// Пустая или неизвестная стратегия — stdout_final.
func CollectorFor(strategy string) Collector {
	switch strategy {
	case "file_list":
		return &fileListCollector{}
	default:
		return &stdoutFinalCollector{}
	}
}

// stdoutFinalCollector регистрирует финальный вывод модели
// как артефакт final_output.txt.
type stdoutFinalCollector struct{}

func (c *stdoutFinalCollector) Collect(job *domain.Job, workspace, finalOutput string) ([]domain.Artifact, error) {
	if finalOutput == "" {
		return nil, nil
	}

	return []domain.Artifact{{
		ID:          uuid.New(),
		JobID:       job.ID,
		Kind:        domain.ArtifactModelOutput,
		Name:        "final_output.txt",
		Description: "Final model output before job completion",
		Content:     finalOutput,
		ContentHash: domain.HashContent(finalOutput),
		SizeBytes:   int64(len(finalOutput)),
		CreatedAt:   time.Now().UTC(),
	}}, nil
}

// fileListCollector регистрирует файлы, перечисленные job'ом
// в последнем JSON-массиве его вывода, как file-артефакты.
//
// Пути трактуются относительно workspace; выход за его пределы
// и несуществующие файлы пропускаются.
type fileListCollector struct{}

func (c *fileListCollector) Collect(job *domain.Job, workspace, finalOutput string) ([]domain.Artifact, error) {
	paths, err := engine.ParseItems(finalOutput, domain.ParseJSONArray)
	if err != nil {
		return nil, fmt.Errorf("parse file list: %w", err)
	}

	artifacts := make([]domain.Artifact, 0, len(paths))
	for _, rel := range paths {
		rel = filepath.Clean(rel)
		if !filepath.IsLocal(rel) {
			continue
		}

		full := filepath.Join(workspace, rel)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}

		artifacts = append(artifacts, domain.Artifact{
			ID:          uuid.New(),
			JobID:       job.ID,
			Kind:        domain.ArtifactFile,
			Name:        rel,
			Description: "File produced by job",
			FilePath:    full,
			SizeBytes:   info.Size(),
			CreatedAt:   time.Now().UTC(),
		})
	}

	return artifacts, nil
}
