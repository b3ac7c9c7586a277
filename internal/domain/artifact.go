package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind — вид артефакта.
type ArtifactKind string

const (
	// ArtifactFile — файл в workspace, изменённый или созданный job'ом.
	ArtifactFile ArtifactKind = "file"

	// ArtifactModelOutput — финальный текстовый вывод модели.
	ArtifactModelOutput ArtifactKind = "model_output"

	// ArtifactErrorContext — контекст ошибки для downstream jobs.
	ArtifactErrorContext ArtifactKind = "error_context"

	// ArtifactTestResults — результаты прогона тестов.
	ArtifactTestResults ArtifactKind = "test_results"

	// ArtifactVerificationReport — отчёт верификатора.
	ArtifactVerificationReport ArtifactKind = "verification_report"
)

// Valid проверяет, что вид артефакта известен.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactFile, ArtifactModelOutput, ArtifactErrorContext,
		ArtifactTestResults, ArtifactVerificationReport:
		return true
	default:
		return false
	}
}

// Artifact — именованный результат работы job.
//
// Артефакт производится ровно одним job и может потребляться
// нулём или многими downstream jobs (см. Consumption).
// Либо ссылается на файл (FilePath), либо несёт содержимое inline
// (Content) вместе с sha256-хэшем для обнаружения изменений и
// идемпотентной повторной регистрации.
type Artifact struct {
	// ID — уникальный идентификатор артефакта.
	ID uuid.UUID `json:"id"`

	// JobID — job, который произвёл артефакт.
	JobID uuid.UUID `json:"job_id"`

	// Kind — вид артефакта.
	Kind ArtifactKind `json:"kind"`

	// Name — имя артефакта, уникальное в рамках job
	// (например, "final_output.txt").
	Name string `json:"name"`

	// Description — человекочитаемое описание.
	Description string `json:"description,omitempty"`

	// FilePath — путь к файлу (для kind=file).
	FilePath string `json:"file_path,omitempty"`

	// Content — inline-содержимое (для текстовых артефактов).
	Content string `json:"content,omitempty"`

	// ContentHash — sha256 от Content (hex). Пустой для file-артефактов
	// без inline-содержимого.
	ContentHash string `json:"content_hash,omitempty"`

	// SizeBytes — размер содержимого.
	SizeBytes int64 `json:"size_bytes"`

	// CreatedAt — время регистрации.
	CreatedAt time.Time `json:"created_at"`
}

// HashContent возвращает sha256-хэш содержимого в hex.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Consumption — запись о потреблении артефакта downstream job'ом.
//
// Записи append-only и никогда не дублируются для одной пары
// (job, artifact): повторная регистрация — no-op.
type Consumption struct {
	// JobID — потребивший job.
	JobID uuid.UUID `json:"job_id"`

	// ArtifactID — потреблённый артефакт.
	ArtifactID uuid.UUID `json:"artifact_id"`

	// CreatedAt — время первой регистрации потребления.
	CreatedAt time.Time `json:"created_at"`
}
