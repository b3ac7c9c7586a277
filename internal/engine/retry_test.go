package engine

import (
	"strings"
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name       string
		status     domain.JobStatus
		reason     string
		retryCount int
		maxRetries int
		cancelled  bool
		want       bool
	}{
		{"timeout with budget", domain.JobStatusFailed, domain.TerminationTimeout, 0, 2, false, true},
		{"max iterations with budget", domain.JobStatusFailed, domain.TerminationMaxIterations, 1, 2, false, true},
		{"budget exhausted", domain.JobStatusFailed, domain.TerminationTimeout, 2, 2, false, false},
		{"no budget at all", domain.JobStatusFailed, domain.TerminationTimeout, 0, 0, false, false},
		{"external cancel never retried", domain.JobStatusFailed, domain.TerminationCancelled, 0, 2, false, false},
		{"completed never retried", domain.JobStatusCompleted, domain.TerminationSuccess, 0, 2, false, false},
		{"pipeline cancel requested", domain.JobStatusFailed, domain.TerminationTimeout, 0, 2, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pipeline := &domain.Pipeline{CancelRequested: tc.cancelled}
			job := &domain.Job{
				Status:            tc.status,
				TerminationReason: tc.reason,
				RetryCount:        tc.retryCount,
				MaxRetries:        tc.maxRetries,
			}
			if got := ShouldRetry(pipeline, job); got != tc.want {
				t.Errorf("ShouldRetry = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildRetryPrompt_WithContext(t *testing.T) {
	job := &domain.Job{
		OriginalPrompt: "Реализуй парсер конфигурации",
		Prompt:         "уже аугментированный текст",
		Output:         "успел написать половину лексера",
		Retry: &domain.RetrySpec{
			IncludeContext:     true,
			ContextInstruction: "ВАЖНО: это повторная попытка.\n\n",
		},
	}

	prompt := BuildRetryPrompt(job)

	if !strings.HasPrefix(prompt, "ВАЖНО: это повторная попытка.") {
		t.Error("prompt must start with the configured context instruction")
	}
	if !strings.Contains(prompt, "=== PREVIOUS ATTEMPT OUTPUT ===\nуспел написать половину лексера") {
		t.Error("prompt must embed the previous attempt output")
	}
	if !strings.Contains(prompt, "=== ORIGINAL TASK ===\nРеализуй парсер конфигурации") {
		t.Error("prompt must embed the original task")
	}
	// База — OriginalPrompt, не текущий (уже аугментированный) prompt:
	// иначе контекст наслаивался бы при каждом retry
	if strings.Contains(prompt, "уже аугментированный текст") {
		t.Error("augmentation must start from the original prompt, not the current one")
	}
}

func TestBuildRetryPrompt_DefaultInstruction(t *testing.T) {
	job := &domain.Job{
		OriginalPrompt: "задача",
		Output:         "вывод",
		Retry:          &domain.RetrySpec{IncludeContext: true},
	}
	prompt := BuildRetryPrompt(job)
	if !strings.HasPrefix(prompt, domain.DefaultContextInstruction) {
		t.Error("empty instruction must fall back to the default")
	}
}

func TestBuildRetryPrompt_NoContext(t *testing.T) {
	job := &domain.Job{
		OriginalPrompt: "задача",
		Output:         "вывод прошлой попытки",
	}
	if got := BuildRetryPrompt(job); got != "задача" {
		t.Errorf("without include_context the prompt must be the original, got %q", got)
	}

	job.Retry = &domain.RetrySpec{IncludeContext: false}
	if got := BuildRetryPrompt(job); got != "задача" {
		t.Errorf("include_context=false must keep the original prompt, got %q", got)
	}
}

// Сценарий: max_retries=2, два таймаута подряд, третья попытка.
func TestRetry_TwoTimeoutsThenThirdAttempt(t *testing.T) {
	pipeline := &domain.Pipeline{Status: domain.PipelineStatusRunning}
	job := &domain.Job{
		Status:         domain.JobStatusPending,
		OriginalPrompt: "Собери отчёт по логам",
		Prompt:         "Собери отчёт по логам",
		MaxRetries:     2,
		Retry: &domain.RetrySpec{
			IncludeContext:     true,
			ContextInstruction: "Продолжи с места остановки.\n\n",
		},
	}

	// Первая попытка: timeout
	job.MarkRunning()
	job.MarkFailed(domain.TerminationTimeout, "прочитал половину логов")
	if !ShouldRetry(pipeline, job) {
		t.Fatal("first timeout must be retryable")
	}
	job.ResetForRetry(BuildRetryPrompt(job))
	if job.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", job.RetryCount)
	}

	// Вторая попытка: снова timeout
	job.MarkRunning()
	job.MarkFailed(domain.TerminationTimeout, "дошёл до агрегации")
	if !ShouldRetry(pipeline, job) {
		t.Fatal("second timeout must be retryable")
	}
	job.ResetForRetry(BuildRetryPrompt(job))

	// Третья попытка: retry_count = 2, промпт содержит инструкцию
	// и вывод именно второй попытки
	if job.RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2", job.RetryCount)
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if !strings.Contains(job.Prompt, "Продолжи с места остановки.") {
		t.Error("third attempt prompt must contain the context instruction")
	}
	if !strings.Contains(job.Prompt, "дошёл до агрегации") {
		t.Error("third attempt prompt must contain the second attempt's output")
	}
	if strings.Contains(job.Prompt, "прочитал половину логов") {
		t.Error("third attempt prompt must not stack the first attempt's output")
	}

	// Бюджет исчерпан: третий провал окончателен
	job.MarkRunning()
	job.MarkFailed(domain.TerminationTimeout, "опять не успел")
	if ShouldRetry(pipeline, job) {
		t.Error("retry budget of 2 must be exhausted after two retries")
	}
}
