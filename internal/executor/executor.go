package executor

import (
	"context"

	"github.com/shaiso/Colony/internal/domain"
)

// Executor — интерфейс выполнения одного job.
//
// Реализация по умолчанию — CommandExecutor. Интерфейс позволяет
// подменять выполнение в тестах.
//
// Инфраструктурные ошибки (не удалось запустить процесс) возвращаются
// через error; исход самого job (включая таймаут и ненулевой код
// выхода) описывается Report'ом.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job, workspace string) (*Report, error)
}

// Report — результат выполнения job.
//
// Это единственное, что оркестратор видит о выполнении: executor
// полностью скрывает механику запуска.
type Report struct {
	// Status — терминальный статус: completed или failed.
	Status domain.JobStatus

	// TerminationReason — причина завершения
	// ("success", "timeout_exceeded", "max_iterations_reached",
	// "exit_code_N").
	TerminationReason string

	// FinalOutput — захваченный combined вывод команды.
	FinalOutput string
}

// Succeeded возвращает true для успешно завершённого выполнения.
func (r *Report) Succeeded() bool {
	return r.Status == domain.JobStatusCompleted
}
