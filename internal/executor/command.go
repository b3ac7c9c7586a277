package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Colony/internal/domain"
)

const (
	// DefaultCommand — команда по умолчанию: запуск harness для job.
	DefaultCommand = "colony-harness {{job_id}}"

	// ExitCodeMaxIterations — код выхода harness'а при достижении
	// лимита итераций агента.
	ExitCodeMaxIterations = 3

	// defaultTimeout применяется, когда job не задаёт таймаут.
	defaultTimeout = 30 * time.Minute
)

// CommandExecutor выполняет job как команду оболочки.
//
// Команда берётся из job.Command (или DefaultCommand), плейсхолдер
// {{job_id}} заменяется на ID job. Параметры job передаются через
// переменные окружения COLONY_*.
type CommandExecutor struct {
	// Shell — оболочка для запуска команды. Пустая строка — /bin/sh.
	Shell string

	// ExtraEnv — дополнительные переменные окружения (для тестов
	// и нестандартных harness'ов).
	ExtraEnv []string
}

// Execute запускает команду job и интерпретирует код выхода.
func (e *CommandExecutor) Execute(ctx context.Context, job *domain.Job, workspace string) (*Report, error) {
	cmdline := e.buildCommand(job)
	if strings.TrimSpace(cmdline) == "" {
		return nil, ErrEmptyCommand
	}

	timeout := defaultTimeout
	if job.TimeoutSeconds > 0 {
		timeout = time.Duration(job.TimeoutSeconds) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(runCtx, shell, "-c", cmdline)
	cmd.Dir = workspace
	cmd.Env = append(e.environ(job, workspace), e.ExtraEnv...)

	output, err := cmd.CombinedOutput()
	finalOutput := string(output)

	if err == nil {
		return &Report{
			Status:            domain.JobStatusCompleted,
			TerminationReason: domain.TerminationSuccess,
			FinalOutput:       finalOutput,
		}, nil
	}

	// Таймаут убивает процесс, CombinedOutput возвращает ошибку kill.
	if runCtx.Err() == context.DeadlineExceeded {
		return &Report{
			Status:            domain.JobStatusFailed,
			TerminationReason: domain.TerminationTimeout,
			FinalOutput:       finalOutput,
		}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		reason := "exit_code_" + strconv.Itoa(exitErr.ExitCode())
		if exitErr.ExitCode() == ExitCodeMaxIterations {
			reason = domain.TerminationMaxIterations
		}
		return &Report{
			Status:            domain.JobStatusFailed,
			TerminationReason: reason,
			FinalOutput:       finalOutput,
		}, nil
	}

	// Процесс не запустился — инфраструктурная ошибка.
	return nil, fmt.Errorf("run command: %w", err)
}

// buildCommand рендерит команду job.
func (e *CommandExecutor) buildCommand(job *domain.Job) string {
	cmdline := job.Command
	if cmdline == "" {
		cmdline = DefaultCommand
	}
	return domain.RenderPrompt(cmdline, map[string]string{
		"job_id": job.ID.String(),
	})
}

// environ собирает окружение команды.
func (e *CommandExecutor) environ(job *domain.Job, workspace string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"COLONY_JOB_ID=" + job.ID.String(),
		"COLONY_ROLE=" + job.Role,
		"COLONY_PROMPT=" + job.Prompt,
		"COLONY_MAX_ITERATIONS=" + strconv.Itoa(job.MaxIterations),
		"COLONY_WORKSPACE=" + workspace,
		"COLONY_ALLOWED_PATHS=" + strings.Join(job.AllowedPaths, ":"),
	}
}
