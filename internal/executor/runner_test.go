package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/repo"
)

// Fakes хранилищ для тестов processJob.

type fakeJobStore struct {
	job       *domain.Job
	claimErr  error
	reportErr error
	reports   []domain.JobStatus
}

func (f *fakeJobStore) ClaimPending(context.Context, uuid.UUID) error {
	return f.claimErr
}

func (f *fakeJobStore) GetByID(context.Context, uuid.UUID) (*domain.Job, error) {
	if f.job == nil {
		return nil, repo.ErrNotFound
	}
	copied := *f.job
	return &copied, nil
}

func (f *fakeJobStore) ReportResult(_ context.Context, job *domain.Job) error {
	if f.reportErr != nil {
		return f.reportErr
	}
	f.reports = append(f.reports, job.Status)
	f.job.Status = job.Status
	f.job.Output = job.Output
	f.job.TerminationReason = job.TerminationReason
	return nil
}

type fakePipelineStore struct {
	pipeline *domain.Pipeline
}

func (f *fakePipelineStore) GetByID(context.Context, uuid.UUID) (*domain.Pipeline, error) {
	if f.pipeline == nil {
		return nil, repo.ErrNotFound
	}
	return f.pipeline, nil
}

type fakeArtifactStore struct {
	recorded int
}

func (f *fakeArtifactStore) Record(context.Context, *domain.Artifact, bool) error {
	f.recorded++
	return nil
}

type fakeActionStore struct {
	appended int
}

func (f *fakeActionStore) Append(context.Context, *domain.Action) error {
	f.appended++
	return nil
}

// stubExecutor возвращает заранее заданный отчёт и считает вызовы.
type stubExecutor struct {
	report *Report
	calls  int
}

func (s *stubExecutor) Execute(context.Context, *domain.Job, string) (*Report, error) {
	s.calls++
	return s.report, nil
}

type runnerHarness struct {
	runner    *Runner
	jobs      *fakeJobStore
	artifacts *fakeArtifactStore
	actions   *fakeActionStore
	exec      *stubExecutor
}

func newRunnerHarness(job *domain.Job, pipeline *domain.Pipeline, report *Report) *runnerHarness {
	h := &runnerHarness{
		jobs:      &fakeJobStore{job: job},
		artifacts: &fakeArtifactStore{},
		actions:   &fakeActionStore{},
		exec:      &stubExecutor{report: report},
	}
	h.runner = New(Config{
		JobRepo:      h.jobs,
		PipelineRepo: &fakePipelineStore{pipeline: pipeline},
		ArtifactRepo: h.artifacts,
		ActionRepo:   h.actions,
		Executor:     h.exec,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func runningJob(pipelineID uuid.UUID) *domain.Job {
	now := time.Now().UTC()
	started := now
	return &domain.Job{
		ID:         uuid.New(),
		PipelineID: pipelineID,
		StageID:    uuid.New(),
		Role:       "agent",
		Prompt:     "задача",
		Status:     domain.JobStatusRunning,
		StartedAt:  &started,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRunner_ReportsCompletedResult(t *testing.T) {
	pipeline := &domain.Pipeline{ID: uuid.New(), Status: domain.PipelineStatusRunning}
	job := runningJob(pipeline.ID)
	h := newRunnerHarness(job, pipeline, &Report{
		Status:            domain.JobStatusCompleted,
		TerminationReason: "success",
		FinalOutput:       "готово",
	})

	err := h.runner.processJob(context.Background(), job.ID, h.runner.logger)

	if err != nil {
		t.Fatalf("processJob returned error: %v", err)
	}
	if len(h.jobs.reports) != 1 || h.jobs.reports[0] != domain.JobStatusCompleted {
		t.Fatalf("expected one completed report, got %v", h.jobs.reports)
	}
	if h.actions.appended != 1 {
		t.Errorf("expected one action log entry, got %d", h.actions.appended)
	}
	if h.artifacts.recorded != 1 {
		t.Errorf("expected final output artifact recorded, got %d", h.artifacts.recorded)
	}
}

func TestRunner_LateResultDoesNotResurrectCancelledJob(t *testing.T) {
	// Между захватом job и завершением команды оркестратор каскадно
	// отменил pipeline: строка job уже cancelled. Условная запись
	// результата не проходит, и отчёт отбрасывается целиком.
	pipeline := &domain.Pipeline{ID: uuid.New(), Status: domain.PipelineStatusRunning}
	job := runningJob(pipeline.ID)
	h := newRunnerHarness(job, pipeline, &Report{
		Status:            domain.JobStatusCompleted,
		TerminationReason: "success",
		FinalOutput:       "готово",
	})
	h.jobs.job.Status = domain.JobStatusCancelled
	h.jobs.job.TerminationReason = domain.TerminationCancelled
	h.jobs.reportErr = repo.ErrInvalidState

	err := h.runner.processJob(context.Background(), job.ID, h.runner.logger)

	if err != nil {
		t.Fatalf("dropped result must not be an error: %v", err)
	}
	if len(h.jobs.reports) != 0 {
		t.Fatalf("no report must land, got %v", h.jobs.reports)
	}
	if h.jobs.job.Status != domain.JobStatusCancelled {
		t.Errorf("job must stay cancelled, got %s", h.jobs.job.Status)
	}
	if h.actions.appended != 0 || h.artifacts.recorded != 0 {
		t.Errorf("dropped report must not leave side effects: actions=%d artifacts=%d",
			h.actions.appended, h.artifacts.recorded)
	}
}

func TestRunner_CancelRequestedSkipsExecution(t *testing.T) {
	pipeline := &domain.Pipeline{
		ID:              uuid.New(),
		Status:          domain.PipelineStatusRunning,
		CancelRequested: true,
	}
	job := runningJob(pipeline.ID)
	h := newRunnerHarness(job, pipeline, &Report{Status: domain.JobStatusCompleted})

	err := h.runner.processJob(context.Background(), job.ID, h.runner.logger)

	if err != nil {
		t.Fatalf("processJob returned error: %v", err)
	}
	if h.exec.calls != 0 {
		t.Errorf("executor must not run for a cancelled pipeline, got %d calls", h.exec.calls)
	}
	if len(h.jobs.reports) != 1 || h.jobs.reports[0] != domain.JobStatusCancelled {
		t.Fatalf("expected cancelled report, got %v", h.jobs.reports)
	}
	if h.jobs.job.TerminationReason != domain.TerminationCancelled {
		t.Errorf("expected %q termination reason, got %q",
			domain.TerminationCancelled, h.jobs.job.TerminationReason)
	}
}

func TestRunner_ClaimLostToAnotherExecutor(t *testing.T) {
	pipeline := &domain.Pipeline{ID: uuid.New(), Status: domain.PipelineStatusRunning}
	job := runningJob(pipeline.ID)
	h := newRunnerHarness(job, pipeline, &Report{Status: domain.JobStatusCompleted})
	h.jobs.claimErr = repo.ErrInvalidState

	err := h.runner.processJob(context.Background(), job.ID, h.runner.logger)

	if !errors.Is(err, ErrJobNotPending) {
		t.Fatalf("expected ErrJobNotPending, got %v", err)
	}
	if h.exec.calls != 0 {
		t.Errorf("executor must not run without a claim, got %d calls", h.exec.calls)
	}
}
