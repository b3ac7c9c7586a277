package engine

import (
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

func TestStageStatusOf(t *testing.T) {
	cases := []struct {
		name     string
		statuses []domain.JobStatus
		want     domain.StageStatus
	}{
		{"all pending", []domain.JobStatus{domain.JobStatusPending, domain.JobStatusPending}, domain.StageStatusPending},
		{"one running", []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusRunning}, domain.StageStatusRunning},
		{"partially done", []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusPending}, domain.StageStatusRunning},
		{"all completed", []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusCompleted}, domain.StageStatusCompleted},
		{"completed with skip", []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusSkipped}, domain.StageStatusCompleted},
		{"any failed", []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed}, domain.StageStatusFailed},
		{"all skipped", []domain.JobStatus{domain.JobStatusSkipped, domain.JobStatusSkipped}, domain.StageStatusSkipped},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			st := f.stage("work", 1)
			for _, status := range tc.statuses {
				f.job(st, status)
			}
			s := f.snap()
			if got := StageStatusOf(s, s.StageByID(st)); got != tc.want {
				t.Errorf("status = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStageStatusOf_EmptyMultiplierStage(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	code := f.stage("code", 2)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusRunning, templateJob: &ids.planJob})

	// Source ещё бежит: пустой code stage ждёт размножения
	s := f.snap()
	if got := StageStatusOf(s, s.StageByID(code)); got != domain.StageStatusPending {
		t.Errorf("unexpanded multiplier stage = %q, want pending", got)
	}

	// Размножение в ноль: stage завершён
	f.s.JobByID(planJob).Status = domain.JobStatusCompleted
	f.expanded(ids.codeJob, planJob, 0)
	s = f.snap()
	if got := StageStatusOf(s, s.StageByID(code)); got != domain.StageStatusCompleted {
		t.Errorf("zero-expansion stage = %q, want completed", got)
	}
}

func TestPipelineStatusOf(t *testing.T) {
	t.Run("running while any job is not terminal", func(t *testing.T) {
		f := newFixture()
		st := f.stage("plan", 1)
		f.job(st, domain.JobStatusCompleted)
		f.job(st, domain.JobStatusRunning)
		if got := PipelineStatusOf(f.snap()); got != domain.PipelineStatusRunning {
			t.Errorf("status = %q, want running", got)
		}
	})

	t.Run("completed when all terminal successfully", func(t *testing.T) {
		f := newFixture()
		st := f.stage("plan", 1)
		f.job(st, domain.JobStatusCompleted)
		f.job(st, domain.JobStatusSkipped)
		if got := PipelineStatusOf(f.snap()); got != domain.PipelineStatusCompleted {
			t.Errorf("status = %q, want completed", got)
		}
	})

	t.Run("failed on any permanent failure", func(t *testing.T) {
		f := newFixture()
		st := f.stage("plan", 1)
		f.job(st, domain.JobStatusCompleted)
		f.job(st, domain.JobStatusFailed)
		if got := PipelineStatusOf(f.snap()); got != domain.PipelineStatusFailed {
			t.Errorf("status = %q, want failed", got)
		}
	})

	t.Run("cancelled wins over failed", func(t *testing.T) {
		f := newFixture()
		f.s.Pipeline.CancelRequested = true
		st := f.stage("plan", 1)
		f.job(st, domain.JobStatusFailed)
		f.job(st, domain.JobStatusCancelled)
		if got := PipelineStatusOf(f.snap()); got != domain.PipelineStatusCancelled {
			t.Errorf("status = %q, want cancelled", got)
		}
	})

	t.Run("not completed while an expansion is outstanding", func(t *testing.T) {
		tpl, ids := fanOutTemplate()
		f := newFixture()
		f.s.Template = tpl
		plan := f.stage("plan", 1)
		f.stage("code", 2)
		// Source завершён, маркера размножения нет: несмотря на то,
		// что все jobs терминальны, pipeline ещё не completed
		f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
		if got := PipelineStatusOf(f.snap()); got != domain.PipelineStatusRunning {
			t.Errorf("status = %q, want running until the expansion is recorded", got)
		}
	})
}

func TestPropagateFailure_CascadingSkip(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	a := f.job(st, domain.JobStatusFailed)
	b := f.job(st, domain.JobStatusPending)
	c := f.job(st, domain.JobStatusPending)
	f.dep(b, a, domain.DependencySuccess)
	f.dep(c, b, domain.DependencySuccess)
	s := f.snap()

	skipped := PropagateFailure(s)

	// b пропущен из-за падения a, c — каскадно из-за пропуска b
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped jobs, got %d", len(skipped))
	}
	if !contains(skipped, b) || !contains(skipped, c) {
		t.Error("both b and c must be skipped")
	}
	if s.JobByID(b).Status != domain.JobStatusSkipped {
		t.Error("snapshot must reflect the skip")
	}
}

func TestPropagateFailure_CompensationPathSurvives(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	a := f.job(st, domain.JobStatusFailed)
	cleanup := f.job(st, domain.JobStatusPending)
	audit := f.job(st, domain.JobStatusPending)
	f.dep(cleanup, a, domain.DependencyFailure)
	f.dep(audit, a, domain.DependencyAlways)
	s := f.snap()

	if skipped := PropagateFailure(s); len(skipped) != 0 {
		t.Errorf("failure/always dependents must survive upstream failure, skipped %d", len(skipped))
	}
}

func TestPropagateFailure_FailureEdgeOnSuccess(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	a := f.job(st, domain.JobStatusCompleted)
	cleanup := f.job(st, domain.JobStatusPending)
	f.dep(cleanup, a, domain.DependencyFailure)
	s := f.snap()

	// Upstream успешен: компенсирующий job больше не нужен
	skipped := PropagateFailure(s)
	if !contains(skipped, cleanup) {
		t.Error("failure dependent must be skipped when upstream succeeds")
	}
}

func TestPropagateFailure_TemplateEdgeUnsatisfiable(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	verify := f.stage("verify", 3)

	// Source упал окончательно: размножения не будет, verify пропускается
	f.addJob(jobSpec{stage: plan, status: domain.JobStatusFailed, templateJob: &ids.planJob})
	verifyJob := f.addJob(jobSpec{stage: verify, status: domain.JobStatusPending, templateJob: &ids.verifyJob})
	f.templateDep(verifyJob, ids.codeJob, domain.DependencySuccess)
	s := f.snap()

	skipped := PropagateFailure(s)
	if !contains(skipped, verifyJob) {
		t.Error("template edge on a dead multiplier must be unsatisfiable")
	}
}
