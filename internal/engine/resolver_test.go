package engine

import (
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

func TestReadyJobs_NoDependencies(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	a := f.addJob(jobSpec{stage: st, status: domain.JobStatusPending})
	b := f.addJob(jobSpec{stage: st, status: domain.JobStatusPending})

	ready := ReadyJobs(f.snap())

	if len(ready) != 2 {
		t.Fatalf("expected 2 ready jobs, got %d", len(ready))
	}
	// FIFO по created_at
	if ready[0] != a || ready[1] != b {
		t.Error("ready jobs should come in creation order")
	}
}

func TestReadyJobs_DependencyTypes(t *testing.T) {
	cases := []struct {
		name     string
		typ      domain.DependencyType
		upstream domain.JobStatus
		ready    bool
	}{
		{"success blocked by pending", domain.DependencySuccess, domain.JobStatusPending, false},
		{"success blocked by running", domain.DependencySuccess, domain.JobStatusRunning, false},
		{"success satisfied by completed", domain.DependencySuccess, domain.JobStatusCompleted, true},
		{"success not satisfied by failed", domain.DependencySuccess, domain.JobStatusFailed, false},
		{"failure satisfied by failed", domain.DependencyFailure, domain.JobStatusFailed, true},
		{"failure not satisfied by completed", domain.DependencyFailure, domain.JobStatusCompleted, false},
		{"always satisfied by completed", domain.DependencyAlways, domain.JobStatusCompleted, true},
		{"always satisfied by failed", domain.DependencyAlways, domain.JobStatusFailed, true},
		{"always satisfied by skipped", domain.DependencyAlways, domain.JobStatusSkipped, true},
		{"always blocked by running", domain.DependencyAlways, domain.JobStatusRunning, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			st := f.stage("plan", 1)
			up := f.addJob(jobSpec{stage: st, status: tc.upstream})
			down := f.addJob(jobSpec{stage: st, status: domain.JobStatusPending})
			f.dep(down, up, tc.typ)

			ready := ReadyJobs(f.snap())
			if got := contains(ready, down); got != tc.ready {
				t.Errorf("ready = %v, want %v", got, tc.ready)
			}
		})
	}
}

func TestReadyJobs_StageGate(t *testing.T) {
	f := newFixture()
	plan := f.stage("plan", 1)
	code := f.stage("code", 2)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusRunning})
	codeJob := f.addJob(jobSpec{stage: code, status: domain.JobStatusPending})

	// Пока plan не терминален, code недостижим даже без явных рёбер
	if ready := ReadyJobs(f.snap()); contains(ready, codeJob) {
		t.Error("stage 2 job must wait for stage 1 to finish")
	}

	f.s.JobByID(planJob).Status = domain.JobStatusCompleted
	if ready := ReadyJobs(f.snap()); !contains(ready, codeJob) {
		t.Error("stage 2 job should be ready after stage 1 completes")
	}
}

func TestReadyJobs_RegressionBypassesStageGate(t *testing.T) {
	f := newFixture()
	dev := f.stage("dev", 1)
	test := f.stage("test", 2)
	devJob := f.addJob(jobSpec{stage: dev, status: domain.JobStatusCompleted})
	testJob := f.addJob(jobSpec{stage: test, status: domain.JobStatusRunning})

	// Regression job во вновь открытом dev stage готов, хотя test ещё бежит
	spawned := f.addJob(jobSpec{
		stage:      dev,
		status:     domain.JobStatusPending,
		parent:     &testJob,
		regression: "интеграционный тест падает на пустом вводе",
	})
	_ = devJob

	if ready := ReadyJobs(f.snap()); !contains(ready, spawned) {
		t.Error("regression job should bypass the stage gate")
	}
}

func TestReadyJobs_RegressionDoesNotRewindLaterStages(t *testing.T) {
	f := newFixture()
	dev := f.stage("dev", 1)
	report := f.stage("report", 2)
	f.job(dev, domain.JobStatusCompleted)
	testJob := f.job(dev, domain.JobStatusCompleted)

	// Pending regression job в dev не должен запирать report stage
	f.addJob(jobSpec{
		stage:      dev,
		status:     domain.JobStatusPending,
		parent:     &testJob,
		regression: "правка после ревью",
	})
	reportJob := f.job(report, domain.JobStatusPending)

	if ready := ReadyJobs(f.snap()); !contains(ready, reportJob) {
		t.Error("pending regression job must not re-close later stages")
	}
}

func TestReadyJobs_TemplateEdgeWaitsForExpansion(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	verify := f.stage("verify", 3)

	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusRunning, templateJob: &ids.planJob})
	verifyJob := f.addJob(jobSpec{stage: verify, status: domain.JobStatusPending, templateJob: &ids.verifyJob})
	f.templateDep(verifyJob, ids.codeJob, domain.DependencySuccess)

	// Source ещё бежит: ширина fan-out неизвестна, verify ждёт
	if ready := ReadyJobs(f.snap()); contains(ready, verifyJob) {
		t.Error("verify must wait while the multiplier source is running")
	}

	// Source завершён, но размножение не записано: всё ещё ждём
	f.s.JobByID(planJob).Status = domain.JobStatusCompleted
	if ready := ReadyJobs(f.snap()); contains(ready, verifyJob) {
		t.Error("verify must wait until the expansion is recorded")
	}
}

func TestReadyJobs_TemplateEdgeAllInstancesMustSucceed(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	code := f.stage("code", 2)
	verify := f.stage("verify", 3)

	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	m1 := f.addJob(jobSpec{stage: code, status: domain.JobStatusCompleted, templateJob: &ids.codeJob, parent: &planJob})
	m2 := f.addJob(jobSpec{stage: code, status: domain.JobStatusRunning, templateJob: &ids.codeJob, parent: &planJob})
	verifyJob := f.addJob(jobSpec{stage: verify, status: domain.JobStatusPending, templateJob: &ids.verifyJob})
	f.templateDep(verifyJob, ids.codeJob, domain.DependencySuccess)
	f.expanded(ids.codeJob, planJob, 2)
	_ = m1

	if ready := ReadyJobs(f.snap()); contains(ready, verifyJob) {
		t.Error("verify must wait for every code instance")
	}

	f.s.JobByID(m2).Status = domain.JobStatusCompleted
	if ready := ReadyJobs(f.snap()); !contains(ready, verifyJob) {
		t.Error("verify should be ready once all code instances completed")
	}
}

func TestReadyJobs_TemplateEdgeZeroInstances(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	verify := f.stage("verify", 3)

	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	verifyJob := f.addJob(jobSpec{stage: verify, status: domain.JobStatusPending, templateJob: &ids.verifyJob})
	f.templateDep(verifyJob, ids.codeJob, domain.DependencySuccess)

	// Размножение в ноль элементов: ребро удовлетворяется вакуумно
	f.expanded(ids.codeJob, planJob, 0)

	if ready := ReadyJobs(f.snap()); !contains(ready, verifyJob) {
		t.Error("template edge should be vacuously satisfied on zero-item expansion")
	}
}

func TestReadyJobs_PendingExpansionBlocksLaterStages(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	verify := f.stage("verify", 3)

	f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	verifyJob := f.addJob(jobSpec{stage: verify, status: domain.JobStatusPending, templateJob: &ids.verifyJob})

	// Без явного ребра на code: job позднего stage всё равно обязан
	// ждать незаписанного размножения в раннем stage
	if ready := ReadyJobs(f.snap()); contains(ready, verifyJob) {
		t.Error("later stage must wait for a pending expansion in an earlier stage")
	}
}

func TestReadyJobs_SkipsNonPending(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	f.job(st, domain.JobStatusRunning)
	f.job(st, domain.JobStatusCompleted)
	f.job(st, domain.JobStatusFailed)
	f.job(st, domain.JobStatusSkipped)

	if ready := ReadyJobs(f.snap()); len(ready) != 0 {
		t.Errorf("expected no ready jobs, got %d", len(ready))
	}
}
