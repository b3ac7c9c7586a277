package engine

import (
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

func TestAncestors_Chain(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	a := f.job(st, domain.JobStatusCompleted)
	b := f.job(st, domain.JobStatusCompleted)
	c := f.job(st, domain.JobStatusPending)
	f.dep(b, a, domain.DependencySuccess)
	f.dep(c, b, domain.DependencySuccess)

	anc := Ancestors(f.snap(), c)
	if len(anc) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(anc))
	}
	if _, ok := anc[a]; !ok {
		t.Error("a must be a transitive ancestor of c")
	}
	if _, ok := anc[b]; !ok {
		t.Error("b must be an ancestor of c")
	}
}

func TestAncestors_TemplateEdgeResolvesToInstances(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	code := f.stage("code", 2)
	verify := f.stage("verify", 3)

	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	m1 := f.addJob(jobSpec{stage: code, status: domain.JobStatusCompleted, templateJob: &ids.codeJob, parent: &planJob})
	m2 := f.addJob(jobSpec{stage: code, status: domain.JobStatusCompleted, templateJob: &ids.codeJob, parent: &planJob})
	f.dep(m1, planJob, domain.DependencySuccess)
	f.dep(m2, planJob, domain.DependencySuccess)
	verifyJob := f.addJob(jobSpec{stage: verify, status: domain.JobStatusPending, templateJob: &ids.verifyJob})
	f.templateDep(verifyJob, ids.codeJob, domain.DependencySuccess)

	anc := Ancestors(f.snap(), verifyJob)
	if _, ok := anc[m1]; !ok {
		t.Error("template edge must resolve to instance m1")
	}
	if _, ok := anc[m2]; !ok {
		t.Error("template edge must resolve to instance m2")
	}
	if _, ok := anc[planJob]; !ok {
		t.Error("ancestry must be transitive through instances")
	}
}

func TestWouldCreateCycle(t *testing.T) {
	f := newFixture()
	st := f.stage("plan", 1)
	a := f.job(st, domain.JobStatusCompleted)
	b := f.job(st, domain.JobStatusCompleted)
	c := f.job(st, domain.JobStatusPending)
	f.dep(b, a, domain.DependencySuccess)
	f.dep(c, b, domain.DependencySuccess)
	s := f.snap()

	// Ребро назад по цепочке: a depends_on c — цикл
	if !WouldCreateCycle(s, a, c) {
		t.Error("edge a->c must be rejected as a cycle")
	}
	// Самозависимость — цикл
	if !WouldCreateCycle(s, a, a) {
		t.Error("self-dependency must be rejected")
	}
	// Ребро вперёд: c depends_on a — уже достижимо, но не цикл
	if WouldCreateCycle(s, c, a) {
		t.Error("edge c->a must be allowed")
	}
}
