package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

func TestArtifactSourceJobs_DirectDependenciesOnly(t *testing.T) {
	f := newFixture()
	stage := f.stage("build", 1)
	grandparent := f.job(stage, domain.JobStatusCompleted)
	parent := f.job(stage, domain.JobStatusCompleted)
	child := f.job(stage, domain.JobStatusPending)
	f.dep(parent, grandparent, domain.DependencySuccess)
	f.dep(child, parent, domain.DependencySuccess)
	s := f.snap()

	sources := ArtifactSourceJobs(s, child)

	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if sources[0] != parent {
		t.Errorf("expected parent as source, got %s", sources[0])
	}
	// Транзитивный upstream не виден
	if contains(sources, grandparent) {
		t.Error("grandparent must not be a source")
	}
}

func TestArtifactSourceJobs_TemplateEdgeResolvesToAllInstances(t *testing.T) {
	f := newFixture()
	stage := f.stage("code", 1)
	verifyStage := f.stage("verify", 2)

	codeTJ := uuid.New()
	inst1 := f.addJob(jobSpec{stage: stage, status: domain.JobStatusCompleted, templateJob: &codeTJ})
	inst2 := f.addJob(jobSpec{stage: stage, status: domain.JobStatusCompleted, templateJob: &codeTJ})
	inst3 := f.addJob(jobSpec{stage: stage, status: domain.JobStatusFailed, templateJob: &codeTJ})

	verify := f.job(verifyStage, domain.JobStatusPending)
	f.templateDep(verify, codeTJ, domain.DependencySuccess)
	s := f.snap()

	sources := ArtifactSourceJobs(s, verify)

	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	for _, id := range []uuid.UUID{inst1, inst2, inst3} {
		if !contains(sources, id) {
			t.Errorf("instance %s missing from sources", id)
		}
	}
}

func TestArtifactSourceJobs_MixedEdgesDeduplicated(t *testing.T) {
	f := newFixture()
	stage := f.stage("build", 1)
	reportStage := f.stage("report", 2)

	buildTJ := uuid.New()
	build := f.addJob(jobSpec{stage: stage, status: domain.JobStatusFailed, templateJob: &buildTJ})

	report := f.job(reportStage, domain.JobStatusPending)
	// Failure-ребро даёт доступ к артефактам наравне с success
	f.dep(report, build, domain.DependencyFailure)
	f.templateDep(report, buildTJ, domain.DependencyAlways)
	s := f.snap()

	sources := ArtifactSourceJobs(s, report)

	if len(sources) != 1 {
		t.Fatalf("expected deduplicated single source, got %d", len(sources))
	}
	if sources[0] != build {
		t.Errorf("expected build job as source, got %s", sources[0])
	}
}

func TestArtifactSourceJobs_NoDependencies(t *testing.T) {
	f := newFixture()
	stage := f.stage("plan", 1)
	root := f.job(stage, domain.JobStatusPending)
	s := f.snap()

	if sources := ArtifactSourceJobs(s, root); len(sources) != 0 {
		t.Errorf("root job must have no sources, got %d", len(sources))
	}
}
