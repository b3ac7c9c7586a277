package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

func TestExpand_TwoItems(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	code := f.stage("code", 2)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	s := f.snap()

	mult := tpl.FindJob(ids.codeJob)
	result, err := Expand(s, mult, s.JobByID(planJob), `["task A", "task B"]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Jobs) != 2 {
		t.Fatalf("expected 2 spawned jobs, got %d", len(result.Jobs))
	}
	if result.Marker.SpawnedCount != 2 {
		t.Errorf("marker count = %d, want 2", result.Marker.SpawnedCount)
	}
	if result.Marker.SourceJobID != planJob || result.Marker.TemplateJobID != ids.codeJob {
		t.Error("marker must record the (source, template job) pair")
	}

	for i, job := range result.Jobs {
		if job.StageID != code {
			t.Errorf("job %d placed in wrong stage", i)
		}
		if job.TemplateJobID == nil || *job.TemplateJobID != ids.codeJob {
			t.Errorf("job %d must carry the multiplier's template id", i)
		}
		if job.ParentJobID == nil || *job.ParentJobID != planJob {
			t.Errorf("job %d must reference the source as parent", i)
		}
		if job.Role != "coder" {
			t.Errorf("job %d role = %q, want coder", i, job.Role)
		}
		if job.MaxRetries != 2 {
			t.Errorf("job %d must inherit limits from the template job", i)
		}
	}

	// Подстановка {{item}}, {{index}} и {{original_prompt}}
	if !strings.Contains(result.Jobs[0].Prompt, "Подзадача 0: task A") {
		t.Errorf("unexpected prompt: %q", result.Jobs[0].Prompt)
	}
	if !strings.Contains(result.Jobs[1].Prompt, "Подзадача 1: task B") {
		t.Errorf("unexpected prompt: %q", result.Jobs[1].Prompt)
	}
	if !strings.Contains(result.Jobs[0].Prompt, f.s.Pipeline.OriginalPrompt) {
		t.Error("prompt must substitute {{original_prompt}}")
	}

	// Каждому инстансу — success-ребро на source
	if len(result.Dependencies) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(result.Dependencies))
	}
	for _, dep := range result.Dependencies {
		if dep.DependsOnJobID == nil || *dep.DependsOnJobID != planJob {
			t.Error("spawned job must depend on the source job")
		}
		if dep.Type != domain.DependencySuccess {
			t.Errorf("edge type = %q, want success", dep.Type)
		}
	}
}

func TestExpand_ZeroItems(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	s := f.snap()

	result, err := Expand(s, tpl.FindJob(ids.codeJob), s.JobByID(planJob), `[]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(result.Jobs))
	}
	// Маркер записывается и при нулевом размножении
	if result.Marker.SpawnedCount != 0 {
		t.Errorf("marker count = %d, want 0", result.Marker.SpawnedCount)
	}
}

func TestExpand_Idempotent(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	f.expanded(ids.codeJob, planJob, 2)
	s := f.snap()

	result, err := Expand(s, tpl.FindJob(ids.codeJob), s.JobByID(planJob), `["task A", "task B"]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("re-expansion for a recorded (source, template) pair must be a no-op")
	}
}

func TestExpand_MalformedOutput(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	f.stage("code", 2)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	s := f.snap()

	_, err := Expand(s, tpl.FindJob(ids.codeJob), s.JobByID(planJob), "никакого массива тут нет")
	if !errors.Is(err, ErrMalformedItems) {
		t.Errorf("expected ErrMalformedItems, got %v", err)
	}
}

func TestExpand_NotAMultiplier(t *testing.T) {
	tpl, ids := fanOutTemplate()

	f := newFixture()
	f.s.Template = tpl
	plan := f.stage("plan", 1)
	planJob := f.addJob(jobSpec{stage: plan, status: domain.JobStatusCompleted, templateJob: &ids.planJob})
	s := f.snap()

	_, err := Expand(s, tpl.FindJob(ids.planJob), s.JobByID(planJob), `["x"]`)
	if !errors.Is(err, ErrNoMultiplier) {
		t.Errorf("expected ErrNoMultiplier, got %v", err)
	}
}
