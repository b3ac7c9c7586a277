package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

func TestInstantiate_MaterializesPlanAndVerifyOnly(t *testing.T) {
	tpl, ids := fanOutTemplate()

	plan, err := Instantiate(tpl, "собери отчёт", "/work/reports", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Pipeline.OriginalPrompt != "собери отчёт" {
		t.Error("pipeline must carry the original prompt")
	}
	if plan.Pipeline.TemplateID == nil || *plan.Pipeline.TemplateID != tpl.ID {
		t.Error("pipeline must reference the template")
	}
	if plan.Pipeline.Status != domain.PipelineStatusPending {
		t.Errorf("pipeline status = %q, want pending", plan.Pipeline.Status)
	}

	// Все три stages материализуются, но multiplier job (code) — нет
	if len(plan.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(plan.Stages))
	}
	if len(plan.Jobs) != 2 {
		t.Fatalf("expected 2 jobs (plan, verify), got %d", len(plan.Jobs))
	}
	for _, job := range plan.Jobs {
		if job.TemplateJobID != nil && *job.TemplateJobID == ids.codeJob {
			t.Error("multiplier template job must not be materialized at instantiation")
		}
	}
}

func TestInstantiate_SubstitutesOriginalPrompt(t *testing.T) {
	tpl, _ := fanOutTemplate()

	plan, err := Instantiate(tpl, "перенеси проект на новую СУБД", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, job := range plan.Jobs {
		if strings.Contains(job.Prompt, "{{original_prompt}}") {
			t.Errorf("placeholder left unsubstituted in %q", job.Prompt)
		}
	}
	if !strings.Contains(plan.Jobs[0].Prompt, "перенеси проект на новую СУБД") {
		t.Error("plan job prompt must embed the original prompt")
	}
	if plan.Jobs[0].OriginalPrompt != plan.Jobs[0].Prompt {
		t.Error("original_prompt snapshot must equal the initial prompt")
	}
}

func TestInstantiate_TemplateEdgeForMultiplierUpstream(t *testing.T) {
	tpl, ids := fanOutTemplate()

	plan, err := Instantiate(tpl, "задача", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// code→plan не материализуется (зависимый — multiplier),
	// verify→code становится template-уровневым ребром
	if len(plan.Dependencies) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(plan.Dependencies))
	}
	edge := plan.Dependencies[0]
	if edge.DependsOnTemplateJobID == nil || *edge.DependsOnTemplateJobID != ids.codeJob {
		t.Error("edge onto a multiplier must stay template-level")
	}
	if edge.DependsOnJobID != nil {
		t.Error("template-level edge must not carry an instance id")
	}

	var verifyInstance *domain.Job
	for i := range plan.Jobs {
		if plan.Jobs[i].TemplateJobID != nil && *plan.Jobs[i].TemplateJobID == ids.verifyJob {
			verifyInstance = &plan.Jobs[i]
		}
	}
	if verifyInstance == nil || edge.JobID != verifyInstance.ID {
		t.Error("the verify instance must own the template-level edge")
	}
}

func TestInstantiate_ExcludedStages(t *testing.T) {
	tpl, ids := fanOutTemplate()
	verifyStage := tpl.FindStageByName("verify")

	plan, err := Instantiate(tpl, "задача", "", []uuid.UUID{verifyStage.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(plan.Stages))
	}
	for _, st := range plan.Stages {
		if st.Name == "verify" {
			t.Error("excluded stage must not be materialized")
		}
	}
	// Вместе с verify stage уходит и его ребро на code
	if len(plan.Dependencies) != 0 {
		t.Errorf("edges into an excluded stage must be dropped, got %d", len(plan.Dependencies))
	}
	for _, job := range plan.Jobs {
		if job.TemplateJobID != nil && *job.TemplateJobID == ids.verifyJob {
			t.Error("jobs of an excluded stage must not be materialized")
		}
	}
}

func TestInstantiate_InstanceEdges(t *testing.T) {
	// Template без multiplier: рёбра материализуются instance-уровневыми
	a := uuid.New()
	b := uuid.New()
	tpl := &domain.Template{
		ID:   uuid.New(),
		Name: "two-step",
		Stages: []domain.TemplateStage{
			{ID: uuid.New(), Name: "first", Order: 1, Jobs: []domain.TemplateJob{{ID: a, Role: "planner", PromptTemplate: "{{original_prompt}}"}}},
			{ID: uuid.New(), Name: "second", Order: 2, Jobs: []domain.TemplateJob{{ID: b, Role: "coder", PromptTemplate: "{{original_prompt}}"}}},
		},
		Dependencies: []domain.TemplateJobDependency{
			{TemplateJobID: b, DependsOnTemplateJobID: a, Type: domain.DependencyAlways},
		},
	}

	plan, err := Instantiate(tpl, "задача", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Dependencies) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(plan.Dependencies))
	}
	edge := plan.Dependencies[0]
	if edge.DependsOnJobID == nil {
		t.Fatal("plain edge must resolve to an instance id")
	}
	if edge.Type != domain.DependencyAlways {
		t.Errorf("edge type = %q, want always", edge.Type)
	}
}

func TestInstantiate_Validation(t *testing.T) {
	tpl, _ := fanOutTemplate()

	if _, err := Instantiate(tpl, "   ", "", nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}

	empty := &domain.Template{ID: uuid.New(), Name: "empty"}
	if _, err := Instantiate(empty, "задача", "", nil); !errors.Is(err, ErrEmptyTemplate) {
		t.Errorf("expected ErrEmptyTemplate, got %v", err)
	}

	// Невалидная стратегия multiplier ловится при инстанцировании
	bad, ids := fanOutTemplate()
	bad.FindJob(ids.codeJob).Multiplier.ParseStrategy = "regex"
	if _, err := Instantiate(bad, "задача", "", nil); !errors.Is(err, ErrUnknownParseStrategy) {
		t.Errorf("expected ErrUnknownParseStrategy, got %v", err)
	}
}
