package engine

import (
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

// Сквозной сценарий plan → code[multiplier] → verify: вывод plan
// парсится в две подзадачи, появляются ровно два code jobs, verify
// готов только после обоих.
func TestFanOutScenario(t *testing.T) {
	tpl, ids := fanOutTemplate()

	plan, err := Instantiate(tpl, "устрани флаки в интеграционных тестах", "/work", nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	s := &Snapshot{
		Pipeline:     &plan.Pipeline,
		Template:     tpl,
		Stages:       plan.Stages,
		Jobs:         plan.Jobs,
		Dependencies: plan.Dependencies,
	}
	s.Index()

	// Цикл 1: готов только plan job
	ready := ReadyJobs(s)
	if len(ready) != 1 {
		t.Fatalf("cycle 1: expected 1 ready job, got %d", len(ready))
	}
	planJob := s.JobByID(ready[0])
	if planJob.Role != "planner" {
		t.Fatalf("cycle 1: expected the planner, got %q", planJob.Role)
	}

	// Plan завершается со списком из двух подзадач
	planJob.MarkRunning()
	planJob.MarkCompleted(`["task A", "task B"]`)

	// Размножение
	result, err := Expand(s, tpl.FindJob(ids.codeJob), planJob, planJob.Output)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Fatalf("expected exactly 2 code jobs, got %d", len(result.Jobs))
	}
	s.Jobs = append(s.Jobs, result.Jobs...)
	s.Dependencies = append(s.Dependencies, result.Dependencies...)
	s.Expansions = append(s.Expansions, result.Marker)
	s.Index()

	// Цикл 2: готовы оба code jobs, verify ещё ждёт
	ready = ReadyJobs(s)
	if len(ready) != 2 {
		t.Fatalf("cycle 2: expected 2 ready jobs, got %d", len(ready))
	}
	for _, id := range ready {
		if s.JobByID(id).Role != "coder" {
			t.Fatalf("cycle 2: expected coders, got %q", s.JobByID(id).Role)
		}
	}

	// Первый code завершается: verify всё ещё не готов
	s.JobByID(ready[0]).MarkRunning()
	s.JobByID(ready[0]).MarkCompleted("done A")
	for _, id := range ReadyJobs(s) {
		if s.JobByID(id).Role == "verifier" {
			t.Fatal("verify must not be ready with one code job still pending")
		}
	}

	// Второй завершается: verify готов
	s.JobByID(ready[1]).MarkRunning()
	s.JobByID(ready[1]).MarkCompleted("done B")
	ready = ReadyJobs(s)
	if len(ready) != 1 || s.JobByID(ready[0]).Role != "verifier" {
		t.Fatalf("cycle 3: expected the verifier to be ready, got %v", ready)
	}

	// Verify завершается: pipeline completed
	s.JobByID(ready[0]).MarkRunning()
	s.JobByID(ready[0]).MarkCompleted("всё зелёное")
	if got := PipelineStatusOf(s); got != domain.PipelineStatusCompleted {
		t.Errorf("pipeline status = %q, want completed", got)
	}
	for i := range s.Stages {
		if got := StageStatusOf(s, &s.Stages[i]); got != domain.StageStatusCompleted {
			t.Errorf("stage %q = %q, want completed", s.Stages[i].Name, got)
		}
	}
}
