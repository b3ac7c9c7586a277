package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
	"github.com/shaiso/Colony/internal/engine"
	"github.com/shaiso/Colony/internal/repo"
)

// InstantiatePipeline создаёт pipeline из template.
// POST /api/v1/templates/{id}/pipelines
func (h *Handler) InstantiatePipeline(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	var req InstantiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Prompt == "" {
		BadRequest(w, "prompt is required")
		return
	}

	template, err := h.templateRepo.GetByID(r.Context(), templateID)
	if HandleRepoError(w, h.logger, err, "template not found") {
		return
	}

	// Имена исключаемых stages преобразуем в template stage IDs
	var excluded []uuid.UUID
	for _, name := range req.ExcludeStages {
		found := false
		for i := range template.Stages {
			if template.Stages[i].Name == name {
				excluded = append(excluded, template.Stages[i].ID)
				found = true
				break
			}
		}
		if !found {
			BadRequest(w, "unknown stage in exclude_stages: "+name)
			return
		}
	}

	plan, err := engine.Instantiate(template, req.Prompt, req.WorkspacePath, excluded)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.pipelineRepo.CreateWithGraph(r.Context(), &plan.Pipeline, plan.Stages, plan.Jobs, plan.Dependencies); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие; при недоступном брокере orchestrator
	// подхватит pipeline через polling
	if h.publisher != nil {
		if err := h.publisher.PublishPipelinePending(r.Context(), plan.Pipeline.ID); err != nil {
			h.logger.Warn("failed to publish pipeline.pending",
				"pipeline_id", plan.Pipeline.ID, "error", err)
		}
	}

	Created(w, PipelineFromDomain(plan.Pipeline))
}

// ListPipelines возвращает список pipelines с фильтрацией.
// GET /api/v1/pipelines?template_id=...&status=...&limit=...&offset=...
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	filter := repo.PipelineFilter{Limit: 50}

	if templateIDStr := r.URL.Query().Get("template_id"); templateIDStr != "" {
		templateID, err := uuid.Parse(templateIDStr)
		if err != nil {
			BadRequest(w, "invalid template_id")
			return
		}
		filter.TemplateID = &templateID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.PipelineStatus(status)
	}

	filter.Limit = parseQueryInt(r, "limit", 50)
	filter.Offset = parseQueryInt(r, "offset", 0)

	pipelines, err := h.pipelineRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i, p := range pipelines {
		result[i] = PipelineFromDomain(p)
	}

	List(w, result, len(result))
}

// GetPipeline возвращает pipeline по ID.
// GET /api/v1/pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, PipelineFromDomain(*pipeline))
}

// CancelPipeline запрашивает отмену pipeline.
// POST /api/v1/pipelines/{id}/cancel
//
// Выставляет только флаг cancel_requested; каскадная отмена jobs
// выполняется orchestrator'ом на следующем цикле.
func (h *Handler) CancelPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if pipeline.IsFinished() {
		InvalidState(w, "pipeline is already finished")
		return
	}

	if err := h.pipelineRepo.RequestCancel(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "pipeline not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	pipeline.CancelRequested = true
	Success(w, PipelineFromDomain(*pipeline))
}

// ListPipelineStages возвращает stages pipeline.
// GET /api/v1/pipelines/{id}/stages
func (h *Handler) ListPipelineStages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	_, err = h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	stages, err := h.stageRepo.ListByPipeline(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StageResponse, len(stages))
	for i, s := range stages {
		result[i] = StageFromDomain(s)
	}

	List(w, result, len(result))
}

// ListPipelineJobs возвращает jobs pipeline.
// GET /api/v1/pipelines/{id}/jobs
func (h *Handler) ListPipelineJobs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	_, err = h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	jobs, err := h.jobRepo.ListByPipeline(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		result[i] = JobFromDomain(j)
	}

	List(w, result, len(result))
}

// parseQueryInt парсит числовой query параметр с дефолтным значением.
func parseQueryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
