package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// ListTemplates возвращает список всех templates.
// GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TemplateResponse, len(templates))
	for i := range templates {
		result[i] = TemplateFromDomain(&templates[i])
	}

	List(w, result, len(result))
}

// CreateTemplate создаёт новый template.
// POST /api/v1/templates
//
// Клиент может задать свои UUID для template jobs, чтобы ссылаться на
// них в dependencies; отсутствующие ID генерируются сервером.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if len(req.Stages) == 0 {
		BadRequest(w, "template must have at least one stage")
		return
	}

	now := time.Now().UTC()
	template := &domain.Template{
		ID:           uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		Stages:       req.Stages,
		Dependencies: req.Dependencies,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Проставляем отсутствующие ID и связи
	jobIDs := make(map[uuid.UUID]bool)
	for si := range template.Stages {
		ts := &template.Stages[si]
		if ts.ID == uuid.Nil {
			ts.ID = uuid.New()
		}
		ts.TemplateID = template.ID
		if ts.Order == 0 {
			ts.Order = si + 1
		}
		for ji := range ts.Jobs {
			tj := &ts.Jobs[ji]
			if tj.ID == uuid.Nil {
				tj.ID = uuid.New()
			}
			tj.StageID = ts.ID
			jobIDs[tj.ID] = true

			if tj.Multiplier != nil && tj.Multiplier.SourceTemplateJobID == uuid.Nil {
				BadRequest(w, "multiplier requires source_template_job_id")
				return
			}
		}
	}

	// Dependencies должны ссылаться на jobs этого template
	for _, dep := range template.Dependencies {
		if !jobIDs[dep.TemplateJobID] || !jobIDs[dep.DependsOnTemplateJobID] {
			BadRequest(w, "dependency references unknown template job")
			return
		}
	}

	if err := h.templateRepo.Create(r.Context(), template); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, TemplateFromDomain(template))
}

// GetTemplate возвращает template по ID.
// GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	template, err := h.templateRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "template not found") {
		return
	}

	Success(w, TemplateFromDomain(template))
}

// DeleteTemplate удаляет template.
// DELETE /api/v1/templates/{id}
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	if err := h.templateRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "template not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}
