package api

import (
	"net/http"

	"github.com/google/uuid"
)

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}

// ListJobActions возвращает лог выполнения job в порядке итераций.
// GET /api/v1/jobs/{id}/actions
func (h *Handler) ListJobActions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	_, err = h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	actions, err := h.actionRepo.ListByJob(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ActionResponse, len(actions))
	for i, a := range actions {
		result[i] = ActionFromDomain(a)
	}

	List(w, result, len(result))
}

// ListJobArtifacts возвращает артефакты, произведённые job'ом.
// GET /api/v1/jobs/{id}/artifacts
func (h *Handler) ListJobArtifacts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	_, err = h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	artifacts, err := h.artifactRepo.ListByJob(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		result[i] = ArtifactFromDomain(a)
	}

	List(w, result, len(result))
}

// ListArtifactConsumers возвращает jobs, потребившие артефакт.
// Обратная сторона provenance: какие downstream jobs прочитали
// этот вывод.
// GET /api/v1/artifacts/{id}/consumers
func (h *Handler) ListArtifactConsumers(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	consumers, err := h.artifactRepo.ListConsumers(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]string, len(consumers))
	for i, jobID := range consumers {
		result[i] = jobID.String()
	}

	List(w, result, len(result))
}
