package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Templates
	mux.Handle("GET /api/v1/templates", chain(http.HandlerFunc(h.ListTemplates)))
	mux.Handle("POST /api/v1/templates", chain(http.HandlerFunc(h.CreateTemplate)))
	mux.Handle("GET /api/v1/templates/{id}", chain(http.HandlerFunc(h.GetTemplate)))
	mux.Handle("DELETE /api/v1/templates/{id}", chain(http.HandlerFunc(h.DeleteTemplate)))

	// Pipelines
	mux.Handle("POST /api/v1/templates/{id}/pipelines", chain(http.HandlerFunc(h.InstantiatePipeline)))
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("POST /api/v1/pipelines/{id}/cancel", chain(http.HandlerFunc(h.CancelPipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}/stages", chain(http.HandlerFunc(h.ListPipelineStages)))
	mux.Handle("GET /api/v1/pipelines/{id}/jobs", chain(http.HandlerFunc(h.ListPipelineJobs)))

	// Jobs
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/actions", chain(http.HandlerFunc(h.ListJobActions)))
	mux.Handle("GET /api/v1/jobs/{id}/artifacts", chain(http.HandlerFunc(h.ListJobArtifacts)))
	mux.Handle("GET /api/v1/artifacts/{id}/consumers", chain(http.HandlerFunc(h.ListArtifactConsumers)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/templates/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
