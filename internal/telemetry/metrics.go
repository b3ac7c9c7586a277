package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики оркестрации. Label status принимает терминальные статусы job,
// label service — имя сервиса, экспортирующего метрику.
var (
	// JobsDispatched — количество job, отправленных на исполнение.
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "jobs_dispatched_total",
		Help:      "Number of jobs dispatched to executors.",
	})

	// JobsCompleted — количество завершённых job по терминальному статусу.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "jobs_completed_total",
		Help:      "Number of jobs reaching a terminal status.",
	}, []string{"status"})

	// JobRetries — количество повторных запусков упавших job.
	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "job_retries_total",
		Help:      "Number of failed jobs rescheduled for retry.",
	})

	// RegressionsSpawned — количество job, порождённых через spawn-директиву.
	RegressionsSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "regressions_spawned_total",
		Help:      "Number of corrective jobs spawned into earlier stages.",
	})

	// MultiplierExpansions — количество выполненных fan-out расширений.
	MultiplierExpansions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "multiplier_expansions_total",
		Help:      "Number of multiplier expansions performed.",
	})

	// MultiplierJobsSpawned — количество job, созданных расширениями.
	MultiplierJobsSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "multiplier_jobs_spawned_total",
		Help:      "Number of jobs created by multiplier expansions.",
	})

	// PipelineDuration — длительность pipeline от создания до терминального статуса.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "colony",
		Name:      "pipeline_duration_seconds",
		Help:      "Pipeline duration from creation to terminal status.",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
	}, []string{"status"})

	// OrchestratorCycles — количество циклов поллинга оркестратора.
	OrchestratorCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "colony",
		Name:      "orchestrator_cycles_total",
		Help:      "Number of orchestrator polling cycles executed.",
	})
)

// MetricsHandler возвращает HTTP handler для /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ServeMetrics запускает HTTP сервер с /metrics на указанном адресе.
// Блокирует до ошибки сервера.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	return http.ListenAndServe(addr, mux)
}
