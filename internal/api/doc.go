// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - template_handler.go — обработчики для /templates
//   - pipeline_handler.go — обработчики для /pipelines
//   - job_handler.go      — обработчики для /jobs
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления templates, pipelines,
// jobs и schedules. Отмена pipeline асинхронная: API лишь выставляет
// флаг cancel_requested, каскад отмены выполняет orchestrator.
package api
