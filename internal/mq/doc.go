// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - pipeline.pending — новый pipeline ожидает выполнения
//   - job.ready        — job готов к выполнению executor'ом
//   - job.completed    — executor сообщил о завершении job
//
// Exchanges:
//   - colony.pipelines — события pipelines
//   - colony.jobs      — события jobs
//   - colony.dlq       — dead letter queue
//
// Очереди дополняют polling, а не заменяют его: цикл оркестратора
// корректен и без брокера, сообщения лишь сокращают задержку реакции.
package mq
