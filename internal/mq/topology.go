package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя AMQP exchange.
type Exchange string

const (
	// ExchangePipelines — события жизненного цикла pipeline.
	ExchangePipelines Exchange = "colony.pipelines"

	// ExchangeJobs — события жизненного цикла job.
	ExchangeJobs Exchange = "colony.jobs"

	// ExchangeDLQ — dead letter exchange для необработанных сообщений.
	ExchangeDLQ Exchange = "colony.dlq"
)

// Queue — имя AMQP очереди.
type Queue string

const (
	// QueuePipelinesPending — новые pipeline, ожидающие первого цикла оркестратора.
	QueuePipelinesPending Queue = "pipelines.pending"

	// QueueJobsReady — job, готовые к исполнению executor-ом.
	QueueJobsReady Queue = "jobs.ready"

	// QueueJobsCompleted — отчёты executor-ов о завершённых job.
	QueueJobsCompleted Queue = "jobs.completed"

	// QueueDLQJobs — job-сообщения, которые не удалось обработать.
	QueueDLQJobs Queue = "dlq.jobs"
)

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	RoutingKeyPending   RoutingKey = "pending"
	RoutingKeyReady     RoutingKey = "ready"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQJobs   RoutingKey = "jobs"
)

// binding связывает очередь с exchange по ключу.
type binding struct {
	queue    Queue
	exchange Exchange
	key      RoutingKey
}

// SetupTopology декларирует exchanges, очереди и bindings.
//
// Идемпотентно: повторный вызов на существующей топологии безопасен.
// Сообщения из jobs.ready при nack без requeue уходят в dlq.jobs.
func SetupTopology(ch *amqp.Channel) error {
	exchanges := []Exchange{ExchangePipelines, ExchangeJobs, ExchangeDLQ}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(
			string(ex),
			"direct",
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	// jobs.ready получает dead-letter маршрут в DLQ.
	readyArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueuePipelinesPending, nil},
		{QueueJobsReady, readyArgs},
		{QueueJobsCompleted, nil},
		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(
			string(q.name),
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			q.args,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []binding{
		{QueuePipelinesPending, ExchangePipelines, RoutingKeyPending},
		{QueueJobsReady, ExchangeJobs, RoutingKeyReady},
		{QueueJobsCompleted, ExchangeJobs, RoutingKeyCompleted},
		{QueueDLQJobs, ExchangeDLQ, RoutingKeyDLQJobs},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(
			string(b.queue),
			string(b.key),
			string(b.exchange),
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("bind %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает человекочитаемое описание топологии.
func TopologyInfo() string {
	return `MQ topology:
  exchanges: colony.pipelines, colony.jobs, colony.dlq (direct, durable)
  queues:
    pipelines.pending  <- colony.pipelines [pending]
    jobs.ready         <- colony.jobs     [ready]     (DLQ -> dlq.jobs)
    jobs.completed     <- colony.jobs     [completed]
    dlq.jobs           <- colony.dlq      [jobs]`
}
