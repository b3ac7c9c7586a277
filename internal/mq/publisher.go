package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Colony/internal/domain"
)

// MessageType определяет тип сообщения в очереди.
type MessageType string

const (
	// MessageTypePipelinePending — создан новый pipeline.
	MessageTypePipelinePending MessageType = "pipeline.pending"

	// MessageTypeJobReady — job готов к исполнению.
	MessageTypeJobReady MessageType = "job.ready"

	// MessageTypeJobCompleted — executor завершил job.
	MessageTypeJobCompleted MessageType = "job.completed"
)

// Message — конверт для всех сообщений в очередях.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PipelinePendingPayload — payload сообщения pipeline.pending.
type PipelinePendingPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
}

// JobReadyPayload — payload сообщения job.ready.
type JobReadyPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	PipelineID uuid.UUID `json:"pipeline_id"`
}

// JobCompletedPayload — отчёт executor-а о завершении job.
type JobCompletedPayload struct {
	JobID             uuid.UUID        `json:"job_id"`
	PipelineID        uuid.UUID        `json:"pipeline_id"`
	Status            domain.JobStatus `json:"status"`
	TerminationReason string           `json:"termination_reason,omitempty"`
	FinalOutput       string           `json:"final_output,omitempty"`
	ArtifactsProduced []string         `json:"artifacts_produced,omitempty"`
}

// Publisher публикует сообщения в exchanges.
type Publisher struct {
	conn *Connection
}

// NewPublisher создаёт publisher поверх соединения.
func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// publish сериализует payload в конверт и отправляет его.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, key RoutingKey, msgType MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := Message{
		ID:        uuid.New(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	err = ch.PublishWithContext(ctx,
		string(exchange),
		string(key),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID.String(),
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msgType, err)
	}

	return nil
}

// PublishPipelinePending уведомляет оркестратор о новом pipeline.
func (p *Publisher) PublishPipelinePending(ctx context.Context, pipelineID uuid.UUID) error {
	return p.publish(ctx, ExchangePipelines, RoutingKeyPending, MessageTypePipelinePending,
		PipelinePendingPayload{PipelineID: pipelineID})
}

// PublishJobReady отправляет job executor-ам.
func (p *Publisher) PublishJobReady(ctx context.Context, jobID, pipelineID uuid.UUID) error {
	return p.publish(ctx, ExchangeJobs, RoutingKeyReady, MessageTypeJobReady,
		JobReadyPayload{JobID: jobID, PipelineID: pipelineID})
}

// PublishJobCompleted отправляет отчёт о завершении job оркестратору.
func (p *Publisher) PublishJobCompleted(ctx context.Context, payload JobCompletedPayload) error {
	return p.publish(ctx, ExchangeJobs, RoutingKeyCompleted, MessageTypeJobCompleted, payload)
}
