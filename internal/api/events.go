package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"rechnung/server/internal/models"
)

type EventType string

const (
	EventInvoiceCreated EventType = "invoice.created"
	EventInvoiceUpdated EventType = "invoice.updated"
	EventInvoiceDeleted EventType = "invoice.deleted"
)

// InvoiceEvent is sent to websocket clients and to kafka after every invoice change
type InvoiceEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	InvoiceID     string    `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Total         float64   `json:"total"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// MessageWriter is the part of *kafka.Writer the bus uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Broadcaster receives encoded events; *Hub implements it
type Broadcaster interface {
	Broadcast(message []byte)
}

// EventBus publishes invoice events. Failures are logged and never reach the caller.
type EventBus struct {
	node    *snowflake.Node
	hub     Broadcaster
	writer  MessageWriter
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewEventBus creates a bus; hub and writer may be nil
func NewEventBus(node *snowflake.Node, hub Broadcaster, writer MessageWriter, log *zap.Logger) *EventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBus{
		node:    node,
		hub:     hub,
		writer:  writer,
		log:     log,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// PublishInvoice builds and publishes the event for inv
func (b *EventBus) PublishInvoice(ctx context.Context, typ EventType, inv *models.StoredInvoice) {
	if b == nil || inv == nil {
		return
	}
	event := InvoiceEvent{
		ID:            b.node.Generate().String(),
		Type:          typ,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Total:         inv.Totals.Total,
		OccurredAt:    b.now().UTC(),
	}
	b.Publish(ctx, event)
}

func (b *EventBus) Publish(ctx context.Context, event InvoiceEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.log.Error("failed to encode invoice event", zap.Error(err))
		return
	}

	if b.hub != nil {
		b.hub.Broadcast(data)
	}

	if b.writer == nil {
		return
	}
	// detached from the request so a finished response does not cancel the write
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	err = b.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.InvoiceNumber),
		Value: data,
		Time:  event.OccurredAt,
	})
	if err != nil {
		b.log.Warn("failed to publish invoice event to kafka",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

// Close flushes the kafka writer
func (b *EventBus) Close() error {
	if b == nil || b.writer == nil {
		return nil
	}
	return b.writer.Close()
}
