package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the consumer uses
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaWSConsumer relays invoice events from kafka to the local websocket hub, so clients
// of every instance see changes made on any instance.
type KafkaWSConsumer struct {
	reader    MessageReader
	hub       Broadcaster
	log       *zap.Logger
	processed int64
	skipped   int64
}

// NewKafkaWSConsumer reads cfg.Topic from the newest offset. Each instance has its own group
// so every instance receives every event.
func NewKafkaWSConsumer(cfg KafkaConfig, nodeID int64, hub Broadcaster, log *zap.Logger) *KafkaWSConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     ParseKafkaBrokers(cfg.Brokers),
		Topic:       cfg.Topic,
		GroupID:     fmt.Sprintf("rechnung-ws-%d", nodeID),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      CreateKafkaDialer(cfg, log),
	})
	return newKafkaWSConsumer(reader, hub, log)
}

func newKafkaWSConsumer(reader MessageReader, hub Broadcaster, log *zap.Logger) *KafkaWSConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaWSConsumer{reader: reader, hub: hub, log: log}
}

// Run blocks until ctx is cancelled
func (kc *KafkaWSConsumer) Run(ctx context.Context) {
	kc.log.Info("kafka websocket relay started")
	defer kc.log.Info("kafka websocket relay stopped",
		zap.Int64("processed", atomic.LoadInt64(&kc.processed)),
		zap.Int64("skipped", atomic.LoadInt64(&kc.skipped)))

	for {
		msg, err := kc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			kc.log.Warn("kafka read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		kc.handle(msg)
	}
}

func (kc *KafkaWSConsumer) handle(msg kafka.Message) {
	var event InvoiceEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.Type == "" {
		atomic.AddInt64(&kc.skipped, 1)
		kc.log.Warn("skipping malformed invoice event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))
		return
	}
	kc.hub.Broadcast(msg.Value)
	atomic.AddInt64(&kc.processed, 1)
}

// Processed returns the number of relayed events
func (kc *KafkaWSConsumer) Processed() int64 {
	return atomic.LoadInt64(&kc.processed)
}

func (kc *KafkaWSConsumer) Close() error {
	return kc.reader.Close()
}
