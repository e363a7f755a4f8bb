package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/parking-norm-etl/internal/config"
	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes normalized records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one record. Records of the same garage-hour share a key,
// so a re-published record lands on the same partition.
func (w *Writer) Publish(ctx context.Context, rec domain.NormalizedRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", rec.Key(), err)
	}
	w.logger.Debug("published normalized record", "garage_id", rec.GarageID, "hour", rec.Hour.String())
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a NormalizedRecord into a Kafka message.
func serializeToMessage(rec domain.NormalizedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize normalized record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(rec.ID(), 16)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "garage_id", Value: []byte(strconv.Itoa(rec.GarageID))},
			{Key: "hour", Value: []byte(rec.Hour.String())},
		},
	}, nil
}
