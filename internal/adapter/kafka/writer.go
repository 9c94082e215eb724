package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// Writer publishes extreme events to a Kafka topic, one message per event.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the extremes topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// extremeMessage is the published payload.
type extremeMessage struct {
	RunID        string   `json:"run_id"`
	Location     string   `json:"location"`
	Year         int      `json:"year"`
	Month        string   `json:"month"`
	TemperatureC *float64 `json:"temperature_c"`
	Humidity     *float64 `json:"humidity"`
	PrecipMM     *float64 `json:"precip_mm"`
	WindMPS      *float64 `json:"wind_mps"`
	TempZ        *float64 `json:"temp_z"`
	PrecipPctile *float64 `json:"precip_pctile"`
	Reason       string   `json:"reason"`
}

// PublishExtremes serializes and publishes the events in a single
// WriteMessages call. Messages are keyed by location and month so a location's
// events land on one partition.
func (w *Writer) PublishExtremes(ctx context.Context, runID string, events []domain.ExtremeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(runID, events[i])
		if err != nil {
			return 0, err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish %d extremes to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Info("extremes published", "topic", w.writer.Topic, "count", len(msgs), "run_id", runID)
	return len(msgs), nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey identifies an event by location and month.
func messageKey(e domain.ExtremeEvent) string {
	return e.Location + "|" + e.Month.Format("2006-01")
}

// serializeToMessage marshals an ExtremeEvent into a Kafka message.
func serializeToMessage(runID string, event domain.ExtremeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(extremeMessage{
		RunID:        runID,
		Location:     event.Location,
		Year:         event.Year,
		Month:        event.Month.Format("2006-01-02"),
		TemperatureC: event.TemperatureC,
		Humidity:     event.Humidity,
		PrecipMM:     event.PrecipMM,
		WindMPS:      event.WindMPS,
		TempZ:        event.TempZ,
		PrecipPctile: event.PrecipPctile,
		Reason:       event.Reason,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize extreme event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(event)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "reason", Value: []byte(event.Reason)},
		},
	}, nil
}
