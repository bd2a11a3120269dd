package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/config"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes run results to a Kafka topic: one message for the run
// summary followed by one message per scenario document.
// It implements pipeline.Publisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

// Publish serializes the run and writes it in batches of the configured size.
func (w *Writer) Publish(ctx context.Context, a *assembler.Assembler) error {
	msgs, err := runMessages(a)
	if err != nil {
		return err
	}
	size := max(w.batchSize, 1)
	for start := 0; start < len(msgs); start += size {
		end := min(start+size, len(msgs))
		if err := w.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("write run messages %d-%d: %w", start, end, err)
		}
	}
	w.logger.Info("run published to kafka", "run_id", a.Report().RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// runMessages builds the summary message, keyed by run id, and one message per
// scenario keyed by run id, module and scenario key.
func runMessages(a *assembler.Assembler) ([]kafkago.Message, error) {
	report := a.Report()
	finished := []byte(report.FinishedAt.Format(time.RFC3339))
	runID := []byte(report.RunID)

	sum, err := json.Marshal(a.Summary())
	if err != nil {
		return nil, fmt.Errorf("serialize run summary: %w", err)
	}
	msgs := make([]kafkago.Message, 0, len(report.Results)+1)
	msgs = append(msgs, kafkago.Message{
		Key:   runID,
		Value: sum,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte("summary")},
			{Key: "run_id", Value: runID},
			{Key: "finished_at", Value: finished},
		},
	})

	for _, r := range report.Results {
		doc, err := a.ScenarioDocument(r.Module(), r.Key())
		if err != nil {
			return nil, err
		}
		msg, err := serializeToMessage(doc)
		if err != nil {
			return nil, err
		}
		msg.Headers = append(msg.Headers, kafkago.Header{Key: "finished_at", Value: finished})
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeToMessage marshals a scenario document into a Kafka message.
func serializeToMessage(doc assembler.ScenarioDocument) (kafkago.Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize scenario %s/%s: %w", doc.Module, doc.Key, err)
	}
	return kafkago.Message{
		Key:   []byte(doc.RunID + "/" + string(doc.Module) + "/" + doc.Key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte("scenario")},
			{Key: "run_id", Value: []byte(doc.RunID)},
			{Key: "module", Value: []byte(doc.Module)},
			{Key: "scenario", Value: []byte(doc.Key)},
			{Key: "status", Value: []byte(doc.Status)},
		},
	}, nil
}
