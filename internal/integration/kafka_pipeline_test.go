//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/hazard-sim/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/config"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/flood"
	"github.com/couchcryptid/hazard-sim/internal/observability"
	"github.com/couchcryptid/hazard-sim/internal/pipeline"
	"github.com/couchcryptid/hazard-sim/internal/terrain"
	"github.com/couchcryptid/hazard-sim/internal/thermal"
	"github.com/couchcryptid/hazard-sim/internal/wind"
)

const testResultsTopic = "test-scenario-results"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hazard-sim-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic so message order is preserved.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedMessage holds a message read back from the results topic.
type publishedMessage struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from results topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return publishedMessage{Key: string(msg.Key), Value: msg.Value, Headers: headers}
}

func newPipeline(t *testing.T, writer *kafka.Writer) *pipeline.Pipeline {
	t.Helper()
	fs, err := flood.NewSolver(flood.DefaultParams(), discardLogger())
	require.NoError(t, err)
	ws, err := wind.NewSolver(wind.DefaultParams(), discardLogger())
	require.NoError(t, err)
	ts, err := thermal.NewSolver(thermal.DefaultParams(), discardLogger())
	require.NoError(t, err)

	return pipeline.New(fs, ws, ts, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithWorkers(2),
		pipeline.WithPublisher("kafka", writer),
	)
}

// TestPipelineEndToEnd runs a small catalog with the real solvers over a
// generated town and verifies every scenario reaches the results topic.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testResultsTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testResultsTopic,
		BatchSize:    2,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	tc := terrain.DefaultConfig()
	tc.Width, tc.Height = 48, 48
	g, err := terrain.Generate(tc)
	require.NoError(t, err)

	cat := domain.Catalog{Scenarios: []domain.Scenario{
		{Name: "Heavy rain", Forcing: domain.FloodForcing{RainfallMMH: 65, DurationH: 0.5}},
		{Name: "Drizzle", Forcing: domain.FloodForcing{RainfallMMH: 5, DurationH: 1}},
		{Name: "Moderate westerly", Forcing: domain.WindForcing{SpeedMS: 10, DirectionDeg: 270}},
		{Name: "Warm summer", Forcing: domain.ThermalForcing{AirTempC: 28, RelHumidity: 50, SolarWm2: 650, Season: domain.SeasonSummer}},
	}}

	a, err := newPipeline(t, writer).Run(ctx, g, cat)
	require.NoError(t, err)
	report := a.Report()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testResultsTopic,
		GroupID:     fmt.Sprintf("test-results-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	// Summary first, then one message per scenario in catalog order.
	sum := readPublished(ctx, t, consumer)
	assert.Equal(t, report.RunID, sum.Key)
	assert.Equal(t, "summary", sum.Headers["kind"])
	_, err = time.Parse(time.RFC3339, sum.Headers["finished_at"])
	assert.NoError(t, err, "finished_at should be valid RFC3339")

	var decoded assembler.Summary
	require.NoError(t, json.Unmarshal(sum.Value, &decoded))
	assert.Equal(t, 3, decoded.Counts[domain.StatusSucceeded])
	assert.Equal(t, 1, decoded.Counts[domain.StatusRejected])
	require.NotNil(t, decoded.Flood)
	require.NotNil(t, decoded.Wind)
	require.NotNil(t, decoded.Thermal)

	want := map[string]string{
		"flood/heavy_rain":       "succeeded",
		"flood/drizzle":          "rejected",
		"wind/moderate_westerly": "succeeded",
		"thermal/warm_summer":    "succeeded",
	}
	for i := 0; i < len(cat.Scenarios); i++ {
		msg := readPublished(ctx, t, consumer)
		assert.Equal(t, "scenario", msg.Headers["kind"])
		assert.Equal(t, report.RunID, msg.Headers["run_id"])

		k := msg.Headers["module"] + "/" + msg.Headers["scenario"]
		assert.Equal(t, report.RunID+"/"+k, msg.Key)
		assert.Equal(t, want[k], msg.Headers["status"], k)

		var doc struct {
			Status  domain.Status   `json:"status"`
			Error   string          `json:"error"`
			Summary json.RawMessage `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(msg.Value, &doc))
		if doc.Status == domain.StatusSucceeded {
			assert.NotEmpty(t, doc.Summary, k)
		} else {
			assert.Contains(t, doc.Error, "rainfall_mm_h", k)
		}
	}
}
