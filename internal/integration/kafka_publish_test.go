//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/notable-obs-filter/internal/adapter/kafka"
	"github.com/couchcryptid/notable-obs-filter/internal/config"
	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/couchcryptid/notable-obs-filter/internal/observability"
	"github.com/couchcryptid/notable-obs-filter/internal/pipeline"
	"github.com/couchcryptid/notable-obs-filter/internal/sink"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-notable-observations"

const rules = "common_name,start_month,start_day,end_month,end_day,coordinates\n" +
	"Snowy Owl,11,,2,,\n" +
	"Ivory Gull,,,,,\n"

const observations = "TAXONOMIC ORDER\tCOMMON NAME\tCOUNTY\tLATITUDE\tLONGITUDE\tOBSERVATION DATE\tAPPROVED\n" +
	"20186\tSnowy Owl\tKing\t47.6\t-122.3\t2023-12-05\t1\n" +
	"20186\tSnowy Owl\tKing\t47.6\t-122.3\t2023-07-05\t1\n" +
	"30501\tAmerican Robin\tKing\t47.6\t-122.3\t2023-12-05\t1\n" +
	"8000\tIvory Gull\tClallam\t48.1\t-123.4\t2023-08-01\t0\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("notable-filter-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

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

// TestFilterPublishesNotableRecords runs a full filter pass with the Kafka
// publisher and reads the published records back from the topic.
func TestFilterPublishesNotableRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	processed := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(processed))
	t.Cleanup(func() { domain.SetClock(nil) })

	index, err := domain.ParseRules(strings.NewReader(rules))
	require.NoError(t, err)
	reader, err := dataset.NewReader(strings.NewReader(observations), dataset.EBird())
	require.NoError(t, err)
	tfm, err := pipeline.NewTransformer(dataset.EBird(), reader.Header(), false, nil, discardLogger())
	require.NoError(t, err)
	out, err := sink.New(sink.Options{
		Path:      filepath.Join(t.TempDir(), "notable.txt"),
		Header:    tfm.Header(),
		Delimiter: '\t',
		SortKeys:  dataset.EBird().Sort,
	}, discardLogger())
	require.NoError(t, err)

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, index, tfm, out, writer, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithBatchSize(10))
	stats, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 2, stats.Published)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := map[string]domain.NotableRecord{}
	for range 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from topic")

		var rec domain.NotableRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, domain.NormalizeSpecies(rec.Species), string(msg.Key))

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, dataset.EBirdName, headers["dataset"])
		assert.Equal(t, processed.Format(time.RFC3339), headers["processed_at"])
		got[rec.Species] = rec
	}

	require.Contains(t, got, "Snowy Owl")
	require.Contains(t, got, "Ivory Gull")
	assert.Equal(t, "2023-12-05", got["Snowy Owl"].Date)
	assert.False(t, got["Ivory Gull"].Accepted)
	assert.Equal(t, "Clallam", got["Ivory Gull"].Fields["COUNTY"])
	assert.True(t, got["Ivory Gull"].ProcessedAt.Equal(processed))
}
