//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startPostgres runs a PostgreSQL container and returns its connection string.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("parking"),
		tcpostgres.WithUsername("parking"),
		tcpostgres.WithPassword("parking"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// startKafka runs a single-node Kafka container and returns a broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("parking-norm-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

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

// seedThreeHours writes two garages with six samples in each of the hours
// 10, 11 and 12 on 2023-06-01, garage 2 only two samples at 11, and one
// newest sample at 13:05 that keeps hour 13 open.
func seedThreeHours(ctx context.Context, t *testing.T, s *sqlstore.Store) {
	t.Helper()
	require.NoError(t, s.InsertGarage(ctx, domain.Garage{ID: 1, Name: "North"}))
	require.NoError(t, s.InsertGarage(ctx, domain.Garage{ID: 2, Name: "South"}))

	var samples []domain.RawSample
	for _, hour := range []string{"2023-06-01 10", "2023-06-01 11", "2023-06-01 12"} {
		start := domain.MustParseHourBucket(hour).Start()
		for garage := 1; garage <= 2; garage++ {
			n := 6
			if garage == 2 && hour == "2023-06-01 11" {
				n = 2
			}
			for i := range n {
				samples = append(samples, domain.RawSample{
					GarageID:  garage,
					Available: 10 * garage,
					Capacity:  100,
					Timestamp: start.Add(time.Duration(i) * 10 * time.Minute),
				})
			}
		}
	}
	samples = append(samples, domain.RawSample{
		GarageID:  1,
		Available: 1,
		Capacity:  100,
		Timestamp: domain.MustParseHourBucket("2023-06-01 13").Start().Add(5 * time.Minute),
	})
	require.NoError(t, s.InsertSamples(ctx, samples))
}
