//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lumiere-jewels/service-coupon/internal/application"
	couponEvents "github.com/lumiere-jewels/service-coupon/internal/events"
	"github.com/lumiere-jewels/service-coupon/internal/lock"
	"github.com/lumiere-jewels/service-coupon/internal/repository"
	"github.com/lumiere-jewels/service-coupon/migrations"
	"github.com/lumiere-jewels/service-coupon/pkg/config"
	"github.com/lumiere-jewels/service-coupon/pkg/database"
	"github.com/lumiere-jewels/service-coupon/pkg/events"
	"github.com/lumiere-jewels/service-coupon/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	RedisAddr    string
	Cleanup      func()
}

// couponStack holds wired-up coupon service components.
type couponStack struct {
	Service         *application.CouponService
	Catalog         *application.CatalogService
	Consumer        *couponEvents.DiscountEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers and returns
// a migrated GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_coupon",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConfig := database.PostgresConfig{
		Host: pgHost, Port: pgPort.Port(), User: "test", Password: "test",
		DBName: "test_coupon", SSLMode: "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(pgConfig.DSN()), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	// Apply the versioned schema the way production does.
	require.NoError(t, database.RunMigrations(pgConfig.DatabaseURL(), migrations.FS, ".", logger))

	// Start Redis for the distributed issuance lock.
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicDiscountEvents, events.TopicCouponEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		RedisAddr:    net.JoinHostPort(redisHost, redisPort.Port()),
		Cleanup:      cleanup,
	}
}

// setupCouponStack wires up the full coupon service stack against the shared
// Redis lock.
func setupCouponStack(t *testing.T, infra *testInfra) *couponStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	redisClient, err := lock.NewRedisClient(context.Background(), config.RedisConfig{Addr: infra.RedisAddr}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	couponRepo := repository.NewGormCouponRepository(infra.DB)
	promotionRepo := repository.NewGormPromotionRepository(infra.DB)
	discountRepo := repository.NewGormDiscountRepository(infra.DB)
	userRepo := repository.NewGormUserRepository(infra.DB)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)

	couponSvc := application.NewCouponService(
		couponRepo, promotionRepo, discountRepo, userRepo,
		lock.NewRedisLocker(redisClient, 10*time.Second, logger),
		producer, 0, logger,
	)
	catalogSvc := application.NewCatalogService(promotionRepo, discountRepo, logger)

	groupID := fmt.Sprintf("test-coupon-%s", uuid.New().String()[:8])
	consumer := couponEvents.NewDiscountEventConsumer(infra.KafkaBrokers, groupID, couponSvc, logger)

	return &couponStack{
		Service:         couponSvc,
		Catalog:         catalogSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedDiscount creates a discount through the catalog service.
func seedDiscount(t *testing.T, stack *couponStack, code string, percentage int) uuid.UUID {
	t.Helper()
	dto, err := stack.Catalog.CreateDiscount(context.Background(), application.CreateDiscountRequest{
		Code:       code,
		Percentage: percentage,
		ValidUntil: time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err, "failed to seed discount")
	return dto.ID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForCouponCount polls until the number of coupons issued for ref reaches want.
func waitForCouponCount(t *testing.T, db *gorm.DB, ref uuid.UUID, want int64, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		var n int64
		if err := db.Model(&repository.CouponModel{}).Where("promotion_ref = ?", ref).Count(&n).Error; err != nil {
			return false
		}
		return n == want
	}, timeout, 200*time.Millisecond, "expected %d coupons for %s", want, ref)
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
