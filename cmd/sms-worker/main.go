package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/config"
	"github.com/example/bulksms/internal/health"
	"github.com/example/bulksms/internal/kafka/consumer"
	"github.com/example/bulksms/internal/kafka/producer"
	kafkapublisher "github.com/example/bulksms/internal/kafka/publisher"
	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/worker"
	"github.com/example/bulksms/pkg/bulksms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorker()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "sms-worker").Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prod, err := producer.New(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, log, cfg.Kafka.CommitOnSuccessOnly)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	defer func() {
		if err := cons.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka consumer")
		}
	}()

	eventPublisher := kafkapublisher.NewEventPublisher(prod, cfg.Kafka.StatusTopic, log)
	dlqPublisher := kafkapublisher.NewDLQPublisher(prod, cfg.Kafka.DLQTopic, log)

	client, err := bulksms.New(cfg,
		bulksms.WithLogger(log.With().Str("backend", cfg.Gateway.Backend).Logger()),
		bulksms.WithRegisterer(registry),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sms client")
	}

	engine, err := worker.NewEngine(worker.Config{MsgMaxBytes: cfg.Kafka.MsgMaxBytes}, worker.Dependencies{
		Dispatcher:     client,
		EventPublisher: eventPublisher,
		DLQPublisher:   dlqPublisher,
		Logger:         log,
		Now:            time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise worker engine")
	}

	probes := health.NewServer(
		health.WithLogger(log),
		health.WithGatherer(registry),
		health.WithCheckTimeout(time.Duration(cfg.Health.CheckTimeoutMs)*time.Millisecond),
		health.WithCheck("kafka_producer", prod.Check),
		health.WithCheck("kafka_consumer", cons.Check),
	)

	errCh := make(chan error, 2)
	go func() {
		if err := probes.ListenAndServe(ctx, cfg.Health.Listen); err != nil {
			errCh <- err
		}
	}()
	go func() {
		topics := []string{cfg.Kafka.RequestTopic}
		if err := cons.Consume(ctx, topics, worker.KafkaHandler(engine)); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	log.Info().
		Str("request_topic", cfg.Kafka.RequestTopic).
		Str("status_topic", cfg.Kafka.StatusTopic).
		Str("health_listen", cfg.Health.Listen).
		Msg("sms worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("worker terminated with error")
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("sms worker init failed")
}
