package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/cli"
	"github.com/PaulChelaru/petfinder-matching-service/internal/ingest"
	"github.com/PaulChelaru/petfinder-matching-service/internal/logging"
	"github.com/PaulChelaru/petfinder-matching-service/internal/metrics"
)

func runConsume(args []string) int {
	fs := flag.NewFlagSet("consume", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	embedded := fs.Bool("embedded-nats", false, "Start an in-process NATS JetStream server instead of dialing NATS_URL")
	natsPort := fs.Int("nats-port", 4222, "Port for the embedded NATS server (-1 picks a free port)")
	natsStoreDir := fs.String("nats-store-dir", "", "JetStream storage directory for the embedded server (default: temp dir)")
	ackWait := fs.Duration("ack-wait", 2*time.Minute, "JetStream ack wait per event")
	maxDeliver := fs.Int("max-deliver", 5, "JetStream redelivery limit per event")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, code := bootstrap(envLoader)
	if code != 0 {
		return code
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	natsURL := cfg.NATSURL
	if *embedded {
		ns, err := ingest.StartEmbeddedServer("127.0.0.1", *natsPort, strings.TrimSpace(*natsStoreDir))
		if err != nil {
			logger.Error().Err(err).Msg("embedded NATS failed to start")
			fmt.Fprintf(os.Stderr, "Failed to start embedded NATS: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer shutdownCancel()
			if err := ns.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("embedded NATS shutdown failed")
			}
		}()
		natsURL = ns.ClientURL()
		logger.Info().Str("url", natsURL).Msg("embedded NATS started")
	}

	storeCtx, storeCancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	s, err := openStore(storeCtx, cfg, logger)
	storeCancel()
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Driver()).Msg("consume failed to connect to store")
		fmt.Fprintf(os.Stderr, "Failed to connect to store: %v\n", err)
		return 1
	}
	defer closeStore(s, logger)

	collector := metrics.New()
	svc, err := newMatchingService(cfg, s, logger, collector)
	if err != nil {
		logger.Error().Err(err).Msg("consume failed to build matching service")
		fmt.Fprintf(os.Stderr, "Failed to build matching service: %v\n", err)
		return 1
	}

	sub, err := ingest.NewSubscriber(ingest.NATSConfig{
		URL:           natsURL,
		ConsumerGroup: cfg.ConsumerGroup,
		AckWait:       *ackWait,
		MaxDeliver:    *maxDeliver,
	}, logging.NewWatermillAdapter(logger))
	if err != nil {
		logger.Error().Err(err).Str("url", natsURL).Msg("consume failed to connect to NATS")
		fmt.Fprintf(os.Stderr, "Failed to connect to NATS: %v\n", err)
		return 1
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Warn().Err(err).Msg("close subscriber failed")
		}
	}()

	consumer, err := ingest.NewConsumer(sub, cfg.PartitionTopics(), svc, logger, collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build consumer: %v\n", err)
		return 1
	}

	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" {
		stopMetrics := serveMetrics(ctx, addr, collector, logger)
		defer stopMetrics()
	}

	logger.Info().
		Str("driver", cfg.Driver()).
		Strs("topics", cfg.PartitionTopics()).
		Str("group", cfg.ConsumerGroup).
		Msg("matching worker running")

	if err := consumer.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("consumer failed")
		fmt.Fprintf(os.Stderr, "Consumer failed: %v\n", err)
		return 1
	}
	return 0
}

// serveMetrics exposes the collector on its own listener and returns a
// function that stops it.
func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics listener shutdown failed")
		}
	}
}
