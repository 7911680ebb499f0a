package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/PaulChelaru/petfinder-matching-service/internal/cli"
	"github.com/PaulChelaru/petfinder-matching-service/internal/ingest"
	"github.com/PaulChelaru/petfinder-matching-service/internal/logging"
	eventschema "github.com/PaulChelaru/petfinder-matching-service/schema"
)

func runPublish(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	id := fs.String("id", "", "Announcement id (required)")
	announcementType := fs.String("type", "", "Announcement type: lost or found")
	userID := fs.String("user", "", "Owner user id")
	natsURL := fs.String("nats-url", "", "NATS URL (default: NATS_URL)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "--id is required")
		return 2
	}

	cfg, logger, code := bootstrap(envLoader)
	if code != 0 {
		return code
	}

	url := strings.TrimSpace(*natsURL)
	if url == "" {
		url = cfg.NATSURL
	}

	pub, err := ingest.NewPublisher(url, logging.NewWatermillAdapter(logger))
	if err != nil {
		logger.Error().Err(err).Str("url", url).Msg("publish failed to connect to NATS")
		fmt.Fprintf(os.Stderr, "Failed to connect to NATS: %v\n", err)
		return 1
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn().Err(err).Msg("close publisher failed")
		}
	}()

	events, err := ingest.NewEventPublisher(pub, cfg.EventTopic, cfg.EventPartitions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build publisher: %v\n", err)
		return 1
	}

	topic, err := events.Publish(eventschema.AnnouncementEvent{
		AnnouncementID: *id,
		Type:           strings.TrimSpace(*announcementType),
		UserID:         strings.TrimSpace(*userID),
	})
	if err != nil {
		logger.Error().Err(err).Str("announcement_id", *id).Msg("publish failed")
		fmt.Fprintf(os.Stderr, "Publish failed: %v\n", err)
		return 1
	}

	logger.Info().Str("announcement_id", strings.TrimSpace(*id)).Str("topic", topic).Msg("event published")
	fmt.Printf("published announcement=%s topic=%s\n", strings.TrimSpace(*id), topic)
	return 0
}
