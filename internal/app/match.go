package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/PaulChelaru/petfinder-matching-service/internal/cli"
	"github.com/PaulChelaru/petfinder-matching-service/internal/matching"
)

func runMatch(args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	id := fs.String("id", "", "Announcement id to match (required)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	announcementID := strings.TrimSpace(*id)
	if announcementID == "" {
		fmt.Fprintln(os.Stderr, "--id is required")
		return 2
	}

	cfg, logger, code := bootstrap(envLoader)
	if code != 0 {
		return code
	}

	storeCtx, storeCancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	s, err := openStore(storeCtx, cfg, logger)
	storeCancel()
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Driver()).Msg("match failed to connect to store")
		fmt.Fprintf(os.Stderr, "Failed to connect to store: %v\n", err)
		return 1
	}
	defer closeStore(s, logger)

	svc, err := newMatchingService(cfg, s, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build matching service: %v\n", err)
		return 1
	}

	result, err := svc.ProcessAnnouncement(context.Background(), announcementID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("announcement_id", announcementID).
			Str("code", matching.CodeOf(err).String()).
			Msg("match failed")
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"match announcement=%s candidates=%d skipped=%d selected=%d created=%d propagation_errors=%d notified=%d\n",
		result.AnnouncementID,
		result.Candidates,
		result.Skipped,
		len(result.Matches),
		result.Created(),
		result.PropagationErrors,
		result.NotifiedUsers,
	)
	for _, m := range result.Matches {
		fmt.Printf(
			"  lost=%s found=%s confidence=%d created=%t\n",
			m.Match.LostAnnouncementID,
			m.Match.FoundAnnouncementID,
			m.Match.Confidence,
			m.Created,
		)
	}
	return 0
}
