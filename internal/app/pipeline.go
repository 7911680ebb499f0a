package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/analyzer"
	"github.com/PaulChelaru/petfinder-matching-service/internal/config"
	"github.com/PaulChelaru/petfinder-matching-service/internal/matching"
	"github.com/PaulChelaru/petfinder-matching-service/internal/metrics"
	"github.com/PaulChelaru/petfinder-matching-service/internal/notify"
	"github.com/PaulChelaru/petfinder-matching-service/internal/scoring"
)

const shutdownGrace = 10 * time.Second

// newMatchingService wires the scoring engine, notifier and store into one
// pipeline. collector may be nil.
func newMatchingService(cfg *config.Config, s matching.Store, logger zerolog.Logger, collector *metrics.Collector) (*matching.Service, error) {
	vocab, err := analyzer.LoadVocabularyFile(cfg.BreedVocabularyFile)
	if err != nil {
		return nil, fmt.Errorf("load breed vocabulary: %w", err)
	}
	logger.Debug().Int("breeds", vocab.Len()).Msg("breed vocabulary loaded")

	var notifier matching.Notifier
	if n := notify.New(cfg.NotifyURL, cfg.NotifyTimeout, logger); n != nil {
		notifier = n
	}

	var recorder matching.Recorder
	if collector != nil {
		recorder = collector
	}

	return matching.NewService(s, notifier, scoring.NewEngine(vocab), matching.OptionsFromConfig(cfg), logger, recorder)
}
