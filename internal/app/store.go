package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/config"
	"github.com/PaulChelaru/petfinder-matching-service/internal/db"
	"github.com/PaulChelaru/petfinder-matching-service/internal/httpapi"
	"github.com/PaulChelaru/petfinder-matching-service/internal/matching"
	"github.com/PaulChelaru/petfinder-matching-service/internal/mongostore"
)

// store is what every command needs from the configured backend.
type store interface {
	matching.Store
	httpapi.MatchReader
	Close(ctx context.Context) error
}

type postgresStore struct {
	*db.Pool
}

func (s postgresStore) Close(context.Context) error {
	return s.Pool.Close()
}

// openStore connects to the backend selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store, error) {
	switch cfg.Driver() {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgresStore{Pool: pool}, nil
	case config.StoreDriverMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, fmt.Errorf("ensure mongodb indexes: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func closeStore(s store, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("close store failed")
	}
}
