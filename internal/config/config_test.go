package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func validConfig() Config {
	return Config{
		Environment:         "local",
		LogLevel:            "info",
		StoreDriver:         StoreDriverPostgres,
		StoreTimeout:        10 * time.Second,
		DatabaseURL:         "postgres://localhost/petfinder",
		DBMinConns:          1,
		DBMaxConns:          8,
		MongoDatabase:       "petfinder",
		EventTopic:          "announcement_created",
		EventPartitions:     1,
		ConsumerGroup:       "matching-service",
		MaxDistanceMeters:   50000,
		DaysBefore:          30,
		DaysAfter:           30,
		CandidateLimit:      20,
		MinConfidence:       30,
		TopN:                4,
		PropagationAttempts: 3,
		NotifyTimeout:       5 * time.Second,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = " " }, want: "DATABASE_URL"},
		{name: "mongo without uri", mutate: func(c *Config) { c.StoreDriver = "mongo" }, want: "MONGODB_URI"},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }, want: "STORE_DRIVER"},
		{name: "min confidence above 100", mutate: func(c *Config) { c.MinConfidence = 101 }, want: "MATCHING_MIN_CONFIDENCE"},
		{name: "zero top n", mutate: func(c *Config) { c.TopN = 0 }, want: "MATCHING_TOP_N"},
		{name: "zero partitions", mutate: func(c *Config) { c.EventPartitions = 0 }, want: "EVENT_PARTITIONS"},
		{name: "negative window", mutate: func(c *Config) { c.DaysBefore = -1 }, want: "MATCHING_DAYS_BEFORE"},
		{name: "pool bounds", mutate: func(c *Config) { c.DBMinConns = 9 }, want: "DB_MIN_CONNS"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestMongoDriverDoesNotNeedDatabaseURL(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.StoreDriver = " Mongo "
	cfg.DatabaseURL = ""
	cfg.MongoURI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected mongo config to validate, got %v", err)
	}
	if cfg.Driver() != StoreDriverMongo {
		t.Fatalf("expected driver %q, got %q", StoreDriverMongo, cfg.Driver())
	}
}

func TestPartitionTopics(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]string{"announcement_created"}, PartitionTopics("announcement_created", 1)); diff != "" {
		t.Fatalf("single partition topics mismatch (-want +got):\n%s", diff)
	}

	want := []string{"announcement_created_p0", "announcement_created_p1", "announcement_created_p2"}
	if diff := cmp.Diff(want, PartitionTopics("announcement_created", 3)); diff != "" {
		t.Fatalf("partition topics mismatch (-want +got):\n%s", diff)
	}
}
