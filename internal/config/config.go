package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver  string        `envconfig:"STORE_DRIVER" default:"postgres"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	MongoURI      string `envconfig:"MONGODB_URI"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"petfinder"`

	NATSURL         string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	EventTopic      string `envconfig:"EVENT_TOPIC" default:"announcement_created"`
	EventPartitions int    `envconfig:"EVENT_PARTITIONS" default:"1"`
	ConsumerGroup   string `envconfig:"CONSUMER_GROUP" default:"matching-service"`

	MaxDistanceMeters float64 `envconfig:"MATCHING_MAX_DISTANCE" default:"50000"`
	DaysBefore        int     `envconfig:"MATCHING_DAYS_BEFORE" default:"30"`
	DaysAfter         int     `envconfig:"MATCHING_DAYS_AFTER" default:"30"`
	CandidateLimit    int     `envconfig:"MATCHING_CANDIDATE_LIMIT" default:"20"`
	MinConfidence     int     `envconfig:"MATCHING_MIN_CONFIDENCE" default:"30"`
	TopN              int     `envconfig:"MATCHING_TOP_N" default:"4"`
	SkipLocation      bool    `envconfig:"MATCHING_SKIP_LOCATION" default:"false"`
	SkipTime          bool    `envconfig:"MATCHING_SKIP_TIME" default:"false"`
	SkipBreed         bool    `envconfig:"MATCHING_SKIP_BREED" default:"false"`

	BreedVocabularyFile string `envconfig:"BREED_VOCABULARY_FILE"`
	PropagationAttempts uint   `envconfig:"PROPAGATION_ATTEMPTS" default:"3"`

	NotifyURL     string        `envconfig:"NOTIFY_URL"`
	NotifyTimeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Driver() {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if c.DBMinConns < 0 {
			return fmt.Errorf("DB_MIN_CONNS must be >= 0")
		}
		if c.DBMaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be >= 1")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case StoreDriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER=mongo")
		}
		if strings.TrimSpace(c.MongoDatabase) == "" {
			return fmt.Errorf("MONGODB_DATABASE is required")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMongo, c.StoreDriver)
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.EventTopic) == "" {
		return fmt.Errorf("EVENT_TOPIC is required")
	}
	if c.EventPartitions < 1 || c.EventPartitions > 256 {
		return fmt.Errorf("EVENT_PARTITIONS must be between 1 and 256")
	}
	if strings.TrimSpace(c.ConsumerGroup) == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}
	if c.MaxDistanceMeters <= 0 {
		return fmt.Errorf("MATCHING_MAX_DISTANCE must be > 0")
	}
	if c.DaysBefore < 0 || c.DaysAfter < 0 {
		return fmt.Errorf("MATCHING_DAYS_BEFORE and MATCHING_DAYS_AFTER must be >= 0")
	}
	if c.CandidateLimit < 1 || c.CandidateLimit > 500 {
		return fmt.Errorf("MATCHING_CANDIDATE_LIMIT must be between 1 and 500")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("MATCHING_MIN_CONFIDENCE must be between 0 and 100")
	}
	if c.TopN < 1 {
		return fmt.Errorf("MATCHING_TOP_N must be >= 1")
	}
	if c.PropagationAttempts < 1 {
		return fmt.Errorf("PROPAGATION_ATTEMPTS must be >= 1")
	}
	if strings.TrimSpace(c.NotifyURL) != "" && c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be > 0")
	}
	return nil
}

// Driver returns the normalized store driver name.
func (c *Config) Driver() string {
	if c == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(c.StoreDriver))
}

// PartitionTopics lists the topic for every event partition. A single
// partition uses the bare topic name.
func (c *Config) PartitionTopics() []string {
	if c == nil {
		return nil
	}
	return PartitionTopics(c.EventTopic, c.EventPartitions)
}

func PartitionTopics(base string, partitions int) []string {
	base = strings.TrimSpace(base)
	if partitions <= 1 {
		return []string{base}
	}
	topics := make([]string, 0, partitions)
	for i := 0; i < partitions; i++ {
		topics = append(topics, fmt.Sprintf("%s_p%d", base, i))
	}
	return topics
}
