package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Values come from defaults, then the YAML file, then ASSEMBLY_* variables.
type Config struct {
	ServiceName string `yaml:"serviceName" envconfig:"SERVICE_NAME"`
	HTTPPort    string `yaml:"httpPort"    envconfig:"HTTP_PORT"`

	StoreDriver string `yaml:"storeDriver" envconfig:"STORE_DRIVER"`
	PostgresDSN string `yaml:"postgresDsn" envconfig:"POSTGRES_DSN"`
	SQLitePath  string `yaml:"sqlitePath"  envconfig:"SQLITE_PATH"`

	Brokers            []string      `yaml:"brokers"            envconfig:"BROKERS"`
	OutboxPollInterval time.Duration `yaml:"outboxPollInterval" envconfig:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `yaml:"outboxBatchSize"    envconfig:"OUTBOX_BATCH_SIZE"`
	IdempotencyTTL     time.Duration `yaml:"idempotencyTtl"     envconfig:"IDEMPOTENCY_TTL"`
	DedupTTL           time.Duration `yaml:"dedupTtl"           envconfig:"DEDUP_TTL"`

	TracingEnabled bool `yaml:"tracingEnabled" envconfig:"TRACING_ENABLED"`
	TracingStdout  bool `yaml:"tracingStdout"  envconfig:"TRACING_STDOUT"`
	MetricsEnabled bool `yaml:"metricsEnabled" envconfig:"METRICS_ENABLED"`

	EnableNotificationDispatcher bool   `yaml:"enableNotificationDispatcher" envconfig:"ENABLE_NOTIFICATION_DISPATCHER"`
	MembersFile                  string `yaml:"membersFile"                  envconfig:"MEMBERS_FILE"`
}

// MemberSeed is one roster entry of the members file.
type MemberSeed struct {
	MemberID     string `yaml:"id"`
	DisplayName  string `yaml:"name"`
	Role         string `yaml:"role"`
	Constituency string `yaml:"constituency"`
	Active       *bool  `yaml:"active"`
}

func Default() Config {
	return Config{
		ServiceName:                  "assembly",
		HTTPPort:                     "8080",
		StoreDriver:                  StoreMemory,
		SQLitePath:                   "assembly.sqlite",
		Brokers:                      []string{"localhost:9092"},
		OutboxPollInterval:           2 * time.Second,
		OutboxBatchSize:              100,
		IdempotencyTTL:               7 * 24 * time.Hour,
		DedupTTL:                     7 * 24 * time.Hour,
		MetricsEnabled:               true,
		EnableNotificationDispatcher: true,
	}
}

func Load() (Config, error) {
	return LoadFile(os.Getenv("ASSEMBLY_CONFIG"))
}

// LoadFile reads path as YAML when it is set and applies environment
// overrides on top.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("assembly", &cfg); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres store requires ASSEMBLY_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.OutboxBatchSize < 0 {
		return errors.New("outbox batch size must not be negative")
	}
	return nil
}

// LoadMembers reads the roster file. An empty path yields no members.
func LoadMembers(path string) ([]MemberSeed, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading members file: %w", err)
	}
	var doc struct {
		Members []MemberSeed `yaml:"members"`
	}
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("error parsing members file: %w", err)
	}
	return doc.Members, nil
}
