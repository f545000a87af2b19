package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// DatabaseURL selects the Postgres store when set; otherwise the local
	// SQLite file at SQLitePath is used.
	DatabaseURL string
	SQLitePath  string

	LogPath    string
	LogMaxSize int64

	Proxy    ProxyConfig
	Gateway  GatewayConfig
	Source   SourceConfig
	Snapshot SnapshotConfig
	Pipeline PipelineConfig

	Regions []Region
}

// ProxyConfig describes the rotating-session egress gateway. Each session
// name yields a distinct apparent origin when appended to the username.
type ProxyConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Sessions []string
}

// GatewayConfig describes the HTML-rendering fetch service.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Country string
	Render  bool
	Timeout time.Duration
}

// SourceConfig describes the listing search API.
type SourceConfig struct {
	Handler   string
	SearchURL string
	PageSize  int
	Timeout   time.Duration
}

// SnapshotConfig enables archival of pages that yielded no contacts.
// Snapshots are skipped entirely when no bucket is configured.
type SnapshotConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (c SnapshotConfig) Enabled() bool {
	return c.Bucket != ""
}

// PipelineConfig consolidates every tuning knob of one run. All delays are
// randomized between their Min and Max by the scheduler.
type PipelineConfig struct {
	MaxRuntime time.Duration

	MaxListings     int // cap on listings ingested per run
	ListingDelayMin time.Duration
	ListingDelayMax time.Duration
	RegionDelayMin  time.Duration
	RegionDelayMax  time.Duration

	ContactBatchLimit  int // eligible listings selected per run
	ContactBatchSize   int // processed between long pauses
	ContactBatchDelay  time.Duration
	ContactDelayMin    time.Duration
	ContactDelayMax    time.Duration
	MaxContactAttempts int
	MaxFetchRetries    int
}

// Region is one geographic partition of the source, bounded by a box and
// tagged with the state code its results are expected to carry. Loaded from
// config/regions/*.yaml.
type Region struct {
	Name   string  `yaml:"name"`
	State  string  `yaml:"state"`
	North  float64 `yaml:"north"`
	South  float64 `yaml:"south"`
	East   float64 `yaml:"east"`
	West   float64 `yaml:"west"`
	Filter string  `yaml:"filter"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "leadsweep.db"),
		LogPath:     getEnv("LOG_PATH", "leadsweep.log"),
		LogMaxSize:  int64(getEnvInt("LOG_MAX_SIZE", 0)),
		Proxy: ProxyConfig{
			Host:     os.Getenv("PROXY_HOST"),
			Port:     getEnvInt("PROXY_PORT", 7000),
			User:     os.Getenv("PROXY_USER"),
			Password: os.Getenv("PROXY_PASS"),
			Sessions: splitList(os.Getenv("PROXY_SESSIONS")),
		},
		Gateway: GatewayConfig{
			BaseURL: getEnv("GATEWAY_URL", "http://api.scraperapi.com"),
			APIKey:  os.Getenv("GATEWAY_API_KEY"),
			Country: getEnv("GATEWAY_COUNTRY", "us"),
			Render:  getEnv("GATEWAY_RENDER", "true") == "true",
			Timeout: getEnvDuration("GATEWAY_TIMEOUT", 60*time.Second),
		},
		Source: SourceConfig{
			Handler:   getEnv("SOURCE_HANDLER", "search-api"),
			SearchURL: os.Getenv("SOURCE_SEARCH_URL"),
			PageSize:  getEnvInt("SOURCE_PAGE_SIZE", 100),
			Timeout:   getEnvDuration("SOURCE_TIMEOUT", 30*time.Second),
		},
		Snapshot: SnapshotConfig{
			Bucket:          os.Getenv("SNAPSHOT_BUCKET"),
			Region:          getEnv("SNAPSHOT_REGION", "us-east-1"),
			Endpoint:        os.Getenv("SNAPSHOT_ENDPOINT"),
			AccessKeyID:     os.Getenv("SNAPSHOT_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SNAPSHOT_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("SNAPSHOT_PREFIX", "snapshots"),
		},
		Pipeline: PipelineConfig{
			MaxRuntime:         getEnvDuration("MAX_RUNTIME", 6*time.Minute),
			MaxListings:        getEnvInt("MAX_LISTINGS", 20),
			ListingDelayMin:    getEnvDuration("LISTING_DELAY_MIN", 200*time.Millisecond),
			ListingDelayMax:    getEnvDuration("LISTING_DELAY_MAX", 800*time.Millisecond),
			RegionDelayMin:     getEnvDuration("REGION_DELAY_MIN", 2*time.Second),
			RegionDelayMax:     getEnvDuration("REGION_DELAY_MAX", 5*time.Second),
			ContactBatchLimit:  getEnvInt("CONTACT_BATCH_LIMIT", 8),
			ContactBatchSize:   getEnvInt("CONTACT_BATCH_SIZE", 3),
			ContactBatchDelay:  getEnvDuration("CONTACT_BATCH_DELAY", 10*time.Second),
			ContactDelayMin:    getEnvDuration("CONTACT_DELAY_MIN", time.Second),
			ContactDelayMax:    getEnvDuration("CONTACT_DELAY_MAX", 3*time.Second),
			MaxContactAttempts: getEnvInt("MAX_CONTACT_ATTEMPTS", 5),
			MaxFetchRetries:    getEnvInt("MAX_FETCH_RETRIES", 2),
		},
	}

	if err := cfg.loadRegions(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadRegions() error {
	regionDir := "config/regions"
	entries, err := os.ReadDir(regionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(regionDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var region Region
		if err := yaml.Unmarshal(data, &region); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if region.Name == "" {
			region.Name = strings.TrimSuffix(entry.Name(), ".yaml")
		}

		c.Regions = append(c.Regions, region)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
