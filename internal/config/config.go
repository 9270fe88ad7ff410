package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockanalysis/internal/series"
)

// Provider names accepted in source.provider.
const (
	ProviderYahoo   = "yahoo"
	ProviderFinnhub = "finnhub"
)

type Server struct {
	Port              string   `json:"port" yaml:"port"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	AllowedOrigins    []string `json:"allowed_origins" yaml:"allowed_origins"`
	// DataDir holds cleaned CSV files: stockctl clean writes them and the API
	// serves them under /api. Empty disables the routes.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

type Source struct {
	Provider              string `json:"provider" yaml:"provider"`
	FinnhubAPIKey         string `json:"finnhub_api_key" yaml:"finnhub_api_key"`
	FinnhubBaseURL        string `json:"finnhub_base_url" yaml:"finnhub_base_url"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int    `json:"burst" yaml:"burst"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items" yaml:"cache_max_items"`
	Proxy                 string `json:"proxy" yaml:"proxy"`
}

type Database struct {
	// URL is sqlite://path, file:path or a bare path. Empty disables persistence.
	URL string `json:"url" yaml:"url"`
}

type Ingest struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Cron    string   `json:"cron" yaml:"cron"`
	Symbols []string `json:"symbols" yaml:"symbols"`
	Period  string   `json:"period" yaml:"period"`
}

// Data locates raw exports for the cleaner. Cleaned output goes to
// Server.DataDir.
type Data struct {
	RawDir string `json:"raw_dir" yaml:"raw_dir"`
}

type Log struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

type Config struct {
	Server   Server   `json:"server" yaml:"server"`
	Source   Source   `json:"source" yaml:"source"`
	Database Database `json:"database" yaml:"database"`
	Ingest   Ingest   `json:"ingest" yaml:"ingest"`
	Data     Data     `json:"data" yaml:"data"`
	Log      Log      `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:              "8000",
			RequestTimeoutSec: 10,
			AllowedOrigins:    []string{"http://localhost:3000"},
			DataDir:           "data",
		},
		Source: Source{
			Provider:        ProviderYahoo,
			FinnhubBaseURL:  "https://finnhub.io/api/v1",
			Burst:           1,
			CacheTTLSeconds: 60,
			CacheMaxItems:   1000,
		},
		Ingest: Ingest{
			Cron:   "0 30 22 * * 1-5",
			Period: "5d",
		},
		Data: Data{RawDir: "raw_data"},
		Log:  Log{Level: "info"},
	}
}

// RequestTimeout is the outbound and handler timeout.
func (s Server) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// Load reads a JSON or YAML config from path, chosen by extension. If path is
// empty, config.json or config.yaml in the working directory is used when
// present. A .env file is loaded first; environment variables override file
// values.
func Load(path string) (Config, error) {
	cfg := Default()
	// a missing .env is not an error
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCSV(v)
	}
	if v, ok := os.LookupEnv("DATA_DIR"); ok {
		cfg.Server.DataDir = v
	}

	if v := os.Getenv("PRICE_SOURCE"); v != "" {
		cfg.Source.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Source.FinnhubAPIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Source.FinnhubBaseURL = v
	}
	envInt("SOURCE_MAX_RPM", 0, &cfg.Source.MaxRequestsPerMinute)
	envInt("SOURCE_BURST", 1, &cfg.Source.Burst)
	envInt("SOURCE_MIN_INTERVAL_SEC", 0, &cfg.Source.MinRequestIntervalSec)
	envInt("SOURCE_CACHE_TTL_SEC", 0, &cfg.Source.CacheTTLSeconds)
	envInt("SOURCE_CACHE_MAX_ITEMS", 1, &cfg.Source.CacheMaxItems)
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Source.Proxy = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	if v := os.Getenv("INGEST_ENABLED"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.Ingest.Enabled = b
		}
	}
	if v := os.Getenv("INGEST_CRON"); v != "" {
		cfg.Ingest.Cron = v
	}
	if v := os.Getenv("INGEST_SYMBOLS"); v != "" {
		cfg.Ingest.Symbols = splitCSV(v)
	}
	if v := os.Getenv("INGEST_PERIOD"); v != "" {
		cfg.Ingest.Period = v
	}

	if v := os.Getenv("RAW_DATA_DIR"); v != "" {
		cfg.Data.RawDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

// Validate reports configuration that would leave the process unable to serve.
func (c Config) Validate() error {
	switch c.Source.Provider {
	case ProviderYahoo:
	case ProviderFinnhub:
		if c.Source.FinnhubAPIKey == "" {
			return errors.New("source.finnhub_api_key (FINNHUB_API_KEY) is required when provider is finnhub")
		}
	default:
		return fmt.Errorf("source.provider %q is not supported", c.Source.Provider)
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Ingest.Enabled {
		if c.Database.URL == "" {
			return errors.New("ingest requires database.url (DATABASE_URL)")
		}
		if len(c.Ingest.Symbols) == 0 {
			return errors.New("ingest requires at least one symbol")
		}
		if _, err := series.ParsePeriod(c.Ingest.Period); err != nil {
			return fmt.Errorf("ingest.period: %w", err)
		}
	}
	return nil
}

func envInt(name string, minimum int, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	x, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || x < minimum {
		return
	}
	*dst = x
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
