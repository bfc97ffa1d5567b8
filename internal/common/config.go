package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultRunsPerUser is the per-(user, service) admission ceiling applied
// when a service does not configure its own.
const DefaultRunsPerUser = 5

// DefaultMaxAgeSeconds is the artifact retention window (10 days).
const DefaultMaxAgeSeconds = 864000

// Config represents the application configuration for both the orchestrator
// and the client process. Read-only after startup.
type Config struct {
	Server    ServerConfig             `toml:"server"`
	Storage   StorageConfig            `toml:"storage"`
	Scheduler SchedulerConfig          `toml:"scheduler"`
	Logging   LoggingConfig            `toml:"logging"`
	Services  map[string]ServiceConfig `toml:"services"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// MaxBodyBytes caps multipart ingestion. Default 400 MiB.
	MaxBodyBytes int64 `toml:"max_body_bytes"`
}

type StorageConfig struct {
	// DBPath is the SQLite metadata store location.
	DBPath string `toml:"db_path"`
	// DataPath is the artifact root; one directory per job or payload.
	DataPath string `toml:"data_path"`
	// MaxAgeSeconds is how long an artifact directory may sit untouched
	// before the janitor reaps it.
	MaxAgeSeconds int64 `toml:"max_age_seconds"`
}

type SchedulerConfig struct {
	// SendInterval, GetInterval and RunInterval drive the sub-second
	// tickers; the janitor runs on a cron schedule.
	SendInterval    time.Duration `toml:"send_interval"`
	GetInterval     time.Duration `toml:"get_interval"`
	RunInterval     time.Duration `toml:"run_interval"`
	JanitorSchedule string        `toml:"janitor_schedule"`
	// DownloadConcurrency caps in-flight getter downloads.
	DownloadConcurrency int `toml:"download_concurrency"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ServiceConfig describes one destination execution service.
type ServiceConfig struct {
	Name        string `toml:"name"`
	UploadURL   string `toml:"upload_url"`
	DownloadURL string `toml:"download_url"`
	RunsPerUser uint   `toml:"runs_per_user"`
	// Adapter selects the destination dispatcher: "client" (multipart
	// streaming, default) or "jobd" (legacy base64 JSON).
	Adapter string `toml:"adapter"`
}

// NewDefaultConfig creates a configuration with default values. Only
// user-facing settings belong in mitto.toml; the scheduler intervals are
// tunables with production defaults.
func NewDefaultConfig() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		Server: ServerConfig{
			Port:         5000,
			Host:         "0.0.0.0",
			MaxBodyBytes: 400 * 1024 * 1024,
		},
		Storage: StorageConfig{
			DBPath:        filepath.Join(cwd, "db.sqlite"),
			DataPath:      filepath.Join(cwd, "data"),
			MaxAgeSeconds: DefaultMaxAgeSeconds,
		},
		Scheduler: SchedulerConfig{
			SendInterval:        500 * time.Millisecond,
			GetInterval:         500 * time.Millisecond,
			RunInterval:         500 * time.Millisecond,
			JanitorSchedule:     "@every 1m",
			DownloadConcurrency: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Services: map[string]ServiceConfig{},
	}
}

// NewDefaultClientConfig returns the defaults for the client process. The
// only difference from the orchestrator defaults is the listen port.
func NewDefaultClientConfig() *Config {
	config := NewDefaultConfig()
	config.Server.Port = 9000
	return config
}

// LoadFromFiles loads the orchestrator configuration with priority:
// defaults -> config files (later files override earlier) -> environment.
// CLI flags are applied by the caller via ApplyFlagOverrides and take
// highest priority.
func LoadFromFiles(paths ...string) (*Config, error) {
	return Load(NewDefaultConfig(), paths...)
}

// Load layers config files and environment overrides on top of the given
// defaults. An explicit file value always wins over a default, even when
// the two happen to coincide.
func Load(config *Config, paths ...string) (*Config, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalizeServices(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// The service table uses the deployment contract names
// (SERVICE_<NAME>_UPLOAD_URL etc.); server settings use the MITTO_ prefix.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("MITTO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MITTO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if level := os.Getenv("MITTO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		config.Storage.DBPath = dbPath
	}
	if dataPath := os.Getenv("DATA_PATH"); dataPath != "" {
		config.Storage.DataPath = dataPath
	}
	if maxAge := os.Getenv("MAX_AGE"); maxAge != "" {
		if secs, err := strconv.ParseInt(maxAge, 10, 64); err == nil && secs > 0 {
			config.Storage.MaxAgeSeconds = secs
		}
	}

	// Service table: SERVICE_<NAME>_UPLOAD_URL, SERVICE_<NAME>_DOWNLOAD_URL,
	// SERVICE_<NAME>_RUNS_PER_USER, SERVICE_<NAME>_ADAPTER. The name is
	// folded to lower-case as the service key and may not contain an
	// underscore.
	if config.Services == nil {
		config.Services = map[string]ServiceConfig{}
	}
	for _, kv := range os.Environ() {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key, value := kv[:eq], kv[eq+1:]
		if !strings.HasPrefix(key, "SERVICE_") {
			continue
		}
		rest := strings.TrimPrefix(key, "SERVICE_")
		sep := strings.IndexByte(rest, '_')
		if sep <= 0 {
			continue
		}
		name := strings.ToLower(rest[:sep])
		field := rest[sep+1:]

		svc := config.Services[name]
		svc.Name = name
		switch field {
		case "UPLOAD_URL":
			svc.UploadURL = value
		case "DOWNLOAD_URL":
			svc.DownloadURL = value
		case "RUNS_PER_USER":
			if n, err := strconv.ParseUint(value, 10, 32); err == nil {
				svc.RunsPerUser = uint(n)
			}
		case "ADAPTER":
			svc.Adapter = strings.ToLower(value)
		default:
			continue
		}
		config.Services[name] = svc
	}
}

// normalizeServices lower-cases service keys from config files and fills
// per-service defaults. A runs_per_user explicitly set to 0 via environment
// is honored (the service admits nothing).
func normalizeServices(config *Config) {
	normalized := make(map[string]ServiceConfig, len(config.Services))
	for key, svc := range config.Services {
		name := strings.ToLower(key)
		svc.Name = name
		if svc.Adapter == "" {
			svc.Adapter = "client"
		}
		if svc.RunsPerUser == 0 {
			if _, set := os.LookupEnv("SERVICE_" + strings.ToUpper(name) + "_RUNS_PER_USER"); !set {
				svc.RunsPerUser = DefaultRunsPerUser
			}
		}
		normalized[name] = svc
	}
	config.Services = normalized
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Service looks up a configured service by key.
func (c *Config) Service(name string) (ServiceConfig, bool) {
	svc, ok := c.Services[strings.ToLower(name)]
	return svc, ok
}

// ServiceLimits returns the per-user admission allowance keyed by service.
func (c *Config) ServiceLimits() map[string]uint {
	limits := make(map[string]uint, len(c.Services))
	for name, svc := range c.Services {
		limits[name] = svc.RunsPerUser
	}
	return limits
}

// MaxAge returns the artifact retention window as a duration.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.Storage.MaxAgeSeconds) * time.Second
}
