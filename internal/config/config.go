package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	General struct {
		LiveProvider    string `koanf:"live_provider"`
		ArchiveProvider string `koanf:"archive_provider"`
	} `koanf:"general"`

	Recon struct {
		ChunkSize         int     `koanf:"chunk_size"`
		PageSize          int     `koanf:"page_size"`
		DispatchThreshold float64 `koanf:"dispatch_threshold"`
		ShortfallChunks   int     `koanf:"shortfall_chunks"`
	} `koanf:"recon"`

	Live struct {
		Reddit struct {
			BaseURL           string  `koanf:"base_url"`
			UserAgent         string  `koanf:"user_agent"`
			RequestsPerSecond float64 `koanf:"requests_per_second"`
			Burst             int     `koanf:"burst"`
			TimeoutSeconds    int     `koanf:"timeout_seconds"`
		} `koanf:"reddit"`
	} `koanf:"live"`

	Archive struct {
		Pullpush struct {
			BaseURL        string `koanf:"base_url"`
			TimeoutSeconds int    `koanf:"timeout_seconds"`
		} `koanf:"pullpush"`
		Meilisearch struct {
			URL       string `koanf:"url"`
			APIKey    string `koanf:"api_key"`
			Index     string `koanf:"index"`
			PostIndex string `koanf:"post_index"`
		} `koanf:"meilisearch"`
	} `koanf:"archive"`

	Server struct {
		Port        int      `koanf:"port"`
		AuthSecret  string   `koanf:"auth_secret"`
		CORSOrigins []string `koanf:"cors_origins"`
	} `koanf:"server"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`

	Retry struct {
		MaxRetries  int     `koanf:"max_retries"`
		BaseDelayMs int     `koanf:"base_delay_ms"`
		MaxDelayMs  int     `koanf:"max_delay_ms"`
		Multiplier  float64 `koanf:"multiplier"`
		Jitter      bool    `koanf:"jitter"`
	} `koanf:"retry"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"general.live_provider":            "reddit",
		"general.archive_provider":         "pullpush",
		"recon.chunk_size":                 100,
		"recon.page_size":                  100,
		"recon.dispatch_threshold":         0.9,
		"recon.shortfall_chunks":           1,
		"live.reddit.base_url":             "https://api.reddit.com",
		"live.reddit.user_agent":           "restitch",
		"live.reddit.requests_per_second":  1.0,
		"live.reddit.burst":                5,
		"live.reddit.timeout_seconds":      10,
		"archive.pullpush.base_url":        "https://api.pullpush.io",
		"archive.pullpush.timeout_seconds": 10,
		"archive.meilisearch.url":          "http://localhost:7700",
		"archive.meilisearch.index":        "comments",
		"archive.meilisearch.post_index":   "submissions",
		"server.port":                      8390,
		"server.cors_origins":              []string{"*"},
		"log.level":                        "info",
		"retry.max_retries":                3,
		"retry.base_delay_ms":              500,
		"retry.max_delay_ms":               8000,
		"retry.multiplier":                 2.0,
		"retry.jitter":                     true,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{"./restitch.toml", "$HOME/.restitch.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix RESTITCH_. Only the first
	// underscore becomes a section separator, so RESTITCH_GENERAL_ARCHIVE_PROVIDER
	// maps to general.archive_provider.
	k.Load(env.Provider("RESTITCH_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "RESTITCH_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# Restitch Configuration

[general]
live_provider = "reddit"
archive_provider = "pullpush"   # or "meilisearch"

[recon]
chunk_size = 100
page_size = 100
dispatch_threshold = 0.9
shortfall_chunks = 1

[live.reddit]
base_url = "https://api.reddit.com"
user_agent = "restitch"
requests_per_second = 1.0
burst = 5
timeout_seconds = 10

[archive.pullpush]
base_url = "https://api.pullpush.io"
timeout_seconds = 10

[archive.meilisearch]
url = "http://localhost:7700"
api_key = ""
index = "comments"
post_index = "submissions"

[server]
port = 8390
auth_secret = ""        # empty disables API auth
cors_origins = ["*"]

[log]
level = "info"
file = ""               # empty logs to stdout

[retry]
max_retries = 3
base_delay_ms = 500
max_delay_ms = 8000
multiplier = 2.0
jitter = true
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	switch config.General.LiveProvider {
	case "reddit":
		if config.Live.Reddit.BaseURL == "" {
			return fmt.Errorf("reddit base_url is required")
		}
	case "":
		return fmt.Errorf("live provider is required")
	default:
		return fmt.Errorf("unknown live provider %s", config.General.LiveProvider)
	}

	switch config.General.ArchiveProvider {
	case "pullpush":
		if config.Archive.Pullpush.BaseURL == "" {
			return fmt.Errorf("pullpush base_url is required")
		}
	case "meilisearch":
		if config.Archive.Meilisearch.URL == "" {
			return fmt.Errorf("meilisearch url is required")
		}
	case "":
		return fmt.Errorf("archive provider is required")
	default:
		return fmt.Errorf("unknown archive provider %s", config.General.ArchiveProvider)
	}

	if config.Recon.ChunkSize <= 0 {
		return fmt.Errorf("recon chunk_size must be positive")
	}
	if config.Recon.PageSize <= 0 {
		return fmt.Errorf("recon page_size must be positive")
	}
	if t := config.Recon.DispatchThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("recon dispatch_threshold must be in (0, 1]")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", config.Server.Port)
	}

	return nil
}
