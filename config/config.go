package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAnalyzeURL = "https://code-analysis-tool.onrender.com/analyze"
	GitHubBaseURL     = "https://api.github.com"
	PyPIBaseURL       = "https://pypi.org/pypi"

	DefaultPort          = "8000"
	DefaultWidgetPort    = "5500"
	DefaultSQLitePath    = "./data/app.db"
	DefaultMaxConcurrent = 10
	DefaultScoreTTL      = 24 * time.Hour
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultPurgeSchedule = "0 0 * * *"

	NoDependenciesMessage = "No dependencies found in the repository."
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxConcurrent  int      `yaml:"max_concurrent"`
	} `yaml:"server"`

	Widget struct {
		Port       string        `yaml:"port"`
		AnalyzeURL string        `yaml:"analyze_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"widget"`

	GitHub struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"github"`

	PyPI struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"pypi"`

	Storage struct {
		SQLitePath    string        `yaml:"sqlite_path"`
		ScoreTTL      time.Duration `yaml:"score_ttl"`
		DailyPurge    bool          `yaml:"daily_purge"`
		PurgeSchedule string        `yaml:"purge_schedule"`
	} `yaml:"storage"`

	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	var c Config
	c.Server.Port = DefaultPort
	c.Server.AllowedOrigins = []string{"http://127.0.0.1:5500", "http://localhost:5500"}
	c.Server.MaxConcurrent = DefaultMaxConcurrent
	c.Widget.Port = DefaultWidgetPort
	c.Widget.AnalyzeURL = DefaultAnalyzeURL
	c.Widget.Timeout = DefaultHTTPTimeout
	c.GitHub.BaseURL = GitHubBaseURL
	c.PyPI.BaseURL = PyPIBaseURL
	c.Storage.SQLitePath = DefaultSQLitePath
	c.Storage.ScoreTTL = DefaultScoreTTL
	c.Storage.PurgeSchedule = DefaultPurgeSchedule
	c.LogLevel = "info"
	return &c
}

// Load builds the configuration from defaults, an optional YAML file,
// a .env file in the working directory and finally the process environment.
// A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("configuration error: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Widget.Port, "WIDGET_PORT")
	setString(&c.Widget.AnalyzeURL, "ANALYZE_URL")
	setString(&c.GitHub.Token, "GITHUB_TOKEN")
	setString(&c.Storage.SQLitePath, "SQLITE_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}

	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_CONCURRENT value %q", v)
		}
		c.Server.MaxConcurrent = n
	}

	if v := os.Getenv("SCORE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SCORE_TTL value %q: %w", v, err)
		}
		c.Storage.ScoreTTL = d
	}

	if os.Getenv("WITH_DAILY_PURGE") == "true" {
		c.Storage.DailyPurge = true
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
