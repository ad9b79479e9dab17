package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`

	Database struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Schedule struct {
		UpdateInterval time.Duration `yaml:"update_interval"` // background full refresh period
		FeedTTL        time.Duration `yaml:"feed_ttl"`        // staleness threshold per feed
		FetchTimeout   time.Duration `yaml:"fetch_timeout"`   // per-feed fetch bound
		MaxWorkers     int           `yaml:"max_workers"`
	} `yaml:"schedule"`

	Ranking struct {
		MaxArticles int           `yaml:"max_articles"` // bound on the ranked article set
		CacheTTL    time.Duration `yaml:"cache_ttl"`    // article/liked/model cache expiry
	} `yaml:"ranking"`

	Model ModelConfig `yaml:"model"`
}

// ModelConfig holds embedding and classifier settings
type ModelConfig struct {
	MinCorpusSize int    `yaml:"min_corpus_size"` // below this the embedding stays untrained
	MaxComponents int    `yaml:"max_components"`  // dimensionality reduction upper bound
	DatasetSize   int    `yaml:"dataset_size"`    // embedding training corpus cap
	Visualize     bool   `yaml:"visualize"`       // dump embedding scatterplot on training
	PlotFile      string `yaml:"plot_file"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:papyrus.db?cache=shared&mode=rwc"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Schedule.UpdateInterval == 0 {
		c.Schedule.UpdateInterval = 30 * time.Minute
	}
	if c.Schedule.FeedTTL == 0 {
		c.Schedule.FeedTTL = 5 * time.Minute
	}
	if c.Schedule.FetchTimeout == 0 {
		c.Schedule.FetchTimeout = 30 * time.Second
	}
	if c.Schedule.MaxWorkers == 0 {
		c.Schedule.MaxWorkers = 5
	}

	if c.Ranking.MaxArticles == 0 {
		c.Ranking.MaxArticles = 500
	}
	if c.Ranking.CacheTTL == 0 {
		c.Ranking.CacheTTL = 5 * time.Minute
	}

	if c.Model.MinCorpusSize == 0 {
		c.Model.MinCorpusSize = 25
	}
	if c.Model.MaxComponents == 0 {
		c.Model.MaxComponents = 100
	}
	if c.Model.DatasetSize == 0 {
		c.Model.DatasetSize = 500
	}
	if c.Model.PlotFile == "" {
		c.Model.PlotFile = "pca_plot.png"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if cfg.Schedule.MaxWorkers < 1 {
		return fmt.Errorf("schedule.max_workers must be at least 1")
	}
	if cfg.Schedule.FetchTimeout < time.Second {
		return fmt.Errorf("schedule.fetch_timeout must be at least 1 second")
	}
	if cfg.Ranking.MaxArticles < 1 {
		return fmt.Errorf("ranking.max_articles must be at least 1")
	}
	if cfg.Model.MinCorpusSize < 2 {
		return fmt.Errorf("model.min_corpus_size must be at least 2")
	}
	if cfg.Model.MaxComponents < 2 {
		return fmt.Errorf("model.max_components must be at least 2")
	}
	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
