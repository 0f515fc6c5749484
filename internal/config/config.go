package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Multiple-match policies for target resolution.
const (
	MatchFirst = "first"
	MatchError = "error"
)

// Config holds the API connection settings and the board column mapping.
type Config struct {
	APIURL     string        `yaml:"api_url"     mapstructure:"api_url"`
	APIVersion string        `yaml:"api_version" mapstructure:"api_version"`
	Token      string        `yaml:"token"       mapstructure:"token"`
	Timeout    time.Duration `yaml:"timeout"     mapstructure:"timeout"`
	Listen     string        `yaml:"listen"      mapstructure:"listen"`
	LogLevel   string        `yaml:"log_level"   mapstructure:"log_level"`
	LogFormat  string        `yaml:"log_format"  mapstructure:"log_format"`

	Source   SourceConfig   `yaml:"source"   mapstructure:"source"`
	Target   TargetConfig   `yaml:"target"   mapstructure:"target"`
	Deadline DeadlineConfig `yaml:"deadline" mapstructure:"deadline"`
}

// ColumnMap names the rank, SLA and revenue columns on one board.
type ColumnMap struct {
	Rank    string `yaml:"rank"    mapstructure:"rank"`
	SLA     string `yaml:"sla"     mapstructure:"sla"`
	Revenue string `yaml:"revenue" mapstructure:"revenue"`
}

// IDs returns the configured column ids, skipping blanks.
func (m ColumnMap) IDs() []string {
	var ids []string
	for _, id := range []string{m.Rank, m.SLA, m.Revenue} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// SourceConfig describes the board whose changes are monitored.
type SourceConfig struct {
	Columns ColumnMap `yaml:"columns" mapstructure:"columns"`
}

// TargetConfig describes the board items are synchronized onto.
type TargetConfig struct {
	BoardID string    `yaml:"board_id" mapstructure:"board_id"`
	Columns ColumnMap `yaml:"columns"  mapstructure:"columns"`
	// ExternalIDColumn, when set, keys target items by the source item id
	// stored in this column instead of by item name.
	ExternalIDColumn  string `yaml:"external_id_column"  mapstructure:"external_id_column"`
	OnMultipleMatches string `yaml:"on_multiple_matches" mapstructure:"on_multiple_matches"`
}

// SLAColumns names the per-severity SLA columns on the client item and the
// deadline column written on the triggering item.
type SLAColumns struct {
	Critical string `yaml:"critical" mapstructure:"critical"`
	High     string `yaml:"high"     mapstructure:"high"`
	Medium   string `yaml:"medium"   mapstructure:"medium"`
	Low      string `yaml:"low"      mapstructure:"low"`
	Deadline string `yaml:"deadline" mapstructure:"deadline"`
}

// DeadlineConfig holds the SLA deadline defaults.
type DeadlineConfig struct {
	TimeZone string     `yaml:"time_zone" mapstructure:"time_zone"`
	Columns  SLAColumns `yaml:"columns"   mapstructure:"columns"`
}

// DefaultPath returns the default config file path (~/.board-sync.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".board-sync.yaml"
	}
	return filepath.Join(home, ".board-sync.yaml")
}

// Default returns a config with every optional setting filled in.
func Default() Config {
	return Config{
		APIURL:     "https://api.monday.com/v2",
		APIVersion: "2023-10",
		Timeout:    30 * time.Second,
		Listen:     ":3000",
		LogLevel:   "info",
		LogFormat:  "text",
		Source: SourceConfig{
			Columns: ColumnMap{Rank: "rank", SLA: "sla", Revenue: "receita"},
		},
		Target: TargetConfig{
			Columns:           ColumnMap{Rank: "rank_destino", SLA: "sla_destino", Revenue: "receita_destino"},
			OnMultipleMatches: MatchFirst,
		},
		Deadline: DeadlineConfig{
			TimeZone: "UTC",
			Columns: SLAColumns{
				Critical: "sla_critico",
				High:     "sla_alta",
				Medium:   "sla_media",
				Low:      "sla_baixa",
				Deadline: "deadline",
			},
		},
	}
}

// Load reads config from the YAML file and applies env var overrides.
// A .env file in the working directory is loaded first when present.
// configPath may be empty to use the default path.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath == "" {
		configPath = DefaultPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v, Default())

	v.BindEnv("token", "MONDAY_API_TOKEN")
	v.BindEnv("target.board_id", "TARGET_BOARD_ID")
	v.BindEnv("api_url", "MONDAY_API_URL")
	v.BindEnv("api_version", "MONDAY_API_VERSION")
	v.BindEnv("log_level", "LOG_LEVEL")

	// Missing file is fine, env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, errors.Wrap(err, "reading config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshalling config")
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Listen = ":" + port
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("api_version", d.APIVersion)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("source.columns.rank", d.Source.Columns.Rank)
	v.SetDefault("source.columns.sla", d.Source.Columns.SLA)
	v.SetDefault("source.columns.revenue", d.Source.Columns.Revenue)
	v.SetDefault("target.columns.rank", d.Target.Columns.Rank)
	v.SetDefault("target.columns.sla", d.Target.Columns.SLA)
	v.SetDefault("target.columns.revenue", d.Target.Columns.Revenue)
	v.SetDefault("target.external_id_column", "")
	v.SetDefault("target.on_multiple_matches", d.Target.OnMultipleMatches)
	v.SetDefault("deadline.time_zone", d.Deadline.TimeZone)
	v.SetDefault("deadline.columns.critical", d.Deadline.Columns.Critical)
	v.SetDefault("deadline.columns.high", d.Deadline.Columns.High)
	v.SetDefault("deadline.columns.medium", d.Deadline.Columns.Medium)
	v.SetDefault("deadline.columns.low", d.Deadline.Columns.Low)
	v.SetDefault("deadline.columns.deadline", d.Deadline.Columns.Deadline)
}

// Validate checks the fields every command needs: API access and the
// deadline time zone.
func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("API token is required (set in config file or MONDAY_API_TOKEN env var)")
	}
	if c.APIURL == "" {
		return errors.New("API URL is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ValidateSync runs Validate plus the checks the board sync needs.
func (c Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Target.BoardID == "" {
		return errors.New("target board id is required (set in config file or TARGET_BOARD_ID env var)")
	}
	if len(c.Source.Columns.IDs()) == 0 {
		return errors.New("at least one source column must be monitored")
	}
	switch c.Target.OnMultipleMatches {
	case "", MatchFirst, MatchError:
	default:
		return errors.Errorf("target.on_multiple_matches must be %q or %q, got %q", MatchFirst, MatchError, c.Target.OnMultipleMatches)
	}
	return nil
}

// Location resolves the deadline time zone. An empty zone means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Deadline.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Deadline.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "deadline.time_zone %q", c.Deadline.TimeZone)
	}
	return loc, nil
}

// Save writes the config to the given path (or default path if empty).
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}
