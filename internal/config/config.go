// Package config loads clasql settings.
//
// Precedence (highest to lowest): explicitly set flags > CLASQL_* environment
// variables > config file > defaults. The config file is --config when given,
// otherwise ./clasql.yaml or ./clasql.yml when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/model"
	"github.com/roach88/clasql/internal/querysql"
)

// EnvPrefix prefixes environment overrides: CLASQL_SPIDER_DIR -> spider_dir.
const EnvPrefix = "CLASQL_"

// Config file names searched in the working directory.
const (
	ConfigFileName    = "clasql.yaml"
	ConfigFileNameAlt = "clasql.yml"
)

// Decoder names.
const (
	DecoderReference = "reference"
	DecoderFull      = "full"
)

// Defaults.
const (
	DefaultDataDir     = "data"
	DefaultSplit       = "test"
	DefaultMaxLength   = 512
	DefaultModel       = "random"
	DefaultHashBuckets = 30522
	DefaultRenderMode  = "reference"
)

// Config holds every setting.
type Config struct {
	// DataDir holds spider_data/ and sql_exclude_tokens.txt.
	DataDir string `koanf:"data_dir"`

	// SpiderDir defaults to <data_dir>/spider_data.
	SpiderDir string `koanf:"spider_dir"`

	Split string `koanf:"split"`

	// ExcludeTokens defaults to <data_dir>/sql_exclude_tokens.txt when that
	// file exists.
	ExcludeTokens string `koanf:"exclude_tokens"`

	// Vocab is a WordPiece vocab.txt. Empty selects the hashing encoder.
	Vocab       string `koanf:"vocab"`
	MaxLength   int    `koanf:"max_length"`
	HashBuckets int    `koanf:"hash_buckets"`

	Model   string `koanf:"model"`
	Seed    uint64 `koanf:"seed"`
	Workers int    `koanf:"workers"`
	Decoder string `koanf:"decoder"`
	Strict  bool   `koanf:"strict"`

	// ResultsDB is the SQLite results store. Empty disables persistence.
	ResultsDB  string `koanf:"results_db"`
	RenderMode string `koanf:"render_mode"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// knownKeys are the config keys flags may set.
var knownKeys = map[string]bool{
	"data_dir": true, "spider_dir": true, "split": true, "exclude_tokens": true,
	"vocab": true, "max_length": true, "hash_buckets": true, "model": true,
	"seed": true, "workers": true, "decoder": true, "strict": true,
	"results_db": true, "render_mode": true,
}

func defaults() map[string]any {
	return map[string]any{
		"data_dir":     DefaultDataDir,
		"split":        DefaultSplit,
		"max_length":   DefaultMaxLength,
		"hash_buckets": DefaultHashBuckets,
		"model":        DefaultModel,
		"seed":         0,
		"workers":      0,
		"decoder":      DecoderReference,
		"strict":       false,
		"render_mode":  DefaultRenderMode,
	}
}

// Load builds a Config. cfgFile may be empty; flags may be nil. Only flags
// that were explicitly set override other sources; their names map to keys
// by replacing "-" with "_".
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !f.Changed || !knownKeys[key] {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns the explicit path, else the first of clasql.yaml
// and clasql.yml in the working directory, else "".
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolve fills the paths derived from DataDir.
func (c *Config) resolve() {
	if c.SpiderDir == "" {
		c.SpiderDir = filepath.Join(c.DataDir, "spider_data")
	}
	if c.ExcludeTokens == "" {
		candidate := filepath.Join(c.DataDir, "sql_exclude_tokens.txt")
		if _, err := os.Stat(candidate); err == nil {
			c.ExcludeTokens = candidate
		}
	}
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	if _, err := dataset.ParseSplit(c.Split); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := querysql.ParseMode(c.RenderMode); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := model.New(c.Model, c.Seed); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Decoder {
	case DecoderReference, DecoderFull:
	default:
		return fmt.Errorf("invalid config: unknown decoder %q (want %s or %s)", c.Decoder, DecoderReference, DecoderFull)
	}
	if c.MaxLength < 2 {
		return fmt.Errorf("invalid config: max_length must be at least 2, got %d", c.MaxLength)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid config: workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// SplitValue returns Split parsed. Validate has already accepted it.
func (c *Config) SplitValue() dataset.Split {
	s, _ := dataset.ParseSplit(c.Split)
	return s
}

// Mode returns RenderMode parsed. Validate has already accepted it.
func (c *Config) Mode() querysql.Mode {
	m, _ := querysql.ParseMode(c.RenderMode)
	return m
}
