// Package config provides configuration loading for pdf-pages.
// Supports YAML files, a .env file, PDF_PAGES_* environment variables and
// flags bound onto the same viper instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spherical/pdf-pages/internal/domain"
)

// EnvPrefix is the prefix of environment overrides, e.g. PDF_PAGES_OUTPUT_DIR.
const EnvPrefix = "PDF_PAGES"

const (
	FormatJSON = "json"
	FormatYAML = "yaml"

	EngineFitz  = "fitz"
	EnginePlain = "plain"

	// KeysText iterates the text mapping's pages only; image-only pages are dropped.
	KeysText      = "text"
	KeysUnion     = "union"
	KeysIntersect = "intersect"
)

// Config holds all configuration for a run.
type Config struct {
	Input      string    `mapstructure:"input" yaml:"input"`
	OutputDir  string    `mapstructure:"output_dir" yaml:"output_dir"`
	ImagesDir  string    `mapstructure:"images_dir" yaml:"images_dir"`
	OutputFile string    `mapstructure:"output_file" yaml:"output_file"`
	Format     string    `mapstructure:"format" yaml:"format"`
	TextEngine string    `mapstructure:"text_engine" yaml:"text_engine"`
	KeyPolicy  string    `mapstructure:"key_policy" yaml:"key_policy"`
	Parallel   bool      `mapstructure:"parallel" yaml:"parallel"`
	StrictText bool      `mapstructure:"strict_text" yaml:"strict_text"`
	Log        LogConfig `mapstructure:"log" yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the layout the pipeline has always used:
// output/images for images and output/content.json for the document.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:  "output",
		ImagesDir:  "images",
		OutputFile: "content.json",
		Format:     FormatJSON,
		TextEngine: EngineFitz,
		KeyPolicy:  KeysText,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers DefaultConfig values on v so that environment
// variables are honoured for every key during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("input", d.Input)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("images_dir", d.ImagesDir)
	v.SetDefault("output_file", d.OutputFile)
	v.SetDefault("format", d.Format)
	v.SetDefault("text_engine", d.TextEngine)
	v.SetDefault("key_policy", d.KeyPolicy)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("strict_text", d.StrictText)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration into cfg from v. An explicit path must exist;
// otherwise pdf-pages.yaml is looked up in the working directory and
// ~/.config/pdf-pages, and its absence is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pdf-pages")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pdf-pages"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, domain.ConfigError("read config file", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, domain.ConfigError("decode config", err)
	}

	cfg.Format = strings.ToLower(cfg.Format)
	cfg.TextEngine = strings.ToLower(cfg.TextEngine)
	cfg.KeyPolicy = strings.ToLower(cfg.KeyPolicy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors. The input path itself is
// checked by the pipeline so that a missing file surfaces as a document error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return domain.ConfigError("output_dir cannot be empty", nil)
	}
	if strings.TrimSpace(c.ImagesDir) == "" {
		return domain.ConfigError("images_dir cannot be empty", nil)
	}
	if strings.TrimSpace(c.OutputFile) == "" {
		return domain.ConfigError("output_file cannot be empty", nil)
	}

	switch c.Format {
	case FormatJSON, FormatYAML:
	default:
		return domain.ConfigError(fmt.Sprintf("invalid format: %q (want json or yaml)", c.Format), nil)
	}

	switch c.TextEngine {
	case EngineFitz, EnginePlain:
	default:
		return domain.ConfigError(fmt.Sprintf("invalid text_engine: %q (want fitz or plain)", c.TextEngine), nil)
	}

	switch c.KeyPolicy {
	case KeysText, KeysUnion, KeysIntersect:
	default:
		return domain.ConfigError(fmt.Sprintf("invalid key_policy: %q (want text, union or intersect)", c.KeyPolicy), nil)
	}

	return nil
}

// ImagesPath returns the directory images are written to.
func (c *Config) ImagesPath() string {
	if filepath.IsAbs(c.ImagesDir) {
		return c.ImagesDir
	}
	return filepath.Join(c.OutputDir, c.ImagesDir)
}

// OutputPath returns the path of the output document.
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.OutputFile) {
		return c.OutputFile
	}
	return filepath.Join(c.OutputDir, c.OutputFile)
}
