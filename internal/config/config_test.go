package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-pages/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "images", cfg.ImagesDir)
	assert.Equal(t, "content.json", cfg.OutputFile)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, EngineFitz, cfg.TextEngine)
	assert.Equal(t, KeysText, cfg.KeyPolicy)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, filepath.Join("output", "images"), cfg.ImagesPath())
	assert.Equal(t, filepath.Join("output", "content.json"), cfg.OutputPath())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", `
input: brochure.pdf
output_dir: out
images_dir: pics
output_file: pages.yaml
format: YAML
text_engine: plain
key_policy: union
parallel: true
log:
  level: debug
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "brochure.pdf", cfg.Input)
	assert.Equal(t, filepath.Join("out", "pics"), cfg.ImagesPath())
	assert.Equal(t, filepath.Join("out", "pages.yaml"), cfg.OutputPath())
	assert.Equal(t, FormatYAML, cfg.Format)
	assert.Equal(t, EnginePlain, cfg.TextEngine)
	assert.Equal(t, KeysUnion, cfg.KeyPolicy)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PDF_PAGES_OUTPUT_DIR", "/tmp/pages")
	t.Setenv("PDF_PAGES_STRICT_TEXT", "true")
	t.Setenv("PDF_PAGES_LOG_LEVEL", "warn")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/pages", cfg.OutputDir)
	assert.True(t, cfg.StrictText)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DiscoversWorkingDirFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pdf-pages.yaml", "output_file: found.json\n")
	t.Chdir(dir)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "found.json", cfg.OutputFile)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing explicit file", path: filepath.Join(dir, "nope.yaml")},
		{name: "invalid yaml", path: writeFile(t, dir, "bad.yaml", "{{{bad")},
		{name: "invalid format", path: writeFile(t, dir, "fmt.yaml", "format: xml\n")},
		{name: "invalid engine", path: writeFile(t, dir, "eng.yaml", "text_engine: ocr\n")},
		{name: "invalid key policy", path: writeFile(t, dir, "keys.yaml", "key_policy: images\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), tt.path)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig), "got %v", err)
		})
	}
}

func TestValidate_EmptyPaths(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"output dir", func(c *Config) { c.OutputDir = " " }},
		{"images dir", func(c *Config) { c.ImagesDir = "" }},
		{"output file", func(c *Config) { c.OutputFile = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAbsolutePathsBypassOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImagesDir = "/var/images"
	cfg.OutputFile = "/var/doc.json"

	assert.Equal(t, "/var/images", cfg.ImagesPath())
	assert.Equal(t, "/var/doc.json", cfg.OutputPath())
}
