package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spherical/pdf-pages/cmd/pdf-pages/ui"
	"github.com/spherical/pdf-pages/internal/config"
	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/observability"
	"github.com/spherical/pdf-pages/pkg/extractor"
)

// flagKeys maps extract flags onto configuration keys.
var flagKeys = map[string]string{
	"output-dir":  "output_dir",
	"images-dir":  "images_dir",
	"output-file": "output_file",
	"format":      "format",
	"text-engine": "text_engine",
	"keys":        "key_policy",
	"parallel":    "parallel",
	"strict-text": "strict_text",
	"log-format":  "log.format",
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	v := viper.New()
	d := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "extract [pdf]",
		Short: "Extract per-page text and images from a PDF",
		Long: `Extract writes every embedded image to <output-dir>/<images-dir> as
page<N>_image<M>.<ext>, reads each page's text, and writes the joined records
to <output-dir>/<output-file>. The PDF path may also come from the config
file or PDF_PAGES_INPUT.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, root, v)
		},
	}

	f := cmd.Flags()
	f.StringP("output-dir", "o", d.OutputDir, "directory for the output document and images")
	f.String("images-dir", d.ImagesDir, "images directory, relative to output-dir unless absolute")
	f.String("output-file", d.OutputFile, "output document name, relative to output-dir unless absolute")
	f.StringP("format", "f", d.Format, "output format: json or yaml")
	f.String("text-engine", d.TextEngine, "text engine: fitz (layout-aware) or plain")
	f.String("keys", d.KeyPolicy, "which pages make it into the output: text, union or intersect")
	f.Bool("parallel", d.Parallel, "run the image and text stages concurrently")
	f.Bool("strict-text", d.StrictText, "fail on unreadable page text instead of recording it as empty")
	f.String("log-format", d.Log.Format, "log format: console or json")

	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func runExtract(cmd *cobra.Command, args []string, root *rootOptions, v *viper.Viper) error {
	ui.InitUI(root.noColor, root.verbose)
	ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())

	if root.verbose {
		v.Set("log.level", "debug")
	}

	cfg, err := config.Load(v, root.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(args) == 1 {
		cfg.Input = args[0]
	}
	if cfg.Input == "" {
		return domain.ValidationError("PDF file path is required (pass it as an argument or set input)", nil)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cmd.ErrOrStderr(),
		ServiceName: "pdf-pages",
	})

	client, err := extractor.NewClientWithConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Section("PDF Extraction")
	ui.Info("PDF file: %s", cfg.Input)
	ui.Info("Output file: %s", cfg.OutputPath())
	ui.Info("Images directory: %s", cfg.ImagesPath())
	if ui.Verbose() {
		ui.KeyValue("Text engine", cfg.TextEngine)
		ui.KeyValue("Key policy", cfg.KeyPolicy)
		ui.KeyValue("Format", cfg.Format)
		ui.KeyValue("Parallel", strconv.FormatBool(cfg.Parallel))
		ui.KeyValue("Strict text", strconv.FormatBool(cfg.StrictText))
	}
	ui.Newline()

	events, done := client.Stream(ctx, cfg.Input)
	ui.TrackProgress(events, cfg.Parallel)
	outcome := <-done
	if outcome.Err != nil {
		return fmt.Errorf("extraction failed: %w", outcome.Err)
	}
	result := outcome.Result

	ui.Section("Extraction Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Pages", strconv.Itoa(len(result.Document))},
		{"Images", strconv.Itoa(result.ImageCount)},
		{"Duration", ui.FormatDuration(result.Duration)},
		{"Run ID", result.RunID},
	})
	if m := result.Mismatch; !m.Empty() {
		ui.Newline()
		ui.Warning("Text and image stages saw different pages (key policy %q): text only %v, images only %v",
			cfg.KeyPolicy, m.TextOnly, m.ImageOnly)
	}
	ui.Newline()
	ui.Success("%s created at %s", strings.ToUpper(cfg.Format), result.OutputPath)

	return nil
}
