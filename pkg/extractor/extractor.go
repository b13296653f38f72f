// Package extractor is the public entry point for turning a PDF into
// per-page records.
package extractor

import (
	"context"

	"github.com/spf13/viper"

	"github.com/spherical/pdf-pages/internal/config"
	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/extract"
	"github.com/spherical/pdf-pages/internal/observability"
)

// Re-export event and result types for public API
type (
	StreamEvent    = domain.StreamEvent
	EventType      = domain.EventType
	Stage          = domain.Stage
	PageRecord     = domain.PageRecord
	OutputDocument = domain.OutputDocument
	Result         = domain.Result
	Config         = config.Config
)

// Event type constants
const (
	EventStart         = domain.EventStart
	EventStageStart    = domain.EventStageStart
	EventPageDone      = domain.EventPageDone
	EventStageComplete = domain.EventStageComplete
	EventError         = domain.EventError
	EventComplete      = domain.EventComplete
)

// Stage constants
const (
	StageImages = domain.StageImages
	StageText   = domain.StageText
	StageBuild  = domain.StageBuild
)

// Outcome is the final message on the channel returned by Client.Stream.
type Outcome struct {
	Result *Result
	Err    error
}

// Client is the main entry point for the extractor library
type Client struct {
	service *extract.Service
	config  *Config
}

// NewClient creates a client from defaults, an optional pdf-pages.yaml and
// PDF_PAGES_* environment variables. Logs go to stderr as configured.
func NewClient() (*Client, error) {
	cfg, err := config.Load(viper.New(), "")
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg, observability.NewLogger(observability.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "pdf-pages",
	}))
}

// NewClientWithConfig creates a client with explicit configuration. A nil
// logger discards all log output.
func NewClientWithConfig(cfg *Config, logger *observability.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.Nop()
	}

	service, err := extract.NewServiceFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Client{service: service, config: cfg}, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *Config {
	return c.config
}

// Process runs the pipeline on pdfPath and blocks until it finishes.
func (c *Client) Process(ctx context.Context, pdfPath string) (*Result, error) {
	return c.service.Process(ctx, pdfPath, nil)
}

// Stream runs the pipeline in the background. Progress events arrive on the
// first channel, which is closed when the run ends; the outcome is then
// delivered on the second.
func (c *Client) Stream(ctx context.Context, pdfPath string) (<-chan StreamEvent, <-chan Outcome) {
	eventCh := make(chan StreamEvent, 100)
	doneCh := make(chan Outcome, 1)

	go func() {
		defer close(doneCh)
		result, err := c.service.Process(ctx, pdfPath, eventCh)
		close(eventCh)
		doneCh <- Outcome{Result: result, Err: err}
	}()

	return eventCh, doneCh
}
