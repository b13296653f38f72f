package extract

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf-pages/internal/config"
	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/observability"
	"github.com/spherical/pdf-pages/internal/pdf"
	"github.com/spherical/pdf-pages/internal/record"
)

// Options controls where and how the output document is produced.
type Options struct {
	ImagesDir  string
	OutputPath string
	Format     record.Format
	KeyPolicy  record.KeyPolicy
	// Parallel runs the image and text stages concurrently.
	Parallel bool
}

var _ domain.Pipeline = (*Service)(nil)

// Service orchestrates the extraction process
type Service struct {
	images    domain.ImageExtractor
	text      domain.TextExtractor
	opts      Options
	validator *pdf.Validator
	logger    *observability.Logger
}

// NewService creates a new extraction service
func NewService(images domain.ImageExtractor, text domain.TextExtractor, opts Options, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		images:    images,
		text:      text,
		opts:      opts,
		validator: pdf.NewValidator(logger),
		logger:    logger,
	}
}

// NewServiceFromConfig wires the pdfcpu image stage and the configured text
// engine for cfg.
func NewServiceFromConfig(cfg *config.Config, logger *observability.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	text, err := pdf.NewTextExtractor(cfg.TextEngine, pdf.TextOptions{Strict: cfg.StrictText, Logger: logger})
	if err != nil {
		return nil, err
	}

	return NewService(
		pdf.NewImageExtractor(cfg.ImagesPath(), logger),
		text,
		Options{
			ImagesDir:  cfg.ImagesPath(),
			OutputPath: cfg.OutputPath(),
			Format:     record.Format(cfg.Format),
			KeyPolicy:  record.KeyPolicy(cfg.KeyPolicy),
			Parallel:   cfg.Parallel,
		},
		logger,
	), nil
}

// Process handles the complete workflow: images, text, then the output
// document. Any stage failure aborts the run; nothing is rolled back.
func (s *Service) Process(ctx context.Context, pdfPath string, eventCh chan<- domain.StreamEvent) (*domain.Result, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.WithRun(runID)
	events := newEventSink(eventCh, logger)

	events.emit(domain.StreamEvent{
		Type:    domain.EventStart,
		Payload: fmt.Sprintf("Starting extraction of %s", pdfPath),
	})

	// Fail before images are written or the output directory is touched.
	if err := s.validator.ValidatePDFPath(pdfPath); err != nil {
		return nil, fail(events, logger, err)
	}

	logger.Info().Str("input", pdfPath).Bool("parallel", s.opts.Parallel).Msg("Processing PDF")

	images, text, err := s.extractAll(ctx, pdfPath, events, logger)
	if err != nil {
		return nil, fail(events, logger, err)
	}

	mismatch := record.Compare(text, images)
	if !mismatch.Empty() {
		logger.Warn().
			Ints("text_only", mismatch.TextOnly).
			Ints("image_only", mismatch.ImageOnly).
			Str("key_policy", string(s.keyPolicy())).
			Msg("stages disagree on page set")
	}

	events.emit(domain.StreamEvent{Type: domain.EventStageStart, Stage: domain.StageBuild})
	doc := record.Build(text, images, s.keyPolicy())
	if err := record.Write(s.opts.OutputPath, doc, s.format()); err != nil {
		return nil, fail(events, logger, err)
	}
	events.emit(domain.StreamEvent{
		Type:       domain.EventStageComplete,
		Stage:      domain.StageBuild,
		TotalPages: len(doc),
	})

	result := &domain.Result{
		RunID:      runID,
		Source:     domain.Document{FilePath: pdfPath, TotalPages: len(text)},
		Mismatch:   mismatch,
		OutputPath: s.opts.OutputPath,
		ImagesDir:  s.opts.ImagesDir,
		Document:   doc,
		ImageCount: countImages(doc),
		Duration:   time.Since(startTime),
	}

	logger.Info().
		Int("pages", len(doc)).
		Int("images", result.ImageCount).
		Dur("duration", result.Duration).
		Int64("dropped_events", events.dropped.Load()).
		Str("output", result.OutputPath).
		Msg("Extraction complete")

	events.emit(domain.StreamEvent{
		Type:       domain.EventComplete,
		TotalPages: len(doc),
		Payload:    result.OutputPath,
	})

	return result, nil
}

// extractAll runs both extraction stages, one after the other or concurrently.
func (s *Service) extractAll(ctx context.Context, pdfPath string, events *eventSink, logger *observability.Logger) (domain.ImageMap, domain.TextMap, error) {
	var (
		images domain.ImageMap
		text   domain.TextMap
	)

	imageStage := func(ctx context.Context) error {
		var err error
		images, err = runStage(events, logger, domain.StageImages, func(onPage domain.PageFunc) (domain.ImageMap, error) {
			return s.images.Extract(ctx, pdfPath, onPage)
		})
		return err
	}
	textStage := func(ctx context.Context) error {
		var err error
		text, err = runStage(events, logger, domain.StageText, func(onPage domain.PageFunc) (domain.TextMap, error) {
			return s.text.Extract(ctx, pdfPath, onPage)
		})
		return err
	}

	if !s.opts.Parallel {
		if err := imageStage(ctx); err != nil {
			return nil, nil, err
		}
		if err := textStage(ctx); err != nil {
			return nil, nil, err
		}
		return images, text, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return imageStage(gctx) })
	g.Go(func() error { return textStage(gctx) })
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return images, text, nil
}

// runStage wraps one extraction stage with its events and timing.
func runStage[M ~map[int]V, V any](events *eventSink, logger *observability.Logger, stage domain.Stage, run func(domain.PageFunc) (M, error)) (M, error) {
	start := time.Now()
	events.emit(domain.StreamEvent{Type: domain.EventStageStart, Stage: stage})

	out, err := run(func(page, total int) {
		events.emit(domain.StreamEvent{
			Type:       domain.EventPageDone,
			Stage:      stage,
			PageNumber: page,
			TotalPages: total,
		})
	})
	if err != nil {
		var zero M
		return zero, fmt.Errorf("%s stage: %w", stage, err)
	}

	logger.Debug().Str("stage", string(stage)).Int("pages", len(out)).Dur("duration", time.Since(start)).Msg("stage finished")
	events.emit(domain.StreamEvent{Type: domain.EventStageComplete, Stage: stage, TotalPages: len(out)})
	return out, nil
}

func (s *Service) keyPolicy() record.KeyPolicy {
	if s.opts.KeyPolicy == "" {
		return record.KeysText
	}
	return s.opts.KeyPolicy
}

func (s *Service) format() record.Format {
	if s.opts.Format == "" {
		return record.FormatJSON
	}
	return s.opts.Format
}

func fail(events *eventSink, logger *observability.Logger, err error) error {
	logger.Error().Err(err).Str("error_type", string(domain.TypeOf(err))).Msg("Extraction failed")
	events.emitError(err)
	return err
}

func countImages(doc domain.OutputDocument) int {
	n := 0
	for _, rec := range doc {
		n += len(rec.Images)
	}
	return n
}

// eventSink delivers the events of one run without ever blocking it.
type eventSink struct {
	ch      chan<- domain.StreamEvent
	logger  *observability.Logger
	dropped atomic.Int64
}

func newEventSink(ch chan<- domain.StreamEvent, logger *observability.Logger) *eventSink {
	return &eventSink{ch: ch, logger: logger}
}

// emit safely emits an event to the channel. Only the first dropped event of
// a run is logged; the total is reported when the run completes.
func (e *eventSink) emit(event domain.StreamEvent) {
	if e.ch == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.ch <- event:
	default:
		if e.dropped.Add(1) == 1 {
			e.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping events")
		}
	}
}

// emitError emits an error event
func (e *eventSink) emitError(err error) {
	e.emit(domain.StreamEvent{
		Type:    domain.EventError,
		Payload: err.Error(),
	})
}
