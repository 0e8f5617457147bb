// Package service turns a directory of uploaded page photos into a single PDF.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/assemble"
	"github.com/Mocca-flames/flame-pdf/internal/config"
	"github.com/Mocca-flames/flame-pdf/internal/ingest"
	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/internal/pipeline"

	"github.com/disintegration/imaging"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// Processor rectifies one encoded page photo.
type Processor interface {
	Process(data []byte) (*pipeline.Result, error)
}

// Builder assembles page images into a document.
type Builder interface {
	Build(ctx context.Context, images []string, out string) (assemble.Stats, error)
}

// Request identifies a batch directory.
type Request struct {
	ID       string
	UserID   string
	ImageDir string
}

// Result is the outcome of a batch.
type Result struct {
	// UseDemo is set when the placeholder policy rejected the batch; PlaceholderPath
	// then names the image to show instead and no document was written.
	UseDemo         bool
	PlaceholderPath string

	PDFPath     string
	PageCount   int
	FileSize    int64
	Transformed int
}

// Service runs batches. It is safe for concurrent use as long as concurrent
// requests name different directories.
type Service struct {
	cfg       *config.Config
	processor Processor
	builder   Builder
	log       *slog.Logger
}

// New returns a service.
func New(cfg *config.Config, processor Processor, builder Builder, log *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		processor: processor,
		builder:   builder,
		log:       logging.OrDiscard(log),
	}
}

// Generate waits for the batch in req.ImageDir to be complete, processes every
// page image and assembles the results according to the partial-batch policy.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ImageDir) == "" {
		return nil, fmt.Errorf("%w: imageDir is required", ErrInvalidRequest)
	}
	log := s.log.With("request_id", req.ID, "user_id", req.UserID, "dir", req.ImageDir)
	start := time.Now()

	if err := ingest.WaitReady(ctx, req.ImageDir, s.cfg.Ingest.ReadyMarker, s.cfg.Ingest.ReadyTimeout); err != nil {
		return nil, err
	}

	sources, err := ingest.Collect(req.ImageDir, s.cfg.Ingest.Patterns)
	if err != nil {
		return nil, err
	}
	log.Info("batch ready", "images", len(sources))

	processed := make([]string, 0, len(sources))
	transformed := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, ok, err := s.processFile(src, log)
		if err != nil {
			return nil, err
		}
		processed = append(processed, out)
		if ok {
			transformed++
		}
	}

	if transformed < len(sources) && s.cfg.Output.Partial == config.PartialPlaceholder {
		log.Info("batch has untransformed pages, answering with placeholder",
			"transformed", transformed, "images", len(sources))
		return &Result{
			UseDemo:         true,
			PlaceholderPath: s.cfg.Output.Placeholder,
			Transformed:     transformed,
		}, nil
	}

	pdfPath := filepath.Join(req.ImageDir, s.cfg.Output.PDFName)
	stats, err := s.builder.Build(ctx, processed, pdfPath)
	if err != nil {
		return nil, err
	}

	if s.cfg.Ingest.Cleanup {
		garbage := append(append([]string{}, sources...), processed...)
		garbage = append(garbage, filepath.Join(req.ImageDir, s.cfg.Ingest.ReadyMarker))
		if err := ingest.Cleanup(garbage...); err != nil {
			log.Warn("cleanup incomplete", "error", err)
		}
	}

	log.Info("batch complete", "pages", stats.Pages, "bytes", stats.Size,
		"transformed", transformed, "elapsed", time.Since(start))
	return &Result{
		PDFPath:     pdfPath,
		PageCount:   stats.Pages,
		FileSize:    stats.Size,
		Transformed: transformed,
	}, nil
}

// processFile processes src and saves the page as PNG next to it.
func (s *Service) processFile(src string, log *slog.Logger) (string, bool, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", src, err)
	}

	res, err := s.processor.Process(data)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", filepath.Base(src), err)
	}

	out := ProcessedPath(src)
	if err := imaging.Save(res.Image, out); err != nil {
		return "", false, fmt.Errorf("failed to save %s: %w", out, err)
	}

	log.Debug("page processed", "source", filepath.Base(src), "transformed", res.Transformed, "strategy", res.Strategy)
	return out, res.Transformed, nil
}

// ProcessedPath names the PNG written for a source image: img_1.jpg becomes
// processed_img_1.jpg.png and img_1.png becomes processed_img_1.png.
func ProcessedPath(src string) string {
	name := "processed_" + filepath.Base(src)
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		name += ".png"
	}
	return filepath.Join(filepath.Dir(src), name)
}
