// Package scan locates the outline of a photographed document.
//
// Detection runs a fixed, ordered list of strategies. Each strategy downsamples the
// frame to WorkingHeight, derives one or more binary maps with its own technique and
// hands them to a shared contour selector. The first strategy to produce a valid
// quadrilateral wins; corners are always reported at original-frame resolution.
package scan

import (
	"log/slog"

	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/pkg/geometry"

	"gocv.io/x/gocv"
)

// LocateFunc searches a BGR frame for a document quadrilateral. It must not modify
// frame.
type LocateFunc func(frame gocv.Mat, log *slog.Logger) (geometry.Quad, bool)

// Strategy is a named detection technique.
type Strategy struct {
	Name   string
	Locate LocateFunc
}

// DefaultStrategies returns the detection strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "edge-detection", Locate: EdgeDetection},
		{Name: "adaptive-threshold", Locate: AdaptiveThreshold},
		{Name: "color-segmentation", Locate: ColorSegmentation},
		{Name: "morphological", Locate: Morphological},
	}
}

// Detection is a located document outline.
type Detection struct {
	Corners  geometry.Quad
	Strategy string
}

// Scanner runs strategies in order until one finds the document. A Scanner holds
// no per-call state and may be used concurrently.
type Scanner struct {
	strategies []Strategy
	log        *slog.Logger
}

// NewScanner returns a scanner using DefaultStrategies.
func NewScanner(log *slog.Logger) *Scanner {
	return NewScannerWithStrategies(log, DefaultStrategies()...)
}

// NewScannerWithStrategies returns a scanner that tries the given strategies in order.
func NewScannerWithStrategies(log *slog.Logger, strategies ...Strategy) *Scanner {
	return &Scanner{
		strategies: strategies,
		log:        logging.OrDiscard(log),
	}
}

// Strategies returns the strategy names in the order they are tried.
func (s *Scanner) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name
	}
	return names
}

// Locate returns the first quadrilateral found. ok is false only when every
// strategy, including all of its internal parameter sweeps, came up empty.
func (s *Scanner) Locate(frame gocv.Mat) (Detection, bool) {
	if frame.Empty() {
		return Detection{}, false
	}

	for _, st := range s.strategies {
		log := s.log.With("strategy", st.Name)
		corners, ok := st.Locate(frame, log)
		if !ok {
			log.Debug("strategy found nothing")
			continue
		}
		log.Info("document corners found", "corners", corners.String())
		return Detection{Corners: corners, Strategy: st.Name}, true
	}

	s.log.Info("all strategies failed to find document corners")
	return Detection{}, false
}
