// Package pipeline turns the bytes of a photographed document into a flattened,
// enhanced page.
package pipeline

import (
	"image"
	"log/slog"

	"github.com/Mocca-flames/flame-pdf/internal/cvutil"
	"github.com/Mocca-flames/flame-pdf/internal/enhance"
	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/internal/rectify"
	"github.com/Mocca-flames/flame-pdf/internal/scan"
	"github.com/Mocca-flames/flame-pdf/pkg/geometry"

	"gocv.io/x/gocv"
)

// Result is the outcome of processing one image.
type Result struct {
	Image image.Image

	// Transformed is true when document corners were found, validated and used for
	// rectification. False means the image is the enhanced original.
	Transformed bool

	// Strategy names the detector that found the corners.
	Strategy string
	// Corners are the canonically ordered corners in original-frame pixels, or nil.
	Corners *geometry.Quad
}

// Processor runs detection, rectification and enhancement. It holds no per-call
// state and is safe for concurrent use.
type Processor struct {
	scanner *scan.Scanner
	log     *slog.Logger
}

// NewProcessor returns a processor using the default detection strategies.
func NewProcessor(log *slog.Logger) *Processor {
	log = logging.OrDiscard(log)
	return NewProcessorWithScanner(log, scan.NewScanner(log))
}

// NewProcessorWithScanner returns a processor using the given scanner.
func NewProcessorWithScanner(log *slog.Logger, scanner *scan.Scanner) *Processor {
	return &Processor{
		scanner: scanner,
		log:     logging.OrDiscard(log),
	}
}

// Process decodes data and returns the best page it can produce. The only error
// is a *DecodeError; every failure after decoding degrades to a usable image.
func (p *Processor) Process(data []byte) (*Result, error) {
	original, frame, err := decode(data)
	if err != nil {
		p.log.Warn("failed to decode image", "bytes", len(data), "error", err)
		return nil, err
	}
	defer frame.Close()

	p.log.Debug("image loaded", "width", frame.Cols(), "height", frame.Rows())
	return p.processFrame(original, frame), nil
}

func (p *Processor) processFrame(original image.Image, frame gocv.Mat) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("processing panicked, returning original", "panic", r)
			res = &Result{Image: original}
		}
	}()

	size := geometry.Size{Width: frame.Cols(), Height: frame.Rows()}

	det, found := p.scanner.Locate(frame)
	if found && scan.ValidateCorners(det.Corners, size, p.log) {
		return p.flatten(original, frame, det)
	}
	if found {
		p.log.Info("corner validation failed", "strategy", det.Strategy)
	}

	p.log.Info("no usable document outline, enhancing original")
	enhanced := enhance.Aggressive(frame, p.log)
	defer enhanced.Close()

	return &Result{Image: p.toImage(enhanced, original)}
}

func (p *Processor) flatten(original image.Image, frame gocv.Mat, det scan.Detection) *Result {
	corners := det.Corners.Ordered()

	warped, plan, err := rectify.Rectify(frame, det.Corners)
	if err != nil {
		// The corners were good enough to trust, so the page still counts as transformed.
		p.log.Warn("perspective transform failed, using original frame", "error", err)
		warped.Close()
		warped = frame.Clone()
	} else {
		corners = plan.Corners
		p.log.Debug("perspective transform complete", "width", plan.Size.Width, "height", plan.Size.Height)
	}
	defer warped.Close()

	enhanced := enhance.Standard(warped, p.log)
	defer enhanced.Close()

	p.log.Info("document scanned and transformed", "strategy", det.Strategy)
	return &Result{
		Image:       p.toImage(enhanced, original),
		Transformed: true,
		Strategy:    det.Strategy,
		Corners:     &corners,
	}
}

func (p *Processor) toImage(m gocv.Mat, original image.Image) image.Image {
	img, err := cvutil.MatToImage(m)
	if err != nil {
		p.log.Error("failed to convert result, returning original", "error", err)
		return original
	}
	return img
}
