package scan

import (
	"log/slog"

	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/pkg/geometry"
)

// CornerMargin is how far, in pixels, a corner may sit outside the frame. Perspective
// can push a true page corner just past the visible edge.
const CornerMargin = 50.0

// ValidateCorners checks a detected quadrilateral against the full-resolution frame:
// every corner within CornerMargin of the frame bounds and enclosed area between
// MinAreaRatio and MaxAreaRatio of the frame. Scaling and polygon approximation can
// move the area slightly from what the contour selector measured, so the ratio is
// checked again here.
func ValidateCorners(q geometry.Quad, frame geometry.Size, log *slog.Logger) bool {
	log = logging.OrDiscard(log)
	w, h := float64(frame.Width), float64(frame.Height)
	if w <= 0 || h <= 0 {
		log.Warn("corner validation on empty frame", "width", frame.Width, "height", frame.Height)
		return false
	}

	for i, p := range q {
		if p.X < -CornerMargin || p.X > w+CornerMargin || p.Y < -CornerMargin || p.Y > h+CornerMargin {
			log.Info("corner out of bounds", "corner", i, "x", p.X, "y", p.Y)
			return false
		}
	}

	ratio := q.Area() / frame.Area()
	if ratio < MinAreaRatio {
		log.Info("document area too small", "area_ratio", ratio)
		return false
	}
	if ratio > MaxAreaRatio {
		log.Info("document area too large", "area_ratio", ratio)
		return false
	}

	log.Debug("corners validated", "area_ratio", ratio)
	return true
}
