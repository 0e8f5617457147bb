package scan

import (
	"log/slog"
	"sort"

	"github.com/Mocca-flames/flame-pdf/pkg/geometry"

	"gocv.io/x/gocv"
)

// Contour selection limits. Areas are fractions of the working frame.
const (
	maxCandidates = 15
	MinAreaRatio  = 0.05
	MaxAreaRatio  = 0.98
)

// approxEpsilons are polygon approximation tolerances as fractions of the contour
// perimeter, tried from tightest to loosest.
var approxEpsilons = []float64{0.02, 0.03, 0.04, 0.05, 0.06}

// selectQuad finds the first quadrilateral outline in a binary map.
//
// Contours are ranked by area and only the largest maxCandidates are considered.
// A contour qualifies when some approximation tolerance reduces it to exactly four
// vertices whose interior angles pass Quad.IsValidShape after scaling by ratio back
// to original-frame coordinates.
func selectQuad(binary gocv.Mat, working geometry.Size, ratio float64, log *slog.Logger) (geometry.Quad, bool) {
	contours := gocv.FindContours(binary, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return geometry.Quad{}, false
	}

	type ranked struct {
		index int
		area  float64
	}
	candidates := make([]ranked, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		candidates[i] = ranked{index: i, area: gocv.ContourArea(contours.At(i))}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	frameArea := working.Area()
	for _, c := range candidates {
		contour := contours.At(c.index)
		if contour.Size() < 4 {
			continue
		}
		if c.area < frameArea*MinAreaRatio || c.area > frameArea*MaxAreaRatio {
			continue
		}

		perimeter := gocv.ArcLength(contour, true)
		if perimeter == 0 {
			continue
		}

		for _, eps := range approxEpsilons {
			if q, ok := approxQuad(contour, eps*perimeter, ratio); ok {
				log.Debug("quadrilateral found",
					"area_ratio", c.area/frameArea,
					"epsilon", eps,
					"corners", q.String())
				return q, true
			}
		}
	}

	return geometry.Quad{}, false
}

// approxQuad simplifies contour with the given tolerance and returns the result
// scaled to original resolution when it is a geometrically valid quadrilateral.
func approxQuad(contour gocv.PointVector, epsilon, ratio float64) (geometry.Quad, bool) {
	approx := gocv.ApproxPolyDP(contour, epsilon, true)
	defer approx.Close()

	if approx.Size() != 4 {
		return geometry.Quad{}, false
	}

	q, err := geometry.QuadFromImagePoints(approx.ToPoints())
	if err != nil {
		return geometry.Quad{}, false
	}
	q = q.Scale(ratio)
	if !q.IsValidShape() {
		return geometry.Quad{}, false
	}
	return q, true
}
