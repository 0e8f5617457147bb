// Package rectify flattens a detected document to a top-down view.
package rectify

import (
	"errors"
	"fmt"
	"image"

	"github.com/Mocca-flames/flame-pdf/pkg/geometry"

	"gocv.io/x/gocv"
)

// MinSide is the smallest width or height a rectified page can have.
const MinSide = 100

// ErrEmptyFrame is returned when there is nothing to warp.
var ErrEmptyFrame = errors.New("rectify: empty frame")

// OutputSize returns the size of the rectified page for canonically ordered corners:
// the longer of the top and bottom edges by the longer of the left and right edges,
// each truncated to whole pixels and floored at MinSide.
func OutputSize(ordered geometry.Quad) geometry.Size {
	tl, tr, br, bl := ordered[0], ordered[1], ordered[2], ordered[3]

	width := max(int(br.Distance(bl)), int(tr.Distance(tl)))
	height := max(int(tr.Distance(br)), int(tl.Distance(bl)))

	return geometry.Size{
		Width:  max(width, MinSide),
		Height: max(height, MinSide),
	}
}

// Plan is the geometry of one rectification: the canonical source corners, the
// output size and the transform from source to output pixels.
type Plan struct {
	Corners    geometry.Quad
	Size       geometry.Size
	Homography geometry.Homography
}

// NewPlan orders the corners and solves the transform onto the output rectangle
// (0,0) (w-1,0) (w-1,h-1) (0,h-1).
func NewPlan(corners geometry.Quad) (Plan, error) {
	ordered := corners.Ordered()
	size := OutputSize(ordered)

	right, bottom := float64(size.Width-1), float64(size.Height-1)
	dst := geometry.Quad{{X: 0, Y: 0}, {X: right, Y: 0}, {X: right, Y: bottom}, {X: 0, Y: bottom}}

	h, err := geometry.ComputeHomography(ordered, dst)
	if err != nil {
		return Plan{}, fmt.Errorf("rectify: corners %s: %w", ordered, err)
	}
	return Plan{Corners: ordered, Size: size, Homography: h}, nil
}

// Rectify warps the document bounded by corners into a newly allocated frame.
//
// frame is only read. On error the caller keeps using the original frame; a failed
// rectification is a degraded result, not a failed scan.
func Rectify(frame gocv.Mat, corners geometry.Quad) (gocv.Mat, Plan, error) {
	if frame.Empty() {
		return gocv.NewMat(), Plan{}, ErrEmptyFrame
	}

	plan, err := NewPlan(corners)
	if err != nil {
		return gocv.NewMat(), Plan{}, err
	}

	m := homographyMat(plan.Homography)
	defer m.Close()

	// warpPerspective samples the source through the inverse of m.
	warped := gocv.NewMat()
	gocv.WarpPerspective(frame, &warped, m, image.Pt(plan.Size.Width, plan.Size.Height))
	if warped.Empty() {
		warped.Close()
		return gocv.NewMat(), plan, fmt.Errorf("rectify: warp produced no output for %dx%d", plan.Size.Width, plan.Size.Height)
	}

	return warped, plan, nil
}

func homographyMat(h geometry.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h[r][c])
		}
	}
	return m
}
