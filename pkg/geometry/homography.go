package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when four point pairs do not define a perspective transform,
// typically because three of the source points are collinear.
var ErrSingular = errors.New("geometry: point correspondences are degenerate")

// Homography is a 3x3 projective transform in row-major order with H[2][2] = 1.
type Homography [3][3]float64

// ComputeHomography solves for the perspective transform mapping each src[i] to dst[i].
//
// With h33 fixed to 1, every correspondence gives two linear equations:
//
//	x' = (h11 x + h12 y + h13) / (h31 x + h32 y + 1)
//	y' = (h21 x + h22 y + h23) / (h31 x + h32 y + 1)
func ComputeHomography(src, dst Quad) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.SetRow(i*2, []float64{x, y, 1, 0, 0, 0, -x * xp, -y * xp})
		B.SetVec(i*2, xp)

		A.SetRow(i*2+1, []float64{0, 0, 0, x, y, 1, -x * yp, -y * yp})
		B.SetVec(i*2+1, yp)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	h := Homography{
		{params.AtVec(0), params.AtVec(1), params.AtVec(2)},
		{params.AtVec(3), params.AtVec(4), params.AtVec(5)},
		{params.AtVec(6), params.AtVec(7), 1},
	}
	for _, row := range h {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Homography{}, ErrSingular
			}
		}
	}
	return h, nil
}

// Apply maps a point through the transform. ok is false for points on the line at
// infinity.
func (h Homography) Apply(p Point2D) (Point2D, bool) {
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	if math.Abs(w) < 1e-12 {
		return Point2D{}, false
	}
	return Point2D{
		X: (h[0][0]*p.X + h[0][1]*p.Y + h[0][2]) / w,
		Y: (h[1][0]*p.X + h[1][1]*p.Y + h[1][2]) / w,
	}, true
}
