package geometry

import (
	"fmt"
	"image"
	"math"
)

// Interior angle bounds, in degrees, for a plausible document outline. Perspective
// can skew a right angle a long way, so only near-collinear corners are rejected.
const (
	MinCornerAngle = 20.0
	MaxCornerAngle = 160.0
)

// Quad is a four-vertex polygon. Point order is whatever produced it until
// Ordered is called.
type Quad [4]Point2D

// QuadFromImagePoints builds a Quad from exactly four integer points.
func QuadFromImagePoints(pts []image.Point) (Quad, error) {
	var q Quad
	if len(pts) != 4 {
		return q, fmt.Errorf("quad needs 4 points, got %d", len(pts))
	}
	for i, p := range pts {
		q[i] = FromImagePoint(p)
	}
	return q, nil
}

// Scale returns the quad with every coordinate multiplied by factor.
func (q Quad) Scale(factor float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = p.Scale(factor)
	}
	return out
}

// Area returns the absolute shoelace area of the quad in its current vertex order.
func (q Quad) Area() float64 {
	return PolygonArea(q[:])
}

// Ordered returns the corners as top-left, top-right, bottom-right, bottom-left.
//
// The labeling depends only on coordinates: top-left minimizes x+y, bottom-right
// maximizes x+y, top-right minimizes y-x and bottom-left maximizes y-x. Ties on the
// sum go to the smaller y for top-left and the larger y for bottom-right; ties on the
// difference go to the larger x for top-right and the smaller x for bottom-left. A
// page turned 45 degrees therefore still gets four distinct corners, in clockwise
// order, whatever order its points came in.
func (q Quad) Ordered() Quad {
	return Quad{
		q.extreme(func(a, b Point2D) bool {
			sa, sb := a.X+a.Y, b.X+b.Y
			return sa < sb || sa == sb && a.Y < b.Y
		}),
		q.extreme(func(a, b Point2D) bool {
			da, db := a.Y-a.X, b.Y-b.X
			return da < db || da == db && a.X > b.X
		}),
		q.extreme(func(a, b Point2D) bool {
			sa, sb := a.X+a.Y, b.X+b.Y
			return sa > sb || sa == sb && a.Y > b.Y
		}),
		q.extreme(func(a, b Point2D) bool {
			da, db := a.Y-a.X, b.Y-b.X
			return da > db || da == db && a.X < b.X
		}),
	}
}

// extreme returns the point that beats every other under better.
func (q Quad) extreme(better func(a, b Point2D) bool) Point2D {
	best := q[0]
	for _, p := range q[1:] {
		if better(p, best) {
			best = p
		}
	}
	return best
}

// InteriorAngles returns the angle in degrees at each vertex, measured between the
// edges to its two neighbors. Angle i belongs to vertex (i+1)%4. ok is false when two
// adjacent vertices coincide.
func (q Quad) InteriorAngles() (angles [4]float64, ok bool) {
	for i := 0; i < 4; i++ {
		p1 := q[i]
		p2 := q[(i+1)%4]
		p3 := q[(i+2)%4]

		v1 := p1.Sub(p2)
		v2 := p3.Sub(p2)
		n1, n2 := v1.Norm(), v2.Norm()
		if n1 == 0 || n2 == 0 {
			return angles, false
		}

		cos := v1.Dot(v2) / (n1 * n2)
		cos = math.Max(-1, math.Min(1, cos))
		angles[i] = math.Acos(cos) * 180 / math.Pi
	}
	return angles, true
}

// IsValidShape reports whether every interior angle lies strictly between
// MinCornerAngle and MaxCornerAngle.
func (q Quad) IsValidShape() bool {
	angles, ok := q.InteriorAngles()
	if !ok {
		return false
	}
	for _, a := range angles {
		if a <= MinCornerAngle || a >= MaxCornerAngle {
			return false
		}
	}
	return true
}

// String formats the quad for logs.
func (q Quad) String() string {
	return fmt.Sprintf("[(%.1f,%.1f) (%.1f,%.1f) (%.1f,%.1f) (%.1f,%.1f)]",
		q[0].X, q[0].Y, q[1].X, q[1].Y, q[2].X, q[2].Y, q[3].X, q[3].Y)
}
