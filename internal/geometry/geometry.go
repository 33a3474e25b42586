// Package geometry implements the pure spatial math the pipeline needs:
// distance, bounding-box overlap, and ROI containment. None of it
// depends on any external framework, matching the dependency-free
// pure-math helpers the teacher keeps alongside its tracking code.
package geometry

import "math"

// Point is a 2D pixel coordinate.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X, Y, W, H float64
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}

// IoU returns the intersection-over-union of two rectangles in [0, 1].
func IoU(a, b Rect) float64 {
	ax2, ay2 := a.X+a.W, a.Y+a.H
	bx2, by2 := b.X+b.W, b.Y+b.H

	ix1, iy1 := math.Max(a.X, b.X), math.Max(a.Y, b.Y)
	ix2, iy2 := math.Min(ax2, bx2), math.Min(ay2, by2)

	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	intersection := iw * ih
	union := a.W*a.H + b.W*b.H - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// SizeRatio returns b's area divided by a's area, or 0 if a has no area.
func SizeRatio(a, b Rect) float64 {
	areaA := a.W * a.H
	if areaA <= 0 {
		return 0
	}
	return (b.W * b.H) / areaA
}

// RectContains reports whether point p lies within rectangle r,
// inclusive of its edges.
func RectContains(r Rect, p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// PolygonContains reports whether point p lies within the polygon
// described by points, using the even-odd ray-casting rule. A polygon
// with fewer than three points is degenerate and always returns false.
func PolygonContains(points []Point, p Point) bool {
	if len(points) < 3 {
		return false
	}

	inside := false
	n := len(points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := points[i], points[j]
		intersects := (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X
		if intersects {
			inside = !inside
		}
	}
	return inside
}
