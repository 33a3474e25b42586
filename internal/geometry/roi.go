package geometry

import "github.com/scoopguard/violation-pipeline/internal/model"

// ContainsCenter reports whether a detection's center lies inside roi.
// Containment is defined by center containment only, never bbox
// overlap: a rectangle is tested by axis-aligned inclusion, a polygon
// by even-odd ray casting. Degenerate polygons (fewer than three
// points) never contain anything.
func ContainsCenter(roi model.ROI, center model.Point) bool {
	switch roi.Shape {
	case model.ShapeRectangle:
		return RectContains(toRect(roi.Rect), toPoint(center))
	case model.ShapePolygon:
		return PolygonContains(toPoints(roi.Points), toPoint(center))
	default:
		return false
	}
}

func toPoint(p model.Point) Point   { return Point{X: p.X, Y: p.Y} }
func toRect(r model.Rect) Rect      { return Rect{X: r.X, Y: r.Y, W: r.W, H: r.H} }

func toPoints(pts []model.Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = toPoint(p)
	}
	return out
}
