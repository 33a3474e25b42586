package geometry

import (
	"math"
	"testing"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

func TestDistance(t *testing.T) {
	got := Distance(Point{X: 0, Y: 0}, Point{X: 3, Y: 4})
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("expected 5, got %v", got)
	}
}

func TestIoU(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	b := Rect{X: 5, Y: 5, W: 10, H: 10}
	got := IoU(a, b)
	want := 25.0 / 175.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}

	if IoU(a, Rect{X: 100, Y: 100, W: 5, H: 5}) != 0 {
		t.Error("disjoint rects should have zero IoU")
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}
	if !RectContains(r, Point{X: 5, Y: 5}) {
		t.Error("expected center point inside")
	}
	if !RectContains(r, Point{X: 0, Y: 0}) {
		t.Error("expected edge inclusive")
	}
	if RectContains(r, Point{X: 11, Y: 5}) {
		t.Error("expected point outside")
	}
}

func TestPolygonContains(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if !PolygonContains(square, Point{5, 5}) {
		t.Error("expected center inside square polygon")
	}
	if PolygonContains(square, Point{15, 5}) {
		t.Error("expected point outside square polygon")
	}
}

func TestPolygonContainsDegenerate(t *testing.T) {
	if PolygonContains([]Point{{0, 0}, {1, 1}}, Point{0, 0}) {
		t.Error("degenerate polygon must never contain a point")
	}
	if PolygonContains(nil, Point{0, 0}) {
		t.Error("empty polygon must never contain a point")
	}
}

// TestRectPolygonAgreement is invariant P6: rectangle and polygon
// containment must agree when a rectangle is expressed as a polygon.
func TestRectPolygonAgreement(t *testing.T) {
	rect := Rect{X: 100, Y: 100, W: 50, H: 40}
	asPolygon := []Point{
		{X: rect.X, Y: rect.Y},
		{X: rect.X + rect.W, Y: rect.Y},
		{X: rect.X + rect.W, Y: rect.Y + rect.H},
		{X: rect.X, Y: rect.Y + rect.H},
	}

	probes := []Point{
		{X: 120, Y: 110},  // inside
		{X: 99, Y: 110},   // outside, left
		{X: 151, Y: 110},  // outside, right
		{X: 125, Y: 120},  // inside center
		{X: 1000, Y: 1000}, // far outside
	}

	for _, p := range probes {
		rectAnswer := RectContains(rect, p)
		polyAnswer := PolygonContains(asPolygon, p)
		if rectAnswer != polyAnswer {
			t.Errorf("disagreement at %v: rect=%v polygon=%v", p, rectAnswer, polyAnswer)
		}
	}
}

func TestContainsCenterROI(t *testing.T) {
	rectROI := model.ROI{
		Shape: model.ShapeRectangle,
		Rect:  model.Rect{X: 500, Y: 400, W: 200, H: 200},
	}
	if !ContainsCenter(rectROI, model.Point{X: 520, Y: 420}) {
		t.Error("expected point inside rectangle ROI")
	}

	polyROI := model.ROI{
		Shape:  model.ShapePolygon,
		Points: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
	}
	if !ContainsCenter(polyROI, model.Point{X: 5, Y: 5}) {
		t.Error("expected point inside polygon ROI")
	}

	degenerate := model.ROI{Shape: model.ShapePolygon, Points: []model.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	if ContainsCenter(degenerate, model.Point{X: 0, Y: 0}) {
		t.Error("degenerate polygon ROI must contain nothing")
	}
}
