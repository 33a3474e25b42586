package model

// Shape identifies how an ROI's boundary is expressed.
type Shape string

const (
	ShapeRectangle Shape = "rectangle"
	ShapePolygon   Shape = "polygon"
)

// ROI is a named region of interest marking an ingredient area.
// Created externally by the ROI Store; immutable for the duration of
// one analysis cycle.
type ROI struct {
	Name            string
	Shape           Shape
	Rect            Rect    // valid when Shape == ShapeRectangle
	Points          []Point // valid when Shape == ShapePolygon
	RequiresScooper bool
	IngredientType  string
}

// IsDegeneratePolygon reports whether a polygon ROI has fewer than the
// three points required to enclose any area. Degenerate polygons count
// as empty per spec.
func (r ROI) IsDegeneratePolygon() bool {
	return r.Shape == ShapePolygon && len(r.Points) < 3
}
