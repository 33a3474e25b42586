// Package model holds the data types shared across the violation
// analysis pipeline: detections, regions of interest, hand identities,
// ROI sequences, and violation events.
package model

import "time"

// Class identifies the kind of object a Detection describes.
type Class string

const (
	ClassHand    Class = "hand"
	ClassPerson  Class = "person"
	ClassPizza   Class = "pizza"
	ClassScooper Class = "scooper"
)

// Point is a 2D pixel coordinate.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned bounding box in pixel space.
type Rect struct {
	X, Y, W, H float64
}

// Center returns the geometric center of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	return r.W * r.H
}

// Detection is one labeled bounding box from a single analyzed frame.
// Its lifetime is one frame: detections are never carried across frames
// by reference, only by value in a tracker's history.
type Detection struct {
	Class      Class
	Confidence float64
	BBox       Rect
	Center     Point
	Area       float64
	FrameID    string
	Timestamp  time.Time
}

// NewDetection builds a Detection from a bbox, coercing a missing or
// negative confidence to zero per spec.
func NewDetection(class Class, confidence float64, bbox Rect, frameID string, ts time.Time) Detection {
	if confidence < 0 {
		confidence = 0
	}
	return Detection{
		Class:      class,
		Confidence: confidence,
		BBox:       bbox,
		Center:     bbox.Center(),
		Area:       bbox.Area(),
		FrameID:    frameID,
		Timestamp:  ts,
	}
}
