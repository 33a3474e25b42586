// Package annotate draws a violation's evidence onto its entry frame
// and re-encodes it for storage, spec.md §4.6. Drawing style (rectangle
// + label overlays via gocv) is grounded on rafabene-poc-camera's
// DrawDetections, the one place a sibling pack repo's idiom stands in
// for the teacher, which never draws overlays itself.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

var (
	colorRed    = color.RGBA{R: 255, A: 255}
	colorYellow = color.RGBA{R: 255, G: 255, A: 255}
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorGreen  = color.RGBA{G: 200, A: 255}
	colorOrange = color.RGBA{R: 255, G: 140, A: 255}
	colorCrit   = color.RGBA{R: 220, A: 255}
)

func severityColor(sev model.Severity) color.RGBA {
	switch sev {
	case model.SeverityHigh:
		return colorCrit
	case model.SeverityMedium:
		return colorOrange
	default:
		return colorGreen
	}
}

// Annotator draws a ViolationEvent's evidence onto its source JPEG.
type Annotator struct{}

// NewAnnotator constructs an Annotator. It holds no state and is safe
// to share across sessions.
func NewAnnotator() *Annotator { return &Annotator{} }

// Annotate decodes jpegBytes, draws the hand bbox, ROI outline,
// timestamp, and severity banner described in spec.md §4.6, and returns
// the annotated image. The caller re-encodes the result via Encode.
func (a *Annotator) Annotate(jpegBytes []byte, ev model.ViolationEvent, roi model.ROI, timestampLabel string) (gocv.Mat, error) {
	img, err := gocv.IMDecode(jpegBytes, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode entry frame: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("decode entry frame: empty image")
	}

	handRect := image.Rect(
		int(ev.Evidence.HandBBox.X),
		int(ev.Evidence.HandBBox.Y),
		int(ev.Evidence.HandBBox.X+ev.Evidence.HandBBox.W),
		int(ev.Evidence.HandBBox.Y+ev.Evidence.HandBBox.H),
	)
	gocv.Rectangle(&img, handRect, colorRed, 2)
	handLabel := fmt.Sprintf("%s (%.2f)", ev.Type, ev.Confidence)
	gocv.PutText(&img, handLabel, image.Pt(handRect.Min.X, handRect.Min.Y-8), gocv.FontHersheySimplex, 0.6, colorRed, 2)

	drawROIOutline(&img, roi)
	gocv.PutText(&img, "ROI: "+roi.Name, image.Pt(int(roi.Rect.X), int(roi.Rect.Y)-8), gocv.FontHersheySimplex, 0.6, colorYellow, 2)

	gocv.PutText(&img, timestampLabel, image.Pt(10, 25), gocv.FontHersheySimplex, 0.6, colorWhite, 2)

	drawSeverityBanner(&img, ev.Severity, ev.Description)

	return img, nil
}

func drawROIOutline(img *gocv.Mat, roi model.ROI) {
	switch roi.Shape {
	case model.ShapePolygon:
		if len(roi.Points) < 3 {
			return
		}
		pts := make([]image.Point, len(roi.Points))
		for i, p := range roi.Points {
			pts[i] = image.Pt(int(p.X), int(p.Y))
		}
		gocv.Polylines(img, gocv.NewPointsVectorFromPoints([][]image.Point{pts}), true, colorYellow, 2)
	default:
		r := image.Rect(int(roi.Rect.X), int(roi.Rect.Y), int(roi.Rect.X+roi.Rect.W), int(roi.Rect.Y+roi.Rect.H))
		gocv.Rectangle(img, r, colorYellow, 2)
	}
}

func drawSeverityBanner(img *gocv.Mat, sev model.Severity, text string) {
	h := img.Rows()
	w := img.Cols()
	bannerHeight := 30
	if h < bannerHeight {
		return
	}
	bannerRect := image.Rect(0, h-bannerHeight, w, h)
	gocv.Rectangle(img, bannerRect, severityColor(sev), -1)
	gocv.PutText(img, text, image.Pt(10, h-8), gocv.FontHersheySimplex, 0.55, colorWhite, 1)
}
