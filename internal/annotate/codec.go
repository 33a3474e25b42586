package annotate

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	fileJPEGQuality   = 85
	inlineJPEGQuality = 70
	inlineMaxWidth    = 800
	inlineMaxHeight   = 600
)

// EncodeFileCopy re-encodes img at the file-copy quality used for the
// persisted violation frame (spec.md §4.6).
func EncodeFileCopy(img gocv.Mat) ([]byte, error) {
	return encodeJPEG(img, fileJPEGQuality)
}

// EncodeInlineCopy resizes img to fit within 800x600 (preserving aspect
// ratio) and re-encodes it at the inline-copy quality used for the
// Violation Store POST body's embedded bytes.
func EncodeInlineCopy(img gocv.Mat) ([]byte, error) {
	resized := resizeToFit(img, inlineMaxWidth, inlineMaxHeight)
	defer resized.Close()
	return encodeJPEG(resized, inlineJPEGQuality)
}

func resizeToFit(img gocv.Mat, maxW, maxH int) gocv.Mat {
	w, h := img.Cols(), img.Rows()
	if w <= maxW && h <= maxH {
		out := gocv.NewMat()
		img.CopyTo(&out)
		return out
	}

	scale := float64(maxW) / float64(w)
	if hs := float64(maxH) / float64(h); hs < scale {
		scale = hs
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)

	out := gocv.NewMat()
	gocv.Resize(img, &out, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea)
	return out
}

func encodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(".jpg", img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
