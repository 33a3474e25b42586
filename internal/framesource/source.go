//go:build cgo
// +build cgo

// Package framesource implements the optional local Frame Source dev
// tool's video capture, adapted from the teacher's OpenCVCamera
// (pkg/miface/camera_gocv.go): same V4L2-backend-plus-MJPEG-FourCC
// device-open recipe, but reading a hygiene-camera feed (webcam or a
// recorded video file) and re-encoding each frame as a JPEG byte slice
// for push over HTTP, instead of RGB24 bytes for in-process MediaPipe
// consumption. Mirror mode and MediaPipe's BGR->RGB conversion are
// dropped: neither applies to a stationary kitchen camera feeding an
// HTTP ingest endpoint.
package framesource

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

const fourccMJPEG = 0x47504A4D

// VideoSource reads frames from either a numbered camera device or a
// video file path and JPEG-encodes each one.
type VideoSource struct {
	mu sync.Mutex

	capture *gocv.VideoCapture
	opened  bool
	width   int
	height  int
	fps     int
}

// New constructs an unopened VideoSource; open it with OpenDevice (a
// camera device id) or OpenFile (a video file path), matching gocv's
// int-vs-string OpenVideoCapture split.
func New() *VideoSource {
	return &VideoSource{}
}

// OpenDevice opens a numbered camera device with the V4L2 backend and
// MJPEG FourCC, matching the teacher's USB-webcam-compatibility recipe.
func (s *VideoSource) OpenDevice(deviceID, width, height, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return fmt.Errorf("video source already opened")
	}

	cap, err := gocv.OpenVideoCaptureWithAPI(deviceID, gocv.VideoCaptureV4L2)
	if err != nil {
		return fmt.Errorf("open camera device %d: %w", deviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("camera device %d not found or unavailable", deviceID)
	}

	cap.Set(gocv.VideoCaptureFOURCC, fourccMJPEG)
	if width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps > 0 {
		cap.Set(gocv.VideoCaptureFPS, float64(fps))
	}

	s.width = int(cap.Get(gocv.VideoCaptureFrameWidth))
	s.height = int(cap.Get(gocv.VideoCaptureFrameHeight))
	s.fps = int(cap.Get(gocv.VideoCaptureFPS))
	s.capture = cap
	s.opened = true
	return nil
}

// OpenFile opens a recorded video file for frame-by-frame replay,
// simulating a camera feed from recorded footage, spec.md §6's Frame
// Source external interface.
func (s *VideoSource) OpenFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return fmt.Errorf("video source already opened")
	}

	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return fmt.Errorf("open video file %q: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("video file %q could not be opened", path)
	}

	s.width = int(cap.Get(gocv.VideoCaptureFrameWidth))
	s.height = int(cap.Get(gocv.VideoCaptureFrameHeight))
	s.fps = int(cap.Get(gocv.VideoCaptureFPS))
	s.capture = cap
	s.opened = true
	return nil
}

// Read captures one frame and returns it JPEG-encoded at quality 85.
// ok is false once a file source reaches end of stream.
func (s *VideoSource) Read() (jpegBytes []byte, width, height int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil, 0, 0, false, fmt.Errorf("video source not opened")
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if readOK := s.capture.Read(&mat); !readOK || mat.Empty() {
		return nil, 0, 0, false, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, 85})
	if err != nil {
		return nil, 0, 0, false, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, mat.Cols(), mat.Rows(), true, nil
}

// Resolution returns the source's configured frame dimensions.
func (s *VideoSource) Resolution() (width, height, fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height, s.fps
}

// Close releases the underlying capture device or file handle.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}
	s.opened = false
	if s.capture != nil {
		return s.capture.Close()
	}
	return nil
}
