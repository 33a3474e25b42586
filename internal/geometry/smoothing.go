package geometry

import "sync"

// filter1D implements a simple 1D Kalman filter. Adapted from the
// teacher's landmark-smoothing filter (pkg/miface/kalman.go): same
// prediction/update math, repurposed here to smooth a hand's pixel
// trajectory before the rich-evidence classifier derives motion vectors
// from it, instead of smoothing 3D face/hand landmarks.
type filter1D struct {
	mu sync.Mutex

	x           float64 // state estimate
	p           float64 // estimate uncertainty
	q           float64 // process noise
	r           float64 // measurement noise
	initialized bool
}

func newFilter1D(smoothingFactor float64) *filter1D {
	q := 0.1
	r := 1.0 - smoothingFactor*0.9 + 0.1
	return &filter1D{p: 1.0, q: q, r: r}
}

func (f *filter1D) update(measurement float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		f.x = measurement
		f.initialized = true
		return measurement
	}

	pPred := f.p + f.q
	k := pPred / (pPred + f.r)
	f.x = f.x + k*(measurement-f.x)
	f.p = (1 - k) * pPred
	return f.x
}

// TrajectorySmoother applies independent Kalman filters to the X and Y
// components of a moving point, reducing per-frame detector jitter
// before velocity/direction is derived from consecutive positions.
type TrajectorySmoother struct {
	x, y *filter1D
}

// NewTrajectorySmoother creates a smoother. smoothingFactor ranges from
// 0.0 (maximum smoothing, slow to respond) to 1.0 (least smoothing; the
// filter still lags a step change, e.g. 0 then 10 yields about 8.5).
func NewTrajectorySmoother(smoothingFactor float64) *TrajectorySmoother {
	return &TrajectorySmoother{
		x: newFilter1D(smoothingFactor),
		y: newFilter1D(smoothingFactor),
	}
}

// Update feeds a new raw position and returns the smoothed estimate.
func (s *TrajectorySmoother) Update(p Point) Point {
	return Point{X: s.x.update(p.X), Y: s.y.update(p.Y)}
}
