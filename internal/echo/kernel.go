package echo

import "math"

// Kernel provides the numeric primitives of the per-frame inner loop.
// The gating and correlation logic only touches audio through this
// interface, so a SIMD/accelerated implementation can be swapped in
// without changing the suppression logic.
type Kernel interface {
	// Dot returns the dot product of a and b (len(b) >= len(a)).
	Dot(a, b []float32) float64
	// RMS returns the root-mean-square energy of the frame.
	RMS(frame []float32) float64
}

// ScalarKernel is the portable pure-Go kernel implementation.
type ScalarKernel struct{}

// Dot implements Kernel.
func (ScalarKernel) Dot(a, b []float32) float64 {
	var sum float64
	for i, v := range a {
		sum += float64(v) * float64(b[i])
	}
	return sum
}

// RMS implements Kernel.
func (ScalarKernel) RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
