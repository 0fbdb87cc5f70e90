// Package dsp provides the small signal-processing primitives used by the
// wakebot pipeline. Everything here is pure and stateless: functions take a
// block of samples and return a scalar, touching no shared data, so they are
// safe to call from any number of goroutines.
package dsp

import "math"

// RMS returns the root-mean-square amplitude of a block of signed PCM
// samples: each sample is squared, the squares are averaged, and the square
// root of the average is returned.
//
// An empty block yields 0, and an all-zero block yields 0. The result is
// always finite and non-negative. Samples are widened to float64 before
// squaring so that int16 extremes cannot overflow.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
