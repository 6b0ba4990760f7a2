// Package analysis extracts stop-and-go wave signatures from recorded
// speed series.
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// FFT computes the discrete Fourier transform by radix-2 decimation.
// The input length must be a power of two; use Detrend to prepare a
// recorded series.
func FFT(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	if n%2 != 0 {
		panic("fft requires power of 2 length")
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)

	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}

	return result
}

// PowerSpectrum returns the magnitude of the positive-frequency half of
// the transform.
func PowerSpectrum(data []float64) []float64 {
	fft := FFT(data)
	ps := make([]float64, len(fft)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(fft[i])
	}

	return ps
}

// Detrend subtracts the series mean and truncates to the largest
// power-of-two length, so the DC bin does not swamp the spectrum.
func Detrend(data []float64) []float64 {
	n := 1
	for n*2 <= len(data) {
		n *= 2
	}
	if len(data) == 0 {
		return nil
	}
	mean := stat.Mean(data[:n], nil)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = data[i] - mean
	}
	return out
}

// DominantPeriod estimates the period, in seconds, of the strongest
// oscillation in a series sampled every dt seconds. It returns 0 when
// the series is too short or carries no oscillation.
func DominantPeriod(data []float64, dt float64) float64 {
	trimmed := Detrend(data)
	if len(trimmed) < 4 {
		return 0
	}

	ps := PowerSpectrum(trimmed)
	// Bin 0 is the residual mean; start at the first real frequency.
	bestBin := 0
	bestPower := 0.0
	for i := 1; i < len(ps); i++ {
		if ps[i] > bestPower {
			bestPower = ps[i]
			bestBin = i
		}
	}
	if bestBin == 0 || bestPower < 1e-9 {
		return 0
	}

	n := float64(len(trimmed))
	freq := float64(bestBin) / (n * dt)
	return 1 / freq
}

// WaveAmplitude reports half the peak-to-trough swing of a series.
func WaveAmplitude(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return (hi - lo) / 2
}
