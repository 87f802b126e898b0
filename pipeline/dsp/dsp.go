// Package dsp holds the signal-processing primitives of the screening
// pipeline: the zero-phase frequency-domain band-pass filter and the Welch
// power-spectral-density estimator.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/cwsl/seascreen/pipeline/frame"
)

// ErrShortSample is returned when a PSD segment length exceeds the sample's
// actual row count. Callers substitute a degraded-sample fallback instead of
// aborting the logger.
var ErrShortSample = errors.New("sample shorter than PSD segment length")

// SampleRate derives the sampling frequency in Hz from a sample's time
// spacing. It returns 0 for samples with fewer than two rows.
func SampleRate(fr *frame.Frame) float64 {
	if fr.Len() < 2 {
		return 0
	}
	dt := fr.Times[1].Sub(fr.Times[0]).Seconds()
	if dt <= 0 {
		return 0
	}
	return 1 / dt
}

// BandPass applies a zero-phase ideal brick-wall band-pass filter to every
// channel of a sample. Bins with |f| < low are zeroed (the DC bin is kept
// when retainMean is true, preserving each channel's mean) and bins with
// |f| > high are zeroed. A nil cutoff leaves that side of the band open;
// when both cutoffs are nil, filtering was not requested and BandPass
// returns nil.
//
// The transform-domain masking is deliberate: downstream comparisons depend
// on phase preservation, which a causal IIR/FIR design would not give.
func BandPass(fr *frame.Frame, low, high *float64, retainMean bool) *frame.Frame {
	if low == nil && high == nil {
		return nil
	}
	n := fr.Len()
	if n < 2 {
		return nil
	}
	fs := SampleRate(fr)
	if fs == 0 {
		return nil
	}

	fft := fourier.NewFFT(n)
	out := &frame.Frame{
		Times: append([]time.Time(nil), fr.Times...),
		Names: append([]string(nil), fr.Names...),
		Units: append([]string(nil), fr.Units...),
		Data:  make([][]float64, len(fr.Data)),
	}
	coeffs := make([]complex128, n/2+1)
	for ci, col := range fr.Data {
		coeffs = fft.Coefficients(coeffs, col)
		for i := range coeffs {
			f := fft.Freq(i) * fs
			if low != nil && f < *low {
				if i != 0 || !retainMean {
					coeffs[i] = 0
				}
			}
			if high != nil && f > *high {
				coeffs[i] = 0
			}
		}
		inv := fft.Sequence(nil, coeffs)
		// gonum's transform pair is unnormalized: scale by 1/n.
		for i := range inv {
			inv[i] /= float64(n)
		}
		out.Data[ci] = inv
	}
	return out
}

// NewWindow returns window coefficients of length n by name. The name
// "none" maps to a rectangular (boxcar) window.
func NewWindow(name string, n int) ([]float64, error) {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	switch strings.ToLower(name) {
	case "", "none", "boxcar", "rectangular":
		return w, nil
	case "hann", "hanning":
		return window.Hann(w), nil
	case "hamming":
		return window.Hamming(w), nil
	case "blackman":
		return window.Blackman(w), nil
	}
	return nil, fmt.Errorf("unknown window function %q", name)
}

// Welch estimates the one-sided power spectral density of x by averaging
// modified periodograms over overlapping segments. Segments are detrended
// by mean removal and scaled so the estimate has units of x^2/Hz.
func Welch(x []float64, fs float64, win []float64, noverlap int) ([]float64, error) {
	nperseg := len(win)
	if nperseg > len(x) {
		return nil, fmt.Errorf("%w: nperseg %d > %d rows", ErrShortSample, nperseg, len(x))
	}
	if noverlap < 0 || noverlap >= nperseg {
		noverlap = 0
	}
	step := nperseg - noverlap

	var winPower float64
	for _, w := range win {
		winPower += w * w
	}
	scale := 1 / (fs * winPower)

	fft := fourier.NewFFT(nperseg)
	nbins := nperseg/2 + 1
	psd := make([]float64, nbins)
	seg := make([]float64, nperseg)
	coeffs := make([]complex128, nbins)

	segments := 0
	for start := 0; start+nperseg <= len(x); start += step {
		copy(seg, x[start:start+nperseg])
		var mean float64
		for _, v := range seg {
			mean += v
		}
		mean /= float64(nperseg)
		for i := range seg {
			seg[i] = (seg[i] - mean) * win[i]
		}
		coeffs = fft.Coefficients(coeffs, seg)
		for i, c := range coeffs {
			p := (real(c)*real(c) + imag(c)*imag(c)) * scale
			// One-sided spectrum: interior bins carry both halves.
			if i != 0 && !(nperseg%2 == 0 && i == nbins-1) {
				p *= 2
			}
			psd[i] += p
		}
		segments++
	}
	if segments == 0 {
		return nil, fmt.Errorf("%w: no full segment fits %d rows", ErrShortSample, len(x))
	}
	for i := range psd {
		psd[i] /= float64(segments)
	}
	return psd, nil
}

// FreqAxis returns the one-sided frequency bin values in Hz for a segment
// length and sampling frequency.
func FreqAxis(nperseg int, fs float64) []float64 {
	nbins := nperseg/2 + 1
	axis := make([]float64, nbins)
	for i := range axis {
		axis[i] = float64(i) * fs / float64(nperseg)
	}
	return axis
}

// OverlapPoints converts an overlap percentage to a point count.
func OverlapPoints(nperseg int, pct float64) int {
	return int(math.Round(float64(nperseg) * pct / 100))
}
