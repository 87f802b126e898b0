package dsp

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwsl/seascreen/pipeline/frame"
)

// sineFrame builds an n-row frame sampled at fs Hz whose single channel is
// the sum of unit sines at the given frequencies (bin-aligned for exactness).
func sineFrame(n int, fs float64, freqs ...float64) *frame.Frame {
	fr := &frame.Frame{
		Names: []string{"A"},
		Units: []string{"m"},
		Data:  [][]float64{make([]float64, n)},
		Times: make([]time.Time, n),
	}
	base := time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC)
	dt := time.Duration(float64(time.Second) / fs)
	for i := 0; i < n; i++ {
		fr.Times[i] = base.Add(time.Duration(i) * dt)
		t := float64(i) / fs
		for _, f := range freqs {
			fr.Data[0][i] += math.Sin(2 * math.Pi * f * t)
		}
	}
	return fr
}

func TestSampleRate(t *testing.T) {
	fr := sineFrame(4, 10)
	if got := SampleRate(fr); math.Abs(got-10) > 1e-9 {
		t.Errorf("SampleRate() = %v, want 10", got)
	}
	if got := SampleRate(&frame.Frame{}); got != 0 {
		t.Errorf("SampleRate(empty) = %v, want 0", got)
	}
}

func TestBandPassNotRequested(t *testing.T) {
	if got := BandPass(sineFrame(8, 8), nil, nil, false); got != nil {
		t.Error("BandPass(nil, nil) != nil, want nil when no cutoffs set")
	}
}

func TestBandPassRemovesHighFrequency(t *testing.T) {
	// 4 Hz + 20 Hz components; a 10 Hz low-pass leaves the 4 Hz sine.
	fr := sineFrame(64, 64, 4, 20)
	high := 10.0
	got := BandPass(fr, nil, &high, false)
	if got == nil {
		t.Fatal("BandPass() = nil")
	}
	want := sineFrame(64, 64, 4)
	for i := range want.Data[0] {
		if math.Abs(got.Data[0][i]-want.Data[0][i]) > 1e-9 {
			t.Fatalf("Data[0][%d] = %v, want %v", i, got.Data[0][i], want.Data[0][i])
		}
	}
}

func TestBandPassRetainMean(t *testing.T) {
	fr := sineFrame(32, 32)
	for i := range fr.Data[0] {
		fr.Data[0][i] = 5.0
	}
	low := 1.0

	kept := BandPass(fr, &low, nil, true)
	for i, v := range kept.Data[0] {
		if math.Abs(v-5.0) > 1e-9 {
			t.Fatalf("retainMean: Data[0][%d] = %v, want 5.0", i, v)
		}
	}

	removed := BandPass(fr, &low, nil, false)
	for i, v := range removed.Data[0] {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("no retainMean: Data[0][%d] = %v, want 0", i, v)
		}
	}
}

func TestNewWindow(t *testing.T) {
	rect, err := NewWindow("none", 4)
	if err != nil {
		t.Fatalf("NewWindow(none) error = %v", err)
	}
	for i, w := range rect {
		if w != 1 {
			t.Errorf("rect[%d] = %v, want 1", i, w)
		}
	}

	hann, err := NewWindow("hann", 8)
	if err != nil {
		t.Fatalf("NewWindow(hann) error = %v", err)
	}
	if hann[0] > 1e-9 {
		t.Errorf("hann[0] = %v, want ~0", hann[0])
	}

	if _, err := NewWindow("kaiser", 8); err == nil {
		t.Error("NewWindow(kaiser) error = nil, want unknown window error")
	}
}

func TestWelchParseval(t *testing.T) {
	// A unit sine has variance 0.5; the integral of the one-sided PSD over
	// frequency must recover it with a rectangular window.
	const n, fs = 256, 32.0
	fr := sineFrame(n, fs, 4)
	win, _ := NewWindow("none", n)

	psd, err := Welch(fr.Data[0], fs, win, 0)
	if err != nil {
		t.Fatalf("Welch() error = %v", err)
	}
	if len(psd) != n/2+1 {
		t.Fatalf("len(psd) = %d, want %d", len(psd), n/2+1)
	}

	df := fs / n
	var total float64
	peak := 0
	for i, p := range psd {
		total += p * df
		if p > psd[peak] {
			peak = i
		}
	}
	if math.Abs(total-0.5) > 1e-6 {
		t.Errorf("integrated PSD = %v, want 0.5", total)
	}
	axis := FreqAxis(n, fs)
	if math.Abs(axis[peak]-4) > 1e-9 {
		t.Errorf("peak at %v Hz, want 4", axis[peak])
	}
}

func TestWelchShortSample(t *testing.T) {
	win, _ := NewWindow("hann", 256)
	_, err := Welch(make([]float64, 100), 10, win, 128)
	if !errors.Is(err, ErrShortSample) {
		t.Errorf("Welch() error = %v, want ErrShortSample", err)
	}
}

func TestOverlapPoints(t *testing.T) {
	if got := OverlapPoints(256, 50); got != 128 {
		t.Errorf("OverlapPoints(256, 50) = %d, want 128", got)
	}
	if got := OverlapPoints(256, 0); got != 0 {
		t.Errorf("OverlapPoints(256, 0) = %d, want 0", got)
	}
}
