package sampler

import (
	"testing"
	"time"

	"github.com/cwsl/seascreen/pipeline/frame"
)

var sampleBase = time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC)

// mkFrame builds an n-row single-channel frame whose values continue from
// offset, so row identity survives buffering.
func mkFrame(offset, n int) *frame.Frame {
	fr := &frame.Frame{
		Names: []string{"A"},
		Units: []string{"m"},
		Data:  [][]float64{make([]float64, n)},
		Times: make([]time.Time, n),
	}
	for i := 0; i < n; i++ {
		fr.Times[i] = sampleBase.Add(time.Duration(offset+i) * 100 * time.Millisecond)
		fr.Data[0][i] = float64(offset + i)
	}
	return fr
}

func TestTargetLength(t *testing.T) {
	if got := TargetLength(300, 10); got != 3000 {
		t.Errorf("TargetLength(300, 10) = %d, want 3000", got)
	}
	if got := TargetLength(0.25, 10); got != 3 {
		t.Errorf("TargetLength(0.25, 10) = %d, want 3 (rounded)", got)
	}
}

func TestConsumeNeverOverfills(t *testing.T) {
	b := NewBuffer(50)
	in := mkFrame(0, 80)
	b.Consume(in)
	if b.Len() != 50 {
		t.Errorf("Len() = %d, want 50", b.Len())
	}
	if in.Len() != 30 {
		t.Errorf("incoming Len() = %d, want 30 remaining", in.Len())
	}
	if !b.Full() {
		t.Error("Full() = false, want true")
	}
}

func TestSampleSpansFiles(t *testing.T) {
	// Two 30-row files with a 50-row target: the first sample spans both
	// files and 10 rows remain buffered.
	b := NewBuffer(50)

	f1 := mkFrame(0, 30)
	b.Consume(f1)
	if b.Full() {
		t.Fatal("Full() = true after 30 of 50 rows")
	}
	if f1.Len() != 0 {
		t.Errorf("file 1 residual = %d rows, want 0", f1.Len())
	}

	f2 := mkFrame(30, 30)
	b.Consume(f2)
	if !b.Full() {
		t.Fatal("Full() = false after 60 rows offered")
	}
	s := b.Take(2)
	if s == nil {
		t.Fatal("Take() = nil, want sample")
	}
	if s.Frame.Len() != 50 {
		t.Errorf("sample length = %d, want 50", s.Frame.Len())
	}
	if s.FileSeq != 2 {
		t.Errorf("FileSeq = %d, want 2", s.FileSeq)
	}
	if !s.Start.Equal(sampleBase) {
		t.Errorf("Start = %v, want %v", s.Start, sampleBase)
	}
	wantEnd := sampleBase.Add(49 * 100 * time.Millisecond)
	if !s.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", s.End, wantEnd)
	}

	// Row conservation: values 0..49 in the sample, 50..59 still pending.
	if s.Frame.Data[0][0] != 0 || s.Frame.Data[0][49] != 49 {
		t.Errorf("sample values = %v..%v, want 0..49", s.Frame.Data[0][0], s.Frame.Data[0][49])
	}
	b.Consume(f2)
	if b.Len() != 10 {
		t.Errorf("carry = %d rows, want 10", b.Len())
	}
}

func TestTakeShortFinalSample(t *testing.T) {
	b := NewBuffer(50)
	b.Consume(mkFrame(0, 12))
	s := b.Take(1)
	if s == nil || s.Frame.Len() != 12 {
		t.Fatalf("Take() = %v, want 12-row short sample", s)
	}
	wantEnd := sampleBase.Add(11 * 100 * time.Millisecond)
	if !s.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", s.End, wantEnd)
	}
	if b.Len() != 0 {
		t.Errorf("Len() after Take = %d, want 0", b.Len())
	}
	if b.Take(1) != nil {
		t.Error("Take() on empty buffer != nil")
	}
}

func TestStartResetsBetweenSamples(t *testing.T) {
	b := NewBuffer(10)
	b.Consume(mkFrame(0, 10))
	first := b.Take(1)

	b.Consume(mkFrame(10, 10))
	second := b.Take(2)

	if !second.Start.After(first.End) {
		t.Errorf("second sample Start = %v, want after first End %v", second.Start, first.End)
	}
}
