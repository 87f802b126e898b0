package quality

import (
	"math"
	"testing"
	"time"
)

func mkTimes(n int) []time.Time {
	base := time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * 100 * time.Millisecond)
	}
	return out
}

func TestCheckExactLength(t *testing.T) {
	s := NewScreen(4, true)
	ok := s.Check(1, "f1.csv", mkTimes(4), []string{"A"}, [][]float64{{1, 2, 3, 4}})
	if !ok {
		t.Fatal("Check() = false, want true for exact-length file")
	}
	if len(s.BadFiles()) != 0 {
		t.Errorf("BadFiles() = %v, want empty", s.BadFiles())
	}
}

func TestCheckShortFilePolicy(t *testing.T) {
	for _, allow := range []bool{true, false} {
		s := NewScreen(4, allow)
		ok := s.Check(1, "short.csv", mkTimes(3), []string{"A"}, [][]float64{{1, 2, 3}})
		if ok != allow {
			t.Errorf("allowShort=%v: Check() = %v, want %v", allow, ok, allow)
		}
		if len(s.BadFiles()) != 1 {
			t.Errorf("allowShort=%v: BadFiles() = %v, want one entry", allow, s.BadFiles())
		}
	}
}

func TestCheckLongFileRejected(t *testing.T) {
	s := NewScreen(2, true)
	if s.Check(1, "long.csv", mkTimes(3), []string{"A"}, [][]float64{{1, 2, 3}}) {
		t.Error("Check() = true, want false for over-long file even when short files are allowed")
	}
	bad := s.BadFiles()
	if len(bad) != 1 || bad[0].Reason != "unexpected number of points" {
		t.Errorf("BadFiles() = %v, want one unexpected-points entry", bad)
	}
}

func TestCompleteness(t *testing.T) {
	// Two files of 4 expected points each; second file has 2 NaN in channel
	// A, so channel A completeness is 6/8 = 75%.
	s := NewScreen(4, true)
	s.Check(1, "f1.csv", mkTimes(4), []string{"A", "B"}, [][]float64{{1, 2, 3, 4}, {1, 2, 3, 4}})
	nan := math.NaN()
	s.Check(2, "f2.csv", mkTimes(4), []string{"A", "B"}, [][]float64{{1, nan, nan, 4}, {1, 2, 3, 4}})

	got := s.Completeness()
	if len(got) != 2 {
		t.Fatalf("len(Completeness()) = %d, want 2", len(got))
	}
	if got[0] != 75 {
		t.Errorf("Completeness()[0] = %v, want 75", got[0])
	}
	if got[1] != 100 {
		t.Errorf("Completeness()[1] = %v, want 100", got[1])
	}
}

func TestResolution(t *testing.T) {
	s := NewScreen(4, true)
	s.Check(1, "f1.csv", mkTimes(4), []string{"A"}, [][]float64{{0.30, 0.10, 0.25, 0.10}})

	if got := s.MinTimeResolution(); got != 100*time.Millisecond {
		t.Errorf("MinTimeResolution() = %v, want 100ms", got)
	}
	res := s.MinResolution()
	// sorted dedup steps: 0.10->0.25 (0.15), 0.25->0.30 (0.05)
	if math.Abs(res[0]-0.05) > 1e-12 {
		t.Errorf("MinResolution()[0] = %v, want 0.05", res[0])
	}
}

func TestResolutionSkipsWrongLengthFiles(t *testing.T) {
	s := NewScreen(4, true)
	s.Check(1, "short.csv", mkTimes(2), []string{"A"}, [][]float64{{1, 2}})
	if got := s.MinTimeResolution(); got != 0 {
		t.Errorf("MinTimeResolution() = %v, want 0 when only short files seen", got)
	}
}
