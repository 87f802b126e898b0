// Package sampler implements the sliding-window sample accumulator at the
// heart of the screening pipeline. Rows are pulled from each file's frame
// into a buffer until it reaches the configured sample length; remainder
// rows carry into the next pull, and an under-filled buffer carries across
// file boundaries, so a sample may legitimately span two or more files.
package sampler

import (
	"math"
	"time"

	"github.com/cwsl/seascreen/pipeline/frame"
)

// Sample is a finalized window of rows, ready for statistics or spectral
// accumulation. At end-of-stream the final sample may be shorter than the
// target length; consumers must not assume a fixed length.
type Sample struct {
	Frame   *frame.Frame
	Start   time.Time
	End     time.Time
	FileSeq int // sequence number of the file that completed the sample
}

// Buffer accumulates rows toward the target sample length. It is owned by
// the orchestrator, not per-file state: its contents survive file
// boundaries. Invariant: Len() <= Target at all observation points.
type Buffer struct {
	target   int
	buf      *frame.Frame
	start    time.Time
	startSet bool
	end      time.Time
}

// TargetLength converts a sample duration and sampling frequency to a row
// count.
func TargetLength(seconds, freqHz float64) int {
	return int(math.Round(seconds * freqHz))
}

// NewBuffer creates a buffer with the given target row count.
func NewBuffer(target int) *Buffer {
	return &Buffer{target: target, buf: &frame.Frame{}}
}

// Target returns the configured sample length in rows.
func (b *Buffer) Target() int {
	return b.target
}

// Len returns the current buffer fill.
func (b *Buffer) Len() int {
	return b.buf.Len()
}

// Consume moves up to Target-Len rows from the front of incoming into the
// buffer, shrinking incoming in place. The sample's start timestamp is
// captured on the transition into a non-empty buffer and the end timestamp
// tracks the last row, so bounds are correct even for a final short sample.
func (b *Buffer) Consume(incoming *frame.Frame) {
	ns, nd := b.buf.Len(), incoming.Len()
	if ns >= b.target || nd == 0 {
		return
	}
	cutoff := b.target - ns
	if nd < cutoff {
		cutoff = nd
	}
	b.buf.AppendRows(incoming, cutoff)
	incoming.DropRows(cutoff)

	if !b.startSet && b.buf.Len() > 0 {
		b.start = b.buf.Times[0]
		b.startSet = true
	}
	b.end = b.buf.Times[b.buf.Len()-1]
}

// Full reports whether the buffer reached the target length.
func (b *Buffer) Full() bool {
	return b.buf.Len() >= b.target
}

// Take finalizes the buffer into a Sample and resets it. It returns nil for
// an empty buffer. fileSeq identifies the file whose rows completed the
// sample. Take is also used at end-of-stream to emit the trailing short
// sample rather than silently dropping rows.
func (b *Buffer) Take(fileSeq int) *Sample {
	if b.buf.Len() == 0 {
		return nil
	}
	s := &Sample{
		Frame:   b.buf.Clone(),
		Start:   b.start,
		End:     b.end,
		FileSeq: fileSeq,
	}
	b.buf.Reset()
	b.startSet = false
	return s
}
