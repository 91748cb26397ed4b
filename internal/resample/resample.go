// Package resample implements the streaming box-filter downsampler
// described in spec §4.1: it normalizes an arbitrary native sample rate to
// 16 kHz and slices the result into fixed-size frames, holding a rolling
// input buffer across calls so that samples spanning call boundaries are
// never lost or duplicated.
package resample

import (
	"fmt"
	"math"
)

// TargetSampleRate is the model's fixed input rate.
const TargetSampleRate = 16000

// Resampler converts nativeSampleRate audio to TargetSampleRate and frames
// it into fixed-size windows of targetFrameSize samples. It is not safe for
// concurrent use.
type Resampler struct {
	nativeRate           int
	targetFrameSize      int
	inputSamplesPerFrame int
	buf                  []float32
}

// New constructs a Resampler. nativeRate and targetFrameSize must both be
// positive; this is a fatal configuration error per spec §4.1, reported
// here as a returned error rather than a panic.
func New(nativeRate, targetFrameSize int) (*Resampler, error) {
	if nativeRate <= 0 {
		return nil, fmt.Errorf("resample: nativeRate must be > 0, got %d", nativeRate)
	}
	if targetFrameSize <= 0 {
		return nil, fmt.Errorf("resample: targetFrameSize must be > 0, got %d", targetFrameSize)
	}
	inputSamplesPerFrame := int(math.Ceil(float64(targetFrameSize) * float64(nativeRate) / float64(TargetSampleRate)))
	return &Resampler{
		nativeRate:           nativeRate,
		targetFrameSize:      targetFrameSize,
		inputSamplesPerFrame: inputSamplesPerFrame,
	}, nil
}

// Process appends input to the internal rolling buffer and returns every
// complete targetFrameSize frame it can produce. Any residue — fewer than
// inputSamplesPerFrame native samples — is retained for the next call. The
// sequence of frames returned across all calls is exactly what would have
// been produced by concatenating all input first and then framing (spec
// §4.1's contract). A zero-length input yields zero frames; Process never
// fails on data.
func (r *Resampler) Process(input []float32) [][]float32 {
	if len(input) > 0 {
		r.buf = append(r.buf, input...)
	}

	var frames [][]float32
	for len(r.buf) >= r.inputSamplesPerFrame {
		frames = append(frames, r.frameFrom(r.buf[:r.inputSamplesPerFrame]))
		r.buf = r.buf[r.inputSamplesPerFrame:]
	}
	return frames
}

// frameFrom produces exactly targetFrameSize output samples from a window
// of inputSamplesPerFrame native-rate samples, per spec §4.1's algorithm.
func (r *Resampler) frameFrom(window []float32) []float32 {
	if r.nativeRate == TargetSampleRate {
		out := make([]float32, r.targetFrameSize)
		copy(out, window)
		return out
	}

	ratio := float64(r.nativeRate) / float64(TargetSampleRate)
	out := make([]float32, r.targetFrameSize)
	maxIdx := len(window) - 1
	for k := 0; k < r.targetFrameSize; k++ {
		prev := 0
		if k > 0 {
			prev = int(math.Floor(float64(k-1)*ratio)) + 1
		}
		cur := int(math.Floor(float64(k) * ratio))
		if cur > maxIdx {
			cur = maxIdx
		}
		if prev > cur {
			prev = cur
		}
		var sum float64
		count := 0
		for idx := prev; idx <= cur; idx++ {
			sum += float64(window[idx])
			count++
		}
		out[k] = float32(sum / float64(count))
	}
	return out
}

// Reset discards any buffered residue.
func (r *Resampler) Reset() {
	r.buf = r.buf[:0]
}

// InputSamplesPerFrame returns the number of native-rate samples consumed
// to produce one target frame — ceil(targetFrameSize * nativeRate / 16000).
func (r *Resampler) InputSamplesPerFrame() int {
	return r.inputSamplesPerFrame
}
