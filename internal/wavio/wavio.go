// Package wavio implements the WAV encode/decode boundary the core state
// machine (internal/vad, internal/resample, internal/stream) stays free of.
// spec.md §6 specifies only encodeWAV as a peripheral helper; decoding is
// added here so cmd/vadctl can read file input, using the same
// github.com/go-audio/wav library seen elsewhere in the retrieval pack.
package wavio

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// memWriteSeeker adapts a growable byte buffer to io.WriteSeeker: the
// go-audio/wav encoder seeks back to patch RIFF/data chunk sizes once the
// full sample count is known, which bytes.Buffer alone cannot do.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(m.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("wavio: invalid seek whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("wavio: negative seek position")
	}
	m.pos = int(newPos)
	return newPos, nil
}

const (
	bitDepth    = 16
	numChannels = 1
	pcmFormat   = 1
	maxInt16    = 32767
)

// EncodeWAV renders audio (mono, [-1,+1]-normalized samples) as a 16-bit PCM
// mono WAV file at sampleRate, per spec.md §6: clamp to [-1,1], scale by
// 32767.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(math.Round(float64(s) * maxInt16))
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, sampleRate, bitDepth, numChannels, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("wavio: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wavio: encode: %w", err)
	}
	return out.buf, nil
}

// DecodeWAV reads a mono 16-bit PCM WAV stream and returns its samples
// normalized to [-1,+1] along with the file's native sample rate. Non-mono
// input is rejected — spec.md §1 makes downmixing the caller's
// responsibility, not the core's.
func DecodeWAV(r io.Reader) (samples []float32, sampleRate int, err error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, readErr := io.ReadAll(r)
		if readErr != nil {
			return nil, 0, fmt.Errorf("wavio: decode: %w", readErr)
		}
		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, 0, fmt.Errorf("wavio: decode: %w", err)
	}
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("wavio: decode: not a valid WAV file")
	}
	if dec.NumChans != numChannels {
		return nil, 0, fmt.Errorf("wavio: decode: expected mono input, got %d channels", dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: decode: %w", err)
	}

	out := make([]float32, len(buf.Data))
	maxVal := float64(int(1)<<uint(buf.SourceBitDepth-1)) - 1
	if buf.SourceBitDepth == 0 {
		maxVal = maxInt16
	}
	for i, v := range buf.Data {
		out[i] = float32(float64(v) / maxVal)
	}
	return out, int(dec.SampleRate), nil
}
