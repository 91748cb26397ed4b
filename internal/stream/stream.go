// Package stream implements StreamVAD, the orchestrator described in spec
// §4.3: it owns a Model, an optional Resampler, and a FrameProcessor,
// converting free-form audio chunks into an ordered event stream.
package stream

import (
	"errors"
	"sync"

	"github.com/nupi-ai/vad-streamcore/internal/resample"
	"github.com/nupi-ai/vad-streamcore/internal/vad"
)

// ErrDestroyed is returned by any operation after Destroy has been called
// (spec §7's logic-violation error kind).
var ErrDestroyed = errors.New("stream: VAD instance has been destroyed")

// ErrInstanceBusy is returned when ProcessAudio is called concurrently on
// the same instance. spec §5 leaves concurrent calls on one instance
// undefined "unless serialized by the implementation"; this implementation
// detects the conflict and rejects it rather than risking interleaved
// state-machine mutation.
var ErrInstanceBusy = errors.New("stream: instance is already processing audio")

// StreamVAD converts caller-supplied audio chunks into vad.Events. It is
// created paused; call Start to begin processing. A StreamVAD instance is
// owned by exactly one caller — see spec §5's concurrency model.
type StreamVAD struct {
	cfg   vad.Config
	model vad.Model
	fp    *vad.FrameProcessor
	rs    *resample.Resampler // nil when cfg.SampleRate == 16000

	sink func(vad.Event) // optional push delivery, see SPEC_FULL §4.3

	mu        sync.Mutex
	running   bool
	destroyed bool
	pending   []float32
}

// Option configures optional StreamVAD behavior at construction.
type Option func(*StreamVAD)

// WithSink registers a callback invoked, in order, for every event produced
// by Start/Pause/ProcessAudio/Flush — in addition to those calls' own
// return values. This is the "caller-supplied sink trait" alternative
// named in spec §9's design notes.
func WithSink(sink func(vad.Event)) Option {
	return func(s *StreamVAD) { s.sink = sink }
}

// New constructs a StreamVAD bound to model and cfg. It begins paused.
func New(model vad.Model, cfg vad.Config, opts ...Option) (*StreamVAD, error) {
	fp, err := vad.NewFrameProcessor(model, cfg)
	if err != nil {
		return nil, err
	}

	var rs *resample.Resampler
	if cfg.SampleRate != resample.TargetSampleRate {
		rs, err = resample.New(cfg.SampleRate, cfg.FrameSamples)
		if err != nil {
			return nil, err
		}
	}

	s := &StreamVAD{cfg: cfg, model: model, fp: fp, rs: rs}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start enables processing: it delegates to FrameProcessor.Resume and
// discards any previously pending (unframed) samples.
func (s *StreamVAD) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	if err := s.fp.Resume(); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	if s.rs != nil {
		s.rs.Reset()
	}
	s.running = true
	return nil
}

// Pause disables processing and delegates to FrameProcessor.Pause, emitting
// any terminal event (spec §4.3). Samples already in flight from a
// concurrent ProcessAudio are not affected by Pause racing with them — spec
// §5 only guarantees no *new* sample is processed after Pause begins, which
// the shared mutex provides here by serializing the two.
func (s *StreamVAD) Pause() ([]vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}
	var events []vad.Event
	if evt := s.fp.Pause(); evt != nil {
		events = append(events, *evt)
	}
	s.running = false
	s.emit(events)
	return events, nil
}

// ProcessAudio pipes chunk through the resampler (if configured), appends
// the result to the pending-sample buffer, and frames+processes every
// complete frame that accumulates, in order. If paused, the chunk is
// ignored and ProcessAudio returns no events. All events generated by this
// call are returned (and pushed to the sink, if any) before ProcessAudio
// returns, satisfying spec §5's per-call ordering guarantee.
func (s *StreamVAD) ProcessAudio(chunk []float32) ([]vad.Event, error) {
	if !s.mu.TryLock() {
		return nil, ErrInstanceBusy
	}
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if !s.running {
		return nil, nil
	}

	var samples []float32
	if s.rs != nil {
		for _, frame := range s.rs.Process(chunk) {
			samples = append(samples, frame...)
		}
	} else {
		samples = chunk
	}
	s.pending = append(s.pending, samples...)

	var events []vad.Event
	for len(s.pending) >= s.cfg.FrameSamples {
		frame := s.pending[:s.cfg.FrameSamples]
		s.pending = s.pending[s.cfg.FrameSamples:]
		frameEvents, err := s.fp.Process(frame)
		if err != nil {
			s.emit(events)
			return events, err
		}
		events = append(events, frameEvents...)
	}
	s.emit(events)
	return events, nil
}

// Flush zero-pads any residual partial frame up to FrameSamples and
// processes it once — a deliberate approximation per spec §4.3 that can
// bias the model toward silence; implementations should not "fix" this
// into asymmetric behavior (spec §9) — then calls FrameProcessor.EndSegment
// and clears the pending buffer.
func (s *StreamVAD) Flush() ([]vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}

	var events []vad.Event
	if len(s.pending) > 0 && len(s.pending) < s.cfg.FrameSamples {
		frame := make([]float32, s.cfg.FrameSamples)
		copy(frame, s.pending)
		frameEvents, err := s.fp.Process(frame)
		if err != nil {
			s.emit(events)
			return events, err
		}
		events = append(events, frameEvents...)
	}
	if evt := s.fp.EndSegment(); evt != nil {
		events = append(events, *evt)
	}
	s.pending = s.pending[:0]
	s.emit(events)
	return events, nil
}

// Reset clears the pending-sample buffer and resets the model, without
// changing the running/paused state.
func (s *StreamVAD) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	s.pending = s.pending[:0]
	if s.rs != nil {
		s.rs.Reset()
	}
	return s.model.ResetState()
}

// Destroy pauses (emitting any terminal event), resets, and releases the
// model's resources. Destroy is idempotent.
func (s *StreamVAD) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if _, err := s.Pause(); err != nil && !errors.Is(err, ErrDestroyed) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.pending = nil
	if s.rs != nil {
		s.rs.Reset()
	}
	resetErr := s.model.ResetState()
	if closer, ok := s.model.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return resetErr
}

// emit pushes events to the optional sink, in order. Called with s.mu held.
func (s *StreamVAD) emit(events []vad.Event) {
	if s.sink == nil {
		return
	}
	for _, e := range events {
		s.sink(e)
	}
}
