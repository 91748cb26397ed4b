package model

import "github.com/nupi-ai/vad-streamcore/internal/vad"

// StubToggleInterval is the number of frames after which Stub toggles
// between speech and silence.
const StubToggleInterval = 50

// StubSpeechConfidence and StubSilenceConfidence are the fixed probability
// pairs Stub returns while in each phase.
const (
	StubSpeechConfidence  float32 = 0.9
	StubSilenceConfidence float32 = 0.1
)

// Stub is a deterministic Model that ignores frame content and alternates
// between speech and silence every StubToggleInterval frames. It exists so
// the orchestrator (internal/stream) and the CLI can be exercised end to
// end without linking any tensor runtime, mirroring the teacher's
// StubEngine pattern.
type Stub struct {
	counter  int
	speaking bool
}

// NewStub creates a Stub starting in the silence phase.
func NewStub() *Stub {
	return &Stub{}
}

// Process ignores frame and returns a probability pair based on the
// internal toggle counter.
func (s *Stub) Process(frame []float32) (vad.Probabilities, error) {
	s.counter++
	if s.counter >= StubToggleInterval {
		s.counter = 0
		s.speaking = !s.speaking
	}
	if s.speaking {
		return vad.Probabilities{IsSpeech: StubSpeechConfidence, NotSpeech: 1 - StubSpeechConfidence}, nil
	}
	return vad.Probabilities{IsSpeech: StubSilenceConfidence, NotSpeech: 1 - StubSilenceConfidence}, nil
}

// ResetState returns Stub to its initial silence phase.
func (s *Stub) ResetState() error {
	s.counter = 0
	s.speaking = false
	return nil
}

// Close is a no-op; Stub holds no external resources.
func (s *Stub) Close() error { return nil }
