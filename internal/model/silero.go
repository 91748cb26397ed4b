//go:build silero

package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nupi-ai/vad-streamcore/internal/vad"
)

const (
	// legacyStateDim is the hidden-state width of the original Silero VAD
	// graph's separate h/c recurrent tensors, shape [2, 1, legacyStateDim].
	legacyStateDim = 64
	// v5StateDim is the width of Silero VAD v5's combined state tensor,
	// shape [2, 1, v5StateDim].
	v5StateDim = 128

	sampleRate16k = 16000
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once per process; ortInitErr is cached so later NewSilero calls surface
// the original failure instead of silently reusing an uninitialized env.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Silero runs Silero VAD inference via ONNX Runtime. It supports both the
// legacy graph (separate h/c state tensors) and the v5 graph (one combined
// state tensor), selected by ModelVariant at construction.
type Silero struct {
	variant vad.ModelVariant
	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32]
	srTensor    *ort.Tensor[int64]

	// v5 uses a single combined state tensor; legacy uses separate h/c.
	stateTensor  *ort.Tensor[float32]
	hTensor      *ort.Tensor[float32]
	cTensor      *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]
	hnTensor     *ort.Tensor[float32]
	cnTensor     *ort.Tensor[float32]

	tensors []destroyer
}

type destroyer interface{ Destroy() error }

// NewSilero creates a Silero model bound to the given variant, loading the
// embedded model bytes and allocating reusable input/output tensors.
func NewSilero(variant vad.ModelVariant) (Model, error) {
	data := modelDataFor(variant)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: model data is empty for variant %s (build without silero tag, or missing embed?)", ErrModelLoad, variant)
	}

	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, ortInitErr)
	}

	s := &Silero{variant: variant}
	if err := s.allocate(); err != nil {
		return nil, err
	}

	var inputNames, outputNames []string
	var inputs, outputs []ort.Value
	switch variant {
	case vad.ModelVariantV5:
		inputNames = []string{"input", "state", "sr"}
		outputNames = []string{"output", "stateN"}
		inputs = []ort.Value{s.inputTensor, s.stateTensor, s.srTensor}
		outputs = []ort.Value{s.outputTensor, s.stateNTensor}
	default:
		inputNames = []string{"input", "h", "c", "sr"}
		outputNames = []string{"output", "hn", "cn"}
		inputs = []ort.Value{s.inputTensor, s.hTensor, s.cTensor, s.srTensor}
		outputs = []ort.Value{s.outputTensor, s.hnTensor, s.cnTensor}
	}

	session, err := ort.NewAdvancedSessionWithONNXData(data, inputNames, outputNames, inputs, outputs, nil)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: create session: %v", ErrModelLoad, err)
	}
	s.session = session
	return s, nil
}

func (s *Silero) allocate() error {
	frameSamples := s.variant.canonicalFrameSamples()[0]
	if s.variant == vad.ModelVariantLegacy {
		// The legacy input tensor is always sized 1536. Process rejects
		// frames of any other length, so a legacy Silero runs only with
		// Config.FrameSamples == 1536; 512 and 1024, which vad.Config
		// accepts for the legacy variant, fail with ErrInference.
		frameSamples = 1536
	}

	var err error
	add := func(d destroyer, e error) bool {
		if e != nil {
			err = e
			return false
		}
		s.tensors = append(s.tensors, d)
		return true
	}

	s.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(frameSamples)))
	if !add(s.inputTensor, err) {
		return fmt.Errorf("%w: create input tensor: %v", ErrModelLoad, err)
	}
	s.srTensor, err = ort.NewTensor(ort.NewShape(1), []int64{sampleRate16k})
	if !add(s.srTensor, err) {
		return fmt.Errorf("%w: create sr tensor: %v", ErrModelLoad, err)
	}
	s.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if !add(s.outputTensor, err) {
		return fmt.Errorf("%w: create output tensor: %v", ErrModelLoad, err)
	}

	if s.variant == vad.ModelVariantV5 {
		s.stateTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v5StateDim))
		if !add(s.stateTensor, err) {
			return fmt.Errorf("%w: create state tensor: %v", ErrModelLoad, err)
		}
		s.stateNTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v5StateDim))
		if !add(s.stateNTensor, err) {
			return fmt.Errorf("%w: create stateN tensor: %v", ErrModelLoad, err)
		}
		clearFloat32Slice(s.stateTensor.GetData())
		clearFloat32Slice(s.stateNTensor.GetData())
		return nil
	}

	s.hTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, legacyStateDim))
	if !add(s.hTensor, err) {
		return fmt.Errorf("%w: create h tensor: %v", ErrModelLoad, err)
	}
	s.cTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, legacyStateDim))
	if !add(s.cTensor, err) {
		return fmt.Errorf("%w: create c tensor: %v", ErrModelLoad, err)
	}
	s.hnTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, legacyStateDim))
	if !add(s.hnTensor, err) {
		return fmt.Errorf("%w: create hn tensor: %v", ErrModelLoad, err)
	}
	s.cnTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, legacyStateDim))
	if !add(s.cnTensor, err) {
		return fmt.Errorf("%w: create cn tensor: %v", ErrModelLoad, err)
	}
	clearFloat32Slice(s.hTensor.GetData())
	clearFloat32Slice(s.cTensor.GetData())
	clearFloat32Slice(s.hnTensor.GetData())
	clearFloat32Slice(s.cnTensor.GetData())
	return nil
}

// Process runs a single inference on exactly Config.FrameSamples samples
// and carries the recurrent state forward for the next call.
func (s *Silero) Process(frame []float32) (vad.Probabilities, error) {
	dst := s.inputTensor.GetData()
	if len(frame) != len(dst) {
		return vad.Probabilities{}, fmt.Errorf("%w: frame has %d samples, tensor wants %d", ErrInference, len(frame), len(dst))
	}
	copy(dst, frame)

	if err := s.session.Run(); err != nil {
		return vad.Probabilities{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	prob := s.outputTensor.GetData()[0]

	if s.variant == vad.ModelVariantV5 {
		copy(s.stateTensor.GetData(), s.stateNTensor.GetData())
	} else {
		copy(s.hTensor.GetData(), s.hnTensor.GetData())
		copy(s.cTensor.GetData(), s.cnTensor.GetData())
	}

	return vad.Probabilities{IsSpeech: prob, NotSpeech: 1 - prob}, nil
}

// ResetState zeroes all recurrent state tensors, restoring inference state
// to t=0.
func (s *Silero) ResetState() error {
	if s.variant == vad.ModelVariantV5 {
		clearFloat32Slice(s.stateTensor.GetData())
	} else {
		clearFloat32Slice(s.hTensor.GetData())
		clearFloat32Slice(s.cTensor.GetData())
	}
	return nil
}

// Close releases ONNX Runtime resources. Safe to call multiple times.
func (s *Silero) Close() error {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	for _, d := range s.tensors {
		if d != nil {
			d.Destroy()
		}
	}
	s.tensors = nil
	return nil
}

func clearFloat32Slice(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
