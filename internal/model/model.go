// Package model provides Model implementations for package vad: a
// deterministic Stub usable without any tensor runtime, and (build tag
// "silero") a real Silero VAD backend driven by onnxruntime_go.
package model

import (
	"errors"

	"github.com/nupi-ai/vad-streamcore/internal/vad"
)

// ErrModelLoad indicates the model bytes could not be decoded or the
// inference session could not be created (spec §7's ModelLoadError).
var ErrModelLoad = errors.New("model: failed to load model")

// ErrInference indicates a runtime-level failure during Process (spec §7's
// ModelInferenceError). The caller's StreamVAD instance remains usable;
// the offending frame is lost and any in-progress segment is preserved.
var ErrInference = errors.New("model: inference failed")

// Model is a type alias for vad.Model so callers only need to import this
// package to both obtain and use a concrete backend.
type Model = vad.Model
