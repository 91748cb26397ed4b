//go:build !silero

package model

import (
	"errors"

	"github.com/nupi-ai/vad-streamcore/internal/vad"
)

// ErrNativeUnavailable indicates the Silero backend is not compiled in.
var ErrNativeUnavailable = errors.New("model: silero backend not available (build with -tags silero)")

// NativeAvailable reports that no native engine is compiled in.
func NativeAvailable() bool { return false }

// NewSilero returns an error when built without the silero tag.
func NewSilero(_ vad.ModelVariant) (Model, error) {
	return nil, ErrNativeUnavailable
}
