//go:build silero

package model

import (
	_ "embed"

	"github.com/nupi-ai/vad-streamcore/internal/vad"
)

// sileroV5ModelData and sileroLegacyModelData hold the embedded Silero VAD
// ONNX graphs.
//
// BUILD REQUIREMENT: the model files must exist at internal/model/
// silero_vad_v5.onnx and internal/model/silero_vad_legacy.onnx before
// compiling with -tags silero; the repository does not ship them.
//
// If you see "pattern silero_vad_v5.onnx: no matching files found" during
// build, the model file is missing — place it in internal/model/ first.
//
//go:embed silero_vad_v5.onnx
var sileroV5ModelData []byte

//go:embed silero_vad_legacy.onnx
var sileroLegacyModelData []byte

func modelDataFor(variant vad.ModelVariant) []byte {
	if variant == vad.ModelVariantV5 {
		return sileroV5ModelData
	}
	return sileroLegacyModelData
}
