// Package config holds the vadctl adapter's configuration: the CLI/server
// lifecycle knobs plus the full VAD parameter set from spec.md §3, loaded
// the way the teacher's adapter config is loaded — environment variables
// with a JSON-blob override.
package config

import "github.com/nupi-ai/vad-streamcore/internal/vad"

const (
	DefaultListenAddr              = "localhost:0"
	DefaultLogLevel                = "info"
	DefaultEngine                  = "auto"
	DefaultModelVariant            = "v5"
	DefaultFrameSamples            = 512 // matches the v5 variant above
	DefaultPositiveSpeechThreshold = vad.DefaultPositiveSpeechThreshold
	DefaultNegativeSpeechThreshold = vad.DefaultNegativeSpeechThreshold
	DefaultRedemptionFrames        = vad.DefaultRedemptionFrames
	DefaultPreSpeechPadFrames      = vad.DefaultPreSpeechPadFrames
	DefaultMinSpeechFrames         = vad.DefaultMinSpeechFrames
	DefaultSubmitUserSpeechOnPause = vad.DefaultSubmitUserSpeechOnPause
	DefaultSampleRate              = vad.DefaultSampleRate
)

// Config holds the adapter configuration: runtime/lifecycle fields plus the
// full VAD tunable set.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`

	// Engine selects the Model implementation: "auto" (silero if compiled
	// in, else stub), "stub", or "silero".
	Engine string `json:"engine"`

	ModelVariant            string  `json:"model_variant"`
	FrameSamples            int     `json:"frame_samples"`
	PositiveSpeechThreshold float64 `json:"positive_speech_threshold"`
	NegativeSpeechThreshold float64 `json:"negative_speech_threshold"`
	RedemptionFrames        int     `json:"redemption_frames"`
	PreSpeechPadFrames      int     `json:"pre_speech_pad_frames"`
	MinSpeechFrames         int     `json:"min_speech_frames"`
	SubmitUserSpeechOnPause bool    `json:"submit_user_speech_on_pause"`
	SampleRate              int     `json:"sample_rate"`
}

// ToVADConfig converts the adapter configuration into a vad.Config, which
// also applies spec §3's construction-time validation.
func (c Config) ToVADConfig() (vad.Config, error) {
	variant, err := parseModelVariant(c.ModelVariant)
	if err != nil {
		return vad.Config{}, err
	}
	cfg := vad.Config{
		ModelVariant:            variant,
		FrameSamples:            c.FrameSamples,
		PositiveSpeechThreshold: float32(c.PositiveSpeechThreshold),
		NegativeSpeechThreshold: float32(c.NegativeSpeechThreshold),
		RedemptionFrames:        c.RedemptionFrames,
		PreSpeechPadFrames:      c.PreSpeechPadFrames,
		MinSpeechFrames:         c.MinSpeechFrames,
		SubmitUserSpeechOnPause: c.SubmitUserSpeechOnPause,
		SampleRate:              c.SampleRate,
	}
	if err := cfg.Validate(); err != nil {
		return vad.Config{}, err
	}
	return cfg, nil
}

func parseModelVariant(s string) (vad.ModelVariant, error) {
	switch s {
	case "", "v5":
		return vad.ModelVariantV5, nil
	case "legacy":
		return vad.ModelVariantLegacy, nil
	default:
		return 0, &InvalidFieldError{Field: "model_variant", Value: s}
	}
}
