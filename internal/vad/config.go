package vad

import "fmt"

// ModelVariant identifies which Silero VAD tensor shape a Config targets.
// The canonical frame size differs between variants; Config.Validate rejects
// a FrameSamples that does not match the chosen variant.
type ModelVariant int

const (
	// ModelVariantLegacy is the original Silero VAD graph, which accepts
	// 512, 1024, or 1536 samples per frame at 16 kHz.
	ModelVariantLegacy ModelVariant = iota
	// ModelVariantV5 is the Silero VAD v5 graph, which requires exactly
	// 512 samples per frame and a combined [2,1,128] state tensor.
	ModelVariantV5
)

func (m ModelVariant) String() string {
	switch m {
	case ModelVariantLegacy:
		return "legacy"
	case ModelVariantV5:
		return "v5"
	default:
		return "unknown"
	}
}

// canonicalFrameSamples returns the frame sizes accepted by a variant.
func (m ModelVariant) canonicalFrameSamples() []int {
	switch m {
	case ModelVariantV5:
		return []int{512}
	default:
		return []int{512, 1024, 1536}
	}
}

// Config holds the tunables of the frame-hysteresis state machine, per
// spec §3's configuration table. Defaults below match the legacy-model
// column; callers targeting v5 should set FrameSamples to 512.
const (
	DefaultFrameSamples            = 1536
	DefaultPositiveSpeechThreshold = 0.5
	DefaultNegativeSpeechThreshold = 0.35
	DefaultRedemptionFrames        = 8
	DefaultPreSpeechPadFrames      = 1
	DefaultMinSpeechFrames         = 3
	DefaultSubmitUserSpeechOnPause = false
	DefaultSampleRate              = 16000
)

// Config holds the tunables of the frame-hysteresis state machine.
type Config struct {
	// ModelVariant selects which Silero tensor shape FrameSamples must be
	// compatible with.
	ModelVariant ModelVariant

	// FrameSamples is the model's fixed input frame size, in samples at
	// 16 kHz. Canonical values are 1536 (legacy) or 512 (v5).
	FrameSamples int

	// PositiveSpeechThreshold: isSpeech >= this value enters/continues Speaking.
	PositiveSpeechThreshold float32

	// NegativeSpeechThreshold: isSpeech < this value triggers Redemption.
	NegativeSpeechThreshold float32

	// RedemptionFrames is the number of sub-threshold grace frames tolerated
	// before a segment is declared ended.
	RedemptionFrames int

	// PreSpeechPadFrames is the number of pre-roll frames prepended to
	// segment audio.
	PreSpeechPadFrames int

	// MinSpeechFrames is the number of in-segment frames with
	// isSpeech >= PositiveSpeechThreshold required for the segment to end
	// cleanly (SpeechEnd) rather than misfire (VADMisfire).
	MinSpeechFrames int

	// SubmitUserSpeechOnPause controls whether pause() while speaking emits
	// SpeechEnd (true) or discards the in-progress segment (false).
	SubmitUserSpeechOnPause bool

	// SampleRate is the native input sample rate in Hz. Values other than
	// 16000 require resampling upstream of the FrameProcessor.
	SampleRate int
}

// DefaultConfig returns a Config with the legacy-model defaults from
// spec §3's configuration table.
func DefaultConfig() Config {
	return Config{
		ModelVariant:            ModelVariantLegacy,
		FrameSamples:            DefaultFrameSamples,
		PositiveSpeechThreshold: DefaultPositiveSpeechThreshold,
		NegativeSpeechThreshold: DefaultNegativeSpeechThreshold,
		RedemptionFrames:        DefaultRedemptionFrames,
		PreSpeechPadFrames:      DefaultPreSpeechPadFrames,
		MinSpeechFrames:         DefaultMinSpeechFrames,
		SubmitUserSpeechOnPause: DefaultSubmitUserSpeechOnPause,
		SampleRate:              DefaultSampleRate,
	}
}

// DefaultConfigV5 returns a Config with the v5-model defaults: identical to
// DefaultConfig except ModelVariant is ModelVariantV5 and FrameSamples is
// 512, matching spec §3's v5 column.
func DefaultConfigV5() Config {
	cfg := DefaultConfig()
	cfg.ModelVariant = ModelVariantV5
	cfg.FrameSamples = 512
	return cfg
}

// Validate checks the invariants spec §3 requires at construction:
// 0 < negativeSpeechThreshold < positiveSpeechThreshold <= 1, all frame
// counts >= 0, frameSamples > 0, sampleRate > 0, and (this implementation's
// resolution of spec §9's open question) frameSamples compatible with the
// configured ModelVariant.
func (c Config) Validate() error {
	if c.NegativeSpeechThreshold <= 0 {
		return fmt.Errorf("%w: negativeSpeechThreshold must be > 0, got %v", ErrInvalidConfig, c.NegativeSpeechThreshold)
	}
	if c.NegativeSpeechThreshold >= c.PositiveSpeechThreshold {
		return fmt.Errorf("%w: negativeSpeechThreshold (%v) must be < positiveSpeechThreshold (%v)", ErrInvalidConfig, c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	}
	if c.PositiveSpeechThreshold > 1 {
		return fmt.Errorf("%w: positiveSpeechThreshold must be <= 1, got %v", ErrInvalidConfig, c.PositiveSpeechThreshold)
	}
	if c.FrameSamples <= 0 {
		return fmt.Errorf("%w: frameSamples must be > 0, got %d", ErrInvalidConfig, c.FrameSamples)
	}
	if c.RedemptionFrames < 0 {
		return fmt.Errorf("%w: redemptionFrames must be >= 0, got %d", ErrInvalidConfig, c.RedemptionFrames)
	}
	if c.PreSpeechPadFrames < 0 {
		return fmt.Errorf("%w: preSpeechPadFrames must be >= 0, got %d", ErrInvalidConfig, c.PreSpeechPadFrames)
	}
	if c.MinSpeechFrames < 0 {
		return fmt.Errorf("%w: minSpeechFrames must be >= 0, got %d", ErrInvalidConfig, c.MinSpeechFrames)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sampleRate must be > 0, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if !containsInt(c.ModelVariant.canonicalFrameSamples(), c.FrameSamples) {
		return fmt.Errorf("%w: frameSamples %d is not valid for model variant %s (expected one of %v)",
			ErrInvalidConfig, c.FrameSamples, c.ModelVariant, c.ModelVariant.canonicalFrameSamples())
	}
	return nil
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
