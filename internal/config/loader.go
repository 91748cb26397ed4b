package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the adapter configuration from environment variables, with
// an optional JSON-blob override (VADCORE_ADAPTER_CONFIG) applied before the
// individual VADCORE_VAD_* overrides, matching the teacher's precedence
// order: defaults, then JSON blob, then individual variables.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr:              DefaultListenAddr,
		LogLevel:                DefaultLogLevel,
		Engine:                  DefaultEngine,
		ModelVariant:            DefaultModelVariant,
		FrameSamples:            DefaultFrameSamples,
		PositiveSpeechThreshold: DefaultPositiveSpeechThreshold,
		NegativeSpeechThreshold: DefaultNegativeSpeechThreshold,
		RedemptionFrames:        DefaultRedemptionFrames,
		PreSpeechPadFrames:      DefaultPreSpeechPadFrames,
		MinSpeechFrames:         DefaultMinSpeechFrames,
		SubmitUserSpeechOnPause: DefaultSubmitUserSpeechOnPause,
		SampleRate:              DefaultSampleRate,
	}

	if raw, ok := l.Lookup("VADCORE_ADAPTER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "VADCORE_ADAPTER_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "VADCORE_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "VADCORE_ENGINE", &cfg.Engine)
	overrideString(l.Lookup, "VADCORE_VAD_MODEL_VARIANT", &cfg.ModelVariant)
	if err := overrideInt(l.Lookup, "VADCORE_VAD_FRAME_SAMPLES", &cfg.FrameSamples); err != nil {
		return Config{}, err
	}
	if err := overrideFloat(l.Lookup, "VADCORE_VAD_POSITIVE_SPEECH_THRESHOLD", &cfg.PositiveSpeechThreshold); err != nil {
		return Config{}, err
	}
	if err := overrideFloat(l.Lookup, "VADCORE_VAD_NEGATIVE_SPEECH_THRESHOLD", &cfg.NegativeSpeechThreshold); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "VADCORE_VAD_REDEMPTION_FRAMES", &cfg.RedemptionFrames); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "VADCORE_VAD_PRE_SPEECH_PAD_FRAMES", &cfg.PreSpeechPadFrames); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "VADCORE_VAD_MIN_SPEECH_FRAMES", &cfg.MinSpeechFrames); err != nil {
		return Config{}, err
	}
	if err := overrideBool(l.Lookup, "VADCORE_VAD_SUBMIT_USER_SPEECH_ON_PAUSE", &cfg.SubmitUserSpeechOnPause); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "VADCORE_VAD_SAMPLE_RATE", &cfg.SampleRate); err != nil {
		return Config{}, err
	}

	if _, err := cfg.ToVADConfig(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr              string   `json:"listen_addr"`
		LogLevel                string   `json:"log_level"`
		Engine                  string   `json:"engine"`
		ModelVariant            string   `json:"model_variant"`
		FrameSamples            *int     `json:"frame_samples"`
		PositiveSpeechThreshold *float64 `json:"positive_speech_threshold"`
		NegativeSpeechThreshold *float64 `json:"negative_speech_threshold"`
		RedemptionFrames        *int     `json:"redemption_frames"`
		PreSpeechPadFrames      *int     `json:"pre_speech_pad_frames"`
		MinSpeechFrames         *int     `json:"min_speech_frames"`
		SubmitUserSpeechOnPause *bool    `json:"submit_user_speech_on_pause"`
		SampleRate              *int     `json:"sample_rate"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode VADCORE_ADAPTER_CONFIG: %w", err)
	}
	if payload.ListenAddr != "" {
		cfg.ListenAddr = payload.ListenAddr
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.Engine != "" {
		cfg.Engine = payload.Engine
	}
	if payload.ModelVariant != "" {
		cfg.ModelVariant = payload.ModelVariant
	}
	if payload.FrameSamples != nil {
		cfg.FrameSamples = *payload.FrameSamples
	}
	if payload.PositiveSpeechThreshold != nil {
		cfg.PositiveSpeechThreshold = *payload.PositiveSpeechThreshold
	}
	if payload.NegativeSpeechThreshold != nil {
		cfg.NegativeSpeechThreshold = *payload.NegativeSpeechThreshold
	}
	if payload.RedemptionFrames != nil {
		cfg.RedemptionFrames = *payload.RedemptionFrames
	}
	if payload.PreSpeechPadFrames != nil {
		cfg.PreSpeechPadFrames = *payload.PreSpeechPadFrames
	}
	if payload.MinSpeechFrames != nil {
		cfg.MinSpeechFrames = *payload.MinSpeechFrames
	}
	if payload.SubmitUserSpeechOnPause != nil {
		cfg.SubmitUserSpeechOnPause = *payload.SubmitUserSpeechOnPause
	}
	if payload.SampleRate != nil {
		cfg.SampleRate = *payload.SampleRate
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
