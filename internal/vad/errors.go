package vad

import "errors"

// ErrInvalidConfig is wrapped by Config.Validate failures (spec §3's
// ConfigurationError — fatal at construction, no instance produced).
var ErrInvalidConfig = errors.New("vad: invalid configuration")

// ErrNotRunning is returned by Process when the FrameProcessor has not been
// started via Resume, or has been paused.
var ErrNotRunning = errors.New("vad: frame processor is not running")

// ErrWrongFrameSize is returned by Process when the supplied frame does not
// have exactly Config.FrameSamples samples (spec §4.2 invariant P6).
var ErrWrongFrameSize = errors.New("vad: frame has wrong number of samples")
