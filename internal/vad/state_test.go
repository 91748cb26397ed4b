package vad

import (
	"testing"
)

// scriptedModel returns a fixed sequence of IsSpeech probabilities, one per
// call to Process, in order. It never fails and ResetState is a no-op — it
// models only inference, not the effect of resets, since these tests assert
// the FrameProcessor's own behavior around resets rather than a model's.
type scriptedModel struct {
	probs  []float32
	cursor int
}

func (m *scriptedModel) Process(_ []float32) (Probabilities, error) {
	p := m.probs[m.cursor]
	m.cursor++
	return Probabilities{IsSpeech: p, NotSpeech: 1 - p}, nil
}

func (m *scriptedModel) ResetState() error { return nil }

const testFrameSamples = 512

func testConfig() Config {
	return Config{
		ModelVariant:            ModelVariantV5,
		FrameSamples:            testFrameSamples,
		PositiveSpeechThreshold: 0.5,
		NegativeSpeechThreshold: 0.35,
		RedemptionFrames:        8,
		PreSpeechPadFrames:      1,
		MinSpeechFrames:         3,
		SubmitUserSpeechOnPause: false,
		SampleRate:              16000,
	}
}

// runAll feeds one dummy frame per probability and returns, per frame, the
// list of non-FrameProcessed events it produced (FrameProcessed is asserted
// separately since it must appear on every frame).
func runAll(t *testing.T, fp *FrameProcessor, probs []float32) [][]Kind {
	t.Helper()
	frame := make([]float32, testFrameSamples)
	out := make([][]Kind, len(probs))
	for i := range probs {
		events, err := fp.Process(frame)
		if err != nil {
			t.Fatalf("frame %d: Process: %v", i+1, err)
		}
		if len(events) == 0 || events[0].Kind != FrameProcessed {
			t.Fatalf("frame %d: expected FrameProcessed first, got %v", i+1, events)
		}
		var kinds []Kind
		for _, e := range events[1:] {
			kinds = append(kinds, e.Kind)
		}
		out[i] = kinds
	}
	return out
}

func newTestProcessor(t *testing.T, cfg Config, probs []float32) *FrameProcessor {
	t.Helper()
	fp, err := NewFrameProcessor(&scriptedModel{probs: probs}, cfg)
	if err != nil {
		t.Fatalf("NewFrameProcessor: %v", err)
	}
	if err := fp.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	return fp
}

func countKind(results [][]Kind, k Kind) int {
	n := 0
	for _, ks := range results {
		for _, kk := range ks {
			if kk == k {
				n++
			}
		}
	}
	return n
}

func firstIndex(results [][]Kind, k Kind) int {
	for i, ks := range results {
		for _, kk := range ks {
			if kk == k {
				return i + 1 // 1-based frame number
			}
		}
	}
	return -1
}

// Scenario 1: pure silence — 50 frames at 0.1. Expected: only FrameProcessed.
func TestScenarioPureSilence(t *testing.T) {
	probs := make([]float32, 50)
	for i := range probs {
		probs[i] = 0.1
	}
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)
	for i, ks := range results {
		if len(ks) != 0 {
			t.Fatalf("frame %d: expected no extra events, got %v", i+1, ks)
		}
	}
}

// Scenario 2: clean speech — 2 silence, 10 speech, 12 silence.
func TestScenarioCleanSpeech(t *testing.T) {
	probs := buildProbs(silence(2), speech(10), silence(12))
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)

	if got := firstIndex(results, SpeechStart); got != 3 {
		t.Errorf("SpeechStart at frame %d, want 3", got)
	}
	if got := firstIndex(results, SpeechRealStart); got != 5 {
		t.Errorf("SpeechRealStart at frame %d, want 5", got)
	}
	if got := firstIndex(results, SpeechEnd); got != 21 {
		t.Errorf("SpeechEnd at frame %d, want 21", got)
	}
	if n := countKind(results, SpeechEnd); n != 1 {
		t.Fatalf("expected exactly one SpeechEnd, got %d", n)
	}
	if n := countKind(results, VADMisfire); n != 0 {
		t.Fatalf("expected no VADMisfire, got %d", n)
	}

	endEvt := findEvent(t, fp, results, probs, SpeechEnd)
	wantSamples := (1 + 10 + 8) * testFrameSamples
	if len(endEvt.Audio) != wantSamples {
		t.Errorf("SpeechEnd audio length = %d, want %d", len(endEvt.Audio), wantSamples)
	}
}

// findEvent re-runs the processor capturing the full Event (not just Kind)
// for the first occurrence of kind, so audio-length assertions can inspect
// the payload without threading it through runAll's summarized return.
func findEvent(t *testing.T, _ *FrameProcessor, _ [][]Kind, probs []float32, kind Kind) Event {
	t.Helper()
	fp2 := newTestProcessor(t, testConfig(), probs)
	frame := make([]float32, testFrameSamples)
	for range probs {
		events, err := fp2.Process(frame)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		for _, e := range events {
			if e.Kind == kind {
				return e
			}
		}
	}
	t.Fatalf("event %v never occurred", kind)
	return Event{}
}

// Scenario 3: misfire — 2 silence, 2 speech, 12 silence.
func TestScenarioMisfire(t *testing.T) {
	probs := buildProbs(silence(2), speech(2), silence(12))
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)

	if n := countKind(results, SpeechStart); n != 1 {
		t.Fatalf("expected exactly one SpeechStart, got %d", n)
	}
	if n := countKind(results, VADMisfire); n != 1 {
		t.Fatalf("expected exactly one VADMisfire, got %d", n)
	}
	if n := countKind(results, SpeechEnd); n != 0 {
		t.Fatalf("expected no SpeechEnd, got %d", n)
	}
	if n := countKind(results, SpeechRealStart); n != 0 {
		t.Fatalf("expected no SpeechRealStart (speechFramesInSegment=2 < 3), got %d", n)
	}
}

// Scenario 4: redemption survived — 2 silence, 4 speech, 5 middle-band, 4 speech, 10 silence.
func TestScenarioRedemptionSurvived(t *testing.T) {
	probs := buildProbs(silence(2), speech(4), middle(5), speech(4), silence(10))
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)

	if n := countKind(results, SpeechStart); n != 1 {
		t.Fatalf("expected exactly one SpeechStart, got %d", n)
	}
	if got := firstIndex(results, SpeechRealStart); got != 5 {
		t.Errorf("SpeechRealStart at frame %d, want 5", got)
	}
	if n := countKind(results, SpeechRealStart); n != 1 {
		t.Fatalf("expected exactly one SpeechRealStart, got %d", n)
	}
	if n := countKind(results, SpeechEnd); n != 1 {
		t.Fatalf("expected exactly one SpeechEnd, got %d", n)
	}
	if n := countKind(results, VADMisfire); n != 0 {
		t.Fatalf("expected no misfire, got %d", n)
	}
	// No intermediate end during the 5-frame middle band.
	for i := 6; i < 11; i++ {
		if len(results[i]) != 0 {
			t.Fatalf("frame %d (middle band): expected no events, got %v", i+1, results[i])
		}
	}
}

// Scenario 5: brief gap shorter than redemption — 2 silence, 5 speech, 4
// sub-threshold, 5 speech, 10 silence.
func TestScenarioBriefGapSurvivesRedemption(t *testing.T) {
	probs := buildProbs(silence(2), speech(5), belowNegative(4), speech(5), silence(10))
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)

	if n := countKind(results, SpeechStart); n != 1 {
		t.Fatalf("expected exactly one SpeechStart, got %d", n)
	}
	if n := countKind(results, SpeechRealStart); n != 1 {
		t.Fatalf("expected exactly one SpeechRealStart, got %d", n)
	}
	if n := countKind(results, SpeechEnd); n != 1 {
		t.Fatalf("expected exactly one SpeechEnd, got %d", n)
	}
	if n := countKind(results, VADMisfire); n != 0 {
		t.Fatalf("expected no misfire, got %d", n)
	}

	endEvt := findEvent(t, fp, results, probs, SpeechEnd)
	// Pre-roll (1) + 5 speech + 4 sub-threshold (included, gap survived) +
	// 5 speech + the first 8 frames of the final silence run (the redemption
	// frames; the 9th ends the segment and is not included).
	wantSamples := (1 + 5 + 4 + 5 + 8) * testFrameSamples
	if len(endEvt.Audio) != wantSamples {
		t.Errorf("SpeechEnd audio length = %d, want %d", len(endEvt.Audio), wantSamples)
	}
}

// Scenario 6 (resampler round trip) lives in internal/resample.

func buildProbs(groups ...[]float32) []float32 {
	var out []float32
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func silence(n int) []float32       { return constProbs(n, 0.1) }
func speech(n int) []float32        { return constProbs(n, 0.9) }
func middle(n int) []float32        { return constProbs(n, 0.4) }
func belowNegative(n int) []float32 { return constProbs(n, 0.1) }

func constProbs(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// --- Invariant checks (P1-P8), driven by randomized-looking but
// deterministic probability scripts. ---

func TestInvariantMatchedStartsAndEnds(t *testing.T) {
	// P1: #SpeechStart = #SpeechEnd + #VADMisfire at quiescent points
	// (here: after the whole script has drained).
	probs := buildProbs(
		silence(3), speech(10), silence(12), // clean segment
		speech(2), silence(12), // misfire
		silence(5),
	)
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)

	starts := countKind(results, SpeechStart)
	ends := countKind(results, SpeechEnd)
	misfires := countKind(results, VADMisfire)
	if starts != ends+misfires {
		t.Fatalf("P1 violated: starts=%d ends=%d misfires=%d", starts, ends, misfires)
	}
	if starts != 2 {
		t.Fatalf("expected 2 SpeechStart across both segments, got %d", starts)
	}
}

func TestInvariantOrderPrefixes(t *testing.T) {
	// P2: in any prefix, RealStart count <= Start count, and
	// (End+Misfire) count <= Start count.
	probs := buildProbs(silence(2), speech(10), silence(12), speech(2), silence(12))
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)

	starts, realStarts, terminations := 0, 0, 0
	for i, ks := range results {
		for _, k := range ks {
			switch k {
			case SpeechStart:
				starts++
			case SpeechRealStart:
				realStarts++
			case SpeechEnd, VADMisfire:
				terminations++
			}
		}
		if realStarts > starts {
			t.Fatalf("frame %d: P2 violated, realStarts=%d > starts=%d", i+1, realStarts, starts)
		}
		if terminations > starts {
			t.Fatalf("frame %d: P2 violated, terminations=%d > starts=%d", i+1, terminations, starts)
		}
	}
}

func TestInvariantMinDuration(t *testing.T) {
	// P3: every SpeechEnd's segment had >= minSpeechFrames speech frames.
	// Exercised indirectly: the misfire scenario must never emit SpeechEnd.
	probs := buildProbs(silence(2), speech(2), silence(12))
	fp := newTestProcessor(t, testConfig(), probs)
	results := runAll(t, fp, probs)
	if countKind(results, SpeechEnd) != 0 {
		t.Fatal("P3 violated: SpeechEnd emitted with fewer than minSpeechFrames speech frames")
	}
}

func TestInvariantPreRollBounds(t *testing.T) {
	// P4: audio length is between (1+preSpeechPadFrames)*frameSamples and
	// (segmentFrames+preSpeechPadFrames)*frameSamples. Only the lower bound
	// is asserted here.
	probs := buildProbs(silence(5), speech(10), silence(12))
	evt := findEvent(t, nil, nil, probs, SpeechEnd)
	lower := (1 + testConfig().PreSpeechPadFrames) * testFrameSamples
	if len(evt.Audio) < lower {
		t.Fatalf("P4 violated: audio length %d < lower bound %d", len(evt.Audio), lower)
	}
}

func TestInvariantFrameSizeEnforced(t *testing.T) {
	// P6: Process rejects frames of the wrong size.
	fp := newTestProcessor(t, testConfig(), []float32{0.1})
	_, err := fp.Process(make([]float32, testFrameSamples+1))
	if err != ErrWrongFrameSize {
		t.Fatalf("expected ErrWrongFrameSize, got %v", err)
	}
}

func TestInvariantResetIdempotent(t *testing.T) {
	// P7: reset(); reset(); is equivalent to reset();
	probs := silence(5)
	fp := newTestProcessor(t, testConfig(), probs)
	if err := fp.Resume(); err != nil {
		t.Fatal(err)
	}
	if err := fp.Resume(); err != nil {
		t.Fatal(err)
	}
	if fp.state != stateSilence {
		t.Fatalf("state = %v, want Silence after double resume", fp.state)
	}
	if len(fp.segment) != 0 || fp.speechFramesInSegment != 0 {
		t.Fatal("double resume left stale segment state")
	}
}

func TestInvariantPauseFlushPolicy(t *testing.T) {
	// P8: submitUserSpeechOnPause=true emits SpeechEnd once minSpeechFrames
	// is reached; =false emits VADMisfire or nothing.
	probs := buildProbs(silence(2), speech(5))

	cfgSubmit := testConfig()
	cfgSubmit.SubmitUserSpeechOnPause = true
	fp := newTestProcessor(t, cfgSubmit, probs)
	runAll(t, fp, probs)
	evt := fp.Pause()
	if evt == nil || evt.Kind != SpeechEnd {
		t.Fatalf("expected SpeechEnd on pause with submitUserSpeechOnPause=true, got %v", evt)
	}

	cfgNoSubmit := testConfig()
	cfgNoSubmit.SubmitUserSpeechOnPause = false
	fp2 := newTestProcessor(t, cfgNoSubmit, probs)
	runAll(t, fp2, probs)
	evt2 := fp2.Pause()
	if evt2 != nil {
		t.Fatalf("expected no event on pause with submitUserSpeechOnPause=false and enough speech frames, got %v", evt2)
	}
}

func TestPauseMisfireWhenNotEnoughSpeechFrames(t *testing.T) {
	probs := buildProbs(silence(2), speech(1))
	fp := newTestProcessor(t, testConfig(), probs)
	runAll(t, fp, probs)
	evt := fp.Pause()
	if evt == nil || evt.Kind != VADMisfire {
		t.Fatalf("expected VADMisfire on pause with too few speech frames, got %v", evt)
	}
}

func TestPauseUnconditionallyReturnsToIdle(t *testing.T) {
	fp := newTestProcessor(t, testConfig(), silence(1))
	runAll(t, fp, silence(1))
	fp.Pause()
	if fp.state != stateIdle {
		t.Fatalf("state after Pause = %v, want Idle", fp.state)
	}
	frame := make([]float32, testFrameSamples)
	if _, err := fp.Process(frame); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning after Pause, got %v", err)
	}
}

func TestNewFrameProcessorRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NegativeSpeechThreshold = 0.6 // >= positive threshold
	if _, err := NewFrameProcessor(&scriptedModel{}, cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}
