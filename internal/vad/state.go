package vad

// runState is the FrameProcessor's internal state, per spec §3.
type runState int

const (
	stateIdle runState = iota
	stateSilence
	stateSpeaking
	stateSpeakingConfirmed
	stateRedemption
)

// preRollRing is a bounded circular buffer of frames, capacity
// preSpeechPadFrames. Frames are retained oldest-to-newest; pushing past
// capacity evicts the oldest. drain() returns frames in chronological order
// and empties the ring.
type preRollRing struct {
	frames   [][]float32
	capacity int
}

func newPreRollRing(capacity int) *preRollRing {
	return &preRollRing{frames: make([][]float32, 0, capacity), capacity: capacity}
}

func (r *preRollRing) push(frame []float32) {
	if r.capacity == 0 {
		return
	}
	if len(r.frames) >= r.capacity {
		r.frames = r.frames[1:]
	}
	r.frames = append(r.frames, frame)
}

func (r *preRollRing) drain() [][]float32 {
	out := r.frames
	r.frames = make([][]float32, 0, r.capacity)
	return out
}

func (r *preRollRing) clear() {
	r.frames = r.frames[:0]
}

// FrameProcessor is the frame-based hysteresis state machine described in
// spec §4.2. It is stateless with respect to audio data beyond a bounded
// circular pre-roll buffer and the in-flight segment accumulator; all other
// state is a handful of counters and the current runState.
//
// FrameProcessor is not safe for concurrent use; callers (StreamVAD) must
// serialize calls to Process/Pause/EndSegment/Resume.
type FrameProcessor struct {
	cfg   Config
	model Model

	state            runState
	redemptionOrigin runState

	preRoll               *preRollRing
	segment               [][]float32
	speechFramesInSegment int
	redemptionCounter     int
}

// NewFrameProcessor constructs a FrameProcessor bound to the given model and
// configuration. The processor starts in Idle; call Resume to begin running.
func NewFrameProcessor(model Model, cfg Config) (*FrameProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FrameProcessor{
		cfg:     cfg,
		model:   model,
		state:   stateIdle,
		preRoll: newPreRollRing(cfg.PreSpeechPadFrames),
	}, nil
}

// Resume clears the pre-roll ring and segment accumulator, resets counters,
// resets the model's internal state, and transitions to Silence.
func (f *FrameProcessor) Resume() error {
	f.preRoll.clear()
	f.segment = nil
	f.speechFramesInSegment = 0
	f.redemptionCounter = 0
	if err := f.model.ResetState(); err != nil {
		return err
	}
	f.state = stateSilence
	return nil
}

// Process runs the model on frame and advances the state machine. It always
// returns a FrameProcessed event first, followed by at most one of
// SpeechStart, SpeechRealStart, SpeechEnd, or VADMisfire (spec §4.2
// invariant 4). The one exception is MinSpeechFrames <= 1: the frame that
// starts a segment then returns both SpeechStart and SpeechRealStart. If
// the processor is Idle, Process returns ErrNotRunning and no events.
func (f *FrameProcessor) Process(frame []float32) ([]Event, error) {
	if f.state == stateIdle {
		return nil, ErrNotRunning
	}
	if len(frame) != f.cfg.FrameSamples {
		return nil, ErrWrongFrameSize
	}

	probs, err := f.model.Process(frame)
	if err != nil {
		return nil, err
	}

	events := []Event{{Kind: FrameProcessed, Probs: probs, Frame: frame}}
	p := probs.IsSpeech

	switch f.state {
	case stateSilence:
		if p >= f.cfg.PositiveSpeechThreshold {
			f.segment = append(f.segment, f.preRoll.drain()...)
			f.segment = append(f.segment, frame)
			f.speechFramesInSegment = 1
			f.state = stateSpeaking
			events = append(events, Event{Kind: SpeechStart, Probs: probs})
			if f.speechFramesInSegment >= f.cfg.MinSpeechFrames {
				f.state = stateSpeakingConfirmed
				events = append(events, Event{Kind: SpeechRealStart, Probs: probs})
			}
		} else {
			f.preRoll.push(frame)
		}

	case stateSpeaking, stateSpeakingConfirmed:
		switch {
		case p >= f.cfg.PositiveSpeechThreshold:
			f.segment = append(f.segment, frame)
			f.speechFramesInSegment++
			if f.state == stateSpeaking && f.speechFramesInSegment >= f.cfg.MinSpeechFrames {
				f.state = stateSpeakingConfirmed
				events = append(events, Event{Kind: SpeechRealStart, Probs: probs})
			}
		case p < f.cfg.NegativeSpeechThreshold:
			f.segment = append(f.segment, frame)
			f.redemptionOrigin = f.state
			f.redemptionCounter = f.cfg.RedemptionFrames
			f.state = stateRedemption
		default:
			// Middle band: hold.
			f.segment = append(f.segment, frame)
		}

	case stateRedemption:
		if p >= f.cfg.PositiveSpeechThreshold {
			f.segment = append(f.segment, frame)
			f.state = f.redemptionOrigin
			if f.redemptionOrigin == stateSpeaking {
				f.speechFramesInSegment++
				if f.speechFramesInSegment >= f.cfg.MinSpeechFrames {
					f.state = stateSpeakingConfirmed
					events = append(events, Event{Kind: SpeechRealStart, Probs: probs})
				}
			}
			f.redemptionCounter = 0
		} else {
			// The frame that exhausts the counter ends the grace period and
			// is not itself part of the segment — it is the first frame of
			// the silence that follows.
			f.redemptionCounter--
			if f.redemptionCounter <= 0 {
				events = append(events, f.terminateSegment())
			} else {
				f.segment = append(f.segment, frame)
			}
		}
	}

	return events, nil
}

// terminateSegment applies spec §4.2's "segment termination" rule: emit
// SpeechEnd if enough speech frames were seen, otherwise VADMisfire. Either
// way, reset the model, clear the pre-roll, and return to Silence.
func (f *FrameProcessor) terminateSegment() Event {
	var evt Event
	if f.speechFramesInSegment >= f.cfg.MinSpeechFrames {
		evt = Event{Kind: SpeechEnd, Audio: concatFrames(f.segment)}
	} else {
		evt = Event{Kind: VADMisfire}
	}
	f.model.ResetState()
	f.segment = nil
	f.speechFramesInSegment = 0
	f.redemptionCounter = 0
	f.preRoll.clear()
	f.state = stateSilence
	return evt
}

// Pause ends any in-progress segment per spec §4.2's pause semantics and
// unconditionally returns the processor to Idle. If a segment was in
// progress with fewer than MinSpeechFrames speech frames, it emits
// VADMisfire. With enough speech frames it emits SpeechEnd when
// SubmitUserSpeechOnPause=true and discards the segment without an event
// when it is false. If no segment was in progress, it returns no event.
func (f *FrameProcessor) Pause() *Event {
	evt := f.finishInProgress()
	f.state = stateIdle
	return evt
}

// EndSegment applies the same logic as Pause but returns the processor to
// Silence rather than Idle, for mid-stream use (e.g. on flush/EOF).
func (f *FrameProcessor) EndSegment() *Event {
	evt := f.finishInProgress()
	f.state = stateSilence
	f.preRoll.clear()
	return evt
}

func (f *FrameProcessor) finishInProgress() *Event {
	switch f.state {
	case stateSpeaking, stateSpeakingConfirmed, stateRedemption:
	default:
		return nil
	}

	if f.cfg.SubmitUserSpeechOnPause && f.speechFramesInSegment >= f.cfg.MinSpeechFrames {
		evt := Event{Kind: SpeechEnd, Audio: concatFrames(f.segment)}
		f.resetSegment()
		return &evt
	}
	if f.speechFramesInSegment < f.cfg.MinSpeechFrames {
		evt := Event{Kind: VADMisfire}
		f.resetSegment()
		return &evt
	}
	// Enough speech frames but SubmitUserSpeechOnPause is false: discard.
	f.resetSegment()
	return nil
}

func (f *FrameProcessor) resetSegment() {
	f.segment = nil
	f.speechFramesInSegment = 0
	f.redemptionCounter = 0
}

// concatFrames flattens an ordered sequence of frames into one slice,
// per spec §3's SegmentAccumulator definition.
func concatFrames(frames [][]float32) []float32 {
	total := 0
	for _, fr := range frames {
		total += len(fr)
	}
	out := make([]float32, 0, total)
	for _, fr := range frames {
		out = append(out, fr...)
	}
	return out
}
