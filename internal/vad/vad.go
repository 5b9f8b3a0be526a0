// Package vad classifies live microphone amplitude into speech and
// non-speech. Instantaneous thresholding false-triggers on clinking pans
// and door slams, so two gates apply: a consecutive-frame debounce before
// speech starts, and the caller's minimum-size/duration check on the
// finished artifact.
package vad

import "time"

// State is the detector's tagged state.
type State int

const (
	// StateIdle: no speech; loud frames are being counted toward the
	// debounce requirement.
	StateIdle State = iota
	// StateActive: speech in progress, level currently above threshold.
	StateActive
	// StateDraining: speech in progress but the level dropped; a silence
	// countdown is running and is canceled if the level recovers.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Event is emitted by Observe when the detector crosses a speech boundary.
type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSpeechEnd
)

// Config tunes the detector.
type Config struct {
	// Threshold is the 0-255 amplitude above which a frame counts as loud.
	Threshold int
	// RequiredHighFrames is how many consecutive loud frames must arrive
	// before speech starts.
	RequiredHighFrames int
	// SilenceTimeout is how long the level must stay below Threshold
	// before speech ends.
	SilenceTimeout time.Duration
	// MinSpeechDuration is the minimum recording length for the resulting
	// artifact to be treated as speech. Enforced by the caller's artifact
	// gate, carried here so both gates are configured in one place.
	MinSpeechDuration time.Duration
}

// DefaultConfig returns the tuning used by the live coach.
func DefaultConfig() Config {
	return Config{
		Threshold:          35,
		RequiredHighFrames: 5,
		SilenceTimeout:     1500 * time.Millisecond,
		MinSpeechDuration:  500 * time.Millisecond,
	}
}

// Detector is the voice activity state machine. All transitions happen in
// Observe; there are no out-of-band flags.
type Detector struct {
	cfg       Config
	state     State
	highCount int
	deadline  time.Time
}

// New creates a detector in StateIdle.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// State returns the current tagged state.
func (d *Detector) State() State {
	return d.state
}

// Config returns the detector's tuning.
func (d *Detector) Config() Config {
	return d.cfg
}

// Observe feeds one amplitude sample into the state machine and returns the
// boundary event, if any. busy suppresses new speech starts while a
// recording session is already active or a remote command is still being
// processed; it never cuts off speech that has already started.
func (d *Detector) Observe(level int, now time.Time, busy bool) Event {
	loud := level > d.cfg.Threshold

	switch d.state {
	case StateIdle:
		if busy || !loud {
			d.highCount = 0
			return EventNone
		}
		d.highCount++
		if d.highCount < d.cfg.RequiredHighFrames {
			return EventNone
		}
		d.highCount = 0
		d.state = StateActive
		return EventSpeechStart

	case StateActive:
		if !loud {
			d.state = StateDraining
			d.deadline = now.Add(d.cfg.SilenceTimeout)
		}
		return EventNone

	case StateDraining:
		if loud {
			// Level recovered; cancel the countdown.
			d.state = StateActive
			return EventNone
		}
		if !now.Before(d.deadline) {
			d.state = StateIdle
			return EventSpeechEnd
		}
		return EventNone
	}

	return EventNone
}

// Reset returns the detector to idle, e.g. when monitoring stops or a
// recording is discarded externally.
func (d *Detector) Reset() {
	d.state = StateIdle
	d.highCount = 0
	d.deadline = time.Time{}
}
