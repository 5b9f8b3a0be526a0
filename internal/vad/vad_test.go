package vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed pushes n samples of the given level at ~16ms spacing and returns the
// last event plus the advanced clock.
func feed(d *Detector, level, n int, now time.Time, busy bool) (Event, time.Time) {
	ev := EventNone
	for i := 0; i < n; i++ {
		now = now.Add(16 * time.Millisecond)
		if e := d.Observe(level, now, busy); e != EventNone {
			ev = e
		}
	}
	return ev, now
}

func TestSpeechStartRequiresConsecutiveHighFrames(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	ev, now := feed(d, 40, 4, now, false)
	assert.Equal(t, EventNone, ev)
	assert.Equal(t, StateIdle, d.State())

	ev, _ = feed(d, 40, 1, now, false)
	assert.Equal(t, EventSpeechStart, ev)
	assert.Equal(t, StateActive, d.State())
}

func TestIsolatedSpikeNeverTriggers(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	for i := 0; i < 20; i++ {
		// One loud sample followed by quiet resets the debounce counter.
		_, now = feed(d, 200, 1, now, false)
		ev, next := feed(d, 5, 3, now, false)
		now = next
		assert.Equal(t, EventNone, ev)
		assert.Equal(t, StateIdle, d.State())
	}
}

func TestBusySuppressesSpeechStart(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	ev, now := feed(d, 40, 10, now, true)
	assert.Equal(t, EventNone, ev)
	assert.Equal(t, StateIdle, d.State())

	// Once no longer busy, the debounce starts from zero.
	ev, _ = feed(d, 40, 5, now, false)
	assert.Equal(t, EventSpeechStart, ev)
}

func TestSilenceCountdownEndsSpeechExactlyOnce(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	ev, now := feed(d, 40, 5, now, false)
	require.Equal(t, EventSpeechStart, ev)

	// 1600ms of quiet at 16ms cadence crosses the 1500ms timeout.
	ends := 0
	for i := 0; i < 100; i++ {
		now = now.Add(16 * time.Millisecond)
		if d.Observe(10, now, false) == EventSpeechEnd {
			ends++
		}
	}
	assert.Equal(t, 1, ends)
	assert.Equal(t, StateIdle, d.State())
}

func TestLoudSampleCancelsCountdown(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	ev, now := feed(d, 40, 5, now, false)
	require.Equal(t, EventSpeechStart, ev)

	// 1 second of quiet: countdown running but not expired.
	ev, now = feed(d, 10, 62, now, false)
	require.Equal(t, EventNone, ev)
	require.Equal(t, StateDraining, d.State())

	// Level recovers; countdown canceled.
	ev, now = feed(d, 40, 1, now, false)
	assert.Equal(t, EventNone, ev)
	assert.Equal(t, StateActive, d.State())

	// A fresh full timeout is needed before speech ends.
	ev, now = feed(d, 10, 62, now, false)
	assert.Equal(t, EventNone, ev)
	ev, _ = feed(d, 10, 40, now, false)
	assert.Equal(t, EventSpeechEnd, ev)
}

func TestThresholdBoundaryIsExclusive(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	// Exactly at threshold does not count as loud.
	ev, now := feed(d, 35, 10, now, false)
	assert.Equal(t, EventNone, ev)

	ev, _ = feed(d, 36, 5, now, false)
	assert.Equal(t, EventSpeechStart, ev)
}

func TestResetReturnsToIdle(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	ev, _ := feed(d, 40, 5, now, false)
	require.Equal(t, EventSpeechStart, ev)

	d.Reset()
	assert.Equal(t, StateIdle, d.State())
}
