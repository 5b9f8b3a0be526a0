// Package player owns the single audio output channel. Playback is
// stop-then-play: a new payload always supersedes the current one, and
// Stop is safe at any time, including mid-decode and when idle.
package player

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// Outcome describes how a playback finished.
type Outcome int

const (
	OutcomeEnded Outcome = iota
	OutcomeStopped
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnded:
		return "ended"
	case OutcomeStopped:
		return "stopped"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Player plays MP3 payloads through an external decoder process.
type Player struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	tmpPath string
	playing bool
	stopped bool
	tempDir string
	logger  *zap.Logger
}

// New creates an idle player writing temp payloads under tempDir.
func New(tempDir string, logger *zap.Logger) *Player {
	return &Player{
		tempDir: tempDir,
		logger:  logger.With(zap.String("component", "player")),
	}
}

// Play starts asynchronous playback of an MP3 payload, superseding any
// payload currently playing. The returned channel delivers exactly one
// Outcome when playback finishes.
func (p *Player) Play(payload []byte) (<-chan Outcome, error) {
	p.Stop()

	tmp, err := os.CreateTemp(p.tempDir, "livecoach_tts_*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}
	tmp.Close()

	cmd, err := decoderCommand(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.tmpPath = tmp.Name()
	p.playing = true
	p.stopped = false
	p.mu.Unlock()

	if err := cmd.Start(); err != nil {
		p.mu.Lock()
		p.playing = false
		p.cmd = nil
		p.mu.Unlock()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to start audio player: %w", err)
	}

	done := make(chan Outcome, 1)
	go func() {
		err := cmd.Wait()

		p.mu.Lock()
		// A superseding Play may already have registered a new process;
		// only the goroutine that still owns p.cmd may clear shared state.
		owner := p.cmd == cmd
		stopped := p.stopped
		if owner {
			p.playing = false
			p.cmd = nil
		}
		p.mu.Unlock()
		os.Remove(tmp.Name())

		switch {
		case !owner, stopped:
			done <- OutcomeStopped
		case err != nil:
			p.logger.Warn("playback failed", zap.Error(err))
			done <- OutcomeErrored
		default:
			done <- OutcomeEnded
		}
	}()

	return done, nil
}

// Stop interrupts the current playback. Idempotent; a no-op when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing || p.cmd == nil {
		return
	}
	p.stopped = true
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

// Playing reports whether a payload is currently being played.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// decoderCommand picks whichever MP3-capable player is installed.
func decoderCommand(path string) (*exec.Cmd, error) {
	if _, err := exec.LookPath("mpg123"); err == nil {
		return exec.Command("mpg123", "-q", path), nil
	}
	if _, err := exec.LookPath("ffplay"); err == nil {
		return exec.Command("ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path), nil
	}
	if _, err := exec.LookPath("afplay"); err == nil {
		return exec.Command("afplay", path), nil
	}
	return nil, fmt.Errorf("no suitable audio player found (tried: mpg123, ffplay, afplay)")
}
