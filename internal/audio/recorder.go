package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/models"
)

// Recorder owns the audio-capture-to-artifact lifecycle. At most one
// session can be active at a time; Begin rejects a second start.
type Recorder struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	active     bool
	sessionID  string
	startedAt  time.Time
	buffer     []float32
	sampleRate int
	logger     *zap.Logger
}

// NewRecorder creates an idle recorder capturing mono audio at sampleRate.
func NewRecorder(sampleRate int, logger *zap.Logger) *Recorder {
	return &Recorder{
		sampleRate: sampleRate,
		buffer:     make([]float32, 0),
		logger:     logger.With(zap.String("component", "audio.recorder")),
	}
}

// Begin opens an input stream and starts accumulating audio. It returns the
// session handle, or an error if a session is already active.
func (r *Recorder) Begin() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return "", fmt.Errorf("recording session already active")
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return "", fmt.Errorf("failed to get default input device: %w", err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.sampleRate),
		FramesPerBuffer: 1024,
	}

	stream, err := portaudio.OpenStream(params, r.recordCallback)
	if err != nil {
		return "", fmt.Errorf("failed to open recording stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return "", fmt.Errorf("failed to start recording stream: %w", err)
	}

	r.buffer = r.buffer[:0]
	r.stream = stream
	r.active = true
	r.sessionID = uuid.NewString()
	r.startedAt = time.Now()

	r.logger.Info("recording started", zap.String("session_id", r.sessionID))
	return r.sessionID, nil
}

// Stop flushes the capture stream and returns the recorded artifact.
func (r *Recorder) Stop() (*models.RecordingArtifact, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, fmt.Errorf("no recording session active")
	}
	stream := r.stream
	r.active = false
	r.stream = nil
	r.mu.Unlock()

	if err := stream.Stop(); err != nil {
		return nil, fmt.Errorf("failed to stop recording stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("failed to close recording stream: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	duration := time.Duration(len(r.buffer)) * time.Second / time.Duration(r.sampleRate)
	artifact := &models.RecordingArtifact{
		ID:        r.sessionID,
		Bytes:     EncodeWAV(r.buffer, r.sampleRate, 1),
		MimeType:  "audio/wav",
		Duration:  duration,
		StartedAt: r.startedAt,
	}

	r.logger.Info("recording stopped",
		zap.String("session_id", artifact.ID),
		zap.Duration("duration", artifact.Duration),
		zap.Int("bytes", len(artifact.Bytes)))
	return artifact, nil
}

// Discard aborts an active session without producing an artifact. Safe to
// call when nothing is recording.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}
	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
		r.stream = nil
	}
	r.active = false
	r.buffer = r.buffer[:0]
	r.logger.Info("recording discarded", zap.String("session_id", r.sessionID))
}

// Active reports whether a session is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Elapsed returns how long the current session has been recording.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return time.Since(r.startedAt)
}

func (r *Recorder) recordCallback(in []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.buffer = append(r.buffer, in...)
}
