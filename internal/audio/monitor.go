package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// Monitor continuously samples microphone amplitude. It keeps only the most
// recent level; callers poll Level at whatever cadence they render at.
type Monitor struct {
	stream  *portaudio.Stream
	level   atomic.Int32
	running atomic.Bool
	logger  *zap.Logger
}

// NewMonitor creates an inactive level monitor.
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{logger: logger.With(zap.String("component", "audio.monitor"))}
}

// Start opens an input stream on the default device and begins sampling.
// On failure the monitor stays inactive; voice detection degrades but
// manual recording is unaffected.
func (m *Monitor) Start(sampleRate int) error {
	if m.running.Load() {
		return fmt.Errorf("monitor is already running")
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("failed to get default input device: %w", err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: 256,
	}

	stream, err := portaudio.OpenStream(params, m.sampleCallback)
	if err != nil {
		return fmt.Errorf("failed to open monitor stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start monitor stream: %w", err)
	}

	m.stream = stream
	m.running.Store(true)
	m.logger.Info("level monitor started", zap.Int("sample_rate", sampleRate))
	return nil
}

// Level returns the most recent amplitude scaled to 0-255.
func (m *Monitor) Level() int {
	return int(m.level.Load())
}

// Running reports whether the monitor is sampling.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// Stop releases the input stream and resets the level.
func (m *Monitor) Stop() {
	if !m.running.Swap(false) {
		return
	}
	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}
	m.level.Store(0)
	m.logger.Info("level monitor stopped")
}

// sampleCallback scales the peak amplitude of each buffer to 0-255.
// Only the latest value is retained.
func (m *Monitor) sampleCallback(in []float32) {
	var peak float32
	for _, s := range in {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	level := int32(peak * 255)
	if level > 255 {
		level = 255
	}
	m.level.Store(level)
}
