// Package camera produces single JPEG frames for remote analysis. Capture
// shells out to ffmpeg so no video stack is linked into the binary; the
// live pipeline only ever needs one frame per analysis tick.
package camera

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// FrameSource yields one compressed camera frame per call.
type FrameSource interface {
	// Grab captures a single JPEG frame.
	Grab(ctx context.Context) ([]byte, error)
}

// FFmpegSource grabs frames from a local capture device via ffmpeg.
type FFmpegSource struct {
	mu     sync.Mutex
	device string
	logger *zap.Logger
}

// NewFFmpegSource verifies ffmpeg is installed and returns a source reading
// from the given device (e.g. /dev/video0, or an avfoundation index on
// macOS).
func NewFFmpegSource(device string, logger *zap.Logger) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found, camera capture unavailable: %w", err)
	}
	return &FFmpegSource{
		device: device,
		logger: logger.With(zap.String("component", "camera")),
	}, nil
}

// SetDevice switches the capture device, e.g. between a front and a back
// camera. Takes effect on the next Grab.
func (s *FFmpegSource) SetDevice(device string) {
	s.mu.Lock()
	s.device = device
	s.mu.Unlock()
}

// Device returns the current capture device.
func (s *FFmpegSource) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Grab captures one JPEG frame from the device.
func (s *FFmpegSource) Grab(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()

	args := []string{
		"-f", inputFormat(),
		"-i", device,
		"-frames:v", "1",
		"-q:v", "5",
		"-f", "image2",
		"-vcodec", "mjpeg",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		s.logger.Warn("frame grab failed",
			zap.String("device", device),
			zap.String("stderr", truncate(errBuf.String(), 400)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to capture frame from %s: %w", device, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("capture from %s produced no frame data", device)
	}
	return out.Bytes(), nil
}

// inputFormat maps the platform to its ffmpeg capture backend.
func inputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
