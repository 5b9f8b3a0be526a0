package coach

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/camera"
)

var errNoCamera = errors.New("no camera attached")

const (
	// MinAnalysisInterval and MaxAnalysisInterval bound the user-adjustable
	// frame-analysis cadence.
	MinAnalysisInterval = 1 * time.Second
	MaxAnalysisInterval = 10 * time.Second
)

// FrameAnalyzer dispatches one frame to the remote vision service.
type FrameAnalyzer interface {
	AnalyzeFrame(ctx context.Context, req api.AnalyzeRequest) (*api.AnalyzeResponse, error)
}

// Scheduler paces frame analysis. At most one request is in flight; a tick
// that fires while a request is outstanding is skipped, never queued, so
// stale results cannot arrive after fresher ones. TryBegin and Finish are
// called from the single-threaded update loop.
type Scheduler struct {
	source   camera.FrameSource
	analyzer FrameAnalyzer
	interval time.Duration
	inFlight bool
	logger   *zap.Logger
}

// NewScheduler creates a scheduler with the given cadence (clamped to the
// allowed range). source may be nil until a camera is attached.
func NewScheduler(source camera.FrameSource, analyzer FrameAnalyzer, interval time.Duration, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		source:   source,
		analyzer: analyzer,
		logger:   logger.With(zap.String("component", "scheduler")),
	}
	s.SetInterval(interval)
	return s
}

// SetSource attaches or replaces the camera.
func (s *Scheduler) SetSource(source camera.FrameSource) {
	s.source = source
}

// Interval returns the current analysis cadence.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// SetInterval adjusts the cadence, clamping to [1s, 10s].
func (s *Scheduler) SetInterval(d time.Duration) {
	if d < MinAnalysisInterval {
		d = MinAnalysisInterval
	}
	if d > MaxAnalysisInterval {
		d = MaxAnalysisInterval
	}
	s.interval = d
}

// AdjustInterval nudges the cadence by delta, clamped.
func (s *Scheduler) AdjustInterval(delta time.Duration) {
	s.SetInterval(s.interval + delta)
}

// TryBegin claims the single in-flight slot. Returns false when a request
// is already outstanding; the caller must skip this tick.
func (s *Scheduler) TryBegin() bool {
	if s.inFlight {
		s.logger.Debug("analysis tick skipped, request in flight")
		return false
	}
	s.inFlight = true
	return true
}

// InFlight reports whether a request is outstanding.
func (s *Scheduler) InFlight() bool {
	return s.inFlight
}

// Analyze grabs one frame and dispatches it with the given context
// snapshot. Runs off the update loop; the caller must have claimed the
// slot with TryBegin and must release it via Finish.
func (s *Scheduler) Analyze(ctx context.Context, req api.AnalyzeRequest) (*api.AnalyzeResponse, error) {
	if s.source == nil {
		return nil, errNoCamera
	}
	frame, err := s.source.Grab(ctx)
	if err != nil {
		return nil, err
	}
	req.ImageBase64 = base64.StdEncoding.EncodeToString(frame)
	return s.analyzer.AnalyzeFrame(ctx, req)
}

// Finish releases the in-flight slot. A failed analysis is logged and
// otherwise ignored; the schedule continues.
func (s *Scheduler) Finish(err error) {
	s.inFlight = false
	if err != nil {
		s.logger.Warn("frame analysis failed, skipping cycle", zap.Error(err))
	}
}
