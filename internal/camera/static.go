package camera

import (
	"context"
	"fmt"
)

// StaticSource cycles through a fixed set of frames. Used in tests and for
// driving the pipeline without camera hardware.
type StaticSource struct {
	Frames [][]byte
	next   int
}

// Grab returns the next frame, wrapping around.
func (s *StaticSource) Grab(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Frames) == 0 {
		return nil, fmt.Errorf("static source has no frames")
	}
	frame := s.Frames[s.next%len(s.Frames)]
	s.next++
	return frame, nil
}
