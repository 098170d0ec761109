package telemetry

import (
	"fmt"
	"io"
	"sync"

	"github.com/pthm-cable/nanosim/components"
)

// Progress is one (particle, step) report.
type Progress struct {
	ID       int
	Step     int // 0-based
	Steps    int
	Position components.Vec3
}

// String formats the report as a single human-readable line without a newline.
func (p Progress) String() string {
	return fmt.Sprintf("particle %d step %d/%d position: %s", p.ID, p.Step+1, p.Steps, p.Position)
}

// Reporter receives progress reports from concurrently running tasks.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Report(Progress) error
}

// ProgressSink writes one line per report to a shared writer.
// Each line is written with a single Write call under a lock, so lines from
// different tasks never interleave.
type ProgressSink struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewProgressSink creates a sink writing to w.
func NewProgressSink(w io.Writer) *ProgressSink {
	return &ProgressSink{w: w}
}

// Report writes p as a line.
func (s *ProgressSink) Report(p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf[:0], p.String()...)
	s.buf = append(s.buf, '\n')
	if _, err := s.w.Write(s.buf); err != nil {
		return fmt.Errorf("writing progress for particle %d: %w", p.ID, err)
	}
	return nil
}

// Discard is a Reporter that drops every report.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Progress) error { return nil }
