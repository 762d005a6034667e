package scheduler

import "time"

// FrameSource delivers frame ticks to a Loop.
type FrameSource interface {
	C() <-chan time.Time
	Stop()
}

type ticker struct {
	t *time.Ticker
}

// Ticker returns a FrameSource firing fps times per second.
// Missed frames are dropped rather than queued.
func Ticker(fps int) FrameSource {
	if fps <= 0 {
		fps = 60
	}
	return &ticker{t: time.NewTicker(time.Second / time.Duration(fps))}
}

func (t *ticker) C() <-chan time.Time { return t.t.C }
func (t *ticker) Stop()               { t.t.Stop() }

// Manual is a FrameSource fired explicitly.
type Manual struct {
	c chan time.Time
}

// NewManual creates a Manual frame source.
func NewManual() *Manual {
	return &Manual{c: make(chan time.Time)}
}

func (m *Manual) C() <-chan time.Time { return m.c }

// Stop is a no-op; a Manual source has no resources.
func (m *Manual) Stop() {}

// Fire blocks until the loop accepts one frame.
func (m *Manual) Fire() {
	m.c <- time.Now()
}
