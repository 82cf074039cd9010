// Package clocks provides tick sources for the membership engine.
package clocks

import (
	"sync/atomic"
	"time"

	"github.com/tilinna/clock"

	"github.com/atlassian/gossipmember"
)

// Manual is a clock which only moves when told to.  It is shared by every
// node of a simulation, and used in tests.
type Manual struct {
	tick int64 // atomic
}

var _ gossipmember.Clock = (*Manual)(nil)

func NewManual(start gossipmember.Tick) *Manual {
	return &Manual{tick: int64(start)}
}

func (m *Manual) CurrentTick() gossipmember.Tick {
	return gossipmember.Tick(atomic.LoadInt64(&m.tick))
}

// Advance moves the clock forward by n ticks and returns the new reading.
// Negative values are ignored, the clock never moves backwards.
func (m *Manual) Advance(n gossipmember.Tick) gossipmember.Tick {
	if n < 0 {
		n = 0
	}
	return gossipmember.Tick(atomic.AddInt64(&m.tick, int64(n)))
}

// Wall derives ticks from the wall time elapsed since it was created,
// counted in whole periods.  The underlying clock.Clock can be mocked.
type Wall struct {
	clck   clock.Clock
	start  time.Time
	period time.Duration
}

var _ gossipmember.Clock = (*Wall)(nil)

// NewWall creates a Wall clock reading tick 0 now.  Nodes sharing a
// deployment should share a period, their ticks are then loosely
// synchronized.
func NewWall(clck clock.Clock, period time.Duration) *Wall {
	return &Wall{
		clck:   clck,
		start:  clck.Now(),
		period: period,
	}
}

// NewWallFromEpoch creates a Wall clock counting periods since epoch, which
// lets independently started nodes agree on tick numbers.
func NewWallFromEpoch(clck clock.Clock, epoch time.Time, period time.Duration) *Wall {
	return &Wall{
		clck:   clck,
		start:  epoch,
		period: period,
	}
}

func (w *Wall) CurrentTick() gossipmember.Tick {
	elapsed := w.clck.Now().Sub(w.start)
	if elapsed < 0 {
		return 0
	}
	return gossipmember.Tick(elapsed / w.period)
}
