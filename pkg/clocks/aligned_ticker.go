package clocks

import (
	"context"
	"time"

	"github.com/tilinna/clock"
)

// Epoch is the wall time at which tick 0 begins for nodes in separate processes.
var Epoch = time.Unix(0, 0)

// AlignedTicker is a ticker which fires at epoch+offset+n*interval, no matter
// when it was created.  Instead of firing at:
// [T+1*interval, T+2*interval, T+3*interval, ...]
//
// It will fire at the first aligned time after T, and every interval after that.
//
// The time.Time sent to the channel is the aligned time, rather than the actual time of firing.  Ticks are
// dropped if the receiver falls behind.
type AlignedTicker struct {
	C          <-chan time.Time
	chInternal chan time.Time
	chStop     chan struct{}
	epoch      time.Time
	interval   time.Duration
	offset     time.Duration
}

// NewAlignedTicker starts an AlignedTicker using the clock from ctx.
func NewAlignedTicker(ctx context.Context, epoch time.Time, interval, offset time.Duration) *AlignedTicker {
	ch := make(chan time.Time, 1)
	at := &AlignedTicker{
		C:          ch,
		chInternal: ch,
		chStop:     make(chan struct{}),
		epoch:      epoch,
		interval:   interval,
		offset:     offset,
	}
	go at.start(clock.FromContext(ctx))
	return at
}

// align returns the latest aligned time not after t.
func (at *AlignedTicker) align(t time.Time) time.Time {
	base := at.epoch.Add(at.offset)
	since := t.Sub(base)
	n := since / at.interval
	if since < 0 && since%at.interval != 0 {
		n--
	}
	return base.Add(n * at.interval)
}

func (at *AlignedTicker) start(clck clock.Clock) {
	now := clck.Now()
	next := at.align(now)
	if !next.After(now) {
		next = next.Add(at.interval)
	}
	tmr := clck.NewTimer(next.Sub(now))

	// Wait for the first aligned time, then tick every interval.
	var tckr *clock.Ticker
	select {
	case t := <-tmr.C:
		tckr = clck.NewTicker(at.interval)
		defer tckr.Stop()
		if !at.sendTick(t) {
			return
		}
	case <-at.chStop:
		tmr.Stop()
		return
	}

	for {
		select {
		case t := <-tckr.C:
			if !at.sendTick(t) {
				return
			}
		case <-at.chStop:
			return
		}
	}
}

func (at *AlignedTicker) sendTick(t time.Time) bool {
	select {
	case at.chInternal <- at.align(t):
		return true
	case <-at.chStop:
		return false
	default:
		return true
	}
}

// Stop stops the ticker.  No ticks are sent after Stop returns, but one may
// already be waiting in C.
func (at *AlignedTicker) Stop() {
	close(at.chStop)
}
