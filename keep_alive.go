package mqttwire

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrKeepAliveTimeout closes a connection whose PINGREQ went unanswered.
var ErrKeepAliveTimeout = errors.New("no PINGRESP within keep alive")

// keepAliveGraceFactor stretches the interval into the PINGRESP deadline.
const keepAliveGraceFactor = 1.5

// keepAlive tracks outbound idle time and the outstanding PINGREQ of one
// connection. lastSent is written by the writer loop; everything else is
// owned by the event loop.
type keepAlive struct {
	interval    time.Duration
	graceFactor float64
	lastSent    atomic.Int64
	pingSentAt  time.Time
	timer       *Timer
}

func newKeepAlive(seconds uint16) *keepAlive {
	k := &keepAlive{graceFactor: keepAliveGraceFactor}
	k.setInterval(time.Duration(seconds) * time.Second)
	k.markSent(time.Now())
	return k
}

func (k *keepAlive) setInterval(d time.Duration) {
	k.interval = d
}

// applyConnack takes over the Server Keep Alive when the server set one.
// It returns the interval in effect.
func (k *keepAlive) applyConnack(connack *ConnackPacket) time.Duration {
	if connack.Props.Has(PropServerKeepAlive) {
		k.setInterval(time.Duration(connack.Props.GetUint16(PropServerKeepAlive)) * time.Second)
	}
	return k.interval
}

func (k *keepAlive) timeout() time.Duration {
	return time.Duration(float64(k.interval) * k.graceFactor)
}

func (k *keepAlive) markSent(t time.Time) {
	k.lastSent.Store(t.UnixNano())
}

func (k *keepAlive) pingAcked() {
	k.pingSentAt = time.Time{}
}

// next decides what happens at now: send a PINGREQ, give up on the
// outstanding one, or wait. wait is the delay until the next check.
func (k *keepAlive) next(now time.Time) (ping, expired bool, wait time.Duration) {
	if !k.pingSentAt.IsZero() {
		since := now.Sub(k.pingSentAt)
		if since >= k.timeout() {
			return false, true, 0
		}
		return false, false, k.timeout() - since
	}

	idle := now.Sub(time.Unix(0, k.lastSent.Load()))
	if idle >= k.interval {
		k.pingSentAt = now
		return true, false, k.timeout()
	}
	return false, false, k.interval - idle
}

func (k *keepAlive) stop() {
	if k.timer != nil {
		k.timer.Cancel()
		k.timer = nil
	}
}
