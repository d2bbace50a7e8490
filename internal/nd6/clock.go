package nd6

import (
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
)

// timer is a one-shot stimer: expiry is polled via [timer.expired], restart
// is idempotent, and there is no cancellation primitive, matching the
// concurrency model's description of the original's timer semantics.  A
// zero-value timer whose infinite field is true never expires, used for
// addresses, prefixes, and routers with an infinite lifetime.
type timer struct {
	deadline time.Time
	infinite bool
	armed    bool
}

// set arms t to expire durAhead after clock's current time.
func (t *timer) set(clock timeutil.Clock, durAhead time.Duration) {
	t.infinite = false
	t.armed = true
	t.deadline = clock.Now().Add(durAhead)
}

// setInfinite arms t to never expire.
func (t *timer) setInfinite() {
	t.infinite = true
	t.armed = true
}

// expired reports whether t is armed, finite, and its deadline has passed.
func (t *timer) expired(clock timeutil.Clock) (ok bool) {
	if !t.armed || t.infinite {
		return false
	}

	return !clock.Now().Before(t.deadline)
}

// remaining returns the time left until expiry.  It returns 0 for an
// unarmed or already-expired timer and the largest possible duration for an
// infinite one.
func (t *timer) remaining(clock timeutil.Clock) (d time.Duration) {
	if !t.armed {
		return 0
	}

	if t.infinite {
		return time.Duration(1<<63 - 1)
	}

	d = t.deadline.Sub(clock.Now())
	if d < 0 {
		return 0
	}

	return d
}
