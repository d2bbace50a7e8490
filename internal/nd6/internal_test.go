package nd6

import (
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/stretchr/testify/assert"
)

// ptrClock reads its current time through a *time.Time, so a test can
// advance it in place without re-wiring every timer under test.
type ptrClock struct {
	now *time.Time
}

func (c ptrClock) Now() (t time.Time) { return *c.now }

func fixedClockPtr(now *time.Time) (clk timeutil.Clock) { return ptrClock{now: now} }

func fixedClock(now time.Time) (clk timeutil.Clock) { return ptrClock{now: &now} }

func TestPrefixCmp(t *testing.T) {
	a := netip.MustParseAddr("2001:db8::1")
	b := netip.MustParseAddr("2001:db8::2")
	c := netip.MustParseAddr("2001:db9::1")

	assert.True(t, prefixCmp(a, b, 64))
	assert.False(t, prefixCmp(a, b, 128))
	assert.False(t, prefixCmp(a, c, 32))
	assert.True(t, prefixCmp(a, c, 28))
}

func TestMatchLength(t *testing.T) {
	a := netip.MustParseAddr("2001:db8::1")
	assert.Equal(t, 128, matchLength(a, a))

	b := netip.MustParseAddr("2001:db8::2")
	assert.Equal(t, 126, matchLength(a, b))

	assert.Equal(t, 0, matchLength(netip.MustParseAddr("::"), netip.MustParseAddr("8000::")))
}

func TestRSBackoff(t *testing.T) {
	var b rsBackoff

	base := 4 * time.Second
	maxI := 60 * time.Second

	// First MaxRtrSolicitations attempts use the base interval.
	for range 3 {
		assert.Equal(t, base, b.next(3, base, maxI))
	}

	// Beyond the base budget, delay grows as (1<<c)-1 times base, capped.
	assert.Equal(t, base, b.next(3, base, maxI))  // c=1: (2-1)*base = base
	assert.Equal(t, 3*base, b.next(3, base, maxI)) // c=2: (4-1)*base
	assert.Equal(t, 7*base, b.next(3, base, maxI)) // c=3: (8-1)*base

	b.reset()
	assert.Equal(t, base, b.next(3, base, maxI))
}

func TestTimer_infiniteNeverExpires(t *testing.T) {
	clk := fixedClock(time.Unix(0, 0))

	var tm timer
	tm.setInfinite()

	assert.False(t, tm.expired(clk))
	assert.Equal(t, time.Duration(1<<63-1), tm.remaining(clk))
}

func TestTimer_expires(t *testing.T) {
	now := time.Unix(100, 0)
	clk := fixedClockPtr(&now)

	var tm timer
	tm.set(clk, 10*time.Second)

	assert.False(t, tm.expired(clk))

	now = now.Add(10 * time.Second)
	assert.True(t, tm.expired(clk))
	assert.Equal(t, time.Duration(0), tm.remaining(clk))
}
