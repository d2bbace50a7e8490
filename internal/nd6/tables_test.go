package nd6_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/testutil/faketime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

func fixedClock(t time.Time) (clk *faketime.Clock) {
	return &faketime.Clock{OnNow: func() time.Time { return t }}
}

func TestRouterList_noSpace(t *testing.T) {
	rl := nd6.NewRouterList(1, fixedClock(time.Unix(0, 0)))

	_, err := rl.Add(netip.MustParseAddr("fe80::1"), nd6.NeighborHandle{})
	require.NoError(t, err)

	_, err = rl.Add(netip.MustParseAddr("fe80::2"), nd6.NeighborHandle{})
	assert.ErrorIs(t, err, nd6.ErrNoSpace)
}

func TestRouterHandle_staleAfterRemove(t *testing.T) {
	rl := nd6.NewRouterList(1, fixedClock(time.Unix(0, 0)))

	r, err := rl.Add(netip.MustParseAddr("fe80::1"), nd6.NeighborHandle{})
	require.NoError(t, err)

	h := rl.HandleFor(0)
	_, ok := rl.Resolve(h)
	assert.True(t, ok)

	rl.Remove(r)

	_, ok = rl.Resolve(h)
	assert.False(t, ok)

	var zero nd6.RouterHandle
	assert.False(t, zero.Valid())
}

func TestNeighborCache_evictsLRU(t *testing.T) {
	now := time.Unix(0, 0)
	clk := &faketime.Clock{OnNow: func() time.Time { return now }}

	nc := nd6.NewNeighborCache(2, clk, nil)

	addrA := netip.MustParseAddr("fe80::a")
	addrB := netip.MustParseAddr("fe80::b")
	addrC := netip.MustParseAddr("fe80::c")

	nc.Add(addrA)
	now = now.Add(time.Second)
	nc.Add(addrB)
	now = now.Add(time.Second)

	// Touch A so B becomes the least-recently-used entry.
	_, _, ok := nc.Lookup(addrA)
	require.True(t, ok)
	now = now.Add(time.Second)

	nc.Add(addrC)

	_, _, ok = nc.Lookup(addrB)
	assert.False(t, ok, "B should have been evicted as the LRU entry")

	_, _, ok = nc.Lookup(addrA)
	assert.True(t, ok)

	_, _, ok = nc.Lookup(addrC)
	assert.True(t, ok)
}

func TestRegistrationList_duplicateInProgress(t *testing.T) {
	rl := nd6.NewRegistrationList(2, fixedClock(time.Unix(0, 0)))

	addr := netip.MustParseAddr("2001:db8::1")

	_, _, err := rl.Add(addr, nil, nd6.RouterHandle{})
	require.NoError(t, err)

	_, _, err = rl.Add(addr, nil, nd6.RouterHandle{})
	assert.Error(t, err)
}

func TestRegistrationList_registrationCountTransactional(t *testing.T) {
	now := time.Unix(0, 0)
	clk := &faketime.Clock{OnNow: func() time.Time { return now }}

	routers := nd6.NewRouterList(1, clk)
	router, err := routers.Add(netip.MustParseAddr("fe80::1"), nd6.NeighborHandle{})
	require.NoError(t, err)

	rh := routers.HandleFor(0)

	rl := nd6.NewRegistrationList(1, clk)

	addr := netip.MustParseAddr("2001:db8::1")
	r, _, err := rl.Add(addr, routers, rh)
	require.NoError(t, err)
	assert.Equal(t, 1, router.NumRegistrations)

	rl.Remove(r, routers)
	assert.Equal(t, 0, router.NumRegistrations)
}

func TestRegistrationList_reusesGarbageCollectibleSlot(t *testing.T) {
	now := time.Unix(0, 0)
	clk := &faketime.Clock{OnNow: func() time.Time { return now }}

	routers := nd6.NewRouterList(1, clk)
	router, err := routers.Add(netip.MustParseAddr("fe80::1"), nd6.NeighborHandle{})
	require.NoError(t, err)

	rh := routers.HandleFor(0)

	rl := nd6.NewRegistrationList(1, clk)

	stale, _, err := rl.Add(netip.MustParseAddr("2001:db8::1"), routers, rh)
	require.NoError(t, err)
	stale.State = nd6.RegGarbageCollectible
	assert.Equal(t, 1, router.NumRegistrations)

	fresh, _, err := rl.Add(netip.MustParseAddr("2001:db8::2"), routers, rh)
	require.NoError(t, err)
	assert.Equal(t, nd6.RegTentative, fresh.State)
	assert.Equal(t, 1, router.NumRegistrations)
}

func TestRouteTable_longestPrefixMatch(t *testing.T) {
	rt := nd6.NewRouteTable(4, fixedClock(time.Unix(0, 0)))

	wide := netip.MustParseAddr("2001:db8::")
	narrow := netip.MustParseAddr("2001:db8::1:0")

	nextHop1 := netip.MustParseAddr("fe80::1")
	nextHop2 := netip.MustParseAddr("fe80::2")

	_, err := rt.Add(wide, 32, nextHop1)
	require.NoError(t, err)

	_, err = rt.Add(narrow, 112, nextHop2)
	require.NoError(t, err)

	dst := netip.MustParseAddr("2001:db8::1:abcd")
	r, ok := rt.Lookup(dst)
	require.True(t, ok)
	assert.Equal(t, nextHop2, r.NextHop)

	rt.RemoveByNextHop(nextHop2)

	r, ok = rt.Lookup(dst)
	require.True(t, ok)
	assert.Equal(t, nextHop1, r.NextHop)
}

func TestContextTable_expiryGracePeriod(t *testing.T) {
	now := time.Unix(0, 0)
	clk := &faketime.Clock{OnNow: func() time.Time { return now }}

	ct := nd6.NewContextTable(2, clk)

	_, err := ct.Set(0, netip.MustParseAddr("2001:db8::"), 64, true, 10*time.Second, 30*time.Second)
	require.NoError(t, err)

	c, ok := ct.ByID(0)
	require.True(t, ok)
	assert.Equal(t, nd6.ContextActive, c.State)

	// First expiry: valid lifetime (10s) elapses, the entry moves to
	// ContextExpired with its timer reset to 2x the router lifetime (30s),
	// per spec §4.5's double-expiry grace period.
	now = now.Add(10 * time.Second)
	ct.ExpireOne(0)

	c, ok = ct.ByID(0)
	require.True(t, ok)
	assert.Equal(t, nd6.ContextExpired, c.State)
	assert.False(t, c.Compress)

	// Still within the 60s grace window: not yet reclaimed.
	now = now.Add(59 * time.Second)
	ct.ExpireOne(0)

	_, ok = ct.ByID(0)
	assert.True(t, ok)

	// Past the grace window: freed.
	now = now.Add(2 * time.Second)
	ct.ExpireOne(0)

	_, ok = ct.ByID(0)
	assert.False(t, ok)
}

func TestPrefixList_onLink(t *testing.T) {
	pl := nd6.NewPrefixList(2, fixedClock(time.Unix(0, 0)))

	p, err := pl.Add(netip.MustParseAddr("2001:db8::"), 64)
	require.NoError(t, err)
	p.IsOnLink = true

	assert.True(t, pl.OnLink(netip.MustParseAddr("2001:db8::1")))
	assert.False(t, pl.OnLink(netip.MustParseAddr("2001:db9::1")))
}

func TestAddrOnlyList_addAndRemove(t *testing.T) {
	l := nd6.NewAddrOnlyList(1)

	ip := netip.MustParseAddr("ff02::1:ff00:1")
	require.NoError(t, l.Add(ip))
	assert.True(t, l.Lookup(ip))

	other := netip.MustParseAddr("ff02::1:ff00:2")
	assert.ErrorIs(t, l.Add(other), nd6.ErrNoSpace)

	l.Remove(ip)
	assert.False(t, l.Lookup(ip))
	assert.NoError(t, l.Add(other))
}
