package nd6_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil/faketime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

// fakeTransport records the NS destinations, the RS count, and the RA
// destinations of the packets the driver attempts to send; NAs are not
// recorded.
type fakeTransport struct {
	ns []netip.Addr
	rs int
	ra []netip.Addr
}

func (t *fakeTransport) SendNS(_ context.Context, dst, _, _ netip.Addr, _ *nd6.ARO) (err error) {
	t.ns = append(t.ns, dst)

	return nil
}

func (t *fakeTransport) SendRS(context.Context, netip.Addr) (err error) {
	t.rs++

	return nil
}

func (t *fakeTransport) SendRA(_ context.Context, dst, _ netip.Addr, _ nd6.RAParams) (err error) {
	t.ra = append(t.ra, dst)

	return nil
}

func (t *fakeTransport) SendNA(context.Context, netip.Addr, netip.Addr, netip.Addr, bool, *nd6.ARO) (err error) {
	return nil
}

func newTestInterface(t *testing.T, role nd6.Role, now time.Time) (ifc *nd6.Interface, clk *faketime.Clock, tr *fakeTransport) {
	t.Helper()

	clk = &faketime.Clock{OnNow: func() time.Time { return now }}
	tr = &fakeTransport{}

	cfg := nd6.Config{
		Logger:                slogutil.NewDiscardLogger(),
		Clock:                 clk,
		LinkAddr:              nd6.LinkAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		Role:                  role,
		NeighborCacheSize:     4,
		DefaultRouterListSize: 2,
		PrefixListSize:        2,
		UnicastAddrListSize:   4,
		MulticastAddrListSize: 2,
		RegistrationListSize:  4,
	}

	var err error
	ifc, err = nd6.New(cfg, tr)
	require.NoError(t, err)

	return ifc, clk, tr
}

func TestNew_invalidConfig(t *testing.T) {
	_, err := nd6.New(nd6.Config{}, nil)
	assert.Error(t, err)
}

func TestInterface_addAndSelectSourceAddress(t *testing.T) {
	ifc, _, _ := newTestInterface(t, nd6.RoleHost, time.Unix(0, 0))

	ll := netip.MustParseAddr("fe80::1")
	a, err := ifc.Unicast.Add(ll, nd6.AddrOriginManual, nd6.RouterHandle{})
	require.NoError(t, err)

	a.State = nd6.AddrPreferred

	src := ifc.Unicast.SelectSource(netip.MustParseAddr("ff02::1"))
	assert.Equal(t, ll, src)
}

func TestInterface_Periodic_proactiveRS(t *testing.T) {
	now := time.Unix(0, 0)
	ifc, clk, tr := newTestInterface(t, nd6.RoleHost, now)

	clk.OnNow = func() time.Time { return now }

	// The startup RS delay is randomized in [0, MaxRtrSolicitationDelay);
	// advance past its upper bound so the first tick is guaranteed to
	// solicit.
	now = now.Add(2 * time.Second)
	ifc.Periodic(context.Background())
	assert.Equal(t, 1, tr.rs)

	// No router arrived, so the backoff schedule's base
	// RtrSolicitationInterval (4s) governs the next attempt.
	now = now.Add(5 * time.Second)
	ifc.Periodic(context.Background())
	assert.Equal(t, 2, tr.rs)
}

func TestInterface_RecvRA_installsRouterAndPrefix(t *testing.T) {
	ifc, _, _ := newTestInterface(t, nd6.RoleHost, time.Unix(0, 0))

	routerIP := netip.MustParseAddr("fe80::2")
	ifc.RecvRA(routerIP, nd6.RAParams{
		RouterLifetime: 30 * time.Minute,
		Prefixes: []nd6.RAPrefixAdv{{
			Prefix:        netip.MustParseAddr("2001:db8::"),
			Length:        64,
			OnLink:        true,
			Autonomous:    true,
			ValidLifetime: time.Hour,
		}},
	})

	r, _, ok := ifc.Routers.Lookup(routerIP)
	require.True(t, ok)
	assert.True(t, r.InUse)

	// The link address 02:00:00:00:00:01 expands to IID
	// 00:00:00:ff:fe:00:00:01 after the MAC-48 expansion and U/L flip.
	wantAddr := netip.MustParseAddr("2001:db8::ff:fe00:1")

	_, ok = ifc.Unicast.Lookup(wantAddr)
	assert.True(t, ok)

	p, ok := ifc.Prefixes.Lookup(netip.MustParseAddr("2001:db8::"), 64)
	require.True(t, ok)
	assert.True(t, p.IsOnLink)
	assert.True(t, p.IsAuto)
}

func TestInterface_RegisterAddress_roundTrip(t *testing.T) {
	now := time.Unix(0, 0)
	ifc, _, tr := newTestInterface(t, nd6.RoleHost, now)

	routerIP := netip.MustParseAddr("fe80::2")
	ifc.RecvRA(routerIP, nd6.RAParams{RouterLifetime: 30 * time.Minute})

	addr := netip.MustParseAddr("2001:db8::1")
	require.NoError(t, ifc.RegisterAddress(addr))

	ifc.Periodic(context.Background())
	require.Len(t, tr.ns, 1)
	assert.Equal(t, routerIP, tr.ns[0])

	ifc.RecvNA(routerIP, addr, nil, true, &nd6.ARO{Status: nd6.AROSuccess, Lifetime: time.Hour})

	r, _, ok := ifc.Registrations.Lookup(addr, mustRouterHandle(ifc, routerIP))
	require.True(t, ok)
	assert.Equal(t, nd6.RegRegistered, r.State)
}

func mustRouterHandle(ifc *nd6.Interface, ip netip.Addr) (rh nd6.RouterHandle) {
	_, idx, ok := ifc.Routers.Lookup(ip)
	if !ok {
		return nd6.RouterHandle{}
	}

	return ifc.Routers.HandleFor(idx)
}
