package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// Route is a routing table entry (spec §3, "Route").
type Route struct {
	Prefix  netip.Addr
	Length  int
	NextHop netip.Addr

	lifetime timer

	InUse bool

	// ProtocolState is an opaque slot for a routing protocol's own
	// per-route bookkeeping (e.g. RPL rank/metric state); this package
	// never reads or writes it beyond zeroing it on reuse, mirroring the
	// original's uip_ds6_route_t.state field (spec §5 supplement).
	ProtocolState any
}

// RouteTable is C7's fixed-capacity routing table, with longest-prefix-match
// lookup per spec §4.7.  A RouteTable of zero capacity disables routing
// entirely.
type RouteTable struct {
	arena *aghalg.Arena[Route]
	clock timeutil.Clock
}

// NewRouteTable returns a RouteTable with size slots.
func NewRouteTable(size int, clock timeutil.Clock) (rt *RouteTable) {
	return &RouteTable{
		arena: aghalg.NewArena[Route](size),
		clock: clock,
	}
}

// Lookup returns the in-use route with the longest prefix match for dst,
// per spec §4.7.
func (rt *RouteTable) Lookup(dst netip.Addr) (r *Route, ok bool) {
	bestLen := -1

	rt.arena.Range(func(_ int, cand *Route) (cont bool) {
		if !cand.InUse || !prefixCmp(cand.Prefix, dst, cand.Length) {
			return true
		}

		if cand.Length > bestLen {
			bestLen = cand.Length
			r = cand
			ok = true
		}

		return true
	})

	return r, ok
}

// Add installs a route for (prefix, length) via nextHop, reusing the first
// free slot, or returns the existing entry if one with the same (prefix,
// length, nextHop) already exists.
func (rt *RouteTable) Add(prefix netip.Addr, length int, nextHop netip.Addr) (r *Route, err error) {
	free := -1

	found := false
	rt.arena.Range(func(i int, cand *Route) (cont bool) {
		if !cand.InUse {
			if free < 0 {
				free = i
			}

			return true
		}

		if cand.Length == length && cand.Prefix == prefix && cand.NextHop == nextHop {
			r = cand
			found = true

			return false
		}

		return true
	})

	if found {
		return r, nil
	}

	if free < 0 {
		return nil, ErrNoSpace
	}

	r = rt.arena.At(free)
	*r = Route{Prefix: prefix, Length: length, NextHop: nextHop, InUse: true}

	return r, nil
}

// RemoveByNextHop implements spec §4.7's remove_by_next_hop: every route
// whose next hop equals nextHop is removed, used when a default router or
// neighbor is dropped.
func (rt *RouteTable) RemoveByNextHop(nextHop netip.Addr) {
	rt.arena.Range(func(i int, cand *Route) (cont bool) {
		if cand.InUse && cand.NextHop == nextHop {
			cand.InUse = false
			cand.ProtocolState = nil
			rt.arena.Free(i)
		}

		return true
	})
}

// Remove clears r's in_use flag.
func (rt *RouteTable) Remove(r *Route) {
	rt.arena.Range(func(i int, cand *Route) (cont bool) {
		if cand == r {
			cand.InUse = false
			cand.ProtocolState = nil
			rt.arena.Free(i)

			return false
		}

		return true
	})
}

// SetLifetime arms r's lifetime timer, or marks it infinite.
func (rt *RouteTable) SetLifetime(r *Route, lifetime time.Duration, infinite bool) {
	if infinite {
		r.lifetime.setInfinite()

		return
	}

	r.lifetime.set(rt.clock, lifetime)
}

// ExpireOne checks a single in-use route for lifetime expiry, removing it
// if expired, and otherwise returns its remaining lifetime for the driver's
// minimum-lifetime accumulation.
func (rt *RouteTable) ExpireOne(idx int) (remaining time.Duration, removed bool) {
	r := rt.arena.At(idx)
	if !r.InUse {
		return 0, false
	}

	if r.lifetime.expired(rt.clock) {
		r.InUse = false
		r.ProtocolState = nil
		rt.arena.Free(idx)

		return 0, true
	}

	return r.lifetime.remaining(rt.clock), false
}

// Cap returns the routing table's fixed capacity.
func (rt *RouteTable) Cap() (n int) {
	return rt.arena.Cap()
}

// At returns the slot at index i for driver iteration.
func (rt *RouteTable) At(i int) (r *Route) {
	return rt.arena.At(i)
}
