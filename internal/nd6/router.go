package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// RouterHandle is a stable reference to a [RouterList] slot.  Its zero value
// is the "no router" sentinel and is always invalid, unlike a bare
// [aghalg.Handle] zero value, which aliases slot 0: RouterHandle adds an
// explicit set bit so addresses and registrations can default to "no
// router" safely.
type RouterHandle struct {
	h   aghalg.Handle
	set bool
}

// Valid reports whether rh was ever returned by [RouterList.HandleFor].
func (rh RouterHandle) Valid() (ok bool) {
	return rh.set && rh.h.Valid()
}

// Router is a default router list entry (spec §3, "Default router").
type Router struct {
	IP netip.Addr

	// Neighbor is a back-reference into the neighbor cache entry tracking
	// this router's link-layer reachability.
	Neighbor NeighborHandle

	lifetime timer

	Preference int
	InUse      bool

	// NumRegistrations counts addresses currently registered with this
	// router, used by [RouterList.ChooseMinRegistrations] (spec §4.3).
	NumRegistrations int
}

// RouterList is C4's fixed-capacity default router pool.
type RouterList struct {
	arena *aghalg.Arena[Router]
	clock timeutil.Clock
}

// NewRouterList returns a RouterList with size slots.
func NewRouterList(size int, clock timeutil.Clock) (rl *RouterList) {
	return &RouterList{
		arena: aghalg.NewArena[Router](size),
		clock: clock,
	}
}

// HandleFor returns a stable handle to the slot at index i.
func (rl *RouterList) HandleFor(i int) (rh RouterHandle) {
	return RouterHandle{h: rl.arena.HandleFor(i), set: true}
}

// Resolve dereferences rh, reporting false if the router was removed since
// rh was obtained.
func (rl *RouterList) Resolve(rh RouterHandle) (r *Router, ok bool) {
	if !rh.set {
		return nil, false
	}

	return rl.arena.Resolve(rh.h)
}

// Lookup returns the in-use router with the given address.
func (rl *RouterList) Lookup(ip netip.Addr) (r *Router, idx int, ok bool) {
	idx = -1
	rl.arena.Range(func(i int, cand *Router) (cont bool) {
		if cand.InUse && cand.IP == ip {
			r = cand
			idx = i
			ok = true

			return false
		}

		return true
	})

	return r, idx, ok
}

// Add reuses a free slot for a newly-discovered router, or returns the
// existing entry if ip is already present.
func (rl *RouterList) Add(ip netip.Addr, neighbor NeighborHandle) (r *Router, err error) {
	if existing, _, found := rl.Lookup(ip); found {
		return existing, nil
	}

	free := -1
	rl.arena.Range(func(i int, cand *Router) (cont bool) {
		if !cand.InUse {
			free = i

			return false
		}

		return true
	})

	if free < 0 {
		return nil, ErrNoSpace
	}

	r = rl.arena.At(free)
	*r = Router{IP: ip, Neighbor: neighbor, InUse: true}

	return r, nil
}

// Remove clears r's in_use flag, invalidating every [RouterHandle] pointing
// to its slot.
func (rl *RouterList) Remove(r *Router) {
	rl.arena.Range(func(i int, cand *Router) (cont bool) {
		if cand == r {
			cand.InUse = false
			rl.arena.Free(i)

			return false
		}

		return true
	})
}

// SetLifetime arms r's lifetime timer; a zero lifetime marks the router
// as no longer default per RFC 4861 §6.3.4, removing it immediately.
func (rl *RouterList) SetLifetime(r *Router, lifetime time.Duration) {
	if lifetime <= 0 {
		rl.Remove(r)

		return
	}

	r.lifetime.set(rl.clock, lifetime)
}

// ExpireOne checks a single in-use router for lifetime expiry, removing it
// if expired, and otherwise returns its remaining lifetime for the driver's
// minimum-lifetime accumulation (spec §4.10 step 2).
func (rl *RouterList) ExpireOne(idx int) (remaining time.Duration, removed bool) {
	r := rl.arena.At(idx)
	if !r.InUse {
		return 0, false
	}

	if r.lifetime.expired(rl.clock) {
		r.InUse = false
		rl.arena.Free(idx)

		return 0, true
	}

	return r.lifetime.remaining(rl.clock), false
}

// Choose implements spec §4.3: it returns the first in-use router found, a
// first-match-wins tie-break among equally eligible routers, matching the
// original's uip_ds6_defrt_choose.
func (rl *RouterList) Choose() (r *Router, ok bool) {
	rl.arena.Range(func(_ int, cand *Router) (cont bool) {
		if cand.InUse {
			r = cand
			ok = true

			return false
		}

		return true
	})

	return r, ok
}

// ChooseMinRegistrations implements spec §4.3's registration-aware router
// selection: it returns the in-use router with the fewest registrations
// that does not already have addr registered, used when registering a new
// address against multiple routers.
func (rl *RouterList) ChooseMinRegistrations(hasAddr func(r *Router) bool) (r *Router, ok bool) {
	best := -1

	rl.arena.Range(func(_ int, cand *Router) (cont bool) {
		if !cand.InUse || hasAddr(cand) {
			return true
		}

		if best < 0 || cand.NumRegistrations < best {
			best = cand.NumRegistrations
			r = cand
			ok = true
		}

		return true
	})

	return r, ok
}

// Cap returns the router list's fixed capacity.
func (rl *RouterList) Cap() (n int) {
	return rl.arena.Cap()
}

// At returns the slot at index i for driver iteration.
func (rl *RouterList) At(i int) (r *Router) {
	return rl.arena.At(i)
}
