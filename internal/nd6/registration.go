package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// RegState is a 6LoWPAN-ND registration's lifecycle state (spec §3,
// "Registration").
type RegState int

const (
	RegTentative RegState = iota
	RegRegistered
	RegToBeUnregistered
	RegGarbageCollectible
)

// RegistrationHandle is a stable reference to a [RegistrationList] slot,
// with the same explicit-invalid zero value as [RouterHandle]; it backs the
// interface-level "registration in progress" reference (spec §4.4, §5).
type RegistrationHandle struct {
	h   aghalg.Handle
	set bool
}

// Valid reports whether rh was ever returned by [RegistrationList.HandleFor].
func (rh RegistrationHandle) Valid() (ok bool) {
	return rh.set && rh.h.Valid()
}

// Registration is a single 6LoWPAN-ND Address Registration Option exchange
// in progress or completed with one router, for one address.
type Registration struct {
	Addr   netip.Addr
	Router RouterHandle

	lifetime timer

	// retransmit gates NS(ARO) (re)transmission while the registration is
	// TENTATIVE or TO_BE_UNREGISTERED, separately from lifetime, which
	// tracks how long the registration itself stays valid.
	retransmit timer

	// totalLifetime is the full duration lifetime was last armed for,
	// used to detect that a REGISTERED entry has crossed its half-life
	// and needs refreshing (spec §4.10 step 1: remaining < elapsed).
	totalLifetime time.Duration

	State RegState

	// retries counts NS(ARO) retransmissions sent while State is
	// RegTentative or RegToBeUnregistered, bounded by
	// [Config.MaxUnicastSolicit].
	retries int

	InUse bool
}

// RegistrationList is C6's fixed-capacity registration pool.
type RegistrationList struct {
	arena *aghalg.Arena[Registration]
	clock timeutil.Clock
}

// NewRegistrationList returns a RegistrationList with size slots.
func NewRegistrationList(size int, clock timeutil.Clock) (rl *RegistrationList) {
	return &RegistrationList{
		arena: aghalg.NewArena[Registration](size),
		clock: clock,
	}
}

// Lookup returns the in-use registration for (addr, router).
func (rl *RegistrationList) Lookup(addr netip.Addr, router RouterHandle) (r *Registration, idx int, ok bool) {
	idx = -1
	rl.arena.Range(func(i int, cand *Registration) (cont bool) {
		if cand.InUse && cand.Addr == addr && cand.Router == router {
			r = cand
			idx = i
			ok = true

			return false
		}

		return true
	})

	return r, idx, ok
}

// Add creates a TENTATIVE registration for (addr, router), failing with
// errInProgress if one already exists, per spec §4.9.  If the pool is full,
// the first GARBAGE_COLLECTIBLE entry is evicted and its slot reused before
// giving up with ErrNoSpace, per spec §4.4.  routers resolves router-side
// counter bookkeeping (spec §4.4's "add … increments … registration_count")
// for both the evicted entry, if any, and the new one; it may be nil when a
// router is not tracking its own registration count (e.g. the router-side
// bookkeeping of registrations it has accepted from hosts).
func (rl *RegistrationList) Add(
	addr netip.Addr,
	routers *RouterList,
	router RouterHandle,
) (r *Registration, idx int, err error) {
	if _, _, found := rl.Lookup(addr, router); found {
		return nil, -1, errInProgress
	}

	free, gcSlot := -1, -1
	rl.arena.Range(func(i int, cand *Registration) (cont bool) {
		if !cand.InUse {
			free = i

			return false
		}

		if gcSlot < 0 && cand.State == RegGarbageCollectible {
			gcSlot = i
		}

		return true
	})

	if free < 0 {
		if gcSlot < 0 {
			return nil, -1, ErrNoSpace
		}

		free = gcSlot
		evicted := rl.arena.At(free)
		decrementRouter(routers, evicted.Router)
	}

	r = rl.arena.At(free)
	*r = Registration{Addr: addr, Router: router, State: RegTentative, InUse: true}

	if routers != nil {
		if rtr, ok := routers.Resolve(router); ok {
			rtr.NumRegistrations++
		}
	}

	return r, free, nil
}

// Remove clears r's in_use flag and, if routers is non-nil, decrements r's
// router's registration_count, per spec §4.4's "remove(reg): decrement …
// registration_count".
func (rl *RegistrationList) Remove(r *Registration, routers *RouterList) {
	wasInUse := false

	rl.arena.Range(func(i int, cand *Registration) (cont bool) {
		if cand == r {
			wasInUse = cand.InUse
			cand.InUse = false
			rl.arena.Free(i)

			return false
		}

		return true
	})

	if wasInUse {
		decrementRouter(routers, r.Router)
	}
}

// decrementRouter decrements router's registration count, if routers is
// non-nil and router resolves to an in-use router.
func decrementRouter(routers *RouterList, router RouterHandle) {
	if routers == nil {
		return
	}

	if rtr, ok := routers.Resolve(router); ok && rtr.NumRegistrations > 0 {
		rtr.NumRegistrations--
	}
}

// HandleFor returns a stable handle to the slot at index i.
func (rl *RegistrationList) HandleFor(i int) (rh RegistrationHandle) {
	return RegistrationHandle{h: rl.arena.HandleFor(i), set: true}
}

// Resolve dereferences rh, reporting false if the registration was removed
// since rh was obtained.
func (rl *RegistrationList) Resolve(rh RegistrationHandle) (r *Registration, ok bool) {
	if !rh.set {
		return nil, false
	}

	return rl.arena.Resolve(rh.h)
}

// SetLifetime arms r's registration-lifetime timer for lifetime and records
// it as the full lifetime for half-life detection.  It does not look at
// r.State; callers pass the value matching it: the short fixed lifetimes
// from [Config] for TENTATIVE and GARBAGE_COLLECTIBLE, the ARO lifetime
// negotiated with the router for REGISTERED.
func (rl *RegistrationList) SetLifetime(r *Registration, lifetime time.Duration) {
	r.lifetime.set(rl.clock, lifetime)
	r.totalLifetime = lifetime
}

// halfLifeElapsed reports whether r's registration lifetime has passed its
// midpoint, i.e. remaining < elapsed, per spec §4.10 step 1's REGISTERED
// refresh condition.
func (r *Registration) halfLifeElapsed(clock timeutil.Clock) (ok bool) {
	if r.totalLifetime <= 0 {
		return false
	}

	return 2*r.lifetime.remaining(clock) < r.totalLifetime
}

// CleanupRouter implements spec §4.9's cleanup_router: every registration
// referencing router transitions toward removal, used when a default
// router is removed or becomes unreachable.
func (rl *RegistrationList) CleanupRouter(router RouterHandle, cb func(r *Registration)) {
	rl.arena.Range(func(i int, cand *Registration) (cont bool) {
		if cand.InUse && cand.Router == router {
			cb(cand)
		}

		return true
	})
}

// CleanupAddress implements spec §4.9's cleanup_address: every registration
// referencing addr transitions toward removal, used when a unicast address
// is removed.
func (rl *RegistrationList) CleanupAddress(addr netip.Addr, cb func(r *Registration)) {
	rl.arena.Range(func(i int, cand *Registration) (cont bool) {
		if cand.InUse && cand.Addr == addr {
			cb(cand)
		}

		return true
	})
}

// ExpireOne advances a single in-use registration's timer-driven lifecycle:
// a TENTATIVE or GARBAGE_COLLECTIBLE registration whose lifetime elapses is
// removed outright; a REGISTERED or TO_BE_UNREGISTERED registration whose
// lifetime elapses reports its remaining time as zero so the driver
// re-registers or finalizes the unregistration.  It otherwise returns the
// remaining lifetime for the driver's minimum-lifetime accumulation.  routers
// decrements the freed entry's router registration_count, per spec §4.4; it
// may be nil for the router-side bookkeeping table.
func (rl *RegistrationList) ExpireOne(idx int, routers *RouterList) (remaining time.Duration, expired bool) {
	r := rl.arena.At(idx)
	if !r.InUse {
		return 0, false
	}

	if !r.lifetime.expired(rl.clock) {
		return r.lifetime.remaining(rl.clock), false
	}

	switch r.State {
	case RegTentative, RegGarbageCollectible:
		r.InUse = false
		rl.arena.Free(idx)
		decrementRouter(routers, r.Router)

		return 0, true
	default:
		return 0, false
	}
}

// Cap returns the registration list's fixed capacity.
func (rl *RegistrationList) Cap() (n int) {
	return rl.arena.Cap()
}

// At returns the slot at index i for driver iteration.
func (rl *RegistrationList) At(i int) (r *Registration) {
	return rl.arena.At(i)
}
