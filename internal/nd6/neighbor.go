package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// NeighborState is a neighbor cache entry's NUD state (RFC 4861 §7.3.2,
// spec §3 "Neighbor").
type NeighborState int

const (
	NeighborIncomplete NeighborState = iota
	NeighborReachable
	NeighborStale
	NeighborDelay
	NeighborProbe
)

// NeighborHandle is a stable reference to a [NeighborCache] slot, with the
// same explicit-invalid zero value as [RouterHandle].
type NeighborHandle struct {
	h   aghalg.Handle
	set bool
}

// Valid reports whether nh was ever returned by [NeighborCache.HandleFor].
func (nh NeighborHandle) Valid() (ok bool) {
	return nh.set && nh.h.Valid()
}

// Neighbor is a neighbor cache entry.
type Neighbor struct {
	IP       netip.Addr
	LinkAddr LinkAddr

	State    NeighborState
	IsRouter bool
	InUse    bool

	// reachable is REACHABLE's timeout, DELAY/PROBE's retransmit timer, or
	// INCOMPLETE's retransmit timer, depending on State; it is reused
	// across states the same way the original's single "expiration" field
	// is, rather than carrying one timer per state.
	reachable timer

	// retries counts NS attempts remaining in INCOMPLETE, DELAY, or PROBE.
	retries int

	// lastUsed supports the LRU eviction policy of spec §4.5: it is
	// bumped on every Lookup, not only on Add.
	lastUsed time.Time
}

// NeighborChanged is the hook type invoked whenever a neighbor entry
// transitions to or from NeighborReachable, per spec §4.10's
// neighbor_state_changed callback.
type NeighborChanged func(n *Neighbor, old, new_ NeighborState)

// NeighborCache is C5's fixed-capacity neighbor pool.
type NeighborCache struct {
	arena   *aghalg.Arena[Neighbor]
	clock   timeutil.Clock
	onState NeighborChanged
}

// NewNeighborCache returns a NeighborCache with size slots.  onState may be
// nil.
func NewNeighborCache(size int, clock timeutil.Clock, onState NeighborChanged) (nc *NeighborCache) {
	return &NeighborCache{
		arena:   aghalg.NewArena[Neighbor](size),
		clock:   clock,
		onState: onState,
	}
}

// HandleFor returns a stable handle to the slot at index i.
func (nc *NeighborCache) HandleFor(i int) (nh NeighborHandle) {
	return NeighborHandle{h: nc.arena.HandleFor(i), set: true}
}

// Resolve dereferences nh, reporting false if the neighbor was evicted since
// nh was obtained.
func (nc *NeighborCache) Resolve(nh NeighborHandle) (n *Neighbor, ok bool) {
	if !nh.set {
		return nil, false
	}

	return nc.arena.Resolve(nh.h)
}

// Lookup returns the in-use neighbor with the given address, bumping its
// LRU timestamp, per spec §5 supplement ("Lookup also counts as use").
func (nc *NeighborCache) Lookup(ip netip.Addr) (n *Neighbor, idx int, ok bool) {
	idx = -1
	nc.arena.Range(func(i int, cand *Neighbor) (cont bool) {
		if cand.InUse && cand.IP == ip {
			n = cand
			idx = i
			ok = true

			return false
		}

		return true
	})

	if ok {
		n.lastUsed = nc.clock.Now()
	}

	return n, idx, ok
}

// evictLRU frees the least-recently-used in-use slot, per spec §4.5.
func (nc *NeighborCache) evictLRU() (idx int, ok bool) {
	idx = -1

	var oldest time.Time

	nc.arena.Range(func(i int, cand *Neighbor) (cont bool) {
		if !cand.InUse {
			return true
		}

		if idx < 0 || cand.lastUsed.Before(oldest) {
			idx = i
			oldest = cand.lastUsed
		}

		return true
	})

	if idx < 0 {
		return -1, false
	}

	nc.arena.At(idx).InUse = false
	nc.arena.Free(idx)

	return idx, true
}

// Add creates a new INCOMPLETE neighbor entry for ip, evicting the
// least-recently-used entry if the cache is full, per spec §4.5.
func (nc *NeighborCache) Add(ip netip.Addr) (n *Neighbor, idx int) {
	if existing, i, ok := nc.Lookup(ip); ok {
		return existing, i
	}

	free := -1
	nc.arena.Range(func(i int, cand *Neighbor) (cont bool) {
		if !cand.InUse {
			free = i

			return false
		}

		return true
	})

	if free < 0 {
		free, _ = nc.evictLRU()
	}

	n = nc.arena.At(free)
	*n = Neighbor{IP: ip, State: NeighborIncomplete, InUse: true, lastUsed: nc.clock.Now()}

	return n, free
}

// SetState transitions n to state new_, invoking the onState hook when the
// transition crosses into or out of NeighborReachable.
func (nc *NeighborCache) SetState(n *Neighbor, new_ NeighborState) {
	old := n.State
	n.State = new_

	if nc.onState == nil {
		return
	}

	if old == NeighborReachable || new_ == NeighborReachable {
		nc.onState(n, old, new_)
	}
}

// Remove clears n's in_use flag.
func (nc *NeighborCache) Remove(n *Neighbor) {
	nc.arena.Range(func(i int, cand *Neighbor) (cont bool) {
		if cand == n {
			cand.InUse = false
			nc.arena.Free(i)

			return false
		}

		return true
	})
}

// Cap returns the neighbor cache's fixed capacity.
func (nc *NeighborCache) Cap() (n int) {
	return nc.arena.Cap()
}

// At returns the slot at index i for driver iteration.
func (nc *NeighborCache) At(i int) (n *Neighbor) {
	return nc.arena.At(i)
}
