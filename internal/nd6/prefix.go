package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// Prefix is a single on-link/autoconf prefix slot (spec §3, "Prefix list").
// The router-only fields (Advertise, IsInfinite, LAReserved,
// PreferredLifetime) are zero on a host-role Interface and are carried here
// rather than split into a separate type, matching the original's single
// uip_ds6_prefix_t used for both views.
type Prefix struct {
	IP        netip.Addr
	lifetime  timer
	Length    int
	InUse     bool
	IsOnLink  bool
	IsAuto    bool

	// Advertise, IsInfinite, LAReserved, and PreferredLifetime are
	// meaningful only for a router-role Interface (spec §5 supplement).
	Advertise         bool
	IsInfinite        bool
	LAReserved        bool
	PreferredLifetime time.Duration
}

// PrefixList is C2's fixed-capacity prefix pool.
type PrefixList struct {
	arena *aghalg.Arena[Prefix]
	clock timeutil.Clock
}

// NewPrefixList returns a PrefixList with size slots.
func NewPrefixList(size int, clock timeutil.Clock) (pl *PrefixList) {
	return &PrefixList{
		arena: aghalg.NewArena[Prefix](size),
		clock: clock,
	}
}

// Lookup returns the in-use prefix exactly matching (ip, length).
func (pl *PrefixList) Lookup(ip netip.Addr, length int) (p *Prefix, ok bool) {
	idx, found := pl.find(ip, length)
	if !found {
		return nil, false
	}

	return pl.arena.At(idx), true
}

func (pl *PrefixList) find(ip netip.Addr, length int) (idx int, found bool) {
	idx = -1
	pl.arena.Range(func(i int, p *Prefix) (cont bool) {
		if p.InUse && p.Length == length && prefixCmp(p.IP, ip, length) {
			idx = i
			found = true

			return false
		}

		return true
	})

	return idx, found
}

// OnLink reports whether dst matches any in-use on-link prefix, per spec
// §4.6's on-link determination.
func (pl *PrefixList) OnLink(dst netip.Addr) (ok bool) {
	found := false
	pl.arena.Range(func(_ int, p *Prefix) (cont bool) {
		if p.InUse && p.IsOnLink && prefixCmp(p.IP, dst, p.Length) {
			found = true

			return false
		}

		return true
	})

	return found
}

// Add reuses a free slot for a new prefix entry, or returns the existing
// entry if (ip, length) is already present.
func (pl *PrefixList) Add(ip netip.Addr, length int) (p *Prefix, err error) {
	if idx, found := pl.find(ip, length); found {
		return pl.arena.At(idx), nil
	}

	free := -1
	pl.arena.Range(func(i int, p *Prefix) (cont bool) {
		if !p.InUse {
			free = i

			return false
		}

		return true
	})

	if free < 0 {
		return nil, ErrNoSpace
	}

	p = pl.arena.At(free)
	*p = Prefix{IP: ip, Length: length, InUse: true}

	return p, nil
}

// Remove clears p's in_use flag.
func (pl *PrefixList) Remove(p *Prefix) {
	pl.arena.Range(func(i int, q *Prefix) (cont bool) {
		if q == p {
			q.InUse = false
			pl.arena.Free(i)

			return false
		}

		return true
	})
}

// SetLifetime arms p's valid-lifetime timer, or marks it infinite.
func (pl *PrefixList) SetLifetime(p *Prefix, lifetime time.Duration, infinite bool) {
	p.IsInfinite = infinite
	if infinite {
		p.lifetime.setInfinite()

		return
	}

	p.lifetime.set(pl.clock, lifetime)
}

// ExpireOne checks a single in-use, non-infinite prefix for lifetime expiry,
// removing it if expired, and otherwise returns its remaining lifetime for
// the driver's minimum-lifetime accumulation (spec §4.10 step 2).
func (pl *PrefixList) ExpireOne(idx int) (remaining time.Duration, removed bool) {
	p := pl.arena.At(idx)
	if !p.InUse || p.IsInfinite {
		return 0, false
	}

	if p.lifetime.expired(pl.clock) {
		p.InUse = false
		pl.arena.Free(idx)

		return 0, true
	}

	return p.lifetime.remaining(pl.clock), false
}

// Cap returns the prefix list's fixed capacity.
func (pl *PrefixList) Cap() (c int) {
	return pl.arena.Cap()
}

// At returns the slot at index i for driver iteration.
func (pl *PrefixList) At(i int) (p *Prefix) {
	return pl.arena.At(i)
}
