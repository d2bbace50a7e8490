package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// AddrState is the autoconfiguration state of a unicast address (spec §3).
type AddrState int

const (
	AddrTentative AddrState = iota
	AddrPreferred
	AddrDeprecated
)

// AddrOrigin records how a unicast address was configured.
type AddrOrigin int

const (
	AddrOriginAutoconf AddrOrigin = iota
	AddrOriginManual
	AddrOriginDHCP
)

// UnicastAddr is a unicast address slot (spec §3, "Unicast address").
type UnicastAddr struct {
	IP       netip.Addr
	Router   RouterHandle
	lifetime timer
	State    AddrState
	Origin   AddrOrigin
	InUse    bool
}

// AddressList is C1's unicast-address pool: a fixed-capacity arena with the
// generic add/remove/lookup/scan operations of spec §4.1.
type AddressList struct {
	arena *aghalg.Arena[UnicastAddr]
	clock timeutil.Clock
}

// NewAddressList returns an AddressList with size slots.
func NewAddressList(size int, clock timeutil.Clock) (al *AddressList) {
	return &AddressList{
		arena: aghalg.NewArena[UnicastAddr](size),
		clock: clock,
	}
}

// scan is the shared primitive of spec §4.1: it walks the pool looking for
// an in-use slot whose address matches ip truncated to prefixLen bits, and
// otherwise reports the first free slot.
func (al *AddressList) scan(ip netip.Addr, prefixLen int) (idx int, found bool, hasFree bool, free int) {
	free = -1
	found = false
	idx = -1

	al.arena.Range(func(i int, a *UnicastAddr) (cont bool) {
		if !a.InUse {
			if free < 0 {
				free = i
			}

			return true
		}

		if prefixCmp(a.IP, ip, prefixLen) {
			idx = i
			found = true

			return false
		}

		return true
	})

	return idx, found, free >= 0, free
}

// Lookup returns the in-use address exactly matching ip (prefixLen = 128),
// per spec §4.1.
func (al *AddressList) Lookup(ip netip.Addr) (a *UnicastAddr, ok bool) {
	idx, found, _, _ := al.scan(ip, 128)
	if !found {
		return nil, false
	}

	return al.arena.At(idx), true
}

// Add reuses the first free slot for a new unicast address.  It does not
// zero unrelated fields of a reused slot; callers must set every field they
// rely on, per spec §4.1.
func (al *AddressList) Add(ip netip.Addr, origin AddrOrigin, router RouterHandle) (a *UnicastAddr, err error) {
	_, found, hasFree, free := al.scan(ip, 128)
	if found {
		return al.arena.At(al.indexOf(ip)), nil
	}

	if !hasFree {
		return nil, ErrNoSpace
	}

	a = al.arena.At(free)
	a.IP = ip
	a.Origin = origin
	a.Router = router
	a.State = AddrTentative
	a.InUse = true

	return a, nil
}

// indexOf returns the slot index of the in-use address exactly matching ip,
// or -1 if there is none.  Add calls it on its already-exists path, which
// re-scans the pool.
func (al *AddressList) indexOf(ip netip.Addr) (idx int) {
	idx, _, _, _ = al.scan(ip, 128)

	return idx
}

// SetLifetime arms a's valid-lifetime timer, or marks it infinite if
// infinite is true.
func (al *AddressList) SetLifetime(a *UnicastAddr, lifetime time.Duration, infinite bool) {
	if infinite {
		a.lifetime.setInfinite()

		return
	}

	a.lifetime.set(al.clock, lifetime)
}

// Remove clears a's in_use flag, invalidating every handle into its slot.
func (al *AddressList) Remove(a *UnicastAddr) {
	idx, found, _, _ := al.scan(a.IP, 128)
	if !found {
		return
	}

	a.InUse = false
	al.arena.Free(idx)
}

// expireOne checks a single in-use, non-infinite address for lifetime
// expiry, removing it if expired.  It returns the address's remaining
// lifetime when not removed, for the driver's (min_lifetime, min_defrt)
// accumulation (spec §4.10 step 2).
func (al *AddressList) expireOne(idx int) (remaining time.Duration, removedRouter RouterHandle, removed bool) {
	a := al.arena.At(idx)
	if !a.InUse {
		return 0, RouterHandle{}, false
	}

	if a.lifetime.expired(al.clock) {
		router := a.Router
		a.InUse = false
		al.arena.Free(idx)

		return 0, router, true
	}

	return a.lifetime.remaining(al.clock), RouterHandle{}, false
}

// SelectSource implements spec §4.8.
func (al *AddressList) SelectSource(dst netip.Addr) (src netip.Addr) {
	return al.selectSource(dst)
}

// multiAnycastEntry is the shared element shape for multicast and anycast
// lists, which carry no lifetime or state, only an IPv6 address (spec §3).
type multiAnycastEntry struct {
	IP    netip.Addr
	InUse bool
}

// AddrOnlyList is C1's multicast/anycast pool: addresses only, no lifetime.
type AddrOnlyList struct {
	arena *aghalg.Arena[multiAnycastEntry]
}

// NewAddrOnlyList returns an AddrOnlyList with size slots.
func NewAddrOnlyList(size int) (l *AddrOnlyList) {
	return &AddrOnlyList{arena: aghalg.NewArena[multiAnycastEntry](size)}
}

// Lookup returns true if ip is in the list.
func (l *AddrOnlyList) Lookup(ip netip.Addr) (ok bool) {
	found := false
	l.arena.Range(func(_ int, e *multiAnycastEntry) (cont bool) {
		if e.InUse && e.IP == ip {
			found = true

			return false
		}

		return true
	})

	return found
}

// Add adds ip to the list, reusing the first free slot.
func (l *AddrOnlyList) Add(ip netip.Addr) (err error) {
	if l.Lookup(ip) {
		return nil
	}

	free := -1
	l.arena.Range(func(i int, e *multiAnycastEntry) (cont bool) {
		if !e.InUse && free < 0 {
			free = i

			return false
		}

		return true
	})

	if free < 0 {
		return ErrNoSpace
	}

	e := l.arena.At(free)
	e.IP = ip
	e.InUse = true

	return nil
}

// Remove removes ip from the list, if present.
func (l *AddrOnlyList) Remove(ip netip.Addr) {
	l.arena.Range(func(i int, e *multiAnycastEntry) (cont bool) {
		if e.InUse && e.IP == ip {
			e.InUse = false
			l.arena.Free(i)

			return false
		}

		return true
	})
}
