package nd6

import (
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// ContextState is a 6LoWPAN Context Option table entry's lifecycle state
// (spec §3, "Context").
type ContextState int

const (
	ContextNotInUse ContextState = iota
	ContextActive
	ContextCompressOnly
	ContextExpired
)

// Context is a single 6LoWPAN Context Option (6CO) table slot.  Contexts are
// indexed by a 4-bit context id (0..15), one per slot, never reassigned
// across ids the way addresses/prefixes reuse slots, since the wire id
// itself is the identity (spec §3).
type Context struct {
	Prefix netip.Addr

	lifetime timer

	ID     int
	Length int
	State  ContextState

	// Compress, when false, restricts this context to decompression-only
	// use, per the 6CO "C" flag.
	Compress bool

	// DefrtLifetime is the advertising router's lifetime in seconds,
	// clamped to contextLifetimeCap (the 15-bit ceiling, spec §5
	// supplement); expiry resets the grace timer to twice this value.
	DefrtLifetime int
}

// ContextTable is C3's fixed 16-slot (at most) context pool.  It is a no-op
// pool of zero capacity when contexts are disabled, per [Config.ContextsEnabled].
type ContextTable struct {
	arena *aghalg.Arena[Context]
	clock timeutil.Clock
}

// NewContextTable returns a ContextTable with size slots, each pre-assigned
// its context id equal to its slot index.
func NewContextTable(size int, clock timeutil.Clock) (ct *ContextTable) {
	ct = &ContextTable{
		arena: aghalg.NewArena[Context](size),
		clock: clock,
	}

	ct.arena.Range(func(i int, c *Context) (cont bool) {
		c.ID = i

		return true
	})

	return ct
}

// ByID returns the context with the given id, if any and in use.
func (ct *ContextTable) ByID(id int) (c *Context, ok bool) {
	if id < 0 || id >= ct.arena.Cap() {
		return nil, false
	}

	c = ct.arena.At(id)
	if c.State == ContextNotInUse {
		return nil, false
	}

	return c, true
}

// ByPrefix returns the active or compress-only context matching (prefix,
// length), used by the compressor to find a context to compress an address
// against.
func (ct *ContextTable) ByPrefix(prefix netip.Addr, length int) (c *Context, ok bool) {
	ct.arena.Range(func(_ int, cand *Context) (cont bool) {
		if cand.State == ContextNotInUse || cand.State == ContextExpired {
			return true
		}

		if cand.Length == length && prefixCmp(cand.Prefix, prefix, length) {
			c = cand
			ok = true

			return false
		}

		return true
	})

	return c, ok
}

// Set installs or refreshes the context at id.  validLifetime is the 6CO's
// own lifetime field and drives c's expiry timer; defrtLifetime is the
// advertising router's default-router lifetime (RFC 4861's Router Lifetime,
// §4.4), captured separately and clamped to contextLifetimeCap (spec §5
// supplement) so the double-expiry grace period can later reset c's timer
// to twice it, per the original's distinct vlifetime/defrt_lifetime fields
// (_examples/original_source/6lowpan-nd/uip-ds6.c).
func (ct *ContextTable) Set(
	id int,
	prefix netip.Addr,
	length int,
	compress bool,
	validLifetime time.Duration,
	defrtLifetime time.Duration,
) (c *Context, err error) {
	if id < 0 || id >= ct.arena.Cap() {
		return nil, ErrNoSpace
	}

	defrtSeconds := int(defrtLifetime / time.Second)
	if defrtSeconds > contextLifetimeCap {
		defrtSeconds = contextLifetimeCap
	}

	c = ct.arena.At(id)
	c.ID = id
	c.Prefix = prefix
	c.Length = length
	c.Compress = compress
	c.DefrtLifetime = defrtSeconds

	if compress {
		c.State = ContextActive
	} else {
		c.State = ContextCompressOnly
	}

	if validLifetime <= 0 {
		c.lifetime.setInfinite()
	} else {
		c.lifetime.set(ct.clock, validLifetime)
	}

	return c, nil
}

// expireOne transitions an active/compress-only context to ContextExpired
// once its lifetime elapses, and frees an already-expired one after a grace
// period of twice its DefrtLifetime, mirroring the double-expiry grace
// window of the original 6CO aging logic: an expired context is kept
// advertised as compress=false for that grace period before it is
// reclaimed, so in-flight compressed packets referencing it can still be
// decompressed.
func (ct *ContextTable) expireOne(idx int) {
	c := ct.arena.At(idx)
	if c.State == ContextNotInUse {
		return
	}

	if !c.lifetime.expired(ct.clock) {
		return
	}

	switch c.State {
	case ContextActive, ContextCompressOnly:
		c.State = ContextExpired
		c.Compress = false
		c.lifetime.set(ct.clock, 2*time.Duration(c.DefrtLifetime)*time.Second)
	case ContextExpired:
		c.State = ContextNotInUse
		ct.arena.Free(idx)
	}
}

// ExpireOne is expireOne's exported form, used by the periodic driver to
// fold a context's remaining lifetime into the interface-wide minimum.
func (ct *ContextTable) ExpireOne(idx int) (remaining time.Duration, removed bool) {
	c := ct.arena.At(idx)
	if c.State == ContextNotInUse {
		return 0, false
	}

	if !c.lifetime.expired(ct.clock) {
		return c.lifetime.remaining(ct.clock), false
	}

	wasExpired := c.State == ContextExpired
	ct.expireOne(idx)

	return 0, wasExpired
}

// Cap returns the context table's fixed capacity.
func (ct *ContextTable) Cap() (n int) {
	return ct.arena.Cap()
}

// At returns the slot at index i for driver iteration.
func (ct *ContextTable) At(i int) (c *Context) {
	return ct.arena.At(i)
}
