package aghalg

// Arena is a fixed-capacity slot pool shared by every table in this module's
// core: it owns no policy about what "in use" or "matches" means for T, only
// the slot/generation bookkeeping that the original's "generic element
// header" trick (a leading in_use flag shared by every pool's struct) used to
// provide.  Callers specialize Add/Remove/Lookup per pool, as the generic
// element header is replaced here by an explicit per-T predicate instead.
//
// It is not safe for concurrent use; callers serialize access the same way
// the original's single-threaded event loop did.
type Arena[T any] struct {
	slots []T
	gen   []uint32
}

// NewArena returns an Arena with exactly size slots, none of them
// initialized beyond T's zero value.  size is fixed for the lifetime of the
// Arena; there is no growth operation, matching the no-dynamic-allocation
// requirement on every table built atop it.
func NewArena[T any](size int) (a *Arena[T]) {
	return &Arena[T]{
		slots: make([]T, size),
		gen:   make([]uint32, size),
	}
}

// Cap returns the fixed capacity of a.
func (a *Arena[T]) Cap() (c int) {
	return len(a.slots)
}

// At returns a pointer to the slot at i.  i must be within [0, a.Cap()).
func (a *Arena[T]) At(i int) (t *T) {
	return &a.slots[i]
}

// Handle is a stable reference to a slot in an Arena.  It stays valid across
// calls to At, but Resolve fails once the slot has been Freed, even if the
// slot is later reused by a different logical entry, since Free bumps the
// slot's generation.
type Handle struct {
	slot int
	gen  uint32
}

// NoHandle is a [Handle] that never resolves and is not Valid.  It is not
// the zero Handle, which refers to slot 0.
var NoHandle = Handle{slot: -1}

// Valid reports whether h was ever produced by [Arena.HandleFor]; it does not
// by itself guarantee the referent is still in use, see [Arena.Resolve].
func (h Handle) Valid() (ok bool) {
	return h.slot >= 0
}

// HandleFor returns the current handle for slot i.  i must be within
// [0, a.Cap()).
func (a *Arena[T]) HandleFor(i int) (h Handle) {
	return Handle{slot: i, gen: a.gen[i]}
}

// Resolve returns the slot referenced by h, and false if h is stale (the slot
// has since been [Arena.Free]d and possibly reused).
func (a *Arena[T]) Resolve(h Handle) (t *T, ok bool) {
	if h.slot < 0 || h.slot >= len(a.slots) {
		return nil, false
	}

	if a.gen[h.slot] != h.gen {
		return nil, false
	}

	return &a.slots[h.slot], true
}

// Free invalidates every handle previously returned for slot i by bumping its
// generation.  It does not reset the slot's contents; callers that rely on
// stale-field detection must reinitialize the fields they depend on, as the
// original's add-reuses-slots-without-zeroing contract requires.
func (a *Arena[T]) Free(i int) {
	a.gen[i]++
}

// Range calls cb for every slot index in a, in slot order, until cb returns
// false.
func (a *Arena[T]) Range(cb func(i int, t *T) (cont bool)) {
	for i := range a.slots {
		if !cb(i, &a.slots[i]) {
			return
		}
	}
}
