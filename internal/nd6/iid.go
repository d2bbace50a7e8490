package nd6

import (
	"fmt"
	"net/netip"
)

// LinkAddr is an opaque link-layer address token, as the link-layer address
// format is out of scope for this package (spec §1): the core only ever
// copies, compares, and flips the U/L bit of it, never interprets its wire
// meaning.
type LinkAddr []byte

// Clone returns a copy of l.
func (l LinkAddr) Clone() (c LinkAddr) {
	c = make(LinkAddr, len(l))
	copy(c, l)

	return c
}

const (
	// eui64Len is the length in bytes of an EUI-64 link-layer address.
	eui64Len = 8

	// mac48Len is the length in bytes of a 48-bit (EUI-48/MAC-48)
	// link-layer address.
	mac48Len = 6

	// ulBitByte is the byte offset, within the low 64 bits of an IID, of the
	// Universal/Local bit flipped during IID formation (RFC 4291 appendix A).
	ulBitByte = 0

	// ulBitMask is the Universal/Local bit mask within ulBitByte.
	ulBitMask = 0x02
)

// deriveIID forms the low 64 bits of an interface identifier from a link
// address, per spec §4.8: an 8-byte link address is copied directly with its
// U/L bit flipped; a 6-byte link address is first expanded to
// OUI || FF FE || NIC before the same flip.
func deriveIID(l LinkAddr) (iid [8]byte, err error) {
	switch len(l) {
	case eui64Len:
		copy(iid[:], l)
	case mac48Len:
		copy(iid[0:3], l[0:3])
		iid[3] = 0xFF
		iid[4] = 0xFE
		copy(iid[5:8], l[3:6])
	default:
		return iid, fmt.Errorf("nd6: deriving iid: unsupported link address length %d", len(l))
	}

	iid[ulBitByte] ^= ulBitMask

	return iid, nil
}

// setAddrIID returns the IPv6 address formed by combining prefix's high 64
// bits with the IID derived from l.  It is idempotent: calling it twice with
// the same arguments yields the same low 64 bits both times, since the U/L
// flip is applied to a byte copied fresh from l on every call rather than to
// shared state.
func setAddrIID(prefix netip.Addr, l LinkAddr) (addr netip.Addr, err error) {
	iid, err := deriveIID(l)
	if err != nil {
		return netip.Addr{}, err
	}

	b := prefix.As16()
	copy(b[8:16], iid[:])

	return netip.AddrFrom16(b), nil
}

// selectSource implements spec §4.8: for a link-local or multicast
// destination it returns the first PREFERRED link-local unicast address;
// otherwise it returns the PREFERRED, non-link-local unicast address with
// the longest common prefix with dst.  If no candidate exists, it returns
// the unspecified address.
func (al *AddressList) selectSource(dst netip.Addr) (src netip.Addr) {
	wantLinkLocal := dst.IsMulticast() || isLinkLocal6LoWPAN(dst)

	if wantLinkLocal {
		var found netip.Addr
		al.arena.Range(func(_ int, a *UnicastAddr) (cont bool) {
			if !a.InUse || a.State != AddrPreferred || !isLinkLocal6LoWPAN(a.IP) {
				return true
			}

			found = a.IP

			return false
		})

		return found
	}

	best := netip.Addr{}
	bestLen := -1
	al.arena.Range(func(_ int, a *UnicastAddr) (cont bool) {
		if !a.InUse || a.State != AddrPreferred || isLinkLocal6LoWPAN(a.IP) {
			return true
		}

		if n := matchLength(a.IP, dst); n > bestLen {
			bestLen = n
			best = a.IP
		}

		return true
	})

	return best
}
