package nd6

import (
	"net/netip"

	"github.com/AdguardTeam/golibs/netutil"
)

// prefixCmp reports whether a and b agree on their first length bits, per
// spec §4.1: prefix comparison is bitwise on the full 128 bits truncated to
// length.  length is clamped to [0, netutil.IPv6BitLen].  It is reflexive
// and symmetric.
func prefixCmp(a, b netip.Addr, length int) (ok bool) {
	if length <= 0 {
		return true
	}

	if length > netutil.IPv6BitLen {
		length = netutil.IPv6BitLen
	}

	aBytes, bBytes := a.As16(), b.As16()

	fullBytes := length / 8
	for i := range fullBytes {
		if aBytes[i] != bBytes[i] {
			return false
		}
	}

	rem := length % 8
	if rem == 0 {
		return true
	}

	mask := byte(0xFF << (8 - rem))

	return aBytes[fullBytes]&mask == bBytes[fullBytes]&mask
}

// matchLength returns the number of matching high-order bits of a and b, up
// to 128.  matchLength(a, a) is always 128.
func matchLength(a, b netip.Addr) (n int) {
	aBytes, bBytes := a.As16(), b.As16()

	for i := range 16 {
		diff := aBytes[i] ^ bBytes[i]
		if diff == 0 {
			n += 8

			continue
		}

		for diff&0x80 == 0 {
			n++
			diff <<= 1
		}

		return n
	}

	return n
}

// isLinkLocal6LoWPAN reports whether a is in fe80::/10, the only prefix this
// 6LoWPAN-ND host treats as on-link (spec §4.6).
func isLinkLocal6LoWPAN(a netip.Addr) (ok bool) {
	return a.Is6() && a.IsLinkLocalUnicast()
}
