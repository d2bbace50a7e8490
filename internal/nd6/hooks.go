package nd6

import (
	"context"
	"net/netip"
	"time"
)

// AROStatus is the status field of an Address Registration Option
// (spec §4.9, RFC 8505 §4.1).
type AROStatus int

const (
	AROSuccess AROStatus = iota
	ARODuplicate
	AROFull
	AROMovedTLLA
	AROCacheUnreachable
	AROValidationFailed
)

// ARO carries the fields of an Address Registration Option, either
// outbound on an NS or inbound on a received NA (spec §4.9).
type ARO struct {
	EUI64    LinkAddr
	Lifetime time.Duration
	Status   AROStatus

	// TID is the registration's transaction id (RFC 8505 §4.1); this
	// package does not interpret it beyond echoing it back on a reply.
	TID uint8
}

// RAPrefixAdv is one prefix advertised in an outbound RA's Prefix
// Information Option.
type RAPrefixAdv struct {
	Prefix            netip.Addr
	Length            int
	OnLink            bool
	Autonomous        bool
	ValidLifetime     time.Duration
	PreferredLifetime time.Duration
}

// RAContextAdv is one context advertised in an outbound RA's 6LoWPAN
// Context Option.
type RAContextAdv struct {
	ID       int
	Prefix   netip.Addr
	Length   int
	Compress bool
	Lifetime time.Duration
}

// RAParams is everything an outbound Router Advertisement needs beyond
// addressing, per spec §4.4.
type RAParams struct {
	CurHopLimit    uint8
	ManagedFlag    bool
	OtherFlag      bool
	RouterLifetime time.Duration
	ReachableTime  time.Duration
	RetransTimer   time.Duration
	Prefixes       []RAPrefixAdv
	Contexts       []RAContextAdv
}

// Transport is the external collaborator responsible for everything this
// package deliberately has no opinion about: link-layer framing, ICMPv6
// checksums, and raw socket I/O (spec §1 Non-goals).  Implementations live
// outside this package; see the ndtransport package for one built on raw
// ICMPv6 sockets.
type Transport interface {
	// SendNS transmits a Neighbor Solicitation for target from src to dst,
	// optionally carrying aro.
	SendNS(ctx context.Context, dst, src, target netip.Addr, aro *ARO) error

	// SendRS transmits a Router Solicitation from src to the all-routers
	// multicast address.
	SendRS(ctx context.Context, src netip.Addr) error

	// SendRA transmits a Router Advertisement from src to dst, carrying
	// params.
	SendRA(ctx context.Context, dst, src netip.Addr, params RAParams) error

	// SendNA transmits a Neighbor Advertisement for target from src to
	// dst, optionally carrying aro, used to answer a registration NS in
	// the router role.
	SendNA(ctx context.Context, dst, src, target netip.Addr, solicited bool, aro *ARO) error
}
