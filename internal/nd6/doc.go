// Package nd6 implements the fixed-capacity IPv6 data structures and the
// 6LoWPAN Neighbor Discovery state machinery for a single-interface,
// constrained node (RFC 4861/4862 plus the 6LoWPAN-ND Address Registration
// and 6LoWPAN Context Option extensions).
//
// Every table in this package — addresses, prefixes, contexts, default
// routers, the neighbor cache, 6LoWPAN-ND registrations, and routes — is a
// fixed-capacity arena allocated once in [New] and never resized.  The
// [Interface.Periodic] method is the only agent that advances timers,
// expires entries, and emits at most one outbound ND packet per call;
// everything else is table bookkeeping invoked from the ND input path,
// apart from the router role's replies to Router Solicitations and
// registration requests.
//
// This package does not parse or serialize ND wire messages, does not
// perform IPv6 forwarding, and does not read a clock itself: callers supply
// parsed option structures, a [github.com/AdguardTeam/golibs/timeutil.Clock],
// and implementations of [Transport] to send solicitations and
// advertisements.  See package ndtransport for a concrete, ICMPv6-over-raw-
// socket implementation of that boundary.
package nd6
