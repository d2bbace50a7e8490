package nd6

import "time"

// Default values for the ND and 6LoWPAN-ND timing constants described in
// spec §6.  All of these are overridable per [Config]; the values here match
// the defaults of the constrained-node source this package is based on.
const (
	// DefaultPeriod is the default interval between [Interface.Periodic]
	// invocations.
	DefaultPeriod = 100 * time.Millisecond

	// DefaultLifetimeThreshold is the default minimum remaining lifetime
	// (across routers, prefixes, and contexts) below which the driver
	// proactively emits a Router Solicitation.
	DefaultLifetimeThreshold = 60 * time.Second

	// DefaultGarbageCollectibleRegLifetime is the default lifetime of a
	// registration in the GARBAGE_COLLECTIBLE state.
	DefaultGarbageCollectibleRegLifetime = 20 * time.Second

	// DefaultTentativeRegLifetime is the default lifetime of a registration
	// in the TENTATIVE state.
	DefaultTentativeRegLifetime = 20 * time.Second

	// DefaultRegistrationLifetime is the default lifetime advertised in the
	// Address Registration Option of a successful registration.
	DefaultRegistrationLifetime = 1 * time.Hour

	// DefaultReachableTime is the default base value from which the
	// randomized reachable time is derived (RFC 4861 §10).
	DefaultReachableTime = 30 * time.Second

	// DefaultRetransTimer is the default NS retransmission interval.
	DefaultRetransTimer = 1 * time.Second

	// DefaultMinRAInterval and DefaultMaxRAInterval bound the router's
	// unsolicited RA period.
	DefaultMinRAInterval = 200 * time.Millisecond
	DefaultMaxRAInterval = 600 * time.Millisecond

	// DefaultMaxInitialRAInterval bounds the first few unsolicited RAs after
	// a router starts advertising.
	DefaultMaxInitialRAInterval = 16 * time.Second

	// DefaultMaxInitialRAs is the number of unsolicited RAs sent at the
	// faster initial rate.
	DefaultMaxInitialRAs = 3

	// DefaultMinDelayBetweenRAs is the minimum spacing enforced between a
	// solicited RA and the previous RA of any kind sent by the router, per
	// RFC 4861 §6.2.6.
	DefaultMinDelayBetweenRAs = 3 * time.Second

	// DefaultMaxRtrSolicitations is the number of RS attempts sent at the
	// base [DefaultRtrSolicitationInterval] rate before backing off further.
	DefaultMaxRtrSolicitations = 3

	// DefaultMaxRtrSolicitationInterval caps the exponential RS backoff.
	DefaultMaxRtrSolicitationInterval = 60 * time.Second

	// DefaultRtrSolicitationInterval is the base RS retransmission interval.
	DefaultRtrSolicitationInterval = 4 * time.Second

	// DefaultMaxRtrSolicitationDelay bounds the initial random RS delay sent
	// on interface startup.
	DefaultMaxRtrSolicitationDelay = 1 * time.Second

	// DefaultMaxUnicastSolicit is the NUD unicast NS retry budget, applied
	// both to plain neighbor-cache probing and to registration refresh.
	DefaultMaxUnicastSolicit = 3

	// DefaultMaxMulticastSolicit is the address-resolution multicast NS
	// retry budget for an INCOMPLETE neighbor.
	DefaultMaxMulticastSolicit = 3

	// MinRandomFactor and MaxRandomFactor bound the reachable-time
	// randomization factor (RFC 4861 §6.3.2).
	MinRandomFactor = 0.5
	MaxRandomFactor = 1.5

	// contextLifetimeCap is the cap the original source applies to
	// Context.DefrtLifetime before it is packed into a 15-bit wire field.
	contextLifetimeCap = 0x7FFF
)
