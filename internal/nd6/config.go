package nd6

import (
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// Role is the role this interface plays in Neighbor Discovery.
type Role int

const (
	// RoleHost disables router-only behavior (RA origination, router-view
	// prefix flags).  It does not disable the INCOMPLETE neighbor state:
	// new neighbor cache entries start INCOMPLETE in both roles.
	RoleHost Role = iota

	// RoleRouter enables RA origination and router-view prefix semantics.
	RoleRouter
)

// Config is the startup configuration for an [Interface].  Table sizes and
// ND timing constants are fixed for the Interface's lifetime: none of them
// can be changed after [New] without rebuilding the Interface, matching the
// no-dynamic-resizing non-goal.
type Config struct {
	// Logger is used to log state-machine transitions and cascades.  It
	// must not be nil.
	Logger *slog.Logger

	// Clock provides the monotonic notion of "now" used by every timer in
	// this package.  It must not be nil.
	Clock timeutil.Clock

	// LinkAddr is this interface's own link-layer address, used for IID
	// derivation.  It must not be empty.
	LinkAddr LinkAddr

	// Role selects host or router behavior.
	Role Role

	// ContextsEnabled turns on 6LoWPAN Context Option (6CO) support.  It is
	// a compile-time-like switch per spec §6; when false, the context table
	// has zero capacity.
	ContextsEnabled bool

	// NeighborCacheSize is NBR_NB, the neighbor cache capacity.  It must be
	// positive.
	NeighborCacheSize int

	// DefaultRouterListSize is DEFRT_NB.  It must be positive.
	DefaultRouterListSize int

	// PrefixListSize is PREFIX_NB.  It must be positive.
	PrefixListSize int

	// RouteTableSize is ROUTE_NB.  It must be non-negative; zero disables
	// routing-table support entirely.
	RouteTableSize int

	// UnicastAddrListSize is ADDR_NB.  It must be positive.
	UnicastAddrListSize int

	// MulticastAddrListSize is MADDR_NB.  It must be positive.
	MulticastAddrListSize int

	// AnycastAddrListSize is AADDR_NB.  It must be non-negative.
	AnycastAddrListSize int

	// RegistrationListSize is REG_LIST_SIZE.  It must be non-negative; zero
	// disables 6LoWPAN-ND registration.
	RegistrationListSize int

	// ContextTableSize bounds the number of 6COs tracked at once when
	// ContextsEnabled is true.  Context ids are 0..15 per spec §3, so this
	// must not exceed 16.
	ContextTableSize int

	// Period is the interval between [Interface.Periodic] invocations.
	Period time.Duration

	// LifetimeThreshold, GarbageCollectibleRegLifetime,
	// TentativeRegLifetime, RegistrationLifetime, ReachableTime,
	// RetransTimer, MinRAInterval, MaxRAInterval, MaxInitialRAInterval,
	// MaxInitialRAs, MinDelayBetweenRAs, MaxRtrSolicitations,
	// MaxRtrSolicitationInterval, RtrSolicitationInterval,
	// MaxRtrSolicitationDelay, MaxUnicastSolicit, and MaxMulticastSolicit
	// mirror the constants of the same name in spec §6; a zero value means
	// "use the Default* constant".
	LifetimeThreshold             time.Duration
	GarbageCollectibleRegLifetime time.Duration
	TentativeRegLifetime          time.Duration
	RegistrationLifetime          time.Duration
	ReachableTime                 time.Duration
	RetransTimer                  time.Duration
	MinRAInterval                 time.Duration
	MaxRAInterval                 time.Duration
	MaxInitialRAInterval          time.Duration
	MaxInitialRAs                 int
	MinDelayBetweenRAs            time.Duration
	MaxRtrSolicitations           int
	MaxRtrSolicitationInterval    time.Duration
	RtrSolicitationInterval       time.Duration
	MaxRtrSolicitationDelay       time.Duration
	MaxUnicastSolicit             int
	MaxMulticastSolicit           int
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errNilConfig
	}

	errs := []error{
		validate.NotNil("Logger", c.Logger),
		validate.NotNilInterface("Clock", c.Clock),
		validate.Positive("NeighborCacheSize", c.NeighborCacheSize),
		validate.Positive("DefaultRouterListSize", c.DefaultRouterListSize),
		validate.Positive("PrefixListSize", c.PrefixListSize),
		validate.NotNegative("RouteTableSize", c.RouteTableSize),
		validate.Positive("UnicastAddrListSize", c.UnicastAddrListSize),
		validate.Positive("MulticastAddrListSize", c.MulticastAddrListSize),
		validate.NotNegative("AnycastAddrListSize", c.AnycastAddrListSize),
		validate.NotNegative("RegistrationListSize", c.RegistrationListSize),
	}

	if len(c.LinkAddr) == 0 {
		errs = append(errs, errors.Error("LinkAddr: must not be empty"))
	}

	if c.ContextsEnabled && c.ContextTableSize > 16 {
		errs = append(errs, errors.Error("ContextTableSize: must not exceed 16"))
	}

	return errors.Join(errs...)
}

// withDefaults returns a copy of c with every zero-valued timing constant
// replaced by its Default* counterpart.
func (c Config) withDefaults() (out Config) {
	out = c

	// aghalg.Coalesce picks the first non-zero value, so an unset (zero)
	// config field falls through to its Default* counterpart.
	out.Period = aghalg.Coalesce(out.Period, DefaultPeriod)
	out.LifetimeThreshold = aghalg.Coalesce(out.LifetimeThreshold, DefaultLifetimeThreshold)
	out.GarbageCollectibleRegLifetime = aghalg.Coalesce(out.GarbageCollectibleRegLifetime, DefaultGarbageCollectibleRegLifetime)
	out.TentativeRegLifetime = aghalg.Coalesce(out.TentativeRegLifetime, DefaultTentativeRegLifetime)
	out.RegistrationLifetime = aghalg.Coalesce(out.RegistrationLifetime, DefaultRegistrationLifetime)
	out.ReachableTime = aghalg.Coalesce(out.ReachableTime, DefaultReachableTime)
	out.RetransTimer = aghalg.Coalesce(out.RetransTimer, DefaultRetransTimer)
	out.MinRAInterval = aghalg.Coalesce(out.MinRAInterval, DefaultMinRAInterval)
	out.MaxRAInterval = aghalg.Coalesce(out.MaxRAInterval, DefaultMaxRAInterval)
	out.MaxInitialRAInterval = aghalg.Coalesce(out.MaxInitialRAInterval, DefaultMaxInitialRAInterval)
	out.MaxInitialRAs = aghalg.Coalesce(out.MaxInitialRAs, DefaultMaxInitialRAs)
	out.MinDelayBetweenRAs = aghalg.Coalesce(out.MinDelayBetweenRAs, DefaultMinDelayBetweenRAs)
	out.MaxRtrSolicitations = aghalg.Coalesce(out.MaxRtrSolicitations, DefaultMaxRtrSolicitations)
	out.MaxRtrSolicitationInterval = aghalg.Coalesce(out.MaxRtrSolicitationInterval, DefaultMaxRtrSolicitationInterval)
	out.RtrSolicitationInterval = aghalg.Coalesce(out.RtrSolicitationInterval, DefaultRtrSolicitationInterval)
	out.MaxRtrSolicitationDelay = aghalg.Coalesce(out.MaxRtrSolicitationDelay, DefaultMaxRtrSolicitationDelay)
	out.MaxUnicastSolicit = aghalg.Coalesce(out.MaxUnicastSolicit, DefaultMaxUnicastSolicit)
	out.MaxMulticastSolicit = aghalg.Coalesce(out.MaxMulticastSolicit, DefaultMaxMulticastSolicit)

	if !out.ContextsEnabled {
		out.ContextTableSize = 0
	} else if out.ContextTableSize == 0 {
		out.ContextTableSize = 16
	}

	return out
}
