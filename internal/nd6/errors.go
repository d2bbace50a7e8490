package nd6

import "github.com/AdguardTeam/golibs/errors"

// Sentinel error kinds surfaced by this package's table operations, per the
// error handling design: add operations return these through an error
// value, lookups report a miss through a boolean result, and state-machine
// advances and cascades inside [Interface.Periodic] are not surfaced as
// errors but are logged and reflected in subsequent lookups.
const (
	// ErrNoSpace is returned from an add operation when a pool is full and,
	// for pools that support eviction, no eviction candidate exists.
	ErrNoSpace errors.Error = "no space in pool"

	// ErrNotFound names the not-found error kind.  The table lookups in
	// this package report a miss through their boolean result and do not
	// return it.
	ErrNotFound errors.Error = "not found"

	// errNilConfig is returned by [Config.Validate] for a nil *Config.
	errNilConfig errors.Error = "config is nil"

	// errInProgress is returned by [RegistrationList.Add] when the caller
	// tries to register an (address, router) pair that already has an
	// in-use registration.
	errInProgress errors.Error = "registration already exists for address and router"
)
