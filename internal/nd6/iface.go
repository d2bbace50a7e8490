package nd6

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

// Interface ties together every C1-C7 table behind a single fixed-capacity
// state machine for one network interface, plus the C8 periodic driver.
type Interface struct {
	cfg       Config
	logger    *slog.Logger
	transport Transport

	Unicast       *AddressList
	Multicast     *AddrOnlyList
	Anycast       *AddrOnlyList
	Prefixes      *PrefixList
	Contexts      *ContextTable
	Routers       *RouterList
	Neighbors     *NeighborCache
	Registrations *RegistrationList
	Routes        *RouteTable

	rs rsBackoff

	rsTimer        timer
	rsAttemptsUsed bool

	raUnsolicitedTimer timer
	raInitialSent      int
	raLastSentAt       time.Time

	// inProgressReg is the single registration exchange currently being
	// retransmitted, per spec §4.4/§5's invariant that at most one
	// registration_in_progress handle is non-null at a time.  Its zero
	// value means no registration is in progress.
	inProgressReg RegistrationHandle

	// allowOutput is the single-output-per-tick latch of spec §4.10: at
	// most one solicitation or advertisement is sent per [Periodic] call,
	// the same throttle the constrained source this generalizes applies
	// to its one shared outbound packet buffer.
	allowOutput bool
}

// New constructs an Interface from cfg, which is validated and defaulted
// first.  transport must not be nil.
func New(cfg Config, transport Transport) (ifc *Interface, err error) {
	cfg = cfg.withDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "validating config: %w")
	}

	if transport == nil {
		return nil, errors.Error("nd6: transport must not be nil")
	}

	clock := cfg.Clock
	logger := cfg.Logger

	ifc = &Interface{
		cfg:           cfg,
		logger:        logger,
		transport:     transport,
		Unicast:       NewAddressList(cfg.UnicastAddrListSize, clock),
		Multicast:     NewAddrOnlyList(cfg.MulticastAddrListSize),
		Anycast:       NewAddrOnlyList(cfg.AnycastAddrListSize),
		Prefixes:      NewPrefixList(cfg.PrefixListSize, clock),
		Contexts:      NewContextTable(cfg.ContextTableSize, clock),
		Routers:       NewRouterList(cfg.DefaultRouterListSize, clock),
		Registrations: NewRegistrationList(cfg.RegistrationListSize, clock),
		Routes:        NewRouteTable(cfg.RouteTableSize, clock),
	}

	ifc.Neighbors = NewNeighborCache(cfg.NeighborCacheSize, clock, ifc.onNeighborStateChanged)

	ifc.rsTimer.set(clock, randDuration(0, cfg.MaxRtrSolicitationDelay))

	return ifc, nil
}

// randDuration returns a uniformly random duration in [min, max).  If max <=
// min it returns min, avoiding a panic on an unconfigured delay.
func randDuration(min, max time.Duration) (d time.Duration) {
	if max <= min {
		return min
	}

	return min + time.Duration(rand.Int64N(int64(max-min)))
}

// randomizedReachableTime applies RFC 4861 §6.3.2's randomization factor to
// the interface's base ReachableTime.
func (ifc *Interface) randomizedReachableTime() (d time.Duration) {
	factor := MinRandomFactor + rand.Float64()*(MaxRandomFactor-MinRandomFactor)

	return time.Duration(float64(ifc.cfg.ReachableTime) * factor)
}

// onNeighborStateChanged is the [NeighborChanged] hook wired into the
// neighbor cache at construction.  It only logs the neighbor's state
// transition; it removes no default router, route or registration.
func (ifc *Interface) onNeighborStateChanged(n *Neighbor, old, new_ NeighborState) {
	log := ifc.logger.With(slog.String("neighbor", n.IP.String()))

	if new_ == NeighborReachable {
		log.Debug("neighbor reachable")

		return
	}

	// old == NeighborReachable && new_ != NeighborReachable: NUD failed or
	// the entry was otherwise invalidated.  The resolved Open Question
	// (see design notes) is that a default router is NOT removed merely
	// because its neighbor entry left PROBE; apart from its own lifetime
	// expiring, it is only removed when an in-progress registration
	// explicitly fails via NUD, per spec §4.10 step 1.
	log.Debug("neighbor no longer reachable", slog.String("old_state", neighborStateString(old)))
}

func neighborStateString(s NeighborState) (str string) {
	switch s {
	case NeighborIncomplete:
		return "incomplete"
	case NeighborReachable:
		return "reachable"
	case NeighborStale:
		return "stale"
	case NeighborDelay:
		return "delay"
	case NeighborProbe:
		return "probe"
	default:
		return "unknown"
	}
}

// neighborHandleFor returns a stable handle to the neighbor cache slot
// holding ip, creating an INCOMPLETE entry if none exists yet.
func (ifc *Interface) neighborHandleFor(ip netip.Addr) (nh NeighborHandle) {
	_, idx := ifc.Neighbors.Add(ip)

	return ifc.Neighbors.HandleFor(idx)
}

// RecvRA processes a received Router Advertisement, per spec §4.4: it
// installs or refreshes the advertising router, and any prefixes and
// contexts it carries.
func (ifc *Interface) RecvRA(src netip.Addr, params RAParams) {
	ifc.rs.reset()

	nh := ifc.neighborHandleFor(src)
	if n, ok := ifc.Neighbors.Resolve(nh); ok {
		ifc.Neighbors.SetState(n, NeighborStale)
		n.IsRouter = true
	}

	r, err := ifc.Routers.Add(src, nh)
	if err != nil {
		ifc.logger.Warn("adding default router", slogutil.KeyError, err)
	} else {
		ifc.Routers.SetLifetime(r, params.RouterLifetime)
		ifc.Routes.RemoveByNextHop(src)
	}

	for _, p := range params.Prefixes {
		pr, addErr := ifc.Prefixes.Add(p.Prefix, p.Length)
		if addErr != nil {
			ifc.logger.Warn("adding prefix", slogutil.KeyError, addErr)

			continue
		}

		pr.IsOnLink = p.OnLink
		pr.IsAuto = p.Autonomous
		pr.Advertise = false
		pr.PreferredLifetime = p.PreferredLifetime
		ifc.Prefixes.SetLifetime(pr, p.ValidLifetime, p.ValidLifetime == 0)

		if p.Autonomous && ifc.cfg.Role == RoleHost {
			ifc.autoconfigure(pr)
		}
	}

	if ifc.cfg.ContextsEnabled && ifc.validContextIDs(params.Contexts) {
		for _, c := range params.Contexts {
			_, setErr := ifc.Contexts.Set(c.ID, c.Prefix, c.Length, c.Compress, c.Lifetime, params.RouterLifetime)
			if setErr != nil {
				ifc.logger.Warn("setting 6lowpan context", slogutil.KeyError, setErr)
			}
		}
	}
}

// validContextIDs reports whether an RA's 6LoWPAN Context Options carry no
// duplicate context id, which would otherwise make [ContextTable.Set]'s
// by-id installation order-dependent.
func (ifc *Interface) validContextIDs(contexts []RAContextAdv) (ok bool) {
	if len(contexts) < 2 {
		return true
	}

	uc := make(aghalg.UniqChecker[int], len(contexts))
	for _, c := range contexts {
		uc.Add(c.ID)
	}

	if err := uc.Validate(); err != nil {
		ifc.logger.Warn("ra carries duplicate context ids", slogutil.KeyError, err)

		return false
	}

	return true
}

// autoconfigure implements SLAAC address formation from an on-link,
// autonomous prefix (RFC 4862 §5.5).
func (ifc *Interface) autoconfigure(p *Prefix) {
	addr, err := setAddrIID(p.IP, ifc.cfg.LinkAddr)
	if err != nil {
		ifc.logger.Warn("forming slaac address", slogutil.KeyError, err)

		return
	}

	if _, ok := ifc.Unicast.Lookup(addr); ok {
		return
	}

	a, err := ifc.Unicast.Add(addr, AddrOriginAutoconf, RouterHandle{})
	if err != nil {
		ifc.logger.Warn("adding slaac address", slogutil.KeyError, err)

		return
	}

	ifc.Unicast.SetLifetime(a, p.PreferredLifetime, p.PreferredLifetime == 0)
}

// RecvNS processes a received Neighbor Solicitation.  In the router role,
// a solicitation carrying an ARO is treated as a 6LoWPAN-ND registration
// request (spec §4.9); otherwise it is treated as plain address resolution
// or NUD (spec §4.6).
func (ifc *Interface) RecvNS(ctx context.Context, src, dst, target netip.Addr, srcLinkAddr LinkAddr, aro *ARO) {
	if !src.IsUnspecified() {
		nh := ifc.neighborHandleFor(src)
		if n, ok := ifc.Neighbors.Resolve(nh); ok && len(srcLinkAddr) > 0 {
			n.LinkAddr = srcLinkAddr.Clone()

			if n.State == NeighborIncomplete {
				ifc.Neighbors.SetState(n, NeighborStale)
			}
		}
	}

	if ifc.cfg.Role != RoleRouter || aro == nil {
		return
	}

	ifc.handleRegistration(ctx, src, dst, target, srcLinkAddr, *aro)
}

// handleRegistration implements the router side of spec §4.9.
func (ifc *Interface) handleRegistration(ctx context.Context, src, dst, target netip.Addr, srcLinkAddr LinkAddr, aro ARO) {
	status := AROSuccess

	existing, _, ok := ifc.Registrations.Lookup(target, RouterHandle{})
	if !ok {
		if _, _, err := ifc.Registrations.Add(target, ifc.Routers, RouterHandle{}); err != nil {
			status = AROFull
		}
	} else {
		existing.State = RegRegistered
	}

	if !ifc.allowOutput {
		return
	}

	reply := ARO{EUI64: aro.EUI64, Lifetime: aro.Lifetime, Status: status, TID: aro.TID}
	if err := ifc.transport.SendNA(ctx, src, dst, target, true, &reply); err != nil {
		ifc.logger.Warn("sending registration reply", slogutil.KeyError, err)

		return
	}

	ifc.allowOutput = false
}

// RegisterAddress starts a 6LoWPAN-ND registration of addr with the
// interface's current default router, per spec §4.9's host-side behavior:
// the registration is created TENTATIVE and the periodic driver retransmits
// NS(ARO) for it until the router confirms or the retry budget runs out.
// It fails if no default router is currently chosen or a registration for
// addr already exists.
func (ifc *Interface) RegisterAddress(addr netip.Addr) (err error) {
	router, ok := ifc.Routers.Choose()
	if !ok {
		return errors.Error("nd6: no default router to register with")
	}

	_, idx, ok := ifc.Routers.Lookup(router.IP)
	if !ok {
		return errors.Error("nd6: no default router to register with")
	}

	rh := ifc.Routers.HandleFor(idx)

	r, _, err := ifc.Registrations.Add(addr, ifc.Routers, rh)
	if err != nil {
		return errors.Annotate(err, "registering address: %w")
	}

	ifc.Registrations.SetLifetime(r, ifc.cfg.TentativeRegLifetime)
	r.retransmit.set(ifc.cfg.Clock, 0)

	return nil
}

// RecvNA processes a received Neighbor Advertisement.  A solicited NA
// carrying an ARO is the router's reply to a registration request (spec
// §4.9); any other NA updates the neighbor cache per RFC 4861 §7.2.5.
func (ifc *Interface) RecvNA(src, target netip.Addr, srcLinkAddr LinkAddr, solicited bool, aro *ARO) {
	n, _, ok := ifc.Neighbors.Lookup(target)
	if ok && len(srcLinkAddr) > 0 {
		n.LinkAddr = srcLinkAddr.Clone()
	}

	if ok && solicited {
		switch n.State {
		case NeighborIncomplete, NeighborDelay, NeighborProbe:
			ifc.Neighbors.SetState(n, NeighborReachable)
			n.reachable.set(ifc.cfg.Clock, ifc.randomizedReachableTime())
			n.retries = 0
		default:
		}
	}

	if aro == nil {
		return
	}

	router, found := ifc.routerByNeighbor(src)
	if !found {
		return
	}

	r, _, found := ifc.Registrations.Lookup(target, router)
	if !found {
		return
	}

	switch aro.Status {
	case AROSuccess:
		if r.State == RegToBeUnregistered {
			// The router has confirmed the deregistration; the entry is
			// done, not "registered with a zero lifetime".
			ifc.Registrations.Remove(r, ifc.Routers)

			break
		}

		r.State = RegRegistered
		r.retries = 0
		ifc.Registrations.SetLifetime(r, aro.Lifetime)
	case ARODuplicate, AROValidationFailed:
		ifc.logger.Warn("registration rejected", slog.String("addr", target.String()), slog.Int("status", int(aro.Status)))
		ifc.Registrations.Remove(r, ifc.Routers)
	case AROFull:
		ifc.logger.Warn("router registration table full", slog.String("addr", target.String()))
		ifc.Registrations.Remove(r, ifc.Routers)
	case AROMovedTLLA, AROCacheUnreachable:
		r.State = RegGarbageCollectible
		ifc.Registrations.SetLifetime(r, ifc.cfg.GarbageCollectibleRegLifetime)
	}
}

// routerByNeighbor returns a handle to the default router whose neighbor
// cache entry is ip, if any.
func (ifc *Interface) routerByNeighbor(ip netip.Addr) (rh RouterHandle, ok bool) {
	for i := range ifc.Routers.Cap() {
		r := ifc.Routers.At(i)
		if r.InUse && r.IP == ip {
			return ifc.Routers.HandleFor(i), true
		}
	}

	return RouterHandle{}, false
}

// failRouter implements the router-unreachable cascade of spec §4.10 step 1
// and §8's boundary property: every other registration referencing router
// is removed, its neighbor cache entry and routes are dropped, the router
// itself is removed from the default router list, and the RS timer is
// forced to expire so a Router Solicitation is due within the same tick.
func (ifc *Interface) failRouter(router *Router, rh RouterHandle) {
	ifc.Registrations.CleanupRouter(rh, func(r *Registration) {
		ifc.Registrations.Remove(r, ifc.Routers)
	})

	if n, ok := ifc.Neighbors.Resolve(router.Neighbor); ok {
		ifc.Neighbors.Remove(n)
	}

	ifc.Routes.RemoveByNextHop(router.IP)
	ifc.Routers.Remove(router)

	ifc.rsTimer.set(ifc.cfg.Clock, 0)
}

// currentRegistration resolves the interface's in-progress registration, if
// any, clearing the handle if it has gone stale (removed elsewhere, e.g. by
// [Interface.RecvNA]) so a new registration may start.
func (ifc *Interface) currentRegistration() (r *Registration, ok bool) {
	if !ifc.inProgressReg.Valid() {
		return nil, false
	}

	r, ok = ifc.Registrations.Resolve(ifc.inProgressReg)
	if !ok {
		ifc.inProgressReg = RegistrationHandle{}

		return nil, false
	}

	return r, true
}

// nextRegistrationToStart picks the first host-side registration eligible to
// become the in-progress one, per spec §4.4/§5: a REGISTERED entry past its
// half-life is first converted back to TENTATIVE to refresh it, per RFC
// 8505 §5.2.  Called only when no registration is currently in progress.
func (ifc *Interface) nextRegistrationToStart() (r *Registration, ok bool) {
	for i := range ifc.Registrations.Cap() {
		cand := ifc.Registrations.At(i)
		if !cand.InUse || !cand.Router.Valid() {
			continue
		}

		if cand.State == RegRegistered && cand.halfLifeElapsed(ifc.cfg.Clock) {
			cand.State = RegTentative
			cand.retries = 0
			cand.retransmit.set(ifc.cfg.Clock, 0)
			ifc.Registrations.SetLifetime(cand, ifc.cfg.TentativeRegLifetime)
		}

		if cand.State != RegTentative && cand.State != RegToBeUnregistered {
			continue
		}

		ifc.inProgressReg = ifc.Registrations.HandleFor(i)

		return cand, true
	}

	return nil, false
}

// RecvRS processes a received Router Solicitation.  Only meaningful in the
// router role, where it triggers a solicited RA (spec §4.4, rate-limited
// by [Config.MinDelayBetweenRAs]).
func (ifc *Interface) RecvRS(ctx context.Context, src, dst netip.Addr, params RAParams) {
	if ifc.cfg.Role != RoleRouter || !ifc.allowOutput {
		return
	}

	if !ifc.raLastSentAt.IsZero() {
		if ifc.cfg.Clock.Now().Sub(ifc.raLastSentAt) < ifc.cfg.MinDelayBetweenRAs {
			return
		}
	}

	replyDst := dst
	if src.IsUnspecified() {
		replyDst = netip.MustParseAddr("ff02::1")
	} else {
		replyDst = src
	}

	if err := ifc.sendRA(ctx, replyDst); err != nil {
		ifc.logger.Warn("sending solicited ra", slogutil.KeyError, err)

		return
	}

	ifc.allowOutput = false
}

// sendRA assembles and transmits an RA to dst using the router's current
// prefix and context tables.
func (ifc *Interface) sendRA(ctx context.Context, dst netip.Addr) (err error) {
	src := ifc.Unicast.SelectSource(dst)

	params := RAParams{
		RouterLifetime: ifc.cfg.RegistrationLifetime,
		ReachableTime:  ifc.cfg.ReachableTime,
		RetransTimer:   ifc.cfg.RetransTimer,
	}

	for i := range ifc.Prefixes.Cap() {
		p := ifc.Prefixes.At(i)
		if !p.InUse || !p.Advertise {
			continue
		}

		params.Prefixes = append(params.Prefixes, RAPrefixAdv{
			Prefix:            p.IP,
			Length:            p.Length,
			OnLink:            p.IsOnLink,
			Autonomous:        p.IsAuto,
			ValidLifetime:     p.lifetime.remaining(ifc.cfg.Clock),
			PreferredLifetime: p.PreferredLifetime,
		})
	}

	if ifc.cfg.ContextsEnabled {
		for i := range ifc.Contexts.Cap() {
			c := ifc.Contexts.At(i)
			if c.State == ContextNotInUse {
				continue
			}

			params.Contexts = append(params.Contexts, RAContextAdv{
				ID:       c.ID,
				Prefix:   c.Prefix,
				Length:   c.Length,
				Compress: c.Compress,
				Lifetime: c.lifetime.remaining(ifc.cfg.Clock),
			})
		}
	}

	err = ifc.transport.SendRA(ctx, dst, src, params)
	if err == nil {
		ifc.raLastSentAt = ifc.cfg.Clock.Now()
	}

	return err
}
