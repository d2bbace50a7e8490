package nd6

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// allRoutersMulticast is the standard link-local all-routers multicast
// address RS is sent to.
var allRoutersMulticast = netip.MustParseAddr("ff02::2")

// Periodic is the sole timer and expiry agent of this package (spec
// §4.10): callers invoke it at roughly [Config.Period] intervals, passing
// a context used only for the single outbound packet this call may emit.
// It runs, in order:
//
//  1. Registration-state NUD-failure handling, which takes priority over
//     plain neighbor-cache reachability bookkeeping.
//  2. Expiry of addresses, prefixes, default routers, routes, contexts,
//     and registrations, accumulating the minimum remaining lifetime seen
//     across all of them.
//  3. Neighbor cache NUD timer processing (REACHABLE -> STALE decay,
//     DELAY -> PROBE escalation, PROBE/INCOMPLETE retransmission and
//     give-up).
//  4. A proactive Router Solicitation when the minimum lifetime from step
//     2 drops below [Config.LifetimeThreshold], subject to RS backoff.
//  5. Router-role unsolicited Router Advertisement origination.
//
// At most one outbound packet is sent per call, matching the
// single-output-per-tick throttle of the source this package generalizes.
func (ifc *Interface) Periodic(ctx context.Context) {
	ifc.allowOutput = true

	ifc.stepRegistrations(ctx)

	minLifetime := ifc.stepExpire()

	ifc.stepNeighborNUD(ctx)

	if ifc.cfg.Role == RoleHost {
		ifc.stepProactiveRS(ctx, minLifetime)
	} else {
		ifc.stepUnsolicitedRA(ctx)
	}
}

// stepRegistrations implements spec §4.10 step 1: it advances at most one
// host-side registration exchange per tick, the one referenced by
// [Interface.inProgressReg], per spec §4.4/§5's invariant that at most one
// registration_in_progress handle is non-null. When none is in progress, it
// picks the next eligible entry to start (a REGISTERED entry past its
// half-life is first moved back to TENTATIVE to refresh it, per RFC 8505
// §5.2).
//
//   - A TENTATIVE registration whose router has gone PROBE with no retries
//     left fails NUD outright: the registration and the router are both
//     removed, along with every other registration, neighbor cache entry,
//     and route tied to that router, and a fresh Router Solicitation is
//     forced within the same tick (spec §4.10 step 1, §8 boundary property).
//   - Otherwise a TENTATIVE or TO_BE_UNREGISTERED registration whose
//     retransmit timer has expired sends another NS(ARO), giving up with
//     the same router-unreachable cascade once [Config.MaxUnicastSolicit]
//     attempts have been made.
func (ifc *Interface) stepRegistrations(ctx context.Context) {
	r, ok := ifc.currentRegistration()
	if !ok {
		r, ok = ifc.nextRegistrationToStart()
		if !ok {
			return
		}
	}

	router, ok := ifc.Routers.Resolve(r.Router)
	if !ok {
		ifc.Registrations.Remove(r, ifc.Routers)
		ifc.inProgressReg = RegistrationHandle{}

		return
	}

	if r.State == RegTentative {
		if n, nok := ifc.Neighbors.Resolve(router.Neighbor); nok && n.State == NeighborProbe && n.retries == 0 {
			ifc.logger.Info("registration failed nud", slog.String("addr", r.Addr.String()))

			ifc.Registrations.Remove(r, ifc.Routers)
			ifc.inProgressReg = RegistrationHandle{}
			ifc.failRouter(router, r.Router)

			return
		}
	}

	if r.State != RegTentative && r.State != RegToBeUnregistered {
		// Resolved to REGISTERED (e.g. an ARO success arrived between
		// ticks) before this entry ever retransmitted: release it so
		// something else may start next tick.
		ifc.inProgressReg = RegistrationHandle{}

		return
	}

	if !r.retransmit.expired(ifc.cfg.Clock) {
		return
	}

	if r.retries >= ifc.cfg.MaxUnicastSolicit {
		ifc.logger.Info("registration gave up", slog.String("addr", r.Addr.String()))

		ifc.Registrations.Remove(r, ifc.Routers)
		ifc.inProgressReg = RegistrationHandle{}
		ifc.failRouter(router, r.Router)

		return
	}

	if !ifc.allowOutput {
		return
	}

	lifetime := ifc.cfg.RegistrationLifetime
	if r.State == RegToBeUnregistered {
		lifetime = 0
	}

	aro := &ARO{EUI64: ifc.cfg.LinkAddr.Clone(), Lifetime: lifetime}

	if err := ifc.transport.SendNS(ctx, router.IP, r.Addr, r.Addr, aro); err != nil {
		ifc.logger.Warn("sending registration ns", slogutil.KeyError, err)

		return
	}

	r.retries++
	r.retransmit.set(ifc.cfg.Clock, ifc.cfg.RetransTimer)
	ifc.allowOutput = false
}

// stepExpire walks every lifetime-bearing table once, expiring entries
// whose timers have elapsed and returning the smallest remaining lifetime
// observed among everything that did not expire.
func (ifc *Interface) stepExpire() (min time.Duration) {
	min = time.Duration(1<<63 - 1)

	// Free slots and unarmed or infinite timers report 0 and are not
	// tracked.
	track := func(d time.Duration) {
		if d > 0 && d < min {
			min = d
		}
	}

	for i := range ifc.Unicast.arena.Cap() {
		remaining, router, removed := ifc.Unicast.expireOne(i)
		if removed {
			if router.Valid() {
				ifc.Registrations.CleanupAddress(ifc.Unicast.arena.At(i).IP, func(r *Registration) {
					r.State = RegToBeUnregistered
				})
			}

			continue
		}

		track(remaining)
	}

	for i := range ifc.Prefixes.Cap() {
		remaining, removed := ifc.Prefixes.ExpireOne(i)
		if removed {
			continue
		}

		track(remaining)
	}

	for i := range ifc.Routers.Cap() {
		rh := ifc.Routers.HandleFor(i)
		remaining, removed := ifc.Routers.ExpireOne(i)
		if removed {
			router := ifc.Routers.At(i)
			ifc.Routes.RemoveByNextHop(router.IP)
			ifc.Registrations.CleanupRouter(rh, func(r *Registration) {
				r.State = RegToBeUnregistered
			})

			continue
		}

		track(remaining)
	}

	for i := range ifc.Routes.Cap() {
		remaining, removed := ifc.Routes.ExpireOne(i)
		if removed {
			continue
		}

		track(remaining)
	}

	if ifc.cfg.ContextsEnabled {
		for i := range ifc.Contexts.Cap() {
			remaining, removed := ifc.Contexts.ExpireOne(i)
			if removed {
				continue
			}

			track(remaining)
		}
	}

	for i := range ifc.Registrations.Cap() {
		remaining, expired := ifc.Registrations.ExpireOne(i, ifc.Routers)
		if expired {
			continue
		}

		track(remaining)
	}

	return min
}

// stepNeighborNUD advances every in-use neighbor cache entry's NUD timer
// by one tick, per RFC 4861 §7.3.1.
func (ifc *Interface) stepNeighborNUD(ctx context.Context) {
	for i := range ifc.Neighbors.Cap() {
		n := ifc.Neighbors.At(i)
		if !n.InUse {
			continue
		}

		switch n.State {
		case NeighborReachable:
			if n.reachable.expired(ifc.cfg.Clock) {
				ifc.Neighbors.SetState(n, NeighborStale)
			}
		case NeighborDelay:
			if n.reachable.expired(ifc.cfg.Clock) {
				ifc.Neighbors.SetState(n, NeighborProbe)
				n.retries = ifc.cfg.MaxUnicastSolicit
				n.reachable.set(ifc.cfg.Clock, ifc.cfg.RetransTimer)
			}
		case NeighborProbe, NeighborIncomplete:
			ifc.stepSolicitNeighbor(ctx, n)
		case NeighborStale:
			// Transitions to DELAY on next use from the output path, out
			// of scope for the periodic driver itself.
		}
	}
}

// stepSolicitNeighbor retransmits an NS for a PROBE or INCOMPLETE
// neighbor, or evicts it once its retry budget is exhausted.
func (ifc *Interface) stepSolicitNeighbor(ctx context.Context, n *Neighbor) {
	if !n.reachable.expired(ifc.cfg.Clock) {
		return
	}

	if n.retries <= 0 {
		ifc.Routes.RemoveByNextHop(n.IP)
		ifc.Neighbors.Remove(n)

		return
	}

	if !ifc.allowOutput {
		return
	}

	src := ifc.Unicast.SelectSource(n.IP)

	var dst netip.Addr
	if n.State == NeighborIncomplete {
		dst = solicitedNodeMulticast(n.IP)
	} else {
		dst = n.IP
	}

	if err := ifc.transport.SendNS(ctx, dst, src, n.IP, nil); err != nil {
		ifc.logger.Warn("sending ns", slogutil.KeyError, err)

		return
	}

	n.retries--
	n.reachable.set(ifc.cfg.Clock, ifc.cfg.RetransTimer)
	ifc.allowOutput = false
}

// solicitedNodeMulticast derives the solicited-node multicast address for
// target, per RFC 4291 §2.7.1.
func solicitedNodeMulticast(target netip.Addr) (addr netip.Addr) {
	b := target.As16()
	out := [16]byte{0xff, 0x02}
	out[11] = 0x01
	out[12] = 0xff
	out[13] = b[13]
	out[14] = b[14]
	out[15] = b[15]

	return netip.AddrFrom16(out)
}

// stepProactiveRS implements spec §4.10 step 4: if minLifetime has fallen
// below [Config.LifetimeThreshold], or no default router exists at all,
// solicit one, subject to the RS backoff schedule.
func (ifc *Interface) stepProactiveRS(ctx context.Context, minLifetime time.Duration) {
	_, haveRouter := ifc.Routers.Choose()

	needRS := !haveRouter || minLifetime < ifc.cfg.LifetimeThreshold
	if !needRS {
		ifc.rs.reset()

		return
	}

	if !ifc.rsTimer.expired(ifc.cfg.Clock) {
		return
	}

	if !ifc.allowOutput {
		return
	}

	src := ifc.Unicast.SelectSource(allRoutersMulticast)
	if err := ifc.transport.SendRS(ctx, src); err != nil {
		ifc.logger.Warn("sending rs", slogutil.KeyError, err)

		return
	}

	ifc.allowOutput = false

	delay := ifc.rs.next(ifc.cfg.MaxRtrSolicitations, ifc.cfg.RtrSolicitationInterval, ifc.cfg.MaxRtrSolicitationInterval)
	ifc.rsTimer.set(ifc.cfg.Clock, delay)
}

// stepUnsolicitedRA implements spec §4.10 step 5: a router sends
// unsolicited RAs to the all-nodes multicast address on a randomized
// interval drawn from [Config.MinRAInterval] up to
// [Config.MaxInitialRAInterval] for the first [Config.MaxInitialRAs]
// advertisements and up to [Config.MaxRAInterval] afterward, per RFC 4861
// §6.2.4.
func (ifc *Interface) stepUnsolicitedRA(ctx context.Context) {
	if !ifc.raUnsolicitedTimer.armed {
		ifc.armUnsolicitedRA()

		return
	}

	if !ifc.raUnsolicitedTimer.expired(ifc.cfg.Clock) {
		return
	}

	if !ifc.allowOutput {
		return
	}

	if err := ifc.sendRA(ctx, netip.MustParseAddr("ff02::1")); err != nil {
		ifc.logger.Warn("sending unsolicited ra", slogutil.KeyError, err)

		return
	}

	ifc.allowOutput = false

	if ifc.raInitialSent < ifc.cfg.MaxInitialRAs {
		ifc.raInitialSent++
	}

	ifc.armUnsolicitedRA()
}

func (ifc *Interface) armUnsolicitedRA() {
	maxInterval := ifc.cfg.MaxRAInterval
	if ifc.raInitialSent < ifc.cfg.MaxInitialRAs {
		maxInterval = ifc.cfg.MaxInitialRAInterval
	}

	ifc.raUnsolicitedTimer.set(ifc.cfg.Clock, randDuration(ifc.cfg.MinRAInterval, maxInterval))
}
