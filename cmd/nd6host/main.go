// Command nd6host runs a single-interface 6LoWPAN-ND host or router over a
// raw ICMPv6 socket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
	"github.com/vrajesh2188/6lowpan-nd/internal/ndtransport"
)

func interfaceByName(name string) (iface *net.Interface, err error) {
	return net.InterfaceByName(name)
}

func main() {
	iface := flag.String("iface", "eth0", "network interface to run on")
	linkLocal := flag.String("link-local", "", "this interface's link-local address")
	asRouter := flag.Bool("router", false, "run in the router role")
	flag.Parse()

	logger := slogutil.New(&slogutil.Config{})

	if err := run(*iface, *linkLocal, *asRouter, logger); err != nil {
		logger.Error("exiting", slogutil.KeyError, err)
		os.Exit(1)
	}
}

func run(ifaceName, linkLocalStr string, asRouter bool, logger *slog.Logger) (err error) {
	src, err := netip.ParseAddr(linkLocalStr)
	if err != nil {
		return err
	}

	netIface, err := interfaceByName(ifaceName)
	if err != nil {
		return err
	}

	linkAddr := nd6.LinkAddr(netIface.HardwareAddr)

	transport, err := ndtransport.ListenICMP6(ifaceName, src, linkAddr)
	if err != nil {
		return err
	}
	defer transport.Close()

	role := nd6.RoleHost
	if asRouter {
		role = nd6.RoleRouter
	}

	cfg := nd6.Config{
		Logger:                logger,
		Period:                nd6.DefaultPeriod,
		Clock:                 timeutil.SystemClock{},
		LinkAddr:              linkAddr,
		Role:                  role,
		ContextsEnabled:       true,
		NeighborCacheSize:     32,
		DefaultRouterListSize: 4,
		PrefixListSize:        8,
		RouteTableSize:        32,
		UnicastAddrListSize:   8,
		MulticastAddrListSize: 8,
		AnycastAddrListSize:   2,
		RegistrationListSize:  32,
		ContextTableSize:      16,
	}

	ifc, err := nd6.New(cfg, transport)
	if err != nil {
		return err
	}

	ctx := context.Background()

	type inbound struct {
		data []byte
		src  netip.Addr
	}

	packets := make(chan inbound, 16)

	go func() {
		buf := make([]byte, 1500)
		for {
			data, src, readErr := transport.ReadFrom(buf)
			if readErr != nil {
				logger.Warn("reading icmpv6 packet", slogutil.KeyError, readErr)

				return
			}

			cp := make([]byte, len(data))
			copy(cp, data)
			packets <- inbound{data: cp, src: src}
		}
	}()

	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ifc.Periodic(ctx)
		case p := <-packets:
			dispatch(ctx, ifc, p.data, p.src, logger)
		}
	}
}

// dispatch decodes a raw ICMPv6 payload and routes it to the matching
// [nd6.Interface] Recv* method.
func dispatch(ctx context.Context, ifc *nd6.Interface, data []byte, src netip.Addr, logger *slog.Logger) {
	msg, err := ndtransport.Decode(data, src)
	if err != nil {
		logger.Debug("decoding nd packet", slogutil.KeyError, err)

		return
	}

	switch msg.Kind {
	case ndtransport.MessageRS:
		ifc.RecvRS(ctx, msg.Src, netip.Addr{}, nd6.RAParams{})
	case ndtransport.MessageRA:
		ifc.RecvRA(msg.Src, msg.RA)
	case ndtransport.MessageNS:
		ifc.RecvNS(ctx, msg.Src, netip.Addr{}, msg.Target, msg.SrcLinkAddr, msg.ARO)
	case ndtransport.MessageNA:
		ifc.RecvNA(msg.Src, msg.Target, msg.SrcLinkAddr, true, msg.ARO)
	}
}
