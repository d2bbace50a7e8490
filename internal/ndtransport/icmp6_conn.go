package ndtransport

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

// ICMP6Conn is a [nd6.Transport] implementation that sends Neighbor
// Discovery messages over a raw ICMPv6 socket, grounded on the same
// icmp.ListenPacket/IPv6PacketConn pattern the router-advertisement sender
// this module generalizes uses.
type ICMP6Conn struct {
	conn    *icmp.PacketConn
	pconn6  *ipv6.PacketConn
	ifIndex int
	linkLL  nd6.LinkAddr
}

// ListenICMP6 opens a raw ICMPv6 socket bound to ifaceName, scoped by addr,
// with the outbound hop limit fixed at 255 as RFC 4861 requires for every
// ND message.
func ListenICMP6(ifaceName string, addr netip.Addr, linkLL nd6.LinkAddr) (c *ICMP6Conn, err error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ndtransport: looking up interface: %w", err)
	}

	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", addr.String()+"%"+ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ndtransport: listening: %w", err)
	}

	pconn6 := conn.IPv6PacketConn()

	if err = pconn6.SetHopLimit(255); err != nil {
		return nil, errors.WithDeferred(fmt.Errorf("ndtransport: setting hop limit: %w", err), conn.Close())
	}

	if err = pconn6.SetMulticastHopLimit(255); err != nil {
		return nil, errors.WithDeferred(fmt.Errorf("ndtransport: setting multicast hop limit: %w", err), conn.Close())
	}

	return &ICMP6Conn{
		conn:    conn,
		pconn6:  pconn6,
		ifIndex: iface.Index,
		linkLL:  linkLL,
	}, nil
}

// Close closes the underlying socket.
func (c *ICMP6Conn) Close() (err error) {
	return c.conn.Close()
}

// ReadFrom blocks until an ICMPv6 packet arrives, returning its payload and
// source address.
func (c *ICMP6Conn) ReadFrom(buf []byte) (data []byte, src netip.Addr, err error) {
	n, _, peer, err := c.pconn6.ReadFrom(buf)
	if err != nil {
		return nil, netip.Addr{}, err
	}

	var peerIP net.IP
	switch a := peer.(type) {
	case *net.IPAddr:
		peerIP = a.IP
	case *net.UDPAddr:
		peerIP = a.IP
	default:
		return nil, netip.Addr{}, fmt.Errorf("ndtransport: unexpected peer address type %T", peer)
	}

	addr, ok := netip.AddrFromSlice(peerIP)
	if !ok {
		return nil, netip.Addr{}, fmt.Errorf("ndtransport: bad peer address")
	}

	return buf[:n], addr.Unmap(), nil
}

func (c *ICMP6Conn) write(data []byte, src netip.Addr, dst netip.Addr) (err error) {
	cm := &ipv6.ControlMessage{
		HopLimit: 255,
		Src:      net.IP(src.AsSlice()),
		IfIndex:  c.ifIndex,
	}

	_, err = c.pconn6.WriteTo(data, cm, &net.UDPAddr{IP: net.IP(dst.AsSlice())})

	return err
}

var _ nd6.Transport = (*ICMP6Conn)(nil)

// SendNS implements [nd6.Transport].
func (c *ICMP6Conn) SendNS(_ context.Context, dst, src, target netip.Addr, aro *nd6.ARO) (err error) {
	data, err := buildNS(src, dst, target, c.linkLL, aro)
	if err != nil {
		return fmt.Errorf("ndtransport: building ns: %w", err)
	}

	return c.write(data, src, dst)
}

// SendRS implements [nd6.Transport].
func (c *ICMP6Conn) SendRS(_ context.Context, src netip.Addr) (err error) {
	data, err := buildRS(src, c.linkLL)
	if err != nil {
		return fmt.Errorf("ndtransport: building rs: %w", err)
	}

	return c.write(data, src, netip.MustParseAddr("ff02::2"))
}

// SendRA implements [nd6.Transport].
func (c *ICMP6Conn) SendRA(_ context.Context, dst, src netip.Addr, params nd6.RAParams) (err error) {
	data, err := buildRA(src, dst, c.linkLL, params)
	if err != nil {
		return fmt.Errorf("ndtransport: building ra: %w", err)
	}

	return c.write(data, src, dst)
}

// SendNA implements [nd6.Transport].
func (c *ICMP6Conn) SendNA(_ context.Context, dst, src, target netip.Addr, solicited bool, aro *nd6.ARO) (err error) {
	data, err := buildNA(src, dst, target, solicited, c.linkLL, aro)
	if err != nil {
		return fmt.Errorf("ndtransport: building na: %w", err)
	}

	return c.write(data, src, dst)
}
