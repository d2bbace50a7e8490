//go:build linux

package ndtransport

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/packet"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

// solicitedNodeMAC derives the Ethernet multicast address corresponding to
// a solicited-node or all-nodes/all-routers IPv6 multicast address, per
// RFC 2464 §7.
func solicitedNodeMAC(dst netip.Addr) (mac net.HardwareAddr) {
	b := dst.As16()

	return net.HardwareAddr{0x33, 0x33, b[12], b[13], b[14], b[15]}
}

// EthernetTransport is a [nd6.Transport] implementation for a node without
// kernel IPv6 assistance on its link: every ND message is framed directly
// as an Ethernet frame over a raw AF_PACKET socket, grounded on the same
// mdlayher/ethernet and mdlayher/packet raw-socket pattern the teacher's
// DHCP listener uses.
type EthernetTransport struct {
	conn   *packet.Conn
	iface  *net.Interface
	linkLL nd6.LinkAddr
}

// ListenEthernet opens a raw AF_PACKET socket on ifaceName for IPv6
// EtherType frames.
func ListenEthernet(ifaceName string, linkLL nd6.LinkAddr) (t *EthernetTransport, err error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ndtransport: looking up interface: %w", err)
	}

	conn, err := packet.Listen(iface, packet.Raw, int(ethernet.EtherTypeIPv6), nil)
	if err != nil {
		return nil, fmt.Errorf("ndtransport: listening raw: %w", err)
	}

	return &EthernetTransport{conn: conn, iface: iface, linkLL: linkLL}, nil
}

// Close closes the underlying raw socket.
func (t *EthernetTransport) Close() (err error) {
	return t.conn.Close()
}

func (t *EthernetTransport) sendFrame(payload []byte, src, dst netip.Addr) (err error) {
	eth := &layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv6,
		SrcMAC:       net.HardwareAddr(t.linkLL),
		DstMAC:       solicitedNodeMAC(dst),
	}

	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   255,
		NextHeader: layers.IPProtocolICMPv6,
		SrcIP:      net.IP(src.AsSlice()),
		DstIP:      net.IP(dst.AsSlice()),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: false}

	if err = gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("ndtransport: serializing ethernet frame: %w", err)
	}

	_, err = t.conn.WriteTo(buf.Bytes(), &packet.Addr{HardwareAddr: eth.DstMAC})

	return err
}

var _ nd6.Transport = (*EthernetTransport)(nil)

// SendNS implements [nd6.Transport].
func (t *EthernetTransport) SendNS(_ context.Context, dst, src, target netip.Addr, aro *nd6.ARO) (err error) {
	data, err := buildNS(src, dst, target, t.linkLL, aro)
	if err != nil {
		return err
	}

	return t.sendFrame(data, src, dst)
}

// SendRS implements [nd6.Transport].
func (t *EthernetTransport) SendRS(_ context.Context, src netip.Addr) (err error) {
	dst := netip.MustParseAddr("ff02::2")

	data, err := buildRS(src, t.linkLL)
	if err != nil {
		return err
	}

	return t.sendFrame(data, src, dst)
}

// SendRA implements [nd6.Transport].
func (t *EthernetTransport) SendRA(_ context.Context, dst, src netip.Addr, params nd6.RAParams) (err error) {
	data, err := buildRA(src, dst, t.linkLL, params)
	if err != nil {
		return err
	}

	return t.sendFrame(data, src, dst)
}

// SendNA implements [nd6.Transport].
func (t *EthernetTransport) SendNA(_ context.Context, dst, src, target netip.Addr, solicited bool, aro *nd6.ARO) (err error) {
	data, err := buildNA(src, dst, target, solicited, t.linkLL, aro)
	if err != nil {
		return err
	}

	return t.sendFrame(data, src, dst)
}
