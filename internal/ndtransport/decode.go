package ndtransport

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

// Message is a decoded inbound ND packet, tagged by its ICMPv6 type so a
// caller's receive loop can dispatch to the matching [nd6.Interface] Recv*
// method without re-parsing.
type Message struct {
	Kind        MessageKind
	Src         netip.Addr
	Target      netip.Addr
	SrcLinkAddr nd6.LinkAddr
	ARO         *nd6.ARO
	RA          nd6.RAParams
}

// MessageKind identifies which Recv* method a decoded [Message] belongs to.
type MessageKind int

const (
	MessageRS MessageKind = iota
	MessageRA
	MessageNS
	MessageNA
)

// Decode parses a raw ICMPv6 payload (as delivered by a raw ICMPv6 socket,
// without an IPv6 header) into a [Message].
func Decode(data []byte, src netip.Addr) (m Message, err error) {
	if len(data) < 1 {
		return m, fmt.Errorf("ndtransport: empty packet")
	}

	m.Src = src

	switch data[0] {
	case typeRS:
		m.Kind = MessageRS

		return decodeRS(data, m)
	case typeRA:
		m.Kind = MessageRA

		return decodeRA(data, m)
	case typeNS:
		m.Kind = MessageNS

		return decodeNS(data, m)
	case typeNA:
		m.Kind = MessageNA

		return decodeNA(data, m)
	default:
		return m, fmt.Errorf("ndtransport: unsupported icmpv6 type %d", data[0])
	}
}

func decodeRS(data []byte, m Message) (out Message, err error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeICMPv6RouterSolicitation, gopacket.NoCopy)

	l, ok := pkt.Layer(layers.LayerTypeICMPv6RouterSolicitation).(*layers.ICMPv6RouterSolicitation)
	if !ok {
		return m, fmt.Errorf("ndtransport: decoding rs: no rs layer")
	}

	m.SrcLinkAddr = extractLinkAddr(l.Options, optSourceLinkLayerAddr)

	return m, nil
}

func decodeRA(data []byte, m Message) (out Message, err error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeICMPv6RouterAdvertisement, gopacket.NoCopy)

	l, ok := pkt.Layer(layers.LayerTypeICMPv6RouterAdvertisement).(*layers.ICMPv6RouterAdvertisement)
	if !ok {
		return m, fmt.Errorf("ndtransport: decoding ra: no ra layer")
	}

	m.RA = nd6.RAParams{
		CurHopLimit:    l.HopLimit,
		ManagedFlag:    l.Flags&0x80 != 0,
		OtherFlag:      l.Flags&0x40 != 0,
		RouterLifetime: time.Duration(l.RouterLifetime) * time.Second,
		ReachableTime:  time.Duration(l.ReachableTime) * time.Millisecond,
		RetransTimer:   time.Duration(l.RetransTimer) * time.Millisecond,
	}

	for _, opt := range l.Options {
		switch uint8(opt.Type) {
		case optSourceLinkLayerAddr:
			m.SrcLinkAddr = nd6.LinkAddr(opt.Data).Clone()
		case optPrefixInfo:
			if p, decErr := decodePrefixOption(opt.Data); decErr == nil {
				m.RA.Prefixes = append(m.RA.Prefixes, p)
			}
		case opt6LoWPANContext:
			if c, decErr := decodeContextOption(opt.Data); decErr == nil {
				m.RA.Contexts = append(m.RA.Contexts, c)
			}
		}
	}

	return m, nil
}

func decodePrefixOption(data []byte) (p nd6.RAPrefixAdv, err error) {
	if len(data) < 30 {
		return p, fmt.Errorf("ndtransport: short prefix option")
	}

	p.Length = int(data[0])
	p.OnLink = data[1]&0x80 != 0
	p.Autonomous = data[1]&0x40 != 0
	p.ValidLifetime = time.Duration(be32(data[2:6])) * time.Second
	p.PreferredLifetime = time.Duration(be32(data[6:10])) * time.Second

	var addr [16]byte
	copy(addr[:], data[14:30])
	p.Prefix = netip.AddrFrom16(addr)

	return p, nil
}

func decodeContextOption(data []byte) (c nd6.RAContextAdv, err error) {
	if len(data) < 14 {
		return c, fmt.Errorf("ndtransport: short context option")
	}

	c.Length = int(data[0])
	c.ID = int(data[1] & 0x0F)
	c.Compress = data[1]&0x10 != 0
	c.Lifetime = time.Duration(be16(data[2:4])) * time.Minute

	var prefix [16]byte
	copy(prefix[:8], data[6:14])
	c.Prefix = netip.AddrFrom16(prefix)

	return c, nil
}

func decodeNS(data []byte, m Message) (out Message, err error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeICMPv6NeighborSolicitation, gopacket.NoCopy)

	l, ok := pkt.Layer(layers.LayerTypeICMPv6NeighborSolicitation).(*layers.ICMPv6NeighborSolicitation)
	if !ok {
		return m, fmt.Errorf("ndtransport: decoding ns: no ns layer")
	}

	target, ok := netip.AddrFromSlice(l.TargetAddress)
	if !ok {
		return m, fmt.Errorf("ndtransport: decoding ns: bad target address")
	}

	m.Target = target
	m.SrcLinkAddr = extractLinkAddr(l.Options, optSourceLinkLayerAddr)
	m.ARO = extractARO(l.Options)

	return m, nil
}

func decodeNA(data []byte, m Message) (out Message, err error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeICMPv6NeighborAdvertisement, gopacket.NoCopy)

	l, ok := pkt.Layer(layers.LayerTypeICMPv6NeighborAdvertisement).(*layers.ICMPv6NeighborAdvertisement)
	if !ok {
		return m, fmt.Errorf("ndtransport: decoding na: no na layer")
	}

	target, ok := netip.AddrFromSlice(l.TargetAddress)
	if !ok {
		return m, fmt.Errorf("ndtransport: decoding na: bad target address")
	}

	m.Target = target
	m.SrcLinkAddr = extractLinkAddr(l.Options, optTargetLinkLayerAddr)
	m.ARO = extractARO(l.Options)

	return m, nil
}

func extractLinkAddr(opts layers.ICMPv6Options, typ uint8) (l nd6.LinkAddr) {
	for _, opt := range opts {
		if uint8(opt.Type) == typ {
			return nd6.LinkAddr(opt.Data).Clone()
		}
	}

	return nil
}

func extractARO(opts layers.ICMPv6Options) (aro *nd6.ARO) {
	for _, opt := range opts {
		if uint8(opt.Type) != optAddrRegistration || len(opt.Data) < 14 {
			continue
		}

		return &nd6.ARO{
			TID:      opt.Data[0],
			Status:   nd6.AROStatus(opt.Data[1]),
			Lifetime: time.Duration(be16(opt.Data[4:6])) * time.Minute,
			EUI64:    nd6.LinkAddr(opt.Data[6:14]).Clone(),
		}
	}

	return nil
}

func be16(b []byte) (v uint16) {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) (v uint32) {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
