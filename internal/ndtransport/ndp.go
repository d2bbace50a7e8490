package ndtransport

import (
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

// icmpv6TypeCode values for the four ND message types this package builds.
const (
	typeRS = 133
	typeRA = 134
	typeNS = 135
	typeNA = 136
)

// 6LoWPAN-ND and ND option types (RFC 4861 §4.6, RFC 8505 §4.1, RFC 6775
// §4.2).  gopacket/layers only names the RFC 4861 options; the
// 6LoWPAN-specific ones are appended as raw [layers.ICMPv6Option] values
// using these type numbers directly.
const (
	optSourceLinkLayerAddr = 1
	optTargetLinkLayerAddr = 2
	optPrefixInfo          = 3
	optMTU                 = 5
	opt6LoWPANContext      = 34
	optAddrRegistration    = 33
)

// pseudoIPv6 builds the IPv6 layer used only to compute the ICMPv6
// pseudo-header checksum; it is never itself serialized onto the wire, as
// the raw ICMPv6 socket lets the kernel supply the real IPv6 header.
func pseudoIPv6(src, dst netip.Addr) (ip *layers.IPv6) {
	return &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolICMPv6,
		HopLimit:   255,
		SrcIP:      net.IP(src.AsSlice()),
		DstIP:      net.IP(dst.AsSlice()),
	}
}

func serialize(icmp *layers.ICMPv6, ip *layers.IPv6, layersAfter ...gopacket.SerializableLayer) (data []byte, err error) {
	icmp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	all := append([]gopacket.SerializableLayer{icmp}, layersAfter...)
	if err = gopacket.SerializeLayers(buf, opts, all...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// aroOption encodes an Address Registration Option (RFC 8505 §4.1).
func aroOption(aro nd6.ARO) (opt layers.ICMPv6Option) {
	data := make([]byte, 14)
	data[0] = aro.TID
	data[1] = byte(aro.Status)
	// bytes 2:4 reserved, 4:6 registration lifetime in units of 60s.
	lifetimeUnits := uint16(aro.Lifetime / time.Minute)
	data[4] = byte(lifetimeUnits >> 8)
	data[5] = byte(lifetimeUnits)
	copy(data[6:14], padEUI64(aro.EUI64))

	return layers.ICMPv6Option{Type: layers.ICMPv6Opt(optAddrRegistration), Data: data}
}

// padEUI64 right-pads or truncates l to exactly 8 bytes for the ARO's
// EUI-64 field.
func padEUI64(l nd6.LinkAddr) (out []byte) {
	out = make([]byte, 8)
	copy(out, l)

	return out
}

// contextOption encodes a 6LoWPAN Context Option (RFC 6775 §4.2).
func contextOption(c nd6.RAContextAdv) (opt layers.ICMPv6Option) {
	data := make([]byte, 14)
	data[0] = byte(c.Length)

	flags := byte(c.ID & 0x0F)
	if c.Compress {
		flags |= 0x10
	}

	data[1] = flags

	lifetimeUnits := uint16(c.Lifetime / time.Minute)
	data[2] = byte(lifetimeUnits >> 8)
	data[3] = byte(lifetimeUnits)

	prefixBytes := c.Prefix.As16()
	copy(data[6:14], prefixBytes[:8])

	return layers.ICMPv6Option{Type: layers.ICMPv6Opt(opt6LoWPANContext), Data: data}
}

// prefixOption encodes a Prefix Information Option (RFC 4861 §4.6.2).
func prefixOption(p nd6.RAPrefixAdv) (opt layers.ICMPv6Option) {
	data := make([]byte, 30)
	data[0] = byte(p.Length)

	flags := byte(0)
	if p.OnLink {
		flags |= 0x80
	}

	if p.Autonomous {
		flags |= 0x40
	}

	data[1] = flags

	valid := uint32(p.ValidLifetime / time.Second)
	pref := uint32(p.PreferredLifetime / time.Second)
	putUint32(data[2:6], valid)
	putUint32(data[6:10], pref)
	// data[10:14] reserved.

	prefixBytes := p.Prefix.As16()
	copy(data[14:30], prefixBytes[:])

	return layers.ICMPv6Option{Type: layers.ICMPv6Opt(optPrefixInfo), Data: data}
}

func linkLayerOption(typ uint8, l nd6.LinkAddr) (opt layers.ICMPv6Option) {
	return layers.ICMPv6Option{Type: layers.ICMPv6Opt(typ), Data: []byte(l)}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// buildNS assembles a Neighbor Solicitation, optionally carrying srcLL and
// an Address Registration Option.
func buildNS(src, dst, target netip.Addr, srcLL nd6.LinkAddr, aro *nd6.ARO) (data []byte, err error) {
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(typeNS, 0)}
	ns := &layers.ICMPv6NeighborSolicitation{TargetAddress: net.IP(target.AsSlice())}

	if len(srcLL) > 0 {
		ns.Options = append(ns.Options, linkLayerOption(optSourceLinkLayerAddr, srcLL))
	}

	if aro != nil {
		ns.Options = append(ns.Options, aroOption(*aro))
	}

	return serialize(icmp, pseudoIPv6(src, dst), ns)
}

// buildRS assembles a Router Solicitation carrying the sender's link-layer
// address, when known.
func buildRS(src netip.Addr, srcLL nd6.LinkAddr) (data []byte, err error) {
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(typeRS, 0)}
	rs := &layers.ICMPv6RouterSolicitation{}

	if len(srcLL) > 0 {
		rs.Options = append(rs.Options, linkLayerOption(optSourceLinkLayerAddr, srcLL))
	}

	allRouters := netip.MustParseAddr("ff02::2")

	return serialize(icmp, pseudoIPv6(src, allRouters), rs)
}

// buildRA assembles a Router Advertisement carrying every prefix and
// 6LoWPAN context the router currently advertises.
func buildRA(src, dst netip.Addr, srcLL nd6.LinkAddr, params nd6.RAParams) (data []byte, err error) {
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(typeRA, 0)}

	flags := uint8(0)
	if params.ManagedFlag {
		flags |= 0x80
	}

	if params.OtherFlag {
		flags |= 0x40
	}

	ra := &layers.ICMPv6RouterAdvertisement{
		HopLimit:       params.CurHopLimit,
		Flags:          flags,
		RouterLifetime: uint16(params.RouterLifetime / time.Second),
		ReachableTime:  uint32(params.ReachableTime / time.Millisecond),
		RetransTimer:   uint32(params.RetransTimer / time.Millisecond),
	}

	if len(srcLL) > 0 {
		ra.Options = append(ra.Options, linkLayerOption(optSourceLinkLayerAddr, srcLL))
	}

	for _, p := range params.Prefixes {
		ra.Options = append(ra.Options, prefixOption(p))
	}

	for _, c := range params.Contexts {
		ra.Options = append(ra.Options, contextOption(c))
	}

	return serialize(icmp, pseudoIPv6(src, dst), ra)
}

// buildNA assembles a Neighbor Advertisement, optionally carrying an
// Address Registration Option reply (RFC 8505 §4.1).
func buildNA(src, dst, target netip.Addr, solicited bool, targetLL nd6.LinkAddr, aro *nd6.ARO) (data []byte, err error) {
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(typeNA, 0)}

	flags := uint8(0)
	if solicited {
		flags |= 0x40
	}

	na := &layers.ICMPv6NeighborAdvertisement{
		Flags:         flags,
		TargetAddress: net.IP(target.AsSlice()),
	}

	if len(targetLL) > 0 {
		na.Options = append(na.Options, linkLayerOption(optTargetLinkLayerAddr, targetLL))
	}

	if aro != nil {
		na.Options = append(na.Options, aroOption(*aro))
	}

	return serialize(icmp, pseudoIPv6(src, dst), na)
}
