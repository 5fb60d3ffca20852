// Package ndp implements the ND protocol engine: it decodes Router
// Solicitation/Advertisement and Neighbor Solicitation/Advertisement
// traffic and calls into internal/nib's mutation API in response to
// what it observes on the wire.
package ndp

import (
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// OptionKind is an NDP option type code (RFC 4861 §4.6, RFC 4191's
// RIO, RFC 6775's 6CO/ABRO).
type OptionKind uint8

const (
	OptSourceLinkLayerAddr OptionKind = 1
	OptTargetLinkLayerAddr OptionKind = 2
	OptPrefixInfo          OptionKind = 3
	OptMTU                 OptionKind = 5
	OptRouteInfo           OptionKind = 24
	Opt6LoWPANContext      OptionKind = 34
	OptABR                 OptionKind = 35
)

// PrefixOption is a decoded Prefix Information Option (RFC 4861 §4.6.2).
type PrefixOption struct {
	Prefix        netip.Prefix
	OnLink        bool
	Autonomous    bool
	ValidLifetime uint32
	PrefLifetime  uint32
}

// AbrOption is a decoded Authoritative Border Router Option (RFC 6775
// §4.1), identifying the 6LoWPAN border router that is the source of
// truth for the prefixes and contexts carried alongside it.
type AbrOption struct {
	Version          uint16
	ValidLifetimeMin uint16
	BorderRouterAddr netip.Addr
}

// ContextOption is a decoded 6LoWPAN Context Option (RFC 6775 §4.2):
// a compression context an ABR is advertising.
type ContextOption struct {
	CID              uint8
	Compression      bool
	ValidLifetimeMin uint16
	Prefix           netip.Prefix
}

// RouterAdvertisement is a decoded RA.
type RouterAdvertisement struct {
	RouterAddr        netip.Addr
	Iface             uint16
	RouterLifetimeSec uint16
	ReachableTimeMs   uint32
	RetransTimerMs    uint32
	SourceLLAddr      []byte
	Prefixes          []PrefixOption
	ABR               *AbrOption
	Contexts          []ContextOption
}

// NeighborAdvertisement is a decoded NA.
type NeighborAdvertisement struct {
	SrcAddr      netip.Addr
	TargetAddr   netip.Addr
	Iface        uint16
	Solicited    bool
	Override     bool
	TargetLLAddr []byte
}

// NeighborSolicitation is a decoded NS.
type NeighborSolicitation struct {
	SrcAddr      netip.Addr
	TargetAddr   netip.Addr
	Iface        uint16
	SourceLLAddr []byte
}

func addrFromNetIP(ip []byte) (netip.Addr, bool) {
	a, ok := netip.AddrFromSlice(ip)
	return a, ok
}

// DecodeRA extracts a RouterAdvertisement from a decoded packet's RA
// layer, iface identifying the interface the packet arrived on.
func DecodeRA(packet gopacket.Packet, iface uint16) (*RouterAdvertisement, bool) {
	ipv6Layer := packet.Layer(layers.LayerTypeIPv6)
	raLayer := packet.Layer(layers.LayerTypeICMPv6RouterAdvertisement)
	if ipv6Layer == nil || raLayer == nil {
		return nil, false
	}
	ipv6 := ipv6Layer.(*layers.IPv6)
	ra := raLayer.(*layers.ICMPv6RouterAdvertisement)

	addr, ok := addrFromNetIP(ipv6.SrcIP)
	if !ok {
		return nil, false
	}

	result := &RouterAdvertisement{
		RouterAddr:        addr,
		Iface:             iface,
		RouterLifetimeSec: ra.RouterLifetime,
		ReachableTimeMs:   ra.ReachableTime,
		RetransTimerMs:    ra.RetransTimer,
	}

	for _, opt := range ra.Options {
		switch OptionKind(opt.Type) {
		case OptSourceLinkLayerAddr:
			result.SourceLLAddr = append([]byte(nil), opt.Data...)
		case OptPrefixInfo:
			if pfx, ok := decodePrefixOption(opt.Data); ok {
				result.Prefixes = append(result.Prefixes, pfx)
			}
		case OptABR:
			if abr, ok := decodeAbrOption(opt.Data); ok {
				result.ABR = &abr
			}
		case Opt6LoWPANContext:
			if ctx, ok := decodeContextOption(opt.Data); ok {
				result.Contexts = append(result.Contexts, ctx)
			}
		}
	}
	return result, true
}

// decodeAbrOption parses an Authoritative Border Router Option body
// (RFC 6775 §4.1): 2-byte Version, 2-byte Valid Lifetime, 2 reserved
// bytes, then a 16-byte border router address.
func decodeAbrOption(data []byte) (AbrOption, bool) {
	if len(data) < 22 {
		return AbrOption{}, false
	}
	addr, ok := addrFromNetIP(data[6:22])
	if !ok {
		return AbrOption{}, false
	}
	return AbrOption{
		Version:          uint16(data[0])<<8 | uint16(data[1]),
		ValidLifetimeMin: uint16(data[2])<<8 | uint16(data[3]),
		BorderRouterAddr: addr,
	}, true
}

// decodeContextOption parses a 6LoWPAN Context Option body (RFC 6775
// §4.2): 1-byte context length (in bits), 1 byte packing the
// compression flag and CID, 2 reserved bytes, 2-byte Valid Lifetime,
// then the context prefix padded out to 16 bytes.
func decodeContextOption(data []byte) (ContextOption, bool) {
	if len(data) < 6 {
		return ContextOption{}, false
	}
	ctxLenBits := int(data[0])
	if ctxLenBits < 1 || ctxLenBits > 128 {
		return ContextOption{}, false
	}
	cid := data[1] & 0x07
	compression := data[1]&0x10 != 0
	validLtime := uint16(data[4])<<8 | uint16(data[5])

	var raw [16]byte
	copy(raw[:], data[6:])
	addr := netip.AddrFrom16(raw)
	prefix, err := addr.Prefix(ctxLenBits)
	if err != nil {
		return ContextOption{}, false
	}
	return ContextOption{
		CID:              cid,
		Compression:      compression,
		ValidLifetimeMin: validLtime,
		Prefix:           prefix,
	}, true
}

// decodePrefixOption parses the 30-byte PIO body (RFC 4861 §4.6.2).
func decodePrefixOption(data []byte) (PrefixOption, bool) {
	if len(data) < 30 {
		return PrefixOption{}, false
	}
	pfxLen := int(data[0])
	flags := data[1]
	validLtime := be32(data[2:6])
	prefLtime := be32(data[6:10])
	addr, ok := addrFromNetIP(data[14:30])
	if !ok || pfxLen < 1 || pfxLen > 128 {
		return PrefixOption{}, false
	}
	prefix, err := addr.Prefix(pfxLen)
	if err != nil {
		return PrefixOption{}, false
	}
	return PrefixOption{
		Prefix:        prefix,
		OnLink:        flags&0x80 != 0,
		Autonomous:    flags&0x40 != 0,
		ValidLifetime: validLtime,
		PrefLifetime:  prefLtime,
	}, true
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// DecodeNA extracts a NeighborAdvertisement from a decoded packet's NA
// layer, iface identifying the interface the packet arrived on.
func DecodeNA(packet gopacket.Packet, iface uint16) (*NeighborAdvertisement, bool) {
	ipv6Layer := packet.Layer(layers.LayerTypeIPv6)
	naLayer := packet.Layer(layers.LayerTypeICMPv6NeighborAdvertisement)
	if ipv6Layer == nil || naLayer == nil {
		return nil, false
	}
	ipv6 := ipv6Layer.(*layers.IPv6)
	na := naLayer.(*layers.ICMPv6NeighborAdvertisement)

	src, ok := addrFromNetIP(ipv6.SrcIP)
	if !ok {
		return nil, false
	}
	target, ok := addrFromNetIP(na.TargetAddress)
	if !ok {
		return nil, false
	}

	result := &NeighborAdvertisement{
		SrcAddr:    src,
		TargetAddr: target,
		Iface:      iface,
		Solicited:  na.Flags&0x40 != 0,
		Override:   na.Flags&0x20 != 0,
	}

	for _, opt := range na.Options {
		if OptionKind(opt.Type) == OptTargetLinkLayerAddr {
			result.TargetLLAddr = append([]byte(nil), opt.Data...)
		}
	}
	if result.TargetLLAddr == nil {
		if ethLayer := packet.Layer(layers.LayerTypeEthernet); ethLayer != nil {
			result.TargetLLAddr = []byte(ethLayer.(*layers.Ethernet).SrcMAC)
		}
	}
	return result, true
}

// DecodeNS decodes a Neighbor Solicitation.
func DecodeNS(packet gopacket.Packet, iface uint16) (*NeighborSolicitation, bool) {
	ipv6Layer := packet.Layer(layers.LayerTypeIPv6)
	nsLayer := packet.Layer(layers.LayerTypeICMPv6NeighborSolicitation)
	if ipv6Layer == nil || nsLayer == nil {
		return nil, false
	}
	ipv6 := ipv6Layer.(*layers.IPv6)
	ns := nsLayer.(*layers.ICMPv6NeighborSolicitation)

	src, ok := addrFromNetIP(ipv6.SrcIP)
	if !ok {
		return nil, false
	}
	target, ok := addrFromNetIP(ns.TargetAddress)
	if !ok {
		return nil, false
	}

	result := &NeighborSolicitation{SrcAddr: src, TargetAddr: target, Iface: iface}
	for _, opt := range ns.Options {
		if OptionKind(opt.Type) == OptSourceLinkLayerAddr {
			result.SourceLLAddr = append([]byte(nil), opt.Data...)
		}
	}
	return result, true
}
