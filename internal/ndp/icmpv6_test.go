package ndp

import (
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func TestDecodePrefixOption(t *testing.T) {
	data := make([]byte, 30)
	data[0] = 64   // prefix length
	data[1] = 0xC0 // on-link + autonomous
	data[2], data[3], data[4], data[5] = 0, 0, 0x0E, 0x10
	data[6], data[7], data[8], data[9] = 0, 0, 0x07, 0x08
	prefixBytes := netip.MustParseAddr("2001:db8::").As16()
	copy(data[14:30], prefixBytes[:])

	got, ok := decodePrefixOption(data)
	require.True(t, ok)
	require.Equal(t, "2001:db8::/64", got.Prefix.String())
	require.True(t, got.OnLink)
	require.True(t, got.Autonomous)
	require.Equal(t, uint32(0x0E10), got.ValidLifetime)
	require.Equal(t, uint32(0x0708), got.PrefLifetime)
}

func TestDecodePrefixOption_TooShort(t *testing.T) {
	_, ok := decodePrefixOption(make([]byte, 10))
	require.False(t, ok)
}

func TestDecodeAbrOption(t *testing.T) {
	data := make([]byte, 22)
	data[0], data[1] = 0x00, 0x01 // version
	data[2], data[3] = 0x00, 0x3C // valid lifetime minutes
	addrBytes := netip.MustParseAddr("2001:db8::1").As16()
	copy(data[6:22], addrBytes[:])

	got, ok := decodeAbrOption(data)
	require.True(t, ok)
	require.Equal(t, uint16(1), got.Version)
	require.Equal(t, uint16(0x3C), got.ValidLifetimeMin)
	require.Equal(t, netip.MustParseAddr("2001:db8::1"), got.BorderRouterAddr)
}

func TestDecodeAbrOption_TooShort(t *testing.T) {
	_, ok := decodeAbrOption(make([]byte, 10))
	require.False(t, ok)
}

func TestDecodeContextOption(t *testing.T) {
	data := make([]byte, 22)
	data[0] = 64          // context length in bits
	data[1] = 0x10 | 0x03 // compression flag set, CID 3
	data[4], data[5] = 0x00, 0x3C
	prefixBytes := netip.MustParseAddr("2001:db8:1::").As16()
	copy(data[6:22], prefixBytes[:])

	got, ok := decodeContextOption(data)
	require.True(t, ok)
	require.Equal(t, uint8(3), got.CID)
	require.True(t, got.Compression)
	require.Equal(t, uint16(0x3C), got.ValidLifetimeMin)
	require.Equal(t, "2001:db8:1::/64", got.Prefix.String())
}

func TestDecodeContextOption_TooShort(t *testing.T) {
	_, ok := decodeContextOption(make([]byte, 4))
	require.False(t, ok)
}

// buildRAPacket hand-assembles a bare IPv6+ICMPv6 RA packet carrying a
// single on-link PIO, the way a router advertisement arrives on the
// wire (RFC 4861 §4.2/§4.6.2).
func buildRAPacket(t *testing.T, routerAddr, dstAddr netip.Addr, lifetime uint16, pfx netip.Prefix) []byte {
	t.Helper()

	pio := make([]byte, 32)
	pio[0] = byte(OptPrefixInfo)
	pio[1] = 4 // length in 8-byte units
	pio[2] = byte(pfx.Bits())
	pio[3] = 0x80 // on-link
	be32put(pio[4:8], 86400)
	be32put(pio[8:12], 14400)
	addrBytes := pfx.Addr().As16()
	copy(pio[16:32], addrBytes[:])

	icmpHeader := make([]byte, 16)
	icmpHeader[0] = 134 // ICMPv6 Router Advertisement
	icmpHeader[4] = 64  // current hop limit
	icmpHeader[6] = byte(lifetime >> 8)
	icmpHeader[7] = byte(lifetime)
	icmp := append(icmpHeader, pio...)

	payloadLen := len(icmp)
	ipv6 := make([]byte, 40+payloadLen)
	ipv6[0] = 0x60
	ipv6[4] = byte(payloadLen >> 8)
	ipv6[5] = byte(payloadLen)
	ipv6[6] = 58 // ICMPv6
	ipv6[7] = 255
	src := routerAddr.As16()
	dst := dstAddr.As16()
	copy(ipv6[8:24], src[:])
	copy(ipv6[24:40], dst[:])
	copy(ipv6[40:], icmp)
	return ipv6
}

func be32put(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestDecodeRA(t *testing.T) {
	routerAddr := netip.MustParseAddr("fe80::1")
	dstAddr := netip.MustParseAddr("ff02::1")
	pfx := netip.MustParsePrefix("2001:db8::/64")

	raw := buildRAPacket(t, routerAddr, dstAddr, 1800, pfx)

	packet := gopacket.NewPacket(raw, layers.LayerTypeIPv6, gopacket.Default)
	require.Nil(t, packet.ErrorLayer())

	ra, ok := DecodeRA(packet, 3)
	require.True(t, ok)
	require.Equal(t, routerAddr, ra.RouterAddr)
	require.Equal(t, uint16(3), ra.Iface)
	require.Equal(t, uint16(1800), ra.RouterLifetimeSec)
	require.Len(t, ra.Prefixes, 1)
	require.Equal(t, pfx, ra.Prefixes[0].Prefix)
	require.True(t, ra.Prefixes[0].OnLink)
	require.Nil(t, ra.ABR)
	require.Empty(t, ra.Contexts)
}
