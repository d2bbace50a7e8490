package ndtransport

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrajesh2188/6lowpan-nd/internal/nd6"
)

func TestBuildRS_hasSourceLinkLayerOption(t *testing.T) {
	src := netip.MustParseAddr("fe80::1")
	linkLL := nd6.LinkAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

	data, err := buildRS(src, linkLL)
	require.NoError(t, err)

	assert.Equal(t, uint8(typeRS), data[0])
	assert.NotEmpty(t, data)

	// 4 bytes of ICMPv6 header and 4 reserved bytes precede the option.
	require.Len(t, data, 16)
	assert.Equal(t, uint8(optSourceLinkLayerAddr), data[8])
	assert.Equal(t, []byte(linkLL), data[10:16])
}

func TestBuildNS_carriesARO(t *testing.T) {
	src := netip.MustParseAddr("fe80::1")
	dst := netip.MustParseAddr("fe80::2")
	target := netip.MustParseAddr("2001:db8::1")

	aro := &nd6.ARO{
		EUI64:    nd6.LinkAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		Lifetime: time.Hour,
		Status:   nd6.AROSuccess,
		TID:      7,
	}

	data, err := buildNS(src, dst, target, nil, aro)
	require.NoError(t, err)

	assert.Equal(t, uint8(typeNS), data[0])

	// 4 bytes of ICMPv6 header, 4 reserved bytes and the 16-byte target
	// precede the 16-byte ARO.
	require.Len(t, data, 40)
	assert.Equal(t, uint8(optAddrRegistration), data[24])
	assert.Equal(t, aro.TID, data[26])
}

func TestBuildRA_withPrefixAndContext(t *testing.T) {
	src := netip.MustParseAddr("fe80::1")
	dst := netip.MustParseAddr("ff02::1")

	params := nd6.RAParams{
		RouterLifetime: 30 * time.Minute,
		ReachableTime:  30 * time.Second,
		RetransTimer:   time.Second,
		Prefixes: []nd6.RAPrefixAdv{{
			Prefix:        netip.MustParseAddr("2001:db8::"),
			Length:        64,
			OnLink:        true,
			ValidLifetime: time.Hour,
		}},
		Contexts: []nd6.RAContextAdv{{
			ID:       1,
			Prefix:   netip.MustParseAddr("2001:db8::"),
			Length:   64,
			Compress: true,
			Lifetime: time.Hour,
		}},
	}

	data, err := buildRA(src, dst, nil, params)
	require.NoError(t, err)

	assert.Equal(t, uint8(typeRA), data[0])
}
