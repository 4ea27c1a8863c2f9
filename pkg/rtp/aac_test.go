package rtp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m-khomutov/debug-cdn/pkg/rtp"
)

func TestParseFmtpAACConfigExplicit(t *testing.T) {
	fmtp := "97 streamtype=5;profile-level-id=15;mode=AAC-hbr;sizelength=13;indexlength=3;indexdeltalength=3;config=1210"
	cfg := rtp.ParseFmtpAACConfig(fmtp)
	require.True(t, cfg.Explicit)
	require.Equal(t, 13, cfg.SizeLength)
	require.Equal(t, 3, cfg.IndexLength)
}

func TestParseFmtpAACConfigFallsBackWhenMissing(t *testing.T) {
	cfg := rtp.ParseFmtpAACConfig("97 mode=AAC-hbr;config=1210")
	require.False(t, cfg.Explicit)
	require.Equal(t, 13, cfg.SizeLength)
	require.Equal(t, 3, cfg.IndexLength)
}

// buildAUPayload builds one RFC 3640 AU-header-block payload carrying a
// single access unit, sizelength=13 / indexlength=3 (16-bit headers).
func buildAUPayload(sample []byte) []byte {
	headerBits := uint16(16) // one 16-bit AU header
	size := uint16(len(sample)) << 3
	payload := []byte{
		byte(headerBits >> 8), byte(headerBits),
		byte(size >> 8), byte(size),
	}
	return append(payload, sample...)
}

func TestAACDepacketizerSingleAccessUnit(t *testing.T) {
	d := rtp.NewAACDepacketizer(rtp.AACConfig{SizeLength: 13, IndexLength: 3})

	var got []byte
	d.OnFrame = func(sample []byte, ts uint32) { got = sample }

	sample := []byte{0x11, 0x22, 0x33}
	d.Process(buildAUPayload(sample), 4000)

	require.Equal(t, sample, got)
}

func TestAACDepacketizerMultipleAccessUnits(t *testing.T) {
	d := rtp.NewAACDepacketizer(rtp.AACConfig{SizeLength: 13, IndexLength: 3})

	var got [][]byte
	d.OnFrame = func(sample []byte, ts uint32) { got = append(got, sample) }

	au1 := []byte{0x01, 0x02}
	au2 := []byte{0x03, 0x04, 0x05}

	headerBits := uint16(32) // two 16-bit AU headers
	payload := []byte{byte(headerBits >> 8), byte(headerBits)}
	s1 := uint16(len(au1)) << 3
	s2 := uint16(len(au2)) << 3
	payload = append(payload, byte(s1>>8), byte(s1), byte(s2>>8), byte(s2))
	payload = append(payload, au1...)
	payload = append(payload, au2...)

	d.Process(payload, 5000)

	require.Len(t, got, 2)
	require.Equal(t, au1, got[0])
	require.Equal(t, au2, got[1])
}

func TestAACDepacketizerDefaultFallback(t *testing.T) {
	d := rtp.NewAACDepacketizer(rtp.AACConfig{})

	var got []byte
	d.OnFrame = func(sample []byte, ts uint32) { got = sample }

	sample := []byte{0xAA, 0xBB}
	d.Process(buildAUPayload(sample), 1000)

	require.Equal(t, sample, got)
}
