package flv_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m-khomutov/debug-cdn/pkg/flv"
)

func TestHeaderFlagsVideoOnly(t *testing.T) {
	h := flv.Header(false)
	require.Equal(t, []byte{'F', 'L', 'V'}, h[:3])
	require.Equal(t, byte(0x01), h[3])
	require.Equal(t, byte(0x01), h[4])
	require.Equal(t, uint32(9), binary.BigEndian.Uint32(h[5:9]))
}

func TestHeaderFlagsAudioAndVideo(t *testing.T) {
	h := flv.Header(true)
	require.Equal(t, byte(0x05), h[4])
}

func TestAvcNalUnitTrailerMatchesTagLength(t *testing.T) {
	frame := []byte{0x00, 0x01, 0x02, 0x03}
	out := flv.AvcNalUnit(flv.FrameInter, nil, nil, frame, 40)

	tagLen := len(out) - 4
	trailer := binary.BigEndian.Uint32(out[tagLen:])
	require.Equal(t, uint32(tagLen), trailer)

	dataSize := int(out[1])<<16 | int(out[2])<<8 | int(out[3])
	require.Equal(t, tagLen-11, dataSize)
}

func TestAvcNalUnitKeyFramePrependsParameterSets(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	frame := []byte{0x65, 0xaa, 0xbb}

	out := flv.AvcNalUnit(flv.FrameKey, sps, pps, frame, 0)
	require.Equal(t, byte(flv.FrameKey)<<4|0x07, out[11])
	require.Equal(t, byte(flv.AVCNALU), out[12])
	require.Equal(t, []byte{
		0x00, 0x00, 0x00, 0x04, 0x67, 0x42, 0x00, 0x1e,
		0x00, 0x00, 0x00, 0x04, 0x68, 0xce, 0x3c, 0x80,
		0x00, 0x00, 0x00, 0x03, 0x65, 0xaa, 0xbb,
	}, out[16:len(out)-4])
}

func TestAacSequenceHeaderLength(t *testing.T) {
	out := flv.AacSequenceHeader(44100, 2)
	dataSize := int(out[1])<<16 | int(out[2])<<8 | int(out[3])
	require.Equal(t, 2, dataSize-2)
	require.Equal(t, byte(flv.TagAudio), out[0])
}

func TestAacRawTagTimestampEncoding(t *testing.T) {
	out := flv.AacRawTag([]byte{0x01, 0x02}, 0x01020304)
	require.Equal(t, byte(0x02), out[4])
	require.Equal(t, byte(0x03), out[5])
	require.Equal(t, byte(0x04), out[6])
	require.Equal(t, byte(0x01), out[7])
}
