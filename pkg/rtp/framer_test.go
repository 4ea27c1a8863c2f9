package rtp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m-khomutov/debug-cdn/pkg/rtp"
)

func rtpPacket(channel byte, seq uint16, timestamp uint32, payload []byte) []byte {
	header := make([]byte, 12)
	header[0] = 0x80 // version 2
	header[1] = 96
	header[2] = byte(seq >> 8)
	header[3] = byte(seq)
	header[4] = byte(timestamp >> 24)
	header[5] = byte(timestamp >> 16)
	header[6] = byte(timestamp >> 8)
	header[7] = byte(timestamp)
	// SSRC left zero

	rtpBytes := append(header, payload...)
	size := len(rtpBytes)

	out := make([]byte, 0, 4+size)
	out = append(out, 0x24, channel, byte(size>>8), byte(size))
	out = append(out, rtpBytes...)
	return out
}

func TestFramerDecodesSingleFrame(t *testing.T) {
	f := rtp.NewFramer()
	var got []rtp.Frame
	f.OnFrame = func(fr rtp.Frame) error {
		got = append(got, fr)
		return nil
	}

	payload := []byte{0x01, 0x02, 0x03}
	require.NoError(t, f.Feed(rtpPacket(0, 1, 1000, payload)))

	require.Len(t, got, 1)
	require.Equal(t, byte(0), got[0].Channel)
	require.Equal(t, payload, got[0].Payload)
	require.Equal(t, uint32(1000), got[0].Header.Timestamp)
}

func TestFramerWaitsForMoreBytes(t *testing.T) {
	f := rtp.NewFramer()
	var got []rtp.Frame
	f.OnFrame = func(fr rtp.Frame) error {
		got = append(got, fr)
		return nil
	}

	full := rtpPacket(0, 1, 1000, []byte{0xAA, 0xBB})
	require.NoError(t, f.Feed(full[:len(full)-1]))
	require.Empty(t, got)

	require.NoError(t, f.Feed(full[len(full)-1:]))
	require.Len(t, got, 1)
}

func TestFramerHandlesInlineResponse(t *testing.T) {
	f := rtp.NewFramer()
	var inline []byte
	f.OnInlineResponse = func(b []byte) { inline = b }

	var frames []rtp.Frame
	f.OnFrame = func(fr rtp.Frame) error {
		frames = append(frames, fr)
		return nil
	}

	resp := []byte("RTSP/1.0 200 OK\r\nCSeq: 5\r\n\r\n")
	data := append(append([]byte{}, resp...), rtpPacket(1, 2, 2000, []byte{0x09})...)

	require.NoError(t, f.Feed(data))
	require.Equal(t, resp, inline)
	require.Len(t, frames, 1)
	require.Equal(t, byte(1), frames[0].Channel)
}

func TestFramerAccumulatesMultipleFrames(t *testing.T) {
	f := rtp.NewFramer()
	var got []rtp.Frame
	f.OnFrame = func(fr rtp.Frame) error {
		got = append(got, fr)
		return nil
	}

	data := append(rtpPacket(0, 1, 1000, []byte{0x01}), rtpPacket(0, 2, 1030, []byte{0x02})...)
	require.NoError(t, f.Feed(data))
	require.Len(t, got, 2)
	require.Equal(t, uint32(1030), got[1].Header.Timestamp)
}
