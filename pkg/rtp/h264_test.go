package rtp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m-khomutov/debug-cdn/pkg/rtp"
)

func TestH264DepacketizerCapturesSPSAndPPS(t *testing.T) {
	d := rtp.NewH264Depacketizer()
	var frames [][]byte

	d.OnFrame = func(frame []byte, keyframe bool, ts uint32) {
		frames = append(frames, frame)
	}

	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	d.Process(sps, 1000)
	d.Process(pps, 1000)

	require.True(t, d.Ready())
	require.Equal(t, sps, d.SPS())
	require.Equal(t, pps, d.PPS())
	require.Empty(t, frames) // SPS/PPS never forwarded as frames
}

func TestH264DepacketizerWithholdsFramesUntilReady(t *testing.T) {
	d := rtp.NewH264Depacketizer()
	var frames [][]byte
	d.OnFrame = func(frame []byte, keyframe bool, ts uint32) {
		frames = append(frames, frame)
	}

	idr := []byte{0x65, 0xaa, 0xbb}
	d.Process(idr, 1000)
	require.Empty(t, frames)
}

func TestH264DepacketizerSingleNALUPassthrough(t *testing.T) {
	d := rtp.NewH264Depacketizer()
	d.Process([]byte{0x67, 0x01}, 0) // SPS
	d.Process([]byte{0x68, 0x02}, 0) // PPS

	var got []byte
	var keyframe bool
	d.OnFrame = func(frame []byte, kf bool, ts uint32) {
		got = frame
		keyframe = kf
	}

	idr := []byte{0x65, 0xaa, 0xbb, 0xcc}
	d.Process(idr, 3000)

	require.Equal(t, idr, got)
	require.True(t, keyframe)
}

func TestH264DepacketizerReassemblesFUA(t *testing.T) {
	d := rtp.NewH264Depacketizer()
	d.Process([]byte{0x67, 0x01}, 0)
	d.Process([]byte{0x68, 0x02}, 0)

	var got []byte
	d.OnFrame = func(frame []byte, kf bool, ts uint32) { got = frame }

	fuIndicator := byte(0x7C) // f=0, nri=3, type=28 (FU-A)
	startFUHeader := byte(0x85)  // S=1, type=5 (IDR)
	midFUHeader := byte(0x05)
	endFUHeader := byte(0x45) // E=1, type=5

	d.Process([]byte{fuIndicator, startFUHeader, 0xAA}, 5000)
	d.Process([]byte{fuIndicator, midFUHeader, 0xBB}, 5000)
	d.Process([]byte{fuIndicator, endFUHeader, 0xCC}, 5000)

	require.Equal(t, []byte{0x65, 0xAA, 0xBB, 0xCC}, got)
}

func TestH264DepacketizerNonIDRIsInter(t *testing.T) {
	d := rtp.NewH264Depacketizer()
	d.Process([]byte{0x67, 0x01}, 0)
	d.Process([]byte{0x68, 0x02}, 0)

	var keyframe bool
	d.OnFrame = func(frame []byte, kf bool, ts uint32) { keyframe = kf }

	d.Process([]byte{0x61, 0x01, 0x02}, 6000) // type 1 (non-IDR)
	require.False(t, keyframe)
}
