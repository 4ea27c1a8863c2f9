package flv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m-khomutov/debug-cdn/pkg/flv"
)

func TestAudioSpecificConfigKnownFrequency(t *testing.T) {
	conf := flv.AudioSpecificConfig(44100, 2)
	require.Len(t, conf, 2)
	// object type 2 (AAC-LC) << 3 | top bit of freq index 4 (44100)
	require.Equal(t, byte(2<<3)|byte(4>>1), conf[0])
}

func TestAudioSpecificConfigExplicitFrequency(t *testing.T) {
	conf := flv.AudioSpecificConfig(12345, 1)
	require.Len(t, conf, 5)
	require.Equal(t, byte(2<<3)|0x07, conf[0])
}

// TestAudioSpecificConfigExplicitFrequencyBitPacking pins the exact 5-byte
// encoding for objectType=2 (AAC-LC), idx=15 (explicit frequency),
// rate=0x654321, channels=5: objectType(5)|idx(4)|rate(24)|channels(4) packed
// contiguously, followed by 3 reserved zero bits, worked out bit by bit.
func TestAudioSpecificConfigExplicitFrequencyBitPacking(t *testing.T) {
	conf := flv.AudioSpecificConfig(0x654321, 5)
	require.Equal(t, []byte{0x17, 0xb2, 0xa1, 0x90, 0xa8}, conf)
}

func TestTimestampNormalizerFirstSampleIsZero(t *testing.T) {
	n := flv.NewTimestampNormalizer(90000)
	require.Equal(t, int64(0), n.Normalize(1000))
}

func TestTimestampNormalizerAdvancesByTicks(t *testing.T) {
	n := flv.NewTimestampNormalizer(90000)
	n.Normalize(0)
	ms := n.Normalize(90000) // exactly one second later
	require.Equal(t, int64(1000), ms)
}

func TestTimestampNormalizerCarriesFraction(t *testing.T) {
	// 90000 ticks/sec, advancing by 3000 ticks each time: 3000*1000/90000 =
	// 33.33ms. The fractional remainder must accumulate rather than be
	// dropped, so over 3 steps the total matches 100ms exactly instead of
	// 99ms from repeated truncation.
	n := flv.NewTimestampNormalizer(90000)
	n.Normalize(0)
	var last int64
	for i := 0; i < 3; i++ {
		last = n.Normalize(uint32(3000 * (i + 1)))
	}
	require.Equal(t, int64(100), last)
}

func TestTimestampNormalizerHandlesWraparound(t *testing.T) {
	n := flv.NewTimestampNormalizer(90000)
	n.Normalize(4294967295 - 1000)
	ms := n.Normalize(8000) // wraps past the uint32 boundary
	require.Greater(t, ms, int64(0))
}
