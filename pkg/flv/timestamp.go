package flv

// samplingFrequencies is the MPEG-4 Audio sampling-frequency index table
// (ISO/IEC 14496-3 Table 1.16). Index 15 marks "explicit frequency", used as
// the fallback when clockRate matches none of the fixed entries.
var samplingFrequencies = []int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

func samplingFrequencyIndex(clockRate int) int {
	for i, f := range samplingFrequencies {
		if f == clockRate {
			return i
		}
	}
	return 15
}

// AudioSpecificConfig builds the 2-byte (or 5-byte, for an explicit
// frequency) MPEG-4 AudioSpecificConfig carried in the AAC sequence header,
// assuming AAC-LC (object type 2).
func AudioSpecificConfig(clockRate, channels int) []byte {
	const objectTypeAACLC = 2
	idx := samplingFrequencyIndex(clockRate)

	if idx != 15 {
		b0 := byte(objectTypeAACLC<<3) | byte(idx>>1)
		b1 := byte(idx&0x01)<<7 | byte(channels&0x0F)<<3
		return []byte{b0, b1}
	}

	// Explicit form packs objectType(5)|idx(4)|rate(24)|channels(4) as one
	// contiguous 37-bit field, then pads with 3 reserved zero bits to fill
	// 5 bytes — the rate is not byte-aligned, so it must be assembled via a
	// bit shift rather than copied in as three whole bytes.
	bits := uint64(objectTypeAACLC&0x1F)<<32 |
		uint64(idx&0x0F)<<28 |
		uint64(clockRate&0xFFFFFF)<<4 |
		uint64(channels&0x0F)
	packed := bits << 3
	return []byte{
		byte(packed >> 32),
		byte(packed >> 24),
		byte(packed >> 16),
		byte(packed >> 8),
		byte(packed),
	}
}

// TimestampNormalizer converts RTP clock ticks into monotonically
// increasing integer milliseconds, carrying the fractional remainder
// forward instead of truncating it away on every sample (spec §4.D,
// property P5). One instance is kept per elementary stream (video, audio),
// each with its own clockRate.
type TimestampNormalizer struct {
	clockRate  int64
	haveBase   bool
	baseTicks  uint32
	prevTicks  uint32
	millis     int64
	fractional int64 // remainder * clockRate, always in [0, clockRate)
}

// NewTimestampNormalizer creates a normalizer for a stream clocked at
// clockRate ticks per second (90000 for video, the audio sample rate for
// AAC).
func NewTimestampNormalizer(clockRate int) *TimestampNormalizer {
	return &TimestampNormalizer{clockRate: int64(clockRate)}
}

// Normalize takes an RTP timestamp (32-bit wraparound clock) and returns
// the corresponding millisecond timestamp relative to the stream's first
// observed sample.
func (t *TimestampNormalizer) Normalize(rtpTimestamp uint32) int64 {
	if !t.haveBase {
		t.haveBase = true
		t.baseTicks = rtpTimestamp
		t.prevTicks = rtpTimestamp
		return 0
	}

	delta := int64(rtpTimestamp - t.prevTicks) // wraps correctly via uint32 subtraction
	t.prevTicks = rtpTimestamp

	numerator := delta*1000 + t.fractional
	ms := numerator / t.clockRate
	t.fractional = numerator % t.clockRate
	t.millis += ms
	return t.millis
}
