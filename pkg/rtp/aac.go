package rtp

import "encoding/binary"

// AACConfig describes the AU-header layout this Source's `fmtp` attribute
// advertises (RFC 3640). sizelength/indexlength are bit widths; an AU
// header is sizelength+indexlength bits wide, and the AU-header block is
// padded to a whole number of bytes.
type AACConfig struct {
	SizeLength  int
	IndexLength int
	// Explicit reports whether SizeLength/IndexLength came from fmtp. When
	// false, the depacketizer is using the fixed 4-byte AU header fallback
	// (design note b).
	Explicit bool
}

// defaultAACConfig is the fallback used when a camera's fmtp omits
// sizelength/indexlength.
func defaultAACConfig() AACConfig {
	return AACConfig{SizeLength: 13, IndexLength: 3}
}

// AACDepacketizer extracts access units from RTP payloads carrying
// MPEG-4-GENERIC audio (RFC 3640), using the AU-header layout described by
// cfg.
type AACDepacketizer struct {
	cfg AACConfig

	// OnFrame is called once per access unit with its raw bytes and the RTP
	// timestamp the packet carried.
	OnFrame func(sample []byte, rtpTimestamp uint32)
}

// NewAACDepacketizer creates a depacketizer for the AU-header layout in
// cfg. A zero-value cfg falls back to the fixed 4-byte AU header.
func NewAACDepacketizer(cfg AACConfig) *AACDepacketizer {
	if cfg.SizeLength == 0 && cfg.IndexLength == 0 {
		cfg = defaultAACConfig()
	}
	return &AACDepacketizer{cfg: cfg}
}

// Process handles one RTP payload on the audio channel. Layout (RFC 3640
// §3.2.1): a 16-bit AU-headers-length (in bits), followed by the AU-header
// block, followed by the AU data.
func (d *AACDepacketizer) Process(payload []byte, rtpTimestamp uint32) {
	if len(payload) < 2 {
		return
	}

	auHeadersLengthBits := binary.BigEndian.Uint16(payload[:2])
	auHeadersLengthBytes := int(auHeadersLengthBits+7) / 8
	if len(payload) < 2+auHeadersLengthBytes {
		return
	}

	headerBits := d.cfg.SizeLength + d.cfg.IndexLength
	if headerBits <= 0 {
		return
	}

	auHeaders := payload[2 : 2+auHeadersLengthBytes]
	auData := payload[2+auHeadersLengthBytes:]

	bitOffset := 0
	dataOffset := 0
	for bitOffset+headerBits <= len(auHeaders)*8 {
		size := readBits(auHeaders, bitOffset, d.cfg.SizeLength)
		bitOffset += headerBits

		if size == 0 || dataOffset+size > len(auData) {
			break
		}
		sample := auData[dataOffset : dataOffset+size]
		dataOffset += size

		if d.OnFrame != nil {
			d.OnFrame(sample, rtpTimestamp)
		}
	}
}

// readBits extracts an n-bit big-endian field starting at bitOffset within
// buf.
func readBits(buf []byte, bitOffset, n int) int {
	value := 0
	for i := 0; i < n; i++ {
		byteIdx := (bitOffset + i) / 8
		bitIdx := 7 - (bitOffset+i)%8
		if byteIdx >= len(buf) {
			break
		}
		bit := (buf[byteIdx] >> bitIdx) & 1
		value = value<<1 | int(bit)
	}
	return value
}

// ParseFmtpAACConfig reads `sizelength`/`indexlength` out of an audio
// media's `fmtp` attribute value (the part after the payload-type token),
// e.g. "97 streamtype=5;profile-level-id=15;mode=AAC-hbr;sizelength=13;
// indexlength=3;indexdeltalength=3;config=1210". Returns the fallback
// config (Explicit=false) if either parameter is absent.
func ParseFmtpAACConfig(fmtp string) AACConfig {
	params := splitFmtpParams(fmtp)
	size, hasSize := intParam(params, "sizelength")
	index, hasIndex := intParam(params, "indexlength")
	if !hasSize || !hasIndex {
		return defaultAACConfig()
	}
	return AACConfig{SizeLength: size, IndexLength: index, Explicit: true}
}

func splitFmtpParams(fmtp string) map[string]string {
	out := make(map[string]string)
	start := 0
	for i := 0; i <= len(fmtp); i++ {
		if i == len(fmtp) || fmtp[i] == ';' {
			field := trimSpace(fmtp[start:i])
			start = i + 1
			for j := 0; j < len(field); j++ {
				if field[j] == '=' {
					out[trimSpace(field[:j])] = trimSpace(field[j+1:])
					break
				}
			}
		}
	}
	return out
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}

func intParam(params map[string]string, name string) (int, bool) {
	v, ok := params[name]
	if !ok {
		return 0, false
	}
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, false
		}
		n = n*10 + int(v[i]-'0')
	}
	return n, true
}
