package rtp

// H.264 NAL unit types relevant to depacketization (ITU-T H.264 §7.4.1,
// RFC 6184).
const (
	naluTypeIDR = 5
	naluTypeSPS = 7
	naluTypePPS = 8
	naluTypeFUA = 28
)

// H264Depacketizer reassembles FU-A fragments into complete NAL units and
// captures SPS/PPS so a sink's AVC sequence header can be built, per spec
// §4.F. One instance lives per video Source.
type H264Depacketizer struct {
	buffer []byte
	sps    []byte
	pps    []byte

	// OnFrame is called once per complete access unit with the raw NAL
	// payload (no length prefix, no start code), whether it is a keyframe,
	// and the RTP timestamp it arrived with. Only called once both SPS and
	// PPS have been observed.
	OnFrame func(frame []byte, keyframe bool, rtpTimestamp uint32)
}

// NewH264Depacketizer creates an empty depacketizer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{buffer: make([]byte, 0, 256*1024)}
}

// SPS returns the most recently captured SPS NAL, or nil if none yet.
func (d *H264Depacketizer) SPS() []byte { return d.sps }

// PPS returns the most recently captured PPS NAL, or nil if none yet.
func (d *H264Depacketizer) PPS() []byte { return d.pps }

// Ready reports whether both SPS and PPS have been captured.
func (d *H264Depacketizer) Ready() bool {
	return d.sps != nil && d.pps != nil
}

// Process handles one RTP payload on the video channel.
func (d *H264Depacketizer) Process(payload []byte, rtpTimestamp uint32) {
	if len(payload) == 0 {
		return
	}

	naluType := payload[0] & 0x1F
	if naluType == naluTypeFUA {
		d.processFUA(payload, rtpTimestamp)
		return
	}
	d.deliver(payload, rtpTimestamp)
}

func (d *H264Depacketizer) processFUA(payload []byte, rtpTimestamp uint32) {
	if len(payload) < 2 {
		return
	}
	fuIndicator := payload[0]
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1F

	if start {
		d.buffer = d.buffer[:0]
		nalHeader := (fuIndicator & 0xE0) | naluType
		d.buffer = append(d.buffer, nalHeader)
	}
	d.buffer = append(d.buffer, payload[2:]...)

	if end {
		frame := make([]byte, len(d.buffer))
		copy(frame, d.buffer)
		d.deliver(frame, rtpTimestamp)
	}
}

// deliver inspects the completed NAL's type: SPS/PPS are captured and not
// forwarded; everything else is fanned out once both parameter sets are
// known.
func (d *H264Depacketizer) deliver(nalu []byte, rtpTimestamp uint32) {
	if len(nalu) == 0 {
		return
	}
	naluType := nalu[0] & 0x1F

	switch naluType {
	case naluTypeSPS:
		d.sps = append([]byte(nil), nalu...)
		return
	case naluTypePPS:
		d.pps = append([]byte(nil), nalu...)
		return
	}

	if !d.Ready() {
		return
	}
	if d.OnFrame != nil {
		d.OnFrame(nalu, naluType == naluTypeIDR, rtpTimestamp)
	}
}
