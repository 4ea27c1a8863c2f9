// Package flv builds the byte layouts for an FLV stream: header, tags for
// H.264 video (AVC sequence header, AVC NALU) and AAC audio (sequence
// header, raw), and the trailing previous-tag-size wrapper every tag needs.
package flv

import "encoding/binary"

// TagType identifies an FLV tag's payload kind.
type TagType byte

const (
	TagAudio TagType = 8
	TagVideo TagType = 9
)

// FrameType is the high nibble of a VideoTag's data byte.
type FrameType byte

const (
	FrameKey   FrameType = 1
	FrameInter FrameType = 2
)

// AVCPacketType is the first byte of an AVC VideoTag body, after the frame
// type/codec-id byte.
type AVCPacketType byte

const (
	AVCSequenceHeader AVCPacketType = 0
	AVCNALU           AVCPacketType = 1
)

// AACPacketType is the second byte of an AAC AudioTag body.
type AACPacketType byte

const (
	AACSequenceHeader AACPacketType = 0
	AACRaw            AACPacketType = 1
)

// Header builds the 9-byte FLV file header. hasAudio/hasVideo set the
// corresponding flag bits; video is always present for this gateway.
func Header(hasAudio bool) []byte {
	flags := byte(1) // hasVideo
	if hasAudio {
		flags |= 1 << 2
	}
	return []byte{'F', 'L', 'V', 0x01, flags, 0x00, 0x00, 0x00, 0x09}
}

// PreviousTagSizeZero is the 4 zero bytes that follow the FLV header,
// standing in for "the previous tag's size" before any tag has been written.
var PreviousTagSizeZero = []byte{0x00, 0x00, 0x00, 0x00}

// tagHeader builds the 11-byte tag header shared by audio and video tags.
// length is the data size that follows the header (not including it).
func tagHeader(kind TagType, length int, timestamp int64) []byte {
	b := make([]byte, 11)
	b[0] = byte(kind)
	b[1] = byte(length >> 16)
	b[2] = byte(length >> 8)
	b[3] = byte(length)
	b[4] = byte(timestamp >> 16)
	b[5] = byte(timestamp >> 8)
	b[6] = byte(timestamp)
	b[7] = byte(timestamp >> 24)
	// stream id: always zero (bytes 8-10 left as zero)
	return b
}

// videoTagPrefix builds the 11-byte tag header plus the 1-byte video data
// prefix (frame type nibble | AVC codec id).
func videoTagPrefix(frameType FrameType, length int, timestamp int64) []byte {
	h := tagHeader(TagVideo, length, timestamp)
	return append(h, byte(frameType<<4)|0x07)
}

// AvcSequenceHeader builds the FLV body (tag + trailer) for an AVC
// configuration record built from sps/pps, per spec §4.C:
//
//	01 | SPS[1..4] | FF E1 | len(SPS).u16 | SPS | 01 | len(PPS).u16 | PPS
func AvcSequenceHeader(sps, pps []byte) []byte {
	record := make([]byte, 0, 8+len(sps)+len(pps))
	record = append(record, 0x01)
	record = append(record, sps[1:4]...)
	record = append(record, 0xFF, 0xE1)
	record = appendU16(record, len(sps))
	record = append(record, sps...)
	record = append(record, 0x01)
	record = appendU16(record, len(pps))
	record = append(record, pps...)

	tag := videoTagPrefix(FrameKey, len(record)+5, 0)
	tag = append(tag, byte(AVCSequenceHeader), 0x00, 0x00, 0x00)
	tag = append(tag, record...)
	return body(tag)
}

// AvcNalUnit builds the FLV body for a video frame. On a key frame the
// payload is length-prefixed sps|pps|frame; otherwise just length-prefixed
// frame.
func AvcNalUnit(frameType FrameType, sps, pps, frame []byte, timestampMs int64) []byte {
	var data []byte
	if frameType == FrameKey {
		data = make([]byte, 0, 12+len(sps)+len(pps)+len(frame))
		data = appendLengthPrefixed(data, sps)
		data = appendLengthPrefixed(data, pps)
		data = appendLengthPrefixed(data, frame)
	} else {
		data = make([]byte, 0, 4+len(frame))
		data = appendLengthPrefixed(data, frame)
	}

	tag := videoTagPrefix(frameType, len(data)+5, timestampMs)
	tag = append(tag, byte(AVCNALU), 0x00, 0x00, 0x00)
	tag = append(tag, data...)
	return body(tag)
}

// SoundFormat/SoundRate/SoundSize/SoundType encode the AAC AudioTag data
// byte this gateway always emits: AAC, 44kHz, 16-bit, stereo.
const (
	soundFormatAAC  = 10
	soundRate44kHz  = 3
	soundSize16bit  = 1
	soundTypeStereo = 1
)

func audioDataByte() byte {
	return byte((soundFormatAAC&0x0F)<<4 | (soundRate44kHz&0x03)<<2 | (soundSize16bit&0x01)<<1 | (soundTypeStereo & 0x01))
}

// AacSequenceHeader builds the FLV body for the AAC AudioSpecificConfig
// derived from clockRate/channels, per spec §4.C.
func AacSequenceHeader(clockRate, channels int) []byte {
	conf := AudioSpecificConfig(clockRate, channels)
	tag := tagHeader(TagAudio, len(conf)+2, 0)
	tag = append(tag, audioDataByte(), byte(AACSequenceHeader))
	tag = append(tag, conf...)
	return body(tag)
}

// AacRawTag builds the FLV body for one raw AAC access unit.
func AacRawTag(sample []byte, timestampMs int64) []byte {
	tag := tagHeader(TagAudio, len(sample)+2, timestampMs)
	tag = append(tag, audioDataByte(), byte(AACRaw))
	tag = append(tag, sample...)
	return body(tag)
}

// body appends the trailing u32 previous-tag-size, closing an FLV tag into
// the byte unit actually written to a sink (spec invariant I5).
func body(tag []byte) []byte {
	out := make([]byte, len(tag)+4)
	copy(out, tag)
	binary.BigEndian.PutUint32(out[len(tag):], uint32(len(tag)))
	return out
}

func appendU16(dst []byte, v int) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(v))
	return append(dst, b...)
}

func appendLengthPrefixed(dst, data []byte) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(len(data)))
	dst = append(dst, b...)
	return append(dst, data...)
}
