// Package rtp implements the RTSP-interleaved RTP framer (spec §4.E) and the
// H.264/AAC depacketizers that sit downstream of it (spec §4.F).
package rtp

import (
	"bytes"

	pionrtp "github.com/pion/rtp"
)

// interleavedPreamble marks an RTP-over-TCP interleaved frame, RFC 2326
// §10.12. Always compared as a byte, never a string (design note c).
const interleavedPreamble = 0x24

// rtpHeaderSize is the fixed 12-byte RTP header pion/rtp decodes; payload
// for an interleaved frame of declared size `size` starts right after it.
const rtpHeaderSize = 12

// interleavedHeaderSize is the 4-byte `$` + channel + uint16 size prefix.
const interleavedHeaderSize = 4

// Frame is one fully-framed interleaved RTP packet handed from the Framer
// to a depacketizer.
type Frame struct {
	Channel byte
	Header  pionrtp.Header
	Payload []byte
}

// Framer owns a growable buffer of bytes read off the RTSP TCP connection
// and splits it into interleaved RTP frames, tolerating inline RTSP
// responses (keepalive replies) arriving interleaved with RTP traffic.
type Framer struct {
	buf []byte

	// OnFrame is called for each fully decoded interleaved RTP frame.
	OnFrame func(Frame) error

	// OnInlineResponse is called with the raw bytes of an inline RTSP
	// response (header block through the terminating CRLFCRLF, body not
	// included) found while scanning for the next interleaved frame.
	OnInlineResponse func([]byte)
}

// NewFramer creates an empty Framer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 64*1024)}
}

// Feed appends newly read bytes and processes as many complete frames (or
// inline responses) as the buffer currently holds.
func (f *Framer) Feed(data []byte) error {
	f.buf = append(f.buf, data...)

	for {
		if len(f.buf) == 0 {
			return nil
		}
		if f.buf[0] != interleavedPreamble {
			idx := bytes.Index(f.buf, []byte("\r\n\r\n"))
			if idx < 0 {
				return nil // wait for more bytes
			}
			if f.OnInlineResponse != nil {
				f.OnInlineResponse(f.buf[:idx+4])
			}
			f.buf = f.buf[idx+4:]
			continue
		}

		if len(f.buf) < interleavedHeaderSize {
			return nil
		}
		channel := f.buf[1]
		size := int(f.buf[2])<<8 | int(f.buf[3])

		if len(f.buf) < size+interleavedHeaderSize {
			return nil
		}

		frameEnd := size + interleavedHeaderSize
		rtpBytes := f.buf[interleavedHeaderSize:frameEnd]

		var hdr pionrtp.Header
		n, err := hdr.Unmarshal(rtpBytes)
		if err == nil && f.OnFrame != nil {
			payload := rtpBytes[n:]
			if err := f.OnFrame(Frame{Channel: channel, Header: hdr, Payload: payload}); err != nil {
				return err
			}
		}

		f.buf = f.buf[frameEnd:]
	}
}
