// Package gateway wires the RTSP dialog, RTP depacketizers and FLV sinks
// into the running system: one Source goroutine per upstream camera, one
// Sink per downstream HTTP viewer, and a mutex-guarded Registry connecting
// them (spec §4.H, §4.I, §4.J).
package gateway

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/m-khomutov/debug-cdn/pkg/rtp"
	"github.com/m-khomutov/debug-cdn/pkg/rtsp"
	"github.com/m-khomutov/debug-cdn/pkg/rtspurl"
	"github.com/m-khomutov/debug-cdn/pkg/sdp"
)

// SourceSink is the subset of Sink a Source needs, letting source.go
// depend on sink.go only through this interface.
type SourceSink interface {
	Address() string
	OnSDP(doc *sdp.SDP, sps, pps []byte, hasAudio bool, audioClockRate int)
	OnVideo(frame, sps, pps []byte, keyframe bool, rtpTimestamp uint32)
	OnAudio(sample []byte, rtpTimestamp uint32)
}

// Source owns the TCP socket to one upstream RTSP camera, its RTSP dialog,
// RTP framer/depacketizers, and the table of attached sinks (spec §4.H).
type Source struct {
	url     rtspurl.URL
	logger  zerolog.Logger

	conn   net.Conn
	dialog *rtsp.Dialog
	framer *rtp.Framer
	h264   *rtp.H264Depacketizer
	aac    *rtp.AACDepacketizer

	audioClockRate int

	mu    sync.Mutex
	sinks map[string]SourceSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	videoPacketCount atomic.Uint64
	audioPacketCount atomic.Uint64
	videoFrameCount  atomic.Uint64
	audioFrameCount  atomic.Uint64

	// OnIdle is called by RemoveSink when the last sink has been removed,
	// letting the Registry drop the Source (spec §4.J).
	OnIdle func(addr rtspurl.URL)
}

// NewSource creates a Source for the given upstream URL. Connect must be
// called before the Source is usable.
func NewSource(url rtspurl.URL, logger zerolog.Logger) *Source {
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		url: url,
		logger: logger.With().
			Str("source", url.Address()+url.Content).
			Str("correlation_id", uuid.NewString()).
			Logger(),
		sinks:  make(map[string]SourceSink),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the camera, runs the RTSP handshake through Playing, and
// starts the background read loop and keepalive.
func (s *Source) Connect() error {
	conn, err := net.DialTimeout("tcp", s.url.Address(), 10*time.Second)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransportError, s.url.Address(), err)
	}
	s.conn = conn

	s.dialog = rtsp.NewDialog(conn, s.url, s.logger)
	if err := s.dialog.Connect(); err != nil {
		conn.Close()
		return err
	}
	s.dialog.StartKeepalive()

	s.framer = rtp.NewFramer()
	s.h264 = rtp.NewH264Depacketizer()
	s.aac = nil

	if len(s.dialog.SPS) > 0 && len(s.dialog.PPS) > 0 {
		// seed the depacketizer so IDR frames fan out immediately, rather
		// than waiting for an in-band SPS/PPS NAL that may never come.
		s.h264.Process(s.dialog.SPS, 0)
		s.h264.Process(s.dialog.PPS, 0)
	}

	if audio := s.dialog.SDP.Media("audio"); s.dialog.HasAudio && audio != nil {
		s.audioClockRate = parseRtpmapClockRate(audio.Attribute("rtpmap"))
		cfg := rtp.ParseFmtpAACConfig(audio.Attribute("fmtp"))
		s.aac = rtp.NewAACDepacketizer(cfg)
		if !cfg.Explicit {
			s.logger.Debug().Msg("audio fmtp missing sizelength/indexlength, using 4-byte AU header fallback")
		}
	}

	s.h264.OnFrame = func(frame []byte, keyframe bool, ts uint32) {
		s.videoFrameCount.Add(1)
		s.fanoutVideo(frame, keyframe, ts)
	}
	if s.aac != nil {
		s.aac.OnFrame = func(sample []byte, ts uint32) {
			s.audioFrameCount.Add(1)
			s.fanoutAudio(sample, ts)
		}
	}

	s.framer.OnFrame = func(f rtp.Frame) error {
		switch {
		case s.dialog.VideoChannels[0] == f.Channel:
			s.videoPacketCount.Add(1)
			s.h264.Process(f.Payload, f.Header.Timestamp)
		case s.aac != nil && s.dialog.AudioChannels[0] == f.Channel:
			s.audioPacketCount.Add(1)
			s.aac.Process(f.Payload, f.Header.Timestamp)
		}
		return nil
	}
	s.framer.OnInlineResponse = func(raw []byte) {
		s.logger.Debug().Int("bytes", len(raw)).Msg("inline RTSP response during playback")
	}

	s.wg.Add(1)
	go s.readLoop()

	return nil
}

func (s *Source) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 64*1024)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			s.logger.Info().Err(err).Msg("source connection closed")
			return
		}
		if err := s.framer.Feed(buf[:n]); err != nil {
			s.logger.Warn().Err(err).Msg("framer error")
			return
		}
	}
}

// AddSink attaches sink to this Source's fan-out table. If the SDP has
// already been parsed, the sink's OnSDP is invoked immediately so it can
// emit its FLV prologue before the next video frame (spec §4.H).
func (s *Source) AddSink(sink SourceSink) {
	s.mu.Lock()
	s.sinks[sink.Address()] = sink
	hasSDP := !s.dialog.SDP.Empty()
	s.mu.Unlock()

	if hasSDP {
		sink.OnSDP(&s.dialog.SDP, s.h264.SPS(), s.h264.PPS(), s.dialog.HasAudio, s.audioClockRate)
	}
}

// RemoveSink detaches a sink by address.
func (s *Source) RemoveSink(addr string) {
	s.mu.Lock()
	delete(s.sinks, addr)
	empty := len(s.sinks) == 0
	s.mu.Unlock()

	if empty && s.OnIdle != nil {
		s.OnIdle(s.url)
	}
}

// HasSinks reports whether any sink is still attached.
func (s *Source) HasSinks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sinks) > 0
}

// Close tears down the upstream connection and stops the read loop.
func (s *Source) Close() error {
	s.cancel()
	if s.dialog != nil {
		s.dialog.StopKeepalive()
	}
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Source) snapshotSinks() []SourceSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceSink, 0, len(s.sinks))
	for _, sink := range s.sinks {
		out = append(out, sink)
	}
	return out
}

func (s *Source) fanoutVideo(frame []byte, keyframe bool, ts uint32) {
	for _, sink := range s.snapshotSinks() {
		sink.OnVideo(frame, s.h264.SPS(), s.h264.PPS(), keyframe, ts)
	}
}

func (s *Source) fanoutAudio(sample []byte, ts uint32) {
	for _, sink := range s.snapshotSinks() {
		sink.OnAudio(sample, ts)
	}
}

// parseRtpmapClockRate extracts the clock rate from an a=rtpmap value,
// e.g. "97 MPEG4-GENERIC/44100/2" -> 44100.
func parseRtpmapClockRate(rtpmap string) int {
	fields := strings.Fields(rtpmap)
	if len(fields) < 2 {
		return 0
	}
	parts := strings.Split(fields[1], "/")
	if len(parts) < 2 {
		return 0
	}
	rate, _ := strconv.Atoi(parts[1])
	return rate
}
