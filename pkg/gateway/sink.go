package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/m-khomutov/debug-cdn/pkg/flv"
	"github.com/m-khomutov/debug-cdn/pkg/sdp"
)

// maxBufferedChunks bounds a Sink's outbound queue. Once full, the oldest
// buffered chunk is dropped rather than blocking the Source goroutine that
// is fanning frames out to every attached sink (spec §9, sink backpressure
// decision).
const maxBufferedChunks = 256

// writeRate caps how fast a Sink drains its queue, smoothing bursts of
// several FLV tags arriving back-to-back from the upstream Source.
const writeRate = rate.Limit(4 << 20) // 4 MiB/s per sink

// Sink is one downstream HTTP/FLV viewer connection (spec §4.I). It owns
// the write side of the socket and is fed exclusively through the
// SourceSink interface calls the attached Source makes from its own
// goroutine.
type Sink struct {
	conn   net.Conn
	addr   string
	logger zerolog.Logger

	source *Source

	videoNorm *flv.TimestampNormalizer
	audioNorm *flv.TimestampNormalizer
	sentHeader bool
	sentKey    bool

	queue   chan []byte
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newSink wraps an accepted connection. The write-drain goroutine starts
// immediately; Serve still needs to be called to parse the request and
// attach to a Source.
func newSink(conn net.Conn, logger zerolog.Logger) *Sink {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &Sink{
		conn: conn,
		addr: conn.RemoteAddr().String(),
		logger: logger.With().
			Str("sink", conn.RemoteAddr().String()).
			Str("correlation_id", uuid.NewString()).
			Logger(),
		queue:   make(chan []byte, maxBufferedChunks),
		limiter: rate.NewLimiter(writeRate, 4<<20),
		ctx:     ctx,
		cancel:  cancel,
	}
	sink.wg.Add(1)
	go sink.drain()
	return sink
}

// Address implements SourceSink.
func (sk *Sink) Address() string { return sk.addr }

// Serve reads the HTTP request line, resolves the target Source through
// registry, attaches this sink, and blocks until the connection closes.
func (sk *Sink) Serve(registry *Registry) error {
	reader := bufio.NewReader(sk.conn)
	requestLine, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read request line: %w", err)
	}

	rawURL, ok := parseHTTPRequestLine(requestLine)
	if !ok {
		sk.writeBadRequest("malformed request line")
		return fmt.Errorf("%w: malformed request line %q", ErrProtocolViolation, requestLine)
	}

	source, err := registry.GetOrCreate(rawURL)
	if err != nil {
		sk.writeBadRequest(err.Error())
		return err
	}

	sk.source = source
	source.AddSink(sk)
	defer source.RemoveSink(sk.addr)

	<-sk.ctx.Done()
	return nil
}

// parseHTTPRequestLine extracts the rtsp:// URL from "GET /<url> HTTP/1.x".
func parseHTTPRequestLine(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "GET" {
		return "", false
	}
	return strings.TrimPrefix(fields[1], "/"), true
}

func (sk *Sink) writeBadRequest(reason string) {
	sk.enqueue([]byte(fmt.Sprintf("HTTP/1.0 400 Bad Request\r\nWarning: %s\r\n\r\n", reason)))
}

// OnSDP implements SourceSink: emits the HTTP response line, FLV header,
// and any available sequence headers (spec §4.I). Sending the parameter-set
// header here is not the same as having sent a key frame: per spec §3,
// sent_key guards non-IDR emission until a key frame has actually gone out,
// not merely until SPS/PPS have (grounded on
// original_source/src/service/flv.py, where _sent_key is set only inside
// _on_idr_frame).
func (sk *Sink) OnSDP(doc *sdp.SDP, sps, pps []byte, hasAudio bool, audioClockRate int) {
	sk.videoNorm = flv.NewTimestampNormalizer(90000)
	if hasAudio {
		sk.audioNorm = flv.NewTimestampNormalizer(audioClockRate)
	}

	sk.enqueue([]byte("HTTP/1.0 200 OK\r\nContent-Type: video/x-flv\r\n\r\n"))
	sk.enqueue(flv.Header(hasAudio))
	sk.enqueue(flv.PreviousTagSizeZero)

	if len(sps) > 0 && len(pps) > 0 {
		sk.enqueue(flv.AvcSequenceHeader(sps, pps))
		sk.sentHeader = true
	}

	if hasAudio {
		sk.enqueue(flv.AacSequenceHeader(audioClockRate, 2))
	}
}

// OnVideo implements SourceSink.
func (sk *Sink) OnVideo(frame, sps, pps []byte, keyframe bool, rtpTimestamp uint32) {
	if sk.videoNorm == nil {
		return
	}
	ts := sk.videoNorm.Normalize(rtpTimestamp)

	if keyframe {
		if !sk.sentHeader && len(sps) > 0 && len(pps) > 0 {
			sk.enqueue(flv.AvcSequenceHeader(sps, pps))
			sk.sentHeader = true
		}
		sk.enqueue(flv.AvcNalUnit(flv.FrameKey, sps, pps, frame, ts))
		sk.sentKey = true
		return
	}

	if sk.sentKey {
		sk.enqueue(flv.AvcNalUnit(flv.FrameInter, nil, nil, frame, ts))
	}
}

// OnAudio implements SourceSink.
func (sk *Sink) OnAudio(sample []byte, rtpTimestamp uint32) {
	if sk.audioNorm == nil {
		return
	}
	ts := sk.audioNorm.Normalize(rtpTimestamp)
	sk.enqueue(flv.AacRawTag(sample, ts))
}

// enqueue pushes data onto the write queue, dropping the oldest queued
// chunk if the queue is full rather than blocking the caller (which runs
// on the Source's fan-out goroutine).
func (sk *Sink) enqueue(data []byte) {
	select {
	case sk.queue <- data:
	default:
		select {
		case <-sk.queue:
		default:
		}
		select {
		case sk.queue <- data:
		default:
		}
	}
}

func (sk *Sink) drain() {
	defer sk.wg.Done()
	for {
		select {
		case <-sk.ctx.Done():
			return
		case chunk := <-sk.queue:
			if err := sk.limiter.WaitN(sk.ctx, len(chunk)); err != nil {
				return
			}
			if err := sk.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if _, err := sk.conn.Write(chunk); err != nil {
				sk.logger.Debug().Err(err).Msg("sink write failed")
				sk.cancel()
				return
			}
		}
	}
}

// Close stops the drain goroutine and closes the underlying connection.
func (sk *Sink) Close() error {
	sk.cancel()
	err := sk.conn.Close()
	sk.wg.Wait()
	return err
}
