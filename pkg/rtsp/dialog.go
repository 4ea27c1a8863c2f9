// Package rtsp implements the RTSP/1.0 client dialog (spec §4.G): the
// OPTIONS -> DESCRIBE -> SETUP(video[,audio]) -> PLAY -> keepalive state
// machine, including Basic/Digest authentication retry.
package rtsp

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/m-khomutov/debug-cdn/pkg/rtspurl"
	"github.com/m-khomutov/debug-cdn/pkg/sdp"
)

// State is the dialog's current stage in the handshake, mirroring the
// original service's State enum.
type State int

const (
	StateInitial State = iota
	StateDescribed
	StateSetup
	StateAskPlaying
	StatePlaying
)

// maxAuthFailures bounds the 401-retry loop (spec §4.G).
const maxAuthFailures = 4

// Response is one parsed inbound RTSP response.
type Response struct {
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// Dialog drives one upstream RTSP session over conn. It is not safe for
// concurrent use except for the keepalive goroutine started by
// StartKeepalive, which shares the write side under writeMu.
type Dialog struct {
	conn   net.Conn
	reader *bufio.Reader
	logger zerolog.Logger

	url         rtspurl.URL
	contentBase string
	state       State
	cseq        int
	session     string
	timeout     time.Duration

	authFailures int
	challenge    authChallenge

	SDP           sdp.SDP
	SPS, PPS      []byte
	HasAudio      bool
	VideoChannels [2]byte
	AudioChannels [2]byte
	RangeStart    string
	RangeEnd      string

	writeMu           sync.Mutex
	keepaliveMessage  []byte
	keepaliveInterval time.Duration
	keepaliveStop     chan struct{}
}

// NewDialog creates a Dialog over an already-connected socket.
func NewDialog(conn net.Conn, url rtspurl.URL, logger zerolog.Logger) *Dialog {
	return &Dialog{
		conn:              conn,
		reader:            bufio.NewReaderSize(conn, 64*1024),
		logger:            logger,
		url:               url,
		contentBase:       fmt.Sprintf("rtsp://%s%s", url.Address(), url.Content),
		keepaliveInterval: 25 * time.Second,
	}
}

// Connect drives the dialog from Initial through Playing, performing the
// full OPTIONS/DESCRIBE/SETUP/PLAY sequence (spec §4.G). On success the
// Dialog is left in StatePlaying and the caller should begin feeding raw
// bytes read from conn to an rtp.Framer; inline RTSP bytes (keepalive
// responses) found by the framer can be ignored (fire-and-forget).
func (d *Dialog) Connect() error {
	if err := d.doOptions(); err != nil {
		return fmt.Errorf("OPTIONS: %w", err)
	}
	if err := d.doDescribe(); err != nil {
		return fmt.Errorf("DESCRIBE: %w", err)
	}
	if err := d.doSetupVideo(); err != nil {
		return fmt.Errorf("SETUP video: %w", err)
	}
	if d.HasAudio {
		if err := d.doSetupAudio(); err != nil {
			return fmt.Errorf("SETUP audio: %w", err)
		}
	}
	if err := d.doPlay(); err != nil {
		return fmt.Errorf("PLAY: %w", err)
	}
	return nil
}

// StartKeepalive begins resending the cached OPTIONS request every
// timeout-3 seconds, per spec §4.G. Call after Connect succeeds.
func (d *Dialog) StartKeepalive() {
	interval := d.timeout - 3*time.Second
	if interval <= 0 {
		interval = d.keepaliveInterval
	}
	d.keepaliveStop = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.keepaliveStop:
				return
			case <-ticker.C:
				d.writeMu.Lock()
				_, err := d.conn.Write(d.keepaliveMessage)
				d.writeMu.Unlock()
				if err != nil {
					d.logger.Warn().Err(err).Msg("keepalive write failed")
					return
				}
			}
		}
	}()
}

// StopKeepalive stops the keepalive goroutine started by StartKeepalive.
func (d *Dialog) StopKeepalive() {
	if d.keepaliveStop != nil {
		close(d.keepaliveStop)
		d.keepaliveStop = nil
	}
}

func (d *Dialog) doOptions() error {
	resp, raw, err := d.roundTripWithAuth("OPTIONS", d.contentBase, nil)
	if err != nil {
		return err
	}
	if _, ok := resp.Header["Public"]; !ok {
		return fmt.Errorf("%w: OPTIONS missing Public header", ErrProtocolViolation)
	}
	d.keepaliveMessage = raw
	d.state = StateDescribed
	return nil
}

func (d *Dialog) doDescribe() error {
	resp, _, err := d.roundTripWithAuth("DESCRIBE", d.contentBase, map[string]string{
		"Accept": "application/sdp",
	})
	if err != nil {
		return err
	}

	contentBase, ok := resp.Header["Content-Base"]
	if !ok {
		return fmt.Errorf("%w: DESCRIBE missing Content-Base", ErrProtocolViolation)
	}
	d.contentBase = strings.TrimSpace(contentBase)

	d.SDP.Parse(string(resp.Body))

	video := d.SDP.Media("video")
	if video == nil || video.Attribute("control") == "" {
		return fmt.Errorf("%w: no video media with control attribute", ErrInvalidSdp)
	}

	if fmtp := video.Attribute("fmtp"); fmtp != "" {
		if sps, pps, ok := parseSpropParameterSets(fmtp); ok {
			d.SPS, d.PPS = sps, pps
		}
	}

	if audio := d.SDP.Media("audio"); audio != nil && audio.Attribute("control") != "" {
		d.HasAudio = true
	}

	if r := video.Attribute("range"); r != "" {
		if start, end, ok := splitRangeAttribute(r); ok {
			d.RangeStart, d.RangeEnd = start, end
		}
	}

	d.state = StateDescribed
	return nil
}

func (d *Dialog) doSetupVideo() error {
	video := d.SDP.Media("video")
	control := video.Attribute("control")
	setupURL := d.resolveControlURL(control)

	resp, err := d.setup(setupURL, 0, 1)
	if err != nil {
		return err
	}
	d.VideoChannels = [2]byte{0, 1}
	d.captureSession(resp)
	return nil
}

func (d *Dialog) doSetupAudio() error {
	audio := d.SDP.Media("audio")
	control := audio.Attribute("control")
	setupURL := d.resolveControlURL(control)

	resp, err := d.setup(setupURL, 2, 3)
	if err != nil {
		return err
	}
	d.AudioChannels = [2]byte{2, 3}
	d.captureSession(resp)
	return nil
}

func (d *Dialog) setup(setupURL string, chanA, chanB byte) (*Response, error) {
	headers := map[string]string{
		"Transport": fmt.Sprintf("RTP/AVP/TCP;unicast;interleaved=%d-%d", chanA, chanB),
	}
	resp, _, err := d.roundTripWithAuth("SETUP", setupURL, headers)
	if err != nil {
		return nil, err
	}
	transport, ok := resp.Header["Transport"]
	if !ok || !strings.Contains(transport, "interleaved") {
		return nil, fmt.Errorf("%w: SETUP response missing interleaved Transport", ErrProtocolViolation)
	}
	return resp, nil
}

func (d *Dialog) captureSession(resp *Response) {
	session, ok := resp.Header["Session"]
	if !ok {
		return
	}
	if idx := strings.IndexByte(session, ';'); idx >= 0 {
		d.session = session[:idx]
		timeoutPart := session[idx+1:]
		if strings.HasPrefix(strings.TrimSpace(timeoutPart), "timeout=") {
			if n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(timeoutPart), "timeout=")); err == nil {
				d.timeout = time.Duration(n) * time.Second
			}
		}
	} else {
		d.session = session
	}
}

func (d *Dialog) doPlay() error {
	rng := "npt=now--"
	if d.RangeStart != "" {
		// Range type wasn't carried with the captured value, so it is
		// re-derived here the same way the source does: a clock range's
		// start looks like an ISO 8601 timestamp and contains 'T', an npt
		// range's start doesn't.
		rangeType := "npt"
		if strings.Contains(d.RangeStart, "T") {
			rangeType = "clock"
		}
		rng = fmt.Sprintf("%s=%s-%s", rangeType, d.RangeStart, d.RangeEnd)
	}
	headers := map[string]string{"Range": rng}
	_, _, err := d.roundTripWithAuth("PLAY", d.contentBase, headers)
	if err != nil {
		return err
	}
	d.state = StatePlaying
	return nil
}

// resolveControlURL joins a media's control attribute to the content-base,
// per spec §4.G: absolute control URLs are used verbatim.
func (d *Dialog) resolveControlURL(control string) string {
	if strings.HasPrefix(control, "rtsp://") {
		return control
	}
	base := d.contentBase
	if strings.HasSuffix(base, "/") {
		return base + control
	}
	return base + "/" + control
}

// roundTripWithAuth sends method/requestURL/extraHeaders, retrying once a
// 401 challenge is understood, up to maxAuthFailures times (spec §4.G). It
// returns the accepted response and the raw bytes of the final request (for
// keepalive caching by doOptions).
func (d *Dialog) roundTripWithAuth(method, requestURL string, extraHeaders map[string]string) (*Response, []byte, error) {
	for {
		headers := cloneHeaders(extraHeaders)
		if d.authFailures > 0 {
			headers["Authorization"] = d.challenge.authorization(method, requestURL, d.url.Credentials.Username, d.url.Credentials.Password)
		}

		raw := d.buildRequest(method, requestURL, headers)
		resp, err := d.roundTrip(raw)
		if err != nil {
			return nil, nil, err
		}

		switch resp.StatusCode {
		case 200:
			return resp, raw, nil
		case 401:
			d.authFailures++
			if d.authFailures > maxAuthFailures {
				return nil, nil, ErrCredentialsNotAccepted
			}
			d.challenge = parseAuthChallenge(resp.Header["WWW-Authenticate"])
			continue
		default:
			return nil, nil, fmt.Errorf("%w: status %d", ErrSourceNotFound, resp.StatusCode)
		}
	}
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+2)
	for k, v := range h {
		out[k] = v
	}
	return out
}

func (d *Dialog) buildRequest(method, requestURL string, headers map[string]string) []byte {
	d.cseq++
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s RTSP/1.0\r\n", method, requestURL)
	fmt.Fprintf(&b, "CSeq: %d\r\n", d.cseq)
	b.WriteString("User-Agent: debug-cdn\r\n")
	if d.session != "" {
		fmt.Fprintf(&b, "Session: %s\r\n", d.session)
	}
	for k, v := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

func (d *Dialog) roundTrip(raw []byte) (*Response, error) {
	d.writeMu.Lock()
	_, err := d.conn.Write(raw)
	d.writeMu.Unlock()
	if err != nil {
		return nil, err
	}
	return d.readResponse()
}

// readResponse parses one RTSP response; the first CRLFCRLF demarcates
// headers from body, and Content-Length (if present) determines the body
// length to read.
func (d *Dialog) readResponse() (*Response, error) {
	statusLine, err := d.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	fields := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "RTSP/") {
		return nil, fmt.Errorf("%w: malformed status line %q", ErrProtocolViolation, statusLine)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad status code %q", ErrProtocolViolation, fields[1])
	}

	resp := &Response{StatusCode: code, Header: make(map[string]string)}
	contentLength := 0
	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		resp.Header[key] = value
		if key == "Content-Length" {
			contentLength, _ = strconv.Atoi(value)
		}
	}

	if contentLength > 0 {
		body := make([]byte, contentLength)
		if _, err := io.ReadFull(d.reader, body); err != nil {
			return nil, err
		}
		resp.Body = body
	}
	return resp, nil
}

// splitRangeAttribute pulls start/end out of an SDP range attribute value
// such as "npt=0-" or "clock=19960213T143205Z-", mirroring the original's
// range_hdr.split('=')[1].split('-') parsing of the video media's range
// attribute.
func splitRangeAttribute(raw string) (start, end string, ok bool) {
	eq := strings.Split(raw, "=")
	if len(eq) < 2 {
		return "", "", false
	}
	parts := strings.Split(eq[1], "-")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// parseSpropParameterSets decodes `sprop-parameter-sets=<sps>,<pps>` out of
// a video media's fmtp attribute value.
func parseSpropParameterSets(fmtp string) (sps, pps []byte, ok bool) {
	idx := strings.Index(fmtp, "sprop-parameter-sets=")
	if idx < 0 {
		return nil, nil, false
	}
	value := fmtp[idx+len("sprop-parameter-sets="):]
	if end := strings.IndexByte(value, ';'); end >= 0 {
		value = value[:end]
	}
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return nil, nil, false
	}
	s, err1 := base64.StdEncoding.DecodeString(parts[0])
	p, err2 := base64.StdEncoding.DecodeString(parts[1])
	if err1 != nil || err2 != nil {
		return nil, nil, false
	}
	return s, p, true
}
