package sdp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m-khomutov/debug-cdn/pkg/sdp"
)

const sampleSDP = "" +
	"v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=No Name\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"t=0 0\r\n" +
	"a=tool:test\r\n" +
	"m=video 0 RTP/AVP 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=fmtp:96 packetization-mode=1\r\n" +
	"a=control:track1\r\n" +
	"m=audio 0 RTP/AVP 97\r\n" +
	"a=rtpmap:97 MPEG4-GENERIC/44100/2\r\n" +
	"a=control:track2\r\n"

func TestParseSessionLines(t *testing.T) {
	var s sdp.SDP
	s.Parse(sampleSDP)

	v, ok := s.Session.Attribute("tool")
	require.True(t, ok)
	require.Equal(t, "test", v)
}

func TestParseMediaBlocks(t *testing.T) {
	var s sdp.SDP
	s.Parse(sampleSDP)

	video := s.Media("video")
	require.NotNil(t, video)
	require.Equal(t, "video", video.Kind())

	audio := s.Media("audio")
	require.NotNil(t, audio)
	require.Equal(t, "audio", audio.Kind())
}

func TestParseMediaAttributes(t *testing.T) {
	var s sdp.SDP
	s.Parse(sampleSDP)

	video := s.Media("video")
	require.Equal(t, "96 H264/90000", video.Attribute("rtpmap"))
	require.Equal(t, "track1", video.Attribute("control"))

	audio := s.Media("audio")
	require.Equal(t, "97 MPEG4-GENERIC/44100/2", audio.Attribute("rtpmap"))
	require.Equal(t, "track2", audio.Attribute("control"))
}

func TestMediaMissingAttributeReturnsEmpty(t *testing.T) {
	var s sdp.SDP
	s.Parse(sampleSDP)

	video := s.Media("video")
	require.Equal(t, "", video.Attribute("no-such-attribute"))
}

func TestMediaMissingKindReturnsNil(t *testing.T) {
	var s sdp.SDP
	s.Parse(sampleSDP)
	require.Nil(t, s.Media("application"))
}

func TestLastAttributeWinsOnCollision(t *testing.T) {
	raw := "v=0\r\n" +
		"o=- 0 0 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"a=control:first\r\n" +
		"a=control:second\r\n"
	var s sdp.SDP
	s.Parse(raw)

	v, ok := s.Session.Attribute("control")
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestFlagAttributeHasEmptyValue(t *testing.T) {
	raw := "v=0\r\n" +
		"o=- 0 0 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"a=recvonly\r\n"
	var s sdp.SDP
	s.Parse(raw)

	v, ok := s.Session.Attribute("recvonly")
	require.True(t, ok)
	require.Equal(t, "", v)
}

func TestRenderCanonicalOrder(t *testing.T) {
	var s sdp.SDP
	s.Parse(sampleSDP)
	out := s.Render()

	require.Contains(t, out, "v=0\r\n")
	require.Less(t, indexOf(out, "v=0"), indexOf(out, "o=-"))
	require.Less(t, indexOf(out, "o=-"), indexOf(out, "s=No Name"))
	require.Less(t, indexOf(out, "s=No Name"), indexOf(out, "c=IN IP4"))
	require.Less(t, indexOf(out, "c=IN IP4"), indexOf(out, "t=0 0"))
	require.Less(t, indexOf(out, "t=0 0"), indexOf(out, "m=video"))
	require.Less(t, indexOf(out, "m=video"), indexOf(out, "m=audio"))
}

func TestEmptyBeforeParse(t *testing.T) {
	var s sdp.SDP
	require.True(t, s.Empty())
	s.Parse(sampleSDP)
	require.False(t, s.Empty())
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
