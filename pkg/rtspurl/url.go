// Package rtspurl parses rtsp:// URLs used both as the gateway's own
// upstream target and as the path component of the downstream HTTP GET.
package rtspurl

import (
	"fmt"
	"regexp"
	"strconv"
)

// defaultPort is the RTSP well-known port, used when the URL has none.
const defaultPort = 554

// dottedQuad and hostname mirror the two-pass regex from the original
// service: try a dotted-quad IPv4 address first, then fall back to a
// general hostname pattern.
var (
	dottedQuad = regexp.MustCompile(
		`^rtsp://(?:(?P<auth>[\w]+:[\w%<]+)@)?(?P<host>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})(?::(?P<port>\d{3,6}))?(?P<content>.*)$`)
	hostname = regexp.MustCompile(
		`^rtsp://(?:(?P<auth>[\w]+:[\w%<]+)@)?(?P<host>[\w.\-]+)(?::(?P<port>\d{3,6}))?(?P<content>.*)$`)
)

// Credentials holds a username/password pair extracted from a URL's
// userinfo component. They are carried through verbatim (including any
// percent-encoding) for the auth layer to interpret.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether no credentials were present in the URL.
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// URL is a parsed rtsp:// reference.
type URL struct {
	Host        string
	Port        int
	Content     string
	Credentials Credentials
}

// Address returns "host:port" suitable for net.Dial.
func (u URL) Address() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// Error wraps the InvalidUrl taxonomy entry from the spec.
type Error struct {
	Raw string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid url: %s", e.Raw)
}

// Parse extracts scheme, credentials, host:port and content path from raw.
// raw must not include a leading slash (the HTTP front door strips it before
// calling Parse).
func Parse(raw string) (URL, error) {
	m := dottedQuad.FindStringSubmatch(raw)
	names := dottedQuad.SubexpNames()
	if m == nil {
		m = hostname.FindStringSubmatch(raw)
		names = hostname.SubexpNames()
	}
	if m == nil {
		return URL{}, &Error{Raw: raw}
	}

	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" {
			groups[name] = m[i]
		}
	}

	port := defaultPort
	if p := groups["port"]; p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return URL{}, &Error{Raw: raw}
		}
		port = v
	}

	content := groups["content"]
	if content == "" {
		content = "/"
	}

	u := URL{
		Host:    groups["host"],
		Port:    port,
		Content: content,
	}
	if auth := groups["auth"]; auth != "" {
		for i := 0; i < len(auth); i++ {
			if auth[i] == ':' {
				u.Credentials = Credentials{Username: auth[:i], Password: auth[i+1:]}
				break
			}
		}
	}
	return u, nil
}
