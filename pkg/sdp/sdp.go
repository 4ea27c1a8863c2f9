// Package sdp implements the minimal Session Description Protocol (RFC 4566)
// model this gateway needs: a session-level description followed by one or
// more media-level descriptions, each exposing a name->value attribute map.
package sdp

import (
	"fmt"
	"strings"
)

// canonicalOrder is the fixed line-type order Render emits in, matching the
// original service's __repr__ output so re-serialized SDP is stable.
var canonicalOrder = []byte{'v', 'o', 's', 'i', 'u', 'e', 'p', 'c', 'b', 't', 'r', 'z', 'k'}

// description is the shared line-bag backing both SessionDescription and
// MediaDescription: an ordered record of every non-attribute, non-media line
// type seen, plus an attribute map where the last value for a given name
// wins on collision.
type description struct {
	lines      map[byte][]string // type -> values, in order seen (t/r can repeat)
	attrOrder  []string          // attribute names in first-seen order
	attributes map[string]string
}

func newDescription() description {
	return description{
		lines:      make(map[byte][]string),
		attributes: make(map[string]string),
	}
}

func (d *description) setLine(kind byte, value string) {
	d.lines[kind] = append(d.lines[kind], value)
}

func (d *description) setAttribute(raw string) {
	name, value := raw, ""
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		name, value = raw[:idx], raw[idx+1:]
	}
	if _, exists := d.attributes[name]; !exists {
		d.attrOrder = append(d.attrOrder, name)
	}
	d.attributes[name] = value
}

// Attribute returns an attribute's value and whether it was present. A
// flag-style attribute (`a=name` with no `:value`) is present with an empty
// value.
func (d *description) Attribute(name string) (string, bool) {
	v, ok := d.attributes[name]
	return v, ok
}

func (d *description) renderCommonLines(b *strings.Builder) {
	for _, kind := range canonicalOrder {
		for _, v := range d.lines[kind] {
			fmt.Fprintf(b, "%c=%s\r\n", kind, v)
		}
	}
}

func (d *description) renderAttributes(b *strings.Builder) {
	for _, name := range d.attrOrder {
		v := d.attributes[name]
		if v == "" {
			fmt.Fprintf(b, "a=%s\r\n", name)
		} else {
			fmt.Fprintf(b, "a=%s:%s\r\n", name, v)
		}
	}
}

// SessionDescription holds the session-level lines of an SDP document (v=,
// o=, s=, ... up to but not including the first m= line).
type SessionDescription struct {
	description
}

// parseLines consumes lines until (but not including) the first m= line, or
// until EOF. It returns how many lines it consumed; a caller scanning for
// media blocks resumes at that offset. This replaces the original's
// exception-based "hand off to media parser" control flow with a plain
// return value, per design note.
func (s *SessionDescription) parseLines(lines []string) (consumed int) {
	s.description = newDescription()
	for _, line := range lines {
		if len(line) < 2 || line[1] != '=' {
			consumed++
			continue
		}
		kind, value := line[0], line[2:]
		if kind == 'm' {
			return consumed
		}
		s.applyLine(kind, value)
		consumed++
	}
	return consumed
}

func (s *SessionDescription) applyLine(kind byte, value string) {
	if kind == 'a' {
		s.setAttribute(value)
		return
	}
	for _, k := range canonicalOrder {
		if k == kind {
			s.setLine(kind, value)
			return
		}
	}
}

// Render re-serializes the session-level lines in canonical order.
func (s *SessionDescription) Render() string {
	var b strings.Builder
	s.renderCommonLines(&b)
	s.renderAttributes(&b)
	return b.String()
}

// MediaDescription holds one m= block and the lines that follow it up to
// (not including) the next m= line or EOF.
type MediaDescription struct {
	description
	mLine string // the full m= line value, e.g. "video 0 RTP/AVP 96"
}

// Kind returns the first whitespace-separated token of the m= line, e.g.
// "video" or "audio".
func (m *MediaDescription) Kind() string {
	fields := strings.Fields(m.mLine)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Attribute returns a media-level attribute's value, or "" if absent. This
// mirrors the original's `attribute()` returning None rather than
// distinguishing "absent" from "empty flag value" — callers needing that
// distinction should use the lower-level Attribute method on description.
func (m *MediaDescription) Attribute(name string) string {
	v, _ := m.description.Attribute(name)
	return v
}

// parseLines consumes the leading m= line and every subsequent line up to
// (not including) the next m= line or EOF, returning lines consumed.
func (m *MediaDescription) parseLines(lines []string) (consumed int) {
	m.description = newDescription()
	if len(lines) == 0 {
		return 0
	}
	if len(lines[0]) >= 2 && lines[0][0] == 'm' && lines[0][1] == '=' {
		m.mLine = lines[0][2:]
		consumed++
	}
	for _, line := range lines[consumed:] {
		if len(line) < 2 || line[1] != '=' {
			consumed++
			continue
		}
		kind, value := line[0], line[2:]
		if kind == 'm' {
			return consumed
		}
		if kind == 'a' {
			m.setAttribute(value)
		} else {
			m.setLine(kind, value)
		}
		consumed++
	}
	return consumed
}

// Render re-serializes one media block in canonical order.
func (m *MediaDescription) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "m=%s\r\n", m.mLine)
	m.renderCommonLines(&b)
	m.renderAttributes(&b)
	return b.String()
}

// SDP is a full session description plus zero or more media descriptions,
// keyed by media kind ("video", "audio").
type SDP struct {
	Session SessionDescription
	media   map[string]*MediaDescription
	order   []string // insertion order, for stable Render output
}

// Empty reports whether Parse has never been called.
func (s *SDP) Empty() bool {
	return s.media == nil && s.Session.attributes == nil
}

// Parse splits description on CRLF (and bare LF, defensively) and builds the
// session description followed by one MediaDescription per m= line.
func (s *SDP) Parse(raw string) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}

	s.media = make(map[string]*MediaDescription)
	s.order = nil

	consumed := s.Session.parseLines(lines)
	for consumed < len(lines) {
		md := &MediaDescription{}
		consumed += md.parseLines(lines[consumed:])
		kind := md.Kind()
		if _, exists := s.media[kind]; !exists {
			s.order = append(s.order, kind)
			s.media[kind] = md
		}
	}
}

// Media returns the first media description whose m= token equals kind, or
// nil if none was parsed.
func (s *SDP) Media(kind string) *MediaDescription {
	if s.media == nil {
		return nil
	}
	return s.media[kind]
}

// Render re-serializes the full SDP document: session lines, then each
// media block in the order it was first encountered.
func (s *SDP) Render() string {
	var b strings.Builder
	b.WriteString(s.Session.Render())
	for _, kind := range s.order {
		b.WriteString(s.media[kind].Render())
	}
	return b.String()
}
