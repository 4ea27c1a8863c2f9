package rtsp

import "errors"

// Dialog-level error taxonomy (spec §7). Each is wrapped with context at
// the point of failure via fmt.Errorf("...: %w", ...).
var (
	ErrSourceNotFound         = errors.New("source not found")
	ErrInvalidSdp             = errors.New("invalid sdp")
	ErrCredentialsNotAccepted = errors.New("credentials not accepted")
	ErrProtocolViolation      = errors.New("protocol violation")
)
