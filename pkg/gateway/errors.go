package gateway

import (
	"errors"

	"github.com/m-khomutov/debug-cdn/pkg/rtsp"
)

// Top-level error taxonomy (spec §7). Dialog-level causes
// (SourceNotFound, InvalidSdp, CredentialsNotAccepted, ProtocolViolation)
// are defined in pkg/rtsp and re-exported here so callers only need to
// import this package.
var (
	ErrInvalidUrl             = errors.New("invalid url")
	ErrSourceNotFound         = rtsp.ErrSourceNotFound
	ErrInvalidSdp             = rtsp.ErrInvalidSdp
	ErrCredentialsNotAccepted = rtsp.ErrCredentialsNotAccepted
	ErrProtocolViolation      = rtsp.ErrProtocolViolation
	ErrEndOfStream            = errors.New("end of stream")
	ErrTransportError         = errors.New("transport error")
)
