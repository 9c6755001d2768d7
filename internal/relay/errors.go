// ABOUTME: Sentinel errors returned by the correlator
// ABOUTME: Callers compare with errors.Is and map them to notices or HTTP codes

package relay

import "errors"

var (
	// ErrValidation is returned for empty or oversized message content.
	ErrValidation = errors.New("invalid message")

	// ErrUpstreamUnavailable is returned when the runtime rejects or never receives a message.
	ErrUpstreamUnavailable = errors.New("openclaw unavailable")

	// ErrClosed is returned when Submit is called after Close.
	ErrClosed = errors.New("correlator closed")
)
