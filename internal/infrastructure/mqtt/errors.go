package mqtt

import "github.com/cockroachdb/errors"

// Sentinel errors for broker operations. Failures from paho are wrapped
// and marked with one of these; match them with errors.Is.
var (
	// ErrNotConnected: the client is closed or the broker session is down.
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidQoS        = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic      = errors.New("mqtt: topic cannot be empty")

	// ErrBadCommand is returned for command messages that cannot be parsed
	// or that name an unknown database or connection.
	ErrBadCommand = errors.New("mqtt: bad command")
)
