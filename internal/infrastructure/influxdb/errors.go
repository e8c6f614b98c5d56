package influxdb

import "github.com/cockroachdb/errors"

// Sentinel errors; match with errors.Is.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed marks a failed ping during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck and the recovery handler
	// after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
