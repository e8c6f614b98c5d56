package influxdb

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// Measurements written by this package.
const (
	MeasurementRecovery   = "dbms_recovery"
	MeasurementPool       = "dbms_pool"
	MeasurementConnection = "dbms_connection"
)

// WritePoint writes a point stamped now with the instance tag added.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. tags is
// not modified.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	c.write(measurement, tags, fields, ts)
}

// WriteRecoveryAttempt records one failed recovery attempt.
func (c *Client) WriteRecoveryAttempt(database, connection string, tryCounter int) {
	c.WritePoint(MeasurementRecovery,
		map[string]string{
			"database":   database,
			"connection": connection,
		},
		map[string]any{
			"try_counter": tryCounter,
		},
	)
}

// RecoveryHandler returns a dbms.FailRecoveryHandler that records every
// failed attempt with WriteRecoveryAttempt.
func (c *Client) RecoveryHandler() dbms.FailRecoveryHandler {
	return dbms.FailRecoveryHandlerFunc(func(_ context.Context, conn *dbms.Connection, tryCounter int) error {
		if !c.IsConnected() {
			return ErrNotConnected
		}
		c.WriteRecoveryAttempt(conn.Database(), conn.Name(), tryCounter)
		return nil
	})
}

// WritePoolStats writes one dbms_pool point for the pool and one
// dbms_connection point per connection, all with the same timestamp.
func (c *Client) WritePoolStats(st dbms.Stats) {
	now := time.Now()
	c.WritePointWithTime(MeasurementPool,
		map[string]string{
			"database": st.Database,
			"backend":  st.Backend,
		},
		map[string]any{
			"connections": len(st.Connections),
			"open":        st.Open,
			"broken":      st.Broken,
			"leased":      st.Leased,
			"statements":  st.Statements,
		},
		now,
	)

	for _, cs := range st.Connections {
		c.WritePointWithTime(MeasurementConnection,
			map[string]string{
				"database":   st.Database,
				"connection": cs.Name,
			},
			map[string]any{
				"state":          string(cs.State),
				"try_counter":    cs.TryCounter,
				"generation":     cs.Generation,
				"leases":         cs.Leases,
				"leased":         cs.Leased,
				"in_transaction": cs.InTransaction,
			},
			now,
		)
	}
}
