package influxdb

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// StatsSource supplies pool snapshots. *dbms.Registry implements it.
type StatsSource interface {
	Stats() []dbms.Stats
}

// RunStatsReporter writes the pool statistics of src every interval until
// ctx is done. A final snapshot is written and flushed on exit.
func (c *Client) RunStatsReporter(ctx context.Context, src StatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.writeAll(src)
			c.Flush()
			return
		case <-ticker.C:
			c.writeAll(src)
		}
	}
}

func (c *Client) writeAll(src StatsSource) {
	for _, st := range src.Stats() {
		c.WritePoolStats(st)
	}
}
