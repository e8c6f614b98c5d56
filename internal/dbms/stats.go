package dbms

import "time"

// ConnectionStats is a snapshot of one connection.
type ConnectionStats struct {
	Name          string    `json:"name"`
	State         State     `json:"state"`
	TryCounter    int       `json:"try_counter"`
	Generation    uint64    `json:"generation"`
	Leased        bool      `json:"leased"`
	Leases        uint64    `json:"leases"`
	InTransaction bool      `json:"in_transaction"`
	LastUsed      time.Time `json:"last_used,omitzero"`
}

// Stats is a snapshot of a database pool.
type Stats struct {
	Database    string            `json:"database"`
	Backend     string            `json:"backend"`
	Statements  int               `json:"statements"`
	Open        int               `json:"open"`
	Broken      int               `json:"broken"`
	Leased      int               `json:"leased"`
	Connections []ConnectionStats `json:"connections"`
}

// Stats returns current statistics for the pool.
func (d *Database) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := Stats{
		Database:    d.cfg.Name,
		Backend:     d.driver.Name(),
		Statements:  len(d.templates),
		Connections: make([]ConnectionStats, 0, len(d.conns)),
	}
	for _, c := range d.conns {
		c.mu.RLock()
		cs := ConnectionStats{
			Name:          c.name,
			State:         c.state,
			TryCounter:    c.tryCounter,
			Generation:    c.generation,
			Leased:        c.leased,
			Leases:        c.leases,
			InTransaction: c.inTransaction,
			LastUsed:      c.lastUsed,
		}
		c.mu.RUnlock()

		switch cs.State {
		case StateOpen:
			st.Open++
		case StateBroken:
			st.Broken++
		}
		if cs.Leased {
			st.Leased++
		}
		st.Connections = append(st.Connections, cs)
	}
	return st
}
