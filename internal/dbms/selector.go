package dbms

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Selector picks which idle Open connection a checkout leases. Select is
// called with the pool lock held and receives at least one candidate, in
// pool order. It must not block or call back into the Database.
type Selector interface {
	Select(candidates []*Connection) *Connection
}

// Selector names accepted by SelectorByName.
const (
	SelectorRoundRobin        = "round-robin"
	SelectorLeastRecentlyUsed = "least-recently-used"
)

// SelectorByName returns a fresh selector for a configuration name. An
// empty name selects round-robin.
func SelectorByName(name string) (Selector, error) {
	switch strings.ToLower(name) {
	case "", SelectorRoundRobin:
		return &RoundRobin{}, nil
	case SelectorLeastRecentlyUsed, "lru":
		return LeastRecentlyUsed{}, nil
	}
	return nil, errors.Newf("dbms: unknown selector %q", name)
}

// RoundRobin leases connections in pool order, starting after the one
// leased last. It is the default.
type RoundRobin struct {
	last int
	used bool
}

// Select implements Selector.
func (r *RoundRobin) Select(candidates []*Connection) *Connection {
	pick := candidates[0]
	if r.used {
		for _, c := range candidates {
			if c.index > r.last {
				pick = c
				break
			}
		}
	}
	r.last = pick.index
	r.used = true
	return pick
}

// LeastRecentlyUsed leases the connection idle for the longest time.
type LeastRecentlyUsed struct{}

// Select implements Selector.
func (LeastRecentlyUsed) Select(candidates []*Connection) *Connection {
	pick := candidates[0]
	oldest := pick.LastUsed()
	for _, c := range candidates[1:] {
		if t := c.LastUsed(); t.Before(oldest) {
			pick, oldest = c, t
		}
	}
	return pick
}
