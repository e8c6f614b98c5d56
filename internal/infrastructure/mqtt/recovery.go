package mqtt

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// RecoveryAlert is published for every failed recovery attempt.
type RecoveryAlert struct {
	Instance   string    `json:"instance"`
	Database   string    `json:"database"`
	Connection string    `json:"connection"`
	State      string    `json:"state"`
	TryCounter int       `json:"try_counter"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecoveryNotifier publishes failed recovery attempts to
// graydb/{instance}/recovery/{database}. It is a dbms.FailRecoveryHandler.
type RecoveryNotifier struct {
	pub    Publisher
	topics Topics
	qos    byte
	now    func() time.Time
}

var _ dbms.FailRecoveryHandler = (*RecoveryNotifier)(nil)

// NewRecoveryNotifier creates a notifier publishing through pub.
func NewRecoveryNotifier(pub Publisher, topics Topics, qos byte) *RecoveryNotifier {
	return &RecoveryNotifier{pub: pub, topics: topics, qos: qos, now: time.Now}
}

// Apply implements dbms.FailRecoveryHandler.
func (n *RecoveryNotifier) Apply(_ context.Context, c *dbms.Connection, tryCounter int) error {
	alert := RecoveryAlert{
		Instance:   n.topics.Instance,
		Database:   c.Database(),
		Connection: c.Name(),
		State:      string(c.State()),
		TryCounter: tryCounter,
		Timestamp:  n.now().UTC(),
	}
	return PublishJSON(n.pub, n.topics.Recovery(alert.Database), alert, n.qos, false)
}
