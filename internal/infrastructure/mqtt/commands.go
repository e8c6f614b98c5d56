package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// defaultCommandTimeout bounds one recover command.
const defaultCommandTimeout = 30 * time.Second

// Databases resolves a database by name. *dbms.Registry implements it.
type Databases interface {
	Get(name string) (*dbms.Database, error)
}

// RecoverCommand is the payload of graydb/{instance}/command/recover/{database}.
// An empty payload or an empty Connection recovers every Broken connection.
type RecoverCommand struct {
	ID         string `json:"id,omitempty"`
	Connection string `json:"connection,omitempty"`
}

// ConnectionResult reports the recovery of one connection.
type ConnectionResult struct {
	Connection string `json:"connection"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
}

// CommandResult is published to graydb/{instance}/command/result/{database}.
type CommandResult struct {
	ID          string             `json:"id"`
	Database    string             `json:"database"`
	Error       string             `json:"error,omitempty"`
	Connections []ConnectionResult `json:"connections"`
	Timestamp   time.Time          `json:"timestamp"`
}

// CommandHandler answers operator recover commands.
type CommandHandler struct {
	dbs     Databases
	pub     Publisher
	topics  Topics
	qos     byte
	timeout time.Duration

	ctx context.Context
}

// NewCommandHandler creates a handler resolving databases through dbs and
// publishing results through pub.
func NewCommandHandler(dbs Databases, pub Publisher, topics Topics, qos byte) *CommandHandler {
	return &CommandHandler{
		dbs:     dbs,
		pub:     pub,
		topics:  topics,
		qos:     qos,
		timeout: defaultCommandTimeout,
		ctx:     context.Background(),
	}
}

// Start subscribes to the recover command topic of every database.
// Commands in progress are cancelled with ctx.
func (h *CommandHandler) Start(ctx context.Context, sub Subscriber) error {
	h.ctx = ctx
	return sub.Subscribe(h.topics.AllRecoverCommands(), h.qos, h.Handle)
}

// Stop removes the subscription made by Start.
func (h *CommandHandler) Stop(sub Subscriber) error {
	return sub.Unsubscribe(h.topics.AllRecoverCommands())
}

// Handle is the MessageHandler for recover commands. The result is always
// published; the returned error is for logging.
func (h *CommandHandler) Handle(topic string, payload []byte) error {
	name := lastSegment(topic)
	result := CommandResult{Database: name, Connections: []ConnectionResult{}}

	err := h.run(name, payload, &result)
	if err != nil {
		result.Error = err.Error()
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.Timestamp = time.Now().UTC()

	if pubErr := PublishJSON(h.pub, h.topics.CommandResult(name), result, h.qos, false); pubErr != nil {
		return errors.CombineErrors(err, pubErr)
	}
	return err
}

func (h *CommandHandler) run(name string, payload []byte, result *CommandResult) error {
	var cmd RecoverCommand
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return errors.Mark(errors.Wrap(err, "mqtt: decoding recover command"), ErrBadCommand)
		}
	}
	result.ID = cmd.ID

	db, err := h.dbs.Get(name)
	if err != nil {
		return errors.Mark(err, ErrBadCommand)
	}

	var targets []*dbms.Connection
	if cmd.Connection != "" {
		c, ok := db.Connection(cmd.Connection)
		if !ok {
			return errors.Wrapf(ErrBadCommand, "no connection %q in database %q", cmd.Connection, name)
		}
		targets = append(targets, c)
	} else {
		for _, c := range db.Connections() {
			if c.State() == dbms.StateBroken {
				targets = append(targets, c)
			}
		}
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	var errs []error
	for _, c := range targets {
		res := ConnectionResult{Connection: c.Name()}
		if err := db.Recover(ctx, c); err != nil {
			res.Error = err.Error()
			errs = append(errs, err)
		}
		res.State = string(c.State())
		result.Connections = append(result.Connections, res)
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
