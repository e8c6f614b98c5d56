package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every gray-logic-dbms topic.
//
// Topics are scoped by instance (the service ID) so several instances can
// share a broker:
//
//	graydb/{instance}/status
//	graydb/{instance}/recovery/{database}
//	graydb/{instance}/command/recover/{database}
//	graydb/{instance}/command/result/{database}
const TopicPrefix = "graydb"

// Topics provides builders for gray-logic-dbms MQTT topics.
//
//	topics := mqtt.Topics{Instance: "graydb-001"}
//	topics.Recovery("users") // "graydb/graydb-001/recovery/users"
type Topics struct {
	Instance string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", TopicPrefix, t.Instance)
}

// Status returns the retained online/offline status topic (also the LWT).
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Recovery returns the topic carrying failed recovery attempts of one database.
func (t Topics) Recovery(database string) string {
	return fmt.Sprintf("%s/recovery/%s", t.base(), database)
}

// AllRecovery matches the recovery topics of every database.
func (t Topics) AllRecovery() string {
	return t.base() + "/recovery/+"
}

// RecoverCommand returns the topic operators publish to to force a
// recovery attempt on one database.
func (t Topics) RecoverCommand(database string) string {
	return fmt.Sprintf("%s/command/recover/%s", t.base(), database)
}

// AllRecoverCommands matches the recover command topic of every database.
func (t Topics) AllRecoverCommands() string {
	return t.base() + "/command/recover/+"
}

// CommandResult returns the topic that receives the outcome of a command.
func (t Topics) CommandResult(database string) string {
	return fmt.Sprintf("%s/command/result/%s", t.base(), database)
}

// lastSegment returns the part of topic after its final '/'.
func lastSegment(topic string) string {
	return topic[strings.LastIndex(topic, "/")+1:]
}
