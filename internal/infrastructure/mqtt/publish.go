package mqtt

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps message payloads at 1MB.
const maxPayloadSize = 1 << 20

// await waits for token and reports a timeout or broker error marked with
// sentinel.
func await(token pahomqtt.Token, sentinel error, op, topic string) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return errors.Wrapf(sentinel, "%s: timeout after %v", topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return errors.Mark(errors.Wrapf(err, "mqtt: %s %s", op, topic), sentinel)
	}
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgment
// (QoS 1 and 2) or the local write (QoS 0).
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed, "publish", topic)
}

func validatePublish(topic string, payload []byte, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return errors.Wrapf(ErrPublishFailed, "payload size %d exceeds maximum %d bytes", len(payload), maxPayloadSize)
	}
	return nil
}

// PublishJSON marshals v and publishes it on p. Recovery alerts and
// command results both go through here.
func PublishJSON(p Publisher, topic string, v any, qos byte, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "mqtt: encoding payload for %s", topic), ErrPublishFailed)
	}
	return p.Publish(topic, payload, qos, retained)
}
