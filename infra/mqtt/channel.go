package mqtt

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fieldmatch/dispatchd/core/push"
)

// publishTimeout bounds each publish so a broker hiccup surfaces as
// "not delivered" instead of hanging an offer.
const publishTimeout = 5 * time.Second

// providerChannel implements push.Channel on top of the shared paho
// client. Each connected provider gets its own channel bound to its
// push topic.
type providerChannel struct {
	cli    pahoClient
	topic  string
	qos    byte
	closed atomic.Bool
}

func newProviderChannel(cli pahoClient, topic string, qos byte) *providerChannel {
	return &providerChannel{cli: cli, topic: topic, qos: qos}
}

// Send publishes the message to the provider's push topic. It returns
// an error when the channel is closed, the broker is unreachable or the
// publish does not complete within the timeout.
func (c *providerChannel) Send(msg push.Message) error {
	if c.closed.Load() {
		return fmt.Errorf("channel closed")
	}
	if !c.cli.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}
	token := c.cli.Publish(c.topic, c.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", c.topic)
	}
	return token.Error()
}

// Close marks the channel unusable. The underlying paho client is
// shared and stays connected.
func (c *providerChannel) Close() error {
	c.closed.Store(true)
	return nil
}
