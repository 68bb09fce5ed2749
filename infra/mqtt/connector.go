package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldmatch/dispatchd/core/dispatch"
	"github.com/fieldmatch/dispatchd/core/events"
	"github.com/fieldmatch/dispatchd/core/registry"
	"github.com/fieldmatch/dispatchd/infra/logger"
)

// pahoClient is the subset of the paho client used by the connector,
// extracted so tests can substitute a fake.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Responder consumes provider responses. Implemented by the dispatch
// orchestrator.
type Responder interface {
	Respond(dispatchID, providerID string, action events.ResponseAction, latency time.Duration) error
}

// Connector bridges the MQTT broker to the connection registry and the
// orchestrator: register messages create registry entries backed by
// per-provider push channels, heartbeats refresh liveness and response
// messages feed the dispatch state machine.
type Connector struct {
	cli       pahoClient
	cfg       Config
	registry  *registry.Registry
	responder Responder
	log       logger.Logger
}

// NewConnector connects to the broker and subscribes to the provider
// topics.
func NewConnector(cfg Config, reg *registry.Registry, responder Responder) (*Connector, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt_connector")

	c := &Connector{cfg: cfg, registry: reg, responder: responder, log: log}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.OnConnect = func(cli paho.Client) {
		log.Infof("MQTT connected")
		c.subscribeAll()
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

// Close disconnects from the broker.
func (c *Connector) Close() error {
	if c.cli != nil {
		c.cli.Disconnect(250)
	}
	return nil
}

func (c *Connector) subscribeAll() {
	subs := map[string]paho.MessageHandler{
		registerTopic(c.cfg.TopicPrefix):   c.onRegister,
		heartbeatTopic(c.cfg.TopicPrefix):  c.onHeartbeat,
		responseTopic(c.cfg.TopicPrefix):   c.onResponse,
		disconnectTopic(c.cfg.TopicPrefix): c.onDisconnect,
	}
	for topic, handler := range subs {
		if token := c.cli.Subscribe(topic, c.cfg.QoS, handler); token.Wait() && token.Error() != nil {
			c.log.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

func (c *Connector) onRegister(_ paho.Client, msg paho.Message) {
	var m registerMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil || m.ProviderID == "" {
		c.log.Warnf("malformed register message on %s", msg.Topic())
		return
	}
	ch := newProviderChannel(c.cli, pushTopic(c.cfg.TopicPrefix, m.ProviderID), c.cfg.QoS)
	c.registry.Register(m.ProviderID, ch)
	c.log.Infof("provider %s registered", m.ProviderID)
}

func (c *Connector) onDisconnect(_ paho.Client, msg paho.Message) {
	var m disconnectMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil || m.ProviderID == "" {
		return
	}
	c.registry.Unregister(m.ProviderID)
	c.log.Infof("provider %s disconnected", m.ProviderID)
}

func (c *Connector) onHeartbeat(_ paho.Client, msg paho.Message) {
	var m heartbeatMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil || m.ProviderID == "" {
		return
	}
	c.registry.Heartbeat(m.ProviderID)
}

func (c *Connector) onResponse(_ paho.Client, msg paho.Message) {
	var m responseMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		c.log.Warnf("malformed response message on %s", msg.Topic())
		return
	}
	var action events.ResponseAction
	switch m.Action {
	case "accepted":
		action = events.ActionAccepted
	case "rejected":
		action = events.ActionRejected
	default:
		c.log.Warnf("provider %s sent unknown action %q", m.ProviderID, m.Action)
		return
	}
	latency := time.Duration(m.ResponseLatencyMs) * time.Millisecond
	err := c.responder.Respond(m.DispatchID, m.ProviderID, action, latency)
	if err != nil && !errors.Is(err, dispatch.ErrStaleResponse) && !errors.Is(err, dispatch.ErrUnknownDispatch) {
		c.log.Errorf("response from %s for %s: %v", m.ProviderID, m.DispatchID, err)
	}
}
