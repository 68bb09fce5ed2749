package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldmatch/dispatchd/core/events"
	"github.com/fieldmatch/dispatchd/core/push"
	"github.com/fieldmatch/dispatchd/core/registry"
	"github.com/fieldmatch/dispatchd/infra/logger"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type publishedMessage struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	published  []publishedMessage
	publishErr error
	timeout    bool
	subscribed []string
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Connect() paho.Token {
	c.connected = true
	return &fakeToken{}
}
func (c *fakeClient) Disconnect(uint) { c.connected = false }
func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	c.published = append(c.published, publishedMessage{topic: topic, payload: payload.([]byte)})
	c.mu.Unlock()
	return &fakeToken{err: c.publishErr, timeout: c.timeout}
}
func (c *fakeClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	c.mu.Lock()
	c.subscribed = append(c.subscribed, topic)
	c.mu.Unlock()
	return &fakeToken{}
}

func (c *fakeClient) lastPublished(t *testing.T) publishedMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.published) == 0 {
		t.Fatal("expected a published message")
	}
	return c.published[len(c.published)-1]
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type recordingResponder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingResponder) Respond(dispatchID, providerID string, action events.ResponseAction, latency time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, dispatchID+"/"+providerID+"/"+string(action))
	r.mu.Unlock()
	return r.err
}

func TestTopicBuilders(t *testing.T) {
	if got := registerTopic("fieldmatch"); got != "fieldmatch/provider/register" {
		t.Fatalf("unexpected register topic %q", got)
	}
	if got := heartbeatTopic("fieldmatch"); got != "fieldmatch/provider/heartbeat" {
		t.Fatalf("unexpected heartbeat topic %q", got)
	}
	if got := responseTopic("fieldmatch"); got != "fieldmatch/provider/response" {
		t.Fatalf("unexpected response topic %q", got)
	}
	if got := pushTopic("fieldmatch", "p1"); got != "fieldmatch/provider/p1/push" {
		t.Fatalf("unexpected push topic %q", got)
	}
}

func TestProviderChannelSend(t *testing.T) {
	cli := &fakeClient{connected: true}
	ch := newProviderChannel(cli, "fieldmatch/provider/p1/push", 1)

	msg := push.Message{ID: "m1", Type: push.TypeJobOffer, DispatchID: "d1"}
	if err := ch.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	pub := cli.lastPublished(t)
	if pub.topic != "fieldmatch/provider/p1/push" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	var decoded push.Message
	if err := json.Unmarshal(pub.payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.ID != "m1" || decoded.Type != push.TypeJobOffer || decoded.DispatchID != "d1" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestProviderChannelSendFailures(t *testing.T) {
	disconnected := newProviderChannel(&fakeClient{}, "t", 0)
	if err := disconnected.Send(push.Message{}); err == nil {
		t.Fatal("expected error while disconnected")
	}

	timedOut := newProviderChannel(&fakeClient{connected: true, timeout: true}, "t", 0)
	if err := timedOut.Send(push.Message{}); err == nil {
		t.Fatal("expected error on publish timeout")
	}

	broken := newProviderChannel(&fakeClient{connected: true, publishErr: errors.New("broker gone")}, "t", 0)
	if err := broken.Send(push.Message{}); err == nil {
		t.Fatal("expected the broker error to surface")
	}

	closed := newProviderChannel(&fakeClient{connected: true}, "t", 0)
	_ = closed.Close()
	if err := closed.Send(push.Message{}); err == nil {
		t.Fatal("expected error on a closed channel")
	}
}

func newTestConnector(cli pahoClient, reg *registry.Registry, responder Responder) *Connector {
	cfg := Config{Broker: "tcp://localhost:1883"}
	cfg.SetDefaults()
	return &Connector{cli: cli, cfg: cfg, registry: reg, responder: responder, log: logger.NopLogger{}}
}

func TestOnRegisterCreatesChannel(t *testing.T) {
	cli := &fakeClient{connected: true}
	reg := registry.New(time.Minute, time.Minute, logger.NopLogger{})
	c := newTestConnector(cli, reg, &recordingResponder{})

	payload, _ := json.Marshal(registerMessage{Type: "register", ProviderID: "p1"})
	c.onRegister(nil, &fakeMessage{topic: "fieldmatch/provider/register", payload: payload})

	if !reg.IsLive("p1") {
		t.Fatal("expected p1 registered and live")
	}
	ch, ok := reg.Channel("p1")
	if !ok {
		t.Fatal("expected a channel for p1")
	}
	if err := ch.Send(push.Message{ID: "m1", Type: push.TypeJobOffer}); err != nil {
		t.Fatalf("send over registered channel: %v", err)
	}
	if pub := cli.lastPublished(t); pub.topic != "fieldmatch/provider/p1/push" {
		t.Fatalf("offer published to wrong topic %q", pub.topic)
	}
}

func TestOnRegisterIgnoresMalformed(t *testing.T) {
	reg := registry.New(time.Minute, time.Minute, logger.NopLogger{})
	c := newTestConnector(&fakeClient{}, reg, &recordingResponder{})

	c.onRegister(nil, &fakeMessage{payload: []byte("{not json")})
	c.onRegister(nil, &fakeMessage{payload: []byte(`{"type":"register"}`)})
	if reg.Len() != 0 {
		t.Fatalf("expected no registrations, got %d", reg.Len())
	}
}

func TestOnDisconnectUnregisters(t *testing.T) {
	cli := &fakeClient{connected: true}
	reg := registry.New(time.Minute, time.Minute, logger.NopLogger{})
	c := newTestConnector(cli, reg, &recordingResponder{})

	payload, _ := json.Marshal(registerMessage{Type: "register", ProviderID: "p1"})
	c.onRegister(nil, &fakeMessage{payload: payload})

	var down []string
	reg.OnDown(func(id string) { down = append(down, id) })

	// The broker publishes the provider's LWT on an unclean drop.
	will, _ := json.Marshal(disconnectMessage{ProviderID: "p1"})
	c.onDisconnect(nil, &fakeMessage{topic: "fieldmatch/provider/disconnect", payload: will})

	if reg.IsLive("p1") || reg.Len() != 0 {
		t.Fatal("expected p1 removed from the registry")
	}
	if len(down) != 1 || down[0] != "p1" {
		t.Fatalf("expected the down handler to fire for p1, got %v", down)
	}

	// Malformed or empty wills are ignored.
	c.onDisconnect(nil, &fakeMessage{payload: []byte("{broken")})
	c.onDisconnect(nil, &fakeMessage{payload: []byte(`{}`)})
	if len(down) != 1 {
		t.Fatalf("expected no extra down notifications, got %v", down)
	}
}

func TestOnHeartbeatRefreshes(t *testing.T) {
	clock := time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	reg := registry.New(30*time.Second, time.Minute, logger.NopLogger{}, registry.WithClock(now))
	c := newTestConnector(&fakeClient{}, reg, &recordingResponder{})
	reg.Register("p1", push.NewMockChannel())

	mu.Lock()
	clock = clock.Add(45 * time.Second)
	mu.Unlock()
	if reg.IsLive("p1") {
		t.Fatal("expected p1 stale before heartbeat")
	}

	payload, _ := json.Marshal(heartbeatMessage{ProviderID: "p1", SentAt: clock})
	c.onHeartbeat(nil, &fakeMessage{payload: payload})
	if !reg.IsLive("p1") {
		t.Fatal("expected heartbeat to restore liveness")
	}
}

func TestOnResponseForwardsToResponder(t *testing.T) {
	rec := &recordingResponder{}
	c := newTestConnector(&fakeClient{}, registry.New(time.Minute, time.Minute, logger.NopLogger{}), rec)

	payload, _ := json.Marshal(responseMessage{
		DispatchID:        "d1",
		ProviderID:        "p1",
		Action:            "accepted",
		ResponseLatencyMs: 1500,
	})
	c.onResponse(nil, &fakeMessage{payload: payload})

	if len(rec.calls) != 1 || rec.calls[0] != "d1/p1/accepted" {
		t.Fatalf("unexpected responder calls: %v", rec.calls)
	}
}

func TestOnResponseDropsUnknownAction(t *testing.T) {
	rec := &recordingResponder{}
	c := newTestConnector(&fakeClient{}, registry.New(time.Minute, time.Minute, logger.NopLogger{}), rec)

	payload, _ := json.Marshal(responseMessage{DispatchID: "d1", ProviderID: "p1", Action: "maybe"})
	c.onResponse(nil, &fakeMessage{payload: payload})
	if len(rec.calls) != 0 {
		t.Fatalf("expected no responder call, got %v", rec.calls)
	}
}

func TestSubscribeAllCoversProviderTopics(t *testing.T) {
	cli := &fakeClient{connected: true}
	c := newTestConnector(cli, registry.New(time.Minute, time.Minute, logger.NopLogger{}), &recordingResponder{})
	c.subscribeAll()

	want := map[string]bool{
		"fieldmatch/provider/register":   false,
		"fieldmatch/provider/heartbeat":  false,
		"fieldmatch/provider/response":   false,
		"fieldmatch/provider/disconnect": false,
	}
	for _, topic := range cli.subscribed {
		want[topic] = true
	}
	for topic, seen := range want {
		if !seen {
			t.Fatalf("missing subscription for %s", topic)
		}
	}
}

func TestNewConnectorUsesInjectedClient(t *testing.T) {
	cli := &fakeClient{}
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }
	defer func() { newMQTTClient = orig }()

	c, err := NewConnector(Config{Broker: "tcp://localhost:1883"}, registry.New(time.Minute, time.Minute, logger.NopLogger{}), &recordingResponder{})
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	if !cli.connected {
		t.Fatal("expected the client to be connected")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if cli.connected {
		t.Fatal("expected the client to be disconnected after close")
	}
}
