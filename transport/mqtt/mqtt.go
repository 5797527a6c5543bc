// Package mqtt implements the ground-control telemetry bridge: a
// side channel, independent of the swarm's own radio transport, that
// publishes periodic swarm-status digests to an operator-facing broker
// and relays operator mission start/stop commands back into the swarm.
//
// This is not a Transport implementation — it never carries a drone's
// FLOOD/NEIGHBOR/CORE traffic. It exists purely so ground control can
// observe and steer a swarm without being a node on its radio network.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix for swarm traffic.
	DefaultTopicPrefix = "swarmcore"
)

// StatusDigest is the periodic snapshot published for one node.
type StatusDigest struct {
	NodeID        uint8   `json:"node_id"`
	HasBase       bool    `json:"has_base"`
	HopsFromBase  uint8   `json:"hops_from_base"`
	WaitingAck    bool    `json:"waiting_ack"`
	HelpProxySent bool    `json:"help_proxy_sent"`
	MissionActive bool    `json:"mission_active"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
}

// Command is an operator directive relayed from the command topic.
type Command struct {
	Action string `json:"action"` // "start_mission" or "stop_mission"
}

// Config holds the configuration for a ground-control bridge.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "swarmcore").
	TopicPrefix string
	// SwarmID identifies this swarm (e.g., "exercise-area-3"). The bridge
	// publishes to "{TopicPrefix}/{SwarmID}/status/{node_id}" and
	// subscribes to "{TopicPrefix}/{SwarmID}/command".
	SwarmID string

	// OnStartMission is invoked when an operator publishes a start
	// command. May be nil.
	OnStartMission func()
	// OnStopMission is invoked when an operator publishes a stop command.
	// May be nil.
	OnStopMission func()

	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Bridge publishes swarm status to, and relays mission commands from, an
// MQTT broker on behalf of ground control.
type Bridge struct {
	cfg    Config
	client paho.Client
	log    *slog.Logger

	mu        sync.RWMutex
	connected bool
}

// New creates a ground-control bridge with the given configuration.
func New(cfg Config) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		cfg: cfg,
		log: cfg.Logger.WithGroup("mqtt"),
	}
}

// Start connects to the MQTT broker and subscribes to the command topic.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if b.cfg.SwarmID == "" {
		return errors.New("swarm ID is required")
	}

	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = "swarmcore-gc-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(b.onConnected).
		SetConnectionLostHandler(b.onConnectionLost)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
	}
	if b.cfg.Password != "" {
		opts.SetPassword(b.cfg.Password)
	}
	if b.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	b.client = paho.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}
	return nil
}

// Stop gracefully disconnects from the MQTT broker.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Disconnect(1000)
		b.connected = false
	}
	return nil
}

// IsConnected reports whether the bridge is connected to the broker.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected && b.client != nil && b.client.IsConnected()
}

// PublishStatus publishes a status digest for one node.
func (b *Bridge) PublishStatus(digest StatusDigest) error {
	if !b.IsConnected() {
		return errors.New("not connected")
	}

	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("marshaling status digest: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/status/%d", b.cfg.TopicPrefix, b.cfg.SwarmID, digest.NodeID)
	token := b.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing status")
	}
	return token.Error()
}

func (b *Bridge) commandTopic() string {
	return fmt.Sprintf("%s/%s/command", b.cfg.TopicPrefix, b.cfg.SwarmID)
}

func (b *Bridge) subscribe() {
	topic := b.commandTopic()
	b.client.Subscribe(topic, 0, b.handleCommand)
	b.log.Debug("subscribed to command topic", "topic", topic)
}

func (b *Bridge) handleCommand(_ paho.Client, message paho.Message) {
	var cmd Command
	if err := json.Unmarshal(message.Payload(), &cmd); err != nil {
		b.log.Debug("failed to decode command", "error", err)
		return
	}

	switch cmd.Action {
	case "start_mission":
		if b.cfg.OnStartMission != nil {
			b.cfg.OnStartMission()
		}
	case "stop_mission":
		if b.cfg.OnStopMission != nil {
			b.cfg.OnStopMission()
		}
	default:
		b.log.Debug("unknown command action", "action", cmd.Action)
	}
}

func (b *Bridge) onConnected(_ paho.Client) {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()

	b.subscribe()
	b.log.Info("connected to ground-control broker", "broker", b.cfg.Broker)
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	b.log.Error("ground-control connection lost", "error", err)
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}
