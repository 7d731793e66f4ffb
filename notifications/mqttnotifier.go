package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// publisher is the part of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type mqttMessage struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTNotifier publishes notifications as JSON to <topic>/<kind>.
type MQTTNotifier struct {
	client mqtt.Client
	pub    publisher
	topic  string
	qos    byte
	logger common.Logger
	now    func() time.Time
}

// NewMQTTNotifier connects to the configured broker. The client reconnects
// on its own after a lost connection.
func NewMQTTNotifier(cfg config.MQTTConfig, logger common.Logger) (*MQTTNotifier, error) {
	if logger == nil {
		logger = common.NopLogger
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("MQTT connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("MQTT connection lost, will auto-reconnect", "error", err, "broker", cfg.Broker)
	}

	client := mqtt.NewClient(opts)

	logger.Info("Connecting to MQTT broker", "broker", cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	n := newMQTTNotifier(client, cfg.Topic, cfg.QoS, logger)
	n.client = client
	return n, nil
}

func newMQTTNotifier(pub publisher, topic string, qos byte, logger common.Logger) *MQTTNotifier {
	if logger == nil {
		logger = common.NopLogger
	}
	return &MQTTNotifier{pub: pub, topic: topic, qos: qos, logger: logger, now: time.Now}
}

func (n *MQTTNotifier) Notify(ctx context.Context, kind events.Kind, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(mqttMessage{Kind: string(kind), Message: message, Timestamp: n.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", n.topic, kind)
	token := n.pub.Publish(topic, n.qos, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	n.logger.Debug("Notification published", "topic", topic, "qos", n.qos, "size", len(payload))
	return nil
}

// Close disconnects from the broker, waiting briefly for in-flight messages.
func (n *MQTTNotifier) Close() {
	if n.client != nil {
		n.client.Disconnect(250)
	}
}
