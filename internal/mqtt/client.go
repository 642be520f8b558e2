package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	client         mqtt.Client
	cfg            *config.MQTTConfig
	log            *logger.Logger
	handlers       map[string]MessageHandler
	mu             sync.RWMutex
	connected      bool
	lastConnected  time.Time
	lastDisconnect time.Time
	ctx            context.Context
	cancel         context.CancelFunc
}

// MessageHandler receives every message matching the pattern it was
// subscribed with. receivedAt is taken when the message reaches the client.
type MessageHandler func(topic string, payload []byte, receivedAt time.Time) error

type ClientConfig struct {
	MQTT   *config.MQTTConfig
	Logger *logger.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MQTT == nil {
		return nil, fmt.Errorf("mqtt config cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		cfg:      cfg.MQTT,
		log:      cfg.Logger.With("mqtt"),
		handlers: make(map[string]MessageHandler),
		ctx:      ctx,
		cancel:   cancel,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.MQTTBrokerURL(cfg.MQTT))
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetKeepAlive(cfg.MQTT.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.MQTT.ConnectTimeout)
	opts.SetAutoReconnect(cfg.MQTT.AutoReconnect)
	opts.SetCleanSession(true)

	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)

	return c, nil
}

func (c *Client) Connect() error {
	c.log.Info("Connecting to MQTT broker: %s:%d", c.cfg.Broker, c.cfg.Port)

	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("connection timeout after %v", c.cfg.ConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.lastConnected = time.Now()
	c.mu.Unlock()

	c.log.Info("Successfully connected to MQTT broker")
	return nil
}

func (c *Client) Disconnect() error {
	c.log.Info("Disconnecting from MQTT broker")

	c.cancel()

	c.mu.Lock()
	c.connected = false
	c.lastDisconnect = time.Now()
	c.mu.Unlock()

	c.client.Disconnect(250)

	c.log.Info("Disconnected from MQTT broker")
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// Subscribe registers handler for pattern. While offline the handler is only
// recorded and the subscription is made by onConnect.
func (c *Client) Subscribe(pattern string, handler MessageHandler) error {
	if err := ValidatePattern(pattern); err != nil {
		return err
	}

	c.mu.Lock()
	c.handlers[pattern] = handler
	c.mu.Unlock()

	if !c.IsConnected() {
		c.log.Warn("Not connected, deferring subscription to %s", pattern)
		return nil
	}

	return c.subscribe(c.client, pattern)
}

func (c *Client) subscribe(client mqtt.Client, pattern string) error {
	c.log.Debug("Subscribing to topic: %s (QoS: %d)", pattern, c.cfg.QoS)

	token := client.Subscribe(pattern, c.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(pattern, msg.Topic(), msg.Payload())
	})

	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic: %s", pattern)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for topic %s: %w", pattern, err)
	}

	c.log.Info("Successfully subscribed to topic: %s", pattern)
	return nil
}

func (c *Client) Unsubscribe(pattern string) error {
	c.mu.Lock()
	delete(c.handlers, pattern)
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}

	c.log.Debug("Unsubscribing from topic: %s", pattern)

	token := c.client.Unsubscribe(pattern)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("unsubscribe timeout for topic: %s", pattern)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe failed for topic %s: %w", pattern, err)
	}

	c.log.Info("Successfully unsubscribed from topic: %s", pattern)
	return nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to broker")
	}

	c.log.Debug("Publishing to topic: %s (size: %d bytes)", topic, len(payload))

	token := c.client.Publish(topic, c.cfg.QoS, c.cfg.RetainMessages, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic: %s", topic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed for topic %s: %w", topic, err)
	}

	return nil
}

func (c *Client) PublishJSON(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return c.Publish(topic, payload)
}

func (c *Client) handleMessage(pattern, topic string, payload []byte) {
	receivedAt := time.Now()

	c.log.Debug("Received message on topic: %s (size: %d bytes)", topic, len(payload))

	if !MatchTopic(pattern, topic) {
		c.log.Warn("Topic %s delivered for non-matching subscription %s", topic, pattern)
		return
	}

	c.mu.RLock()
	handler, exists := c.handlers[pattern]
	c.mu.RUnlock()

	if !exists {
		c.log.Warn("No handler found for topic: %s", topic)
		return
	}

	if err := handler(topic, payload, receivedAt); err != nil {
		c.log.Error("Handler error for topic %s: %v", topic, err)
	}
}

func (c *Client) onConnect(client mqtt.Client) {
	c.mu.Lock()
	c.connected = true
	c.lastConnected = time.Now()
	patterns := make([]string, 0, len(c.handlers))
	for pattern := range c.handlers {
		patterns = append(patterns, pattern)
	}
	c.mu.Unlock()

	c.log.Info("MQTT connection established")

	for _, pattern := range patterns {
		if err := c.subscribe(client, pattern); err != nil {
			c.log.Error("Failed to re-subscribe to %s: %v", pattern, err)
		}
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.lastDisconnect = time.Now()
	c.mu.Unlock()

	c.log.Error("MQTT connection lost: %v", err)
}

func (c *Client) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.log.Warn("Attempting to reconnect to MQTT broker...")
}

// ValidatePattern rejects filters the broker would refuse: empty filters,
// '#' anywhere but the last level, and wildcards mixed into a level.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty topic filter")
	}
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("invalid topic filter %q: '#' must be the last level", pattern)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("invalid topic filter %q: '+' must occupy a whole level", pattern)
		}
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription pattern,
// honoring the '+' and '#' wildcards.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range patternParts {
		if part == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if part == "+" {
			continue
		}
		if part != topicParts[i] {
			return false
		}
	}

	return len(patternParts) == len(topicParts)
}
