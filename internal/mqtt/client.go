package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/store"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

const publishTimeout = 5 * time.Second

// ReadingsTopic is the topic a station's readings are published on.
func ReadingsTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/readings", stationID)
}

// AlertsTopic is the topic a station's alert events are published on.
func AlertsTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/alerts", stationID)
}

func validTopicSegment(s string) error {
	if s == "" {
		return fmt.Errorf("station_id is required")
	}
	if strings.ContainsAny(s, "/+#") {
		return fmt.Errorf("station_id %q contains a topic separator or wildcard", s)
	}
	return nil
}

// Client is a publishing MQTT client. It implements store.Appender by publishing
// readings to ReadingsTopic.
type Client struct {
	client    mqtt.Client
	cfg       config.MQTT
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.MQTT, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	c.client = mqtt.NewClient(clientOptions(cfg, logger, c.setConnected))
	return c
}

func clientOptions(cfg config.MQTT, logger *slog.Logger, setConnected func(bool)) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port, "client_id", cfg.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})
	return opts
}

// waitConnect starts a connect attempt and waits for it, honouring ctx and stopCh.
func waitConnect(ctx context.Context, client mqtt.Client, stopCh <-chan struct{}) error {
	token := client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			client.Disconnect(0)
			return ctx.Err()
		case <-stopCh:
			client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Connect waits for the initial connection to the broker. Later drops are
// handled by the client's automatic reconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}
	if err := waitConnect(ctx, c.client, c.stopCh); err != nil {
		return err
	}
	c.setConnected(true)
	return nil
}

// Publish sends payload at QoS 1 and waits for the broker acknowledgement.
func (c *Client) Publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	token := c.client.Publish(topic, 1, retained, payload)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish timeout for topic %s", topic)
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Append publishes r as JSON on the station's readings topic.
func (c *Client) Append(ctx context.Context, r types.Reading) error {
	if err := validTopicSegment(r.StationID); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	topic := ReadingsTopic(r.StationID)
	if err := c.Publish(ctx, topic, false, data); err != nil {
		return store.Unavailable("mqtt publish", err)
	}

	c.logger.Debug("published reading", "topic", topic, "station_id", r.StationID, "sequence", r.Sequence)
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection. It is idempotent;
// after it returns Connect fails with "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
