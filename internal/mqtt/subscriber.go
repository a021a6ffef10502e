package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/config"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/metrics"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

// ReadingHandler consumes one validated reading received from the broker.
type ReadingHandler func(ctx context.Context, r types.Reading) error

// MQTTSubscriber is the part of Subscriber that modules attach handlers to.
type MQTTSubscriber interface {
	SetMessageHandler(handler ReadingHandler)
}

type Subscriber struct {
	client    mqtt.Client
	cfg       config.MQTT
	logger    *slog.Logger
	metrics   *metrics.Metrics
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu sync.RWMutex
	handler   ReadingHandler

	// subscribed is set after the first successful subscribe; later
	// reconnects resubscribe since the session is not persisted.
	subscribed atomic.Bool
}

// NewSubscriber builds a subscriber for cfg.Topic. m may be nil.
func NewSubscriber(cfg config.MQTT, logger *slog.Logger, m *metrics.Metrics) *Subscriber {
	s := &Subscriber{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
	opts := clientOptions(cfg, logger, s.setConnected)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port, "client_id", cfg.ClientID)
		if !s.subscribed.Load() {
			return
		}
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt resubscribe failed", "topic", cfg.Topic, "error", err)
		}
	})
	s.client = mqtt.NewClient(opts)
	return s
}

// SetMessageHandler sets the handler called for each valid reading.
func (s *Subscriber) SetMessageHandler(handler ReadingHandler) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// Connect waits for the broker connection and subscribes to the configured topic.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	if err := waitConnect(ctx, s.client, s.stopCh); err != nil {
		return err
	}
	s.setConnected(true)

	if err := s.subscribe(); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe: %w", err)
	}
	s.subscribed.Store(true)
	return nil
}

func (s *Subscriber) subscribe() error {
	if !s.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := s.cfg.Topic
	qos := byte(1)

	token := s.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var r types.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		s.count("malformed")
		s.logger.Warn("failed to parse reading message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := validateReading(topic, r); err != nil {
		s.count("invalid")
		s.logger.Warn("invalid reading message",
			"topic", topic,
			"station_id", r.StationID,
			"error", err,
		)
		return
	}

	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()
	if handler == nil {
		s.count("unhandled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := handler(ctx, r); err != nil {
		s.count("failed")
		s.logger.Error("message handler failed",
			"topic", topic,
			"station_id", r.StationID,
			"error", err,
		)
		return
	}

	s.count("stored")
	s.logger.Debug("processed reading message",
		"station_id", r.StationID,
		"timestamp", r.Timestamp,
	)
}

func (s *Subscriber) count(result string) {
	if s.metrics != nil {
		s.metrics.IncMQTTMessage(result)
	}
}

func validateReading(topic string, r types.Reading) error {
	if err := validTopicSegment(r.StationID); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if math.IsNaN(r.EthylenePpm) || math.IsInf(r.EthylenePpm, 0) {
		return fmt.Errorf("ethylene_ppm must be finite: %v", r.EthylenePpm)
	}
	if r.EthylenePpm < 0 {
		return fmt.Errorf("ethylene_ppm must not be negative: %v", r.EthylenePpm)
	}

	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == "stations" && parts[1] != r.StationID {
		return fmt.Errorf("station_id %q does not match topic %s", r.StationID, topic)
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect unsubscribes and closes the connection. It is idempotent.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
