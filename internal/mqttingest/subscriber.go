// Package mqttingest subscribes to the device telemetry topics on an MQTT
// broker and feeds every message to the ingest gateway.
package mqttingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Vigil/internal/vigil/service"
)

const (
	DefaultLocationTopic = "esp32/bssid"
	DefaultBatteryTopic  = "esp32/battery"
	DefaultClientID      = "vigil-server"

	qos = byte(1)
)

var ErrNoBroker = errors.New("mqtt broker url is required")

// Sink receives telemetry events. *service.Gateway implements it.
type Sink interface {
	Enqueue(ctx context.Context, ev service.Event) error
}

type Config struct {
	BrokerURL     string
	ClientID      string
	Username      string
	Password      string
	LocationTopic string
	BatteryTopic  string

	// OnStatus is called with true when the client (re)connects and false
	// when the connection is lost.
	OnStatus func(connected bool)
}

type Subscriber struct {
	cfg      Config
	clientID string
	topics   map[string]service.Channel
	sink     Sink
	logger   *slog.Logger

	mu        sync.RWMutex
	client    mqtt.Client
	connected bool
	ctx       context.Context
}

func New(cfg Config, sink Sink, logger *slog.Logger) (*Subscriber, error) {
	if cfg.BrokerURL == "" {
		return nil, ErrNoBroker
	}
	if cfg.LocationTopic == "" {
		cfg.LocationTopic = DefaultLocationTopic
	}
	if cfg.BatteryTopic == "" {
		cfg.BatteryTopic = DefaultBatteryTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.LocationTopic == cfg.BatteryTopic {
		return nil, fmt.Errorf("mqtt: location and battery topics must differ (%q)", cfg.LocationTopic)
	}
	// A unique suffix keeps several instances from kicking each other off
	// the broker.
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])

	return &Subscriber{
		cfg:      cfg,
		clientID: clientID,
		topics: map[string]service.Channel{
			cfg.LocationTopic: service.ChannelLocation,
			cfg.BatteryTopic:  service.ChannelBattery,
		},
		sink:   sink,
		logger: logger,
		ctx:    context.Background(),
	}, nil
}

func (s *Subscriber) ClientID() string { return s.clientID }

// Channel maps a topic to the telemetry channel it carries.
func (s *Subscriber) Channel(topic string) (service.Channel, bool) {
	ch, ok := s.topics[topic]
	return ch, ok
}

func (s *Subscriber) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects, subscribes and blocks until ctx is cancelled. The initial
// connection is retried with backoff; once connected, paho reconnects on its
// own and the topics are resubscribed from the on-connect handler.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.client = mqtt.NewClient(s.options())
	client := s.client
	s.mu.Unlock()

	if err := s.connect(ctx, client); err != nil {
		return err
	}
	<-ctx.Done()

	client.Disconnect(250)
	s.setConnected(false)
	s.logger.Info("mqtt disconnected")
	return nil
}

func (s *Subscriber) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.BrokerURL)
	opts.SetClientID(s.clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		s.logger.Debug("mqtt message on unhandled topic", "topic", msg.Topic())
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "err", err)
		s.setConnected(false)
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		s.logger.Info("mqtt reconnecting", "broker", s.cfg.BrokerURL)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.logger.Info("mqtt connected", "broker", s.cfg.BrokerURL, "client_id", s.clientID)
		if err := s.subscribe(c); err != nil {
			s.logger.Error("mqtt subscribe failed", "err", err)
			return
		}
		s.setConnected(true)
	})
	return opts
}

func (s *Subscriber) connect(ctx context.Context, c mqtt.Client) error {
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		tok := c.Connect()
		if tok.WaitTimeout(5*time.Second) && tok.Error() == nil {
			return nil
		}
		err := tok.Error()
		if err == nil {
			err = errors.New("connect timed out")
		}
		s.logger.Warn("mqtt connect failed", "attempt", attempt, "retry_in", backoff, "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	for topic := range s.topics {
		if tok := c.Subscribe(topic, qos, s.HandleMessage); tok.Wait() && tok.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, tok.Error())
		}
		s.logger.Info("mqtt subscribed", "topic", topic)
	}
	return nil
}

// HandleMessage routes one broker message to the sink. It is the paho
// message handler for every subscribed topic.
func (s *Subscriber) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	ch, ok := s.Channel(msg.Topic())
	if !ok {
		s.logger.Debug("mqtt message on unhandled topic", "topic", msg.Topic())
		return
	}

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	err := s.sink.Enqueue(ctx, service.Event{Channel: ch, Payload: payload, ReceivedAt: time.Now()})
	if err != nil {
		s.logger.Warn("telemetry not queued", "topic", msg.Topic(), "err", err)
	}
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	changed := s.connected != v
	s.connected = v
	s.mu.Unlock()
	if changed && s.cfg.OnStatus != nil {
		s.cfg.OnStatus(v)
	}
}
