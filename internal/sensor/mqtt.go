package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/oshokin/temperature-monitor/internal/logger"
)

// DefaultMQTTTopic is the topic sensors publish to when none is configured.
const DefaultMQTTTopic = "sensors/temperature"

// MQTTOptions configures an MQTTSensor.
type MQTTOptions struct {
	// Broker is the host:port (or mqtt:// URL) of the MQTT broker.
	Broker string
	// Topic is the topic filter carrying temperature payloads.
	Topic string
	// ClientID identifies the session; a random one is generated when empty.
	ClientID string
	// Source selects the probe when payloads carry both.
	Source Source
	// MaxAge is how long a received value stays usable.
	MaxAge time.Duration
	// KeepAlive is the MQTT keep-alive interval in seconds.
	KeepAlive uint16
	// RetryDelay is the pause between reconnection attempts.
	RetryDelay time.Duration
	// ConnectTimeout bounds the wait for the first connection.
	ConnectTimeout time.Duration
}

// Defaults for optional MQTT settings.
const (
	DefaultMQTTMaxAge         = 5 * time.Minute
	DefaultMQTTKeepAlive      = 30
	DefaultMQTTRetryDelay     = 5 * time.Second
	DefaultMQTTConnectTimeout = 10 * time.Second
)

var (
	// errBrokerRequired is returned when no broker address is configured.
	errBrokerRequired = errors.New("mqtt broker address must be provided")
	// errNoTemperatureField is returned for JSON payloads without a usable field.
	errNoTemperatureField = errors.New("payload has no temperature field")
)

// MQTTSensor keeps the most recent value published on a topic and hands it
// out on Read. It does not poll the device itself. Lost connections are
// re-established in the background and the subscription is renewed on every
// connect; meanwhile Read reports ErrNoData once MaxAge passes.
type MQTTSensor struct {
	// opts holds the validated settings.
	opts MQTTOptions
	// conn is the self-reconnecting paho session.
	conn *autopaho.ConnectionManager
	// cancel stops the reconnect loop.
	cancel context.CancelFunc
	// now is the clock used to age values.
	now func() time.Time

	// mu protects the fields below.
	mu sync.Mutex
	// last is the newest decoded value.
	last float64
	// lastAt is when last was received; zero until the first value.
	lastAt time.Time
	// lastErr is the decode error of the newest message, if any.
	lastErr error
}

// DialMQTT connects to the broker and subscribes to the configured topic.
// It waits for the first connection; later drops are retried until Close.
func DialMQTT(ctx context.Context, opts MQTTOptions) (*MQTTSensor, error) {
	if opts.Broker == "" {
		return nil, errBrokerRequired
	}

	opts = opts.withDefaults()

	serverURL, err := brokerURL(opts.Broker)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "broker", opts.Broker, "topic", opts.Topic)

	s := &MQTTSensor{
		opts: opts,
		now:  time.Now,
	}

	// The session outlives the dial context and ends on Close.
	runCtx, cancel := context.WithCancel(logger.ToContext(context.Background(), logger.FromContext(ctx)))

	conn, err := autopaho.NewConnection(runCtx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     opts.KeepAlive,
		CleanStartOnInitialConnection: true,
		ConnectRetryDelay:             opts.RetryDelay,
		ConnectTimeout:                opts.ConnectTimeout,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.subscribe(runCtx, cm)
		},
		OnConnectError: func(err error) {
			logger.WarnKV(runCtx, "MQTT connection attempt failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: opts.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					s.handlePayload(pr.Packet.Payload)

					return true, nil
				},
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				logger.WarnKV(runCtx, "MQTT broker closed the session", "reason_code", d.ReasonCode)
			},
		},
	})
	if err != nil {
		cancel()

		return nil, fmt.Errorf("%w: start mqtt session: %w", ErrNoSensor, err)
	}

	s.conn = conn
	s.cancel = cancel

	awaitCtx, awaitCancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer awaitCancel()

	if err = conn.AwaitConnection(awaitCtx); err != nil {
		cancel()
		<-conn.Done()

		return nil, fmt.Errorf("%w: connect to broker %s: %w", ErrNoSensor, opts.Broker, err)
	}

	return s, nil
}

// withDefaults fills the optional settings.
func (o MQTTOptions) withDefaults() MQTTOptions {
	if o.Topic == "" {
		o.Topic = DefaultMQTTTopic
	}

	if o.ClientID == "" {
		o.ClientID = "temperature-monitor-" + uuid.NewString()
	}

	if o.Source == "" {
		o.Source = SourceExternal
	}

	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMQTTMaxAge
	}

	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultMQTTKeepAlive
	}

	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultMQTTRetryDelay
	}

	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultMQTTConnectTimeout
	}

	return o
}

// brokerURL accepts host:port or a full URL.
func brokerURL(broker string) (*url.URL, error) {
	if !strings.Contains(broker, "://") {
		broker = "mqtt://" + broker
	}

	u, err := url.Parse(broker)
	if err != nil {
		return nil, fmt.Errorf("parse broker address %q: %w", broker, err)
	}

	return u, nil
}

// subscribe renews the topic subscription after each (re)connect.
func (s *MQTTSensor) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: s.opts.Topic, QoS: 1},
		},
	}); err != nil {
		logger.ErrorKV(ctx, "MQTT subscribe failed, no readings will arrive", "error", err)

		return
	}

	logger.Debug(ctx, "MQTT subscription made")
}

// Read returns the newest value received within MaxAge.
func (s *MQTTSensor) Read(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr != nil {
		return 0, s.lastErr
	}

	if s.lastAt.IsZero() {
		return 0, fmt.Errorf("%w: nothing received on %s", ErrNoData, s.opts.Topic)
	}

	if age := s.now().Sub(s.lastAt); age > s.opts.MaxAge {
		return 0, fmt.Errorf("%w: last value is %s old", ErrNoData, age.Truncate(time.Second))
	}

	return s.last, nil
}

// Close disconnects from the broker and stops reconnecting.
func (s *MQTTSensor) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}

	defer s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ConnectTimeout)
	defer cancel()

	if err := s.conn.Disconnect(ctx); err != nil && !errors.Is(err, autopaho.ConnectionDownError) {
		return fmt.Errorf("disconnect from broker: %w", err)
	}

	return nil
}

// handlePayload decodes one message and records the outcome.
func (s *MQTTSensor) handlePayload(payload []byte) {
	value, err := decodePayload(payload, s.opts.Source)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err

		return
	}

	s.last = value
	s.lastAt = s.now()
	s.lastErr = nil
}

// decodePayload accepts a bare number or a JSON object such as
// {"internal temperature": 24.1, "external temperature": 21.3}.
func decodePayload(payload []byte, source Source) (float64, error) {
	text := strings.TrimSpace(string(payload))

	if value, err := strconv.ParseFloat(text, 64); err == nil {
		return value, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return 0, fmt.Errorf("%w: decode payload: %w", ErrReadFailed, err)
	}

	if reason, ok := fields["error"]; ok {
		return 0, fmt.Errorf("%w: device reported %v", ErrReadFailed, reason)
	}

	for _, key := range []string{source.channelKey(), "temperature"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}

		value, ok := raw.(float64)
		if !ok {
			return 0, fmt.Errorf("%w: field %q is not a number", ErrReadFailed, key)
		}

		return value, nil
	}

	return 0, fmt.Errorf("%w: %w (want %q)", ErrNoChannel, errNoTemperatureField, source.channelKey())
}
