// Package mqtt is a thin publish/subscribe layer over the paho client used by
// the MQTT coordinator transport.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout      = 10 * time.Second
	maxReconnDelay   = time.Minute
	disconnQuiesceMs = 250
)

var (
	errPublishTimeout     = errors.New("failed to publish due to timeout reached")
	errSubscribeTimeout   = errors.New("failed to subscribe due to timeout reached")
	errUnsubscribeTimeout = errors.New("failed to unsubscribe due to timeout reached")
	errConnectTimeout     = errors.New("timeout reached while connecting to MQTT broker")
	errEmptyTopic         = errors.New("empty topic")
	errEmptyID            = errors.New("empty ID")
	errInvalidCA          = errors.New("failed to parse CA certificate")

	// The will mirrors the status the MQTT coordinator transport publishes on
	// a clean shutdown.
	statusTopicTemplate = "m/%s/c/%s/fl/participants/status"
	lwtPayloadTemplate  = `{"status":"offline","participant_id":"%s"}`
)

type Config struct {
	Address  string        `env:"ADDRESS"   envDefault:"tcp://localhost:1883" toml:"address"`
	QoS      uint8         `env:"QOS"       envDefault:"2"                    toml:"qos"`
	Timeout  time.Duration `env:"TIMEOUT"   envDefault:"30s"                  toml:"timeout"`
	Username string        `env:"USERNAME"                                    toml:"username"`
	Password string        `env:"PASSWORD"                                    toml:"password"`
	DomainID string        `env:"DOMAIN_ID"                                   toml:"domain_id"`
	Channel  string        `env:"CHANNEL_ID"                                  toml:"channel_id"`
	CAPath   string        `env:"CA_PATH"                                     toml:"ca_path"`
	CertPath string        `env:"CERT_PATH"                                   toml:"cert_path"`
	KeyPath  string        `env:"KEY_PATH"                                    toml:"key_path"`
}

// Handler receives the raw payload of a message on topic.
type Handler func(topic string, payload []byte) error

type PubSub interface {
	// Publish sends msg on topic. Byte slices are sent as is, anything else
	// is encoded as JSON.
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

type pubsub struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func NewPubSub(cfg Config, id string, logger *slog.Logger) (PubSub, error) {
	if id == "" {
		return nil, errEmptyID
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("mqtt_client_id", id))

	opts, err := clientOptions(cfg, id, logger)
	if err != nil {
		return nil, err
	}

	ps := &pubsub{
		client:  mqtt.NewClient(opts),
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}

	token := ps.client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, errConnectTimeout
	}
	if err := token.Error(); err != nil {
		return nil, errors.Join(errors.New("failed to connect to MQTT broker"), err)
	}

	return ps, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	payload, err := encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	return ps.wait(ctx, ps.client.Publish(topic, ps.qos, false, payload), errPublishTimeout)
}

func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ctx, ps.client.Subscribe(topic, ps.qos, ps.mqttHandler(handler)), errSubscribeTimeout)
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ctx, ps.client.Unsubscribe(topic), errUnsubscribeTimeout)
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps.client.Disconnect(disconnQuiesceMs)

	return nil
}

// wait blocks until the token completes, the context ends or the configured
// timeout elapses, whichever comes first.
func (ps *pubsub) wait(ctx context.Context, token mqtt.Token, timeoutErr error) error {
	timer := time.NewTimer(ps.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return timeoutErr
	}
}

func (ps *pubsub) mqttHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		if err := h(m.Topic(), m.Payload()); err != nil {
			ps.logger.Warn("failed to handle MQTT message", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}

func encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case []byte:
		return m, nil
	case json.RawMessage:
		return m, nil
	default:
		return json.Marshal(msg)
	}
}

func clientOptions(cfg Config, id string, logger *slog.Logger) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Address).
		SetClientID(id).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout).
		SetMaxReconnectInterval(maxReconnDelay)

	tlsCfg, err := tlsConfig(cfg.CAPath, cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	if cfg.DomainID != "" && cfg.Channel != "" {
		opts.SetWill(fmt.Sprintf(statusTopicTemplate, cfg.DomainID, cfg.Channel), fmt.Sprintf(lwtPayloadTemplate, id), 0, false)
	}

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connection established", slog.String("broker", cfg.Address))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("MQTT reconnecting", slog.String("broker", cfg.Address))
	})

	return opts, nil
}

// tlsConfig returns nil when no CA is configured. A client key pair is only
// loaded when both the certificate and the key are set.
func tlsConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	if caPath == "" {
		return nil, nil
	}

	ca, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, errInvalidCA
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}
	if certPath == "" || keyPath == "" {
		return cfg, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client key pair: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}

	return cfg, nil
}
