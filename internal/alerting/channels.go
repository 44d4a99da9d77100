package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/segmentio/kafka-go"
)

// NotificationChannel delivers an alert to one external collaborator.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// encodeAlert marshals an alert, applying payload encryption when an
// Encryptor is configured.
func encodeAlert(alert *Alert, enc *Encryptor) ([]byte, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}
	if enc == nil || !enc.Enabled() {
		return body, nil
	}
	sealed, err := enc.Encrypt(body)
	if err != nil {
		return nil, fmt.Errorf("encrypt alert: %w", err)
	}
	return json.Marshal(sealed)
}

// WebhookChannel posts alerts as JSON to an HTTP endpoint.
type WebhookChannel struct {
	name      string
	url       string
	headers   map[string]string
	encryptor *Encryptor
	client    *http.Client
}

// NewWebhookChannel creates a webhook channel. A nil encryptor sends
// plaintext JSON.
func NewWebhookChannel(name, url string, headers map[string]string, enc *Encryptor) *WebhookChannel {
	return &WebhookChannel{
		name:      name,
		url:       url,
		headers:   headers,
		encryptor: enc,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookChannel) Name() string {
	return w.name
}

func (w *WebhookChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := encodeAlert(alert, w.encryptor)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// KafkaChannelConfig configures the fleet-backend Kafka channel.
type KafkaChannelConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// KafkaChannel publishes alerts to a fleet-backend topic.
type KafkaChannel struct {
	writer    *kafka.Writer
	encryptor *Encryptor

	published atomic.Uint64
	errors    atomic.Uint64
}

// NewKafkaChannel creates a Kafka channel.
func NewKafkaChannel(cfg KafkaChannelConfig, enc *Encryptor) (*KafkaChannel, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka channel requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka channel requires a topic")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 100 * time.Millisecond
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	return &KafkaChannel{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: batchTimeout,
			WriteTimeout: writeTimeout,
			RequiredAcks: kafka.RequireOne,
		},
		encryptor: enc,
	}, nil
}

func (k *KafkaChannel) Name() string {
	return "kafka"
}

func (k *KafkaChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := encodeAlert(alert, k.encryptor)
	if err != nil {
		k.errors.Add(1)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(alert.DeviceID),
		Value: payload,
		Time:  alert.CreatedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.errors.Add(1)
		return fmt.Errorf("kafka publish: %w", err)
	}
	k.published.Add(1)
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaChannel) Close() error {
	return k.writer.Close()
}

// KafkaChannelMetrics holds publish statistics.
type KafkaChannelMetrics struct {
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// Metrics returns publish statistics.
func (k *KafkaChannel) Metrics() KafkaChannelMetrics {
	return KafkaChannelMetrics{
		Published: k.published.Load(),
		Errors:    k.errors.Load(),
	}
}

// DTLSChannelConfig configures the short-range secure datagram channel.
type DTLSChannelConfig struct {
	Address     string
	PSK         []byte
	PSKIdentity string
	DialTimeout time.Duration
}

// DTLSChannel sends alerts as datagrams over a PSK-secured DTLS session to
// the short-range wireless bridge.
type DTLSChannel struct {
	config    DTLSChannelConfig
	encryptor *Encryptor

	mu   sync.Mutex
	conn net.Conn
}

// NewDTLSChannel creates a DTLS channel. The session is established lazily
// on first send and re-established after failures.
func NewDTLSChannel(cfg DTLSChannelConfig, enc *Encryptor) (*DTLSChannel, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("dtls channel requires an address")
	}
	if len(cfg.PSK) == 0 {
		return nil, fmt.Errorf("dtls channel requires a pre-shared key")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &DTLSChannel{config: cfg, encryptor: enc}, nil
}

func (d *DTLSChannel) Name() string {
	return "dtls"
}

func (d *DTLSChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := encodeAlert(alert, d.encryptor)
	if err != nil {
		return err
	}

	conn, err := d.session(ctx)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(payload); err != nil {
		d.dropSession()
		return fmt.Errorf("dtls write: %w", err)
	}
	return nil
}

func (d *DTLSChannel) session(ctx context.Context) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return d.conn, nil
	}

	addr, err := net.ResolveUDPAddr("udp", d.config.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve dtls peer: %w", err)
	}

	dtlsConfig := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return d.config.PSK, nil
		},
		PSKIdentityHint:      []byte(d.config.PSKIdentity),
		CipherSuites:         []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
		ConnectContextMaker: func() (context.Context, func()) {
			return context.WithTimeout(ctx, d.config.DialTimeout)
		},
	}

	conn, err := dtls.Dial("udp", addr, dtlsConfig)
	if err != nil {
		return nil, fmt.Errorf("dtls dial: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *DTLSChannel) dropSession() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

// Close terminates any established session.
func (d *DTLSChannel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}
