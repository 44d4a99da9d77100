package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the delivery state of a notification.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliverySent       DeliveryStatus = "sent"
	DeliveryRetrying   DeliveryStatus = "retrying"
	DeliveryDeadLetter DeliveryStatus = "dead_letter"
)

// DeliveryRecord tracks delivery of one alert to one channel.
type DeliveryRecord struct {
	ID          uuid.UUID      `json:"id"`
	AlertID     uuid.UUID      `json:"alert_id"`
	ChannelName string         `json:"channel_name"`
	Status      DeliveryStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	LastError   string         `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}

// DispatcherConfig configures the reliable delivery system.
type DispatcherConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration
}

// DefaultDispatcherConfig returns sensible delivery defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		AttemptTimeout: 10 * time.Second,
	}
}

// Dispatcher delivers alerts to all channels with exponential backoff and
// dead-letter accumulation for alerts that exhaust their retries.
type Dispatcher struct {
	config   DispatcherConfig
	channels []NotificationChannel

	mu         sync.Mutex
	deadLetter []*DeliveryRecord
	wg         sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over the given channels.
func NewDispatcher(cfg DispatcherConfig, channels ...NotificationChannel) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	return &Dispatcher{config: cfg, channels: channels}
}

// Dispatch fans the alert out to every channel asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) {
	for _, ch := range d.channels {
		record := &DeliveryRecord{
			ID:          uuid.New(),
			AlertID:     alert.ID,
			ChannelName: ch.Name(),
			Status:      DeliveryPending,
			CreatedAt:   time.Now().UTC(),
		}
		d.wg.Add(1)
		go d.deliverWithRetry(ctx, ch, alert, record)
	}
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, ch NotificationChannel, alert *Alert, record *DeliveryRecord) {
	defer d.wg.Done()

	backoff := d.config.InitialBackoff
	for attempt := 1; attempt <= d.config.MaxRetries; attempt++ {
		record.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
		err := ch.Send(attemptCtx, alert)
		cancel()

		if err == nil {
			now := time.Now().UTC()
			record.Status = DeliverySent
			record.DeliveredAt = &now
			return
		}

		record.Status = DeliveryRetrying
		record.LastError = err.Error()
		slog.Warn("alert delivery failed",
			"channel", ch.Name(),
			"alert_id", alert.ID,
			"attempt", attempt,
			"error", err,
		)

		if attempt == d.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			record.LastError = ctx.Err().Error()
			d.toDeadLetter(record)
			return
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * d.config.BackoffFactor)
		if d.config.MaxBackoff > 0 && backoff > d.config.MaxBackoff {
			backoff = d.config.MaxBackoff
		}
	}

	d.toDeadLetter(record)
}

func (d *Dispatcher) toDeadLetter(record *DeliveryRecord) {
	record.Status = DeliveryDeadLetter
	d.mu.Lock()
	d.deadLetter = append(d.deadLetter, record)
	d.mu.Unlock()

	slog.Error("alert delivery dead-lettered",
		"channel", record.ChannelName,
		"alert_id", record.AlertID,
		"attempts", record.Attempts,
		"last_error", record.LastError,
	)
}

// DeadLetters returns a copy of the dead-letter records.
func (d *Dispatcher) DeadLetters() []*DeliveryRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*DeliveryRecord, len(d.deadLetter))
	copy(out, d.deadLetter)
	return out
}

// Wait blocks until all in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
