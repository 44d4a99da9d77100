// Package correlation links high-confidence RF threats to subsequent NFC
// observations. A qualifying RF detection batch arms a short window; an NFC
// read arriving before the deadline escalates to a critical correlated
// event, otherwise the controller disarms silently on timeout.
package correlation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// State is the controller state.
type State string

const (
	StateIdle  State = "idle"
	StateArmed State = "armed"
)

// EventType categorizes controller output events.
type EventType string

const (
	// EventActivated is emitted when a qualifying RF batch arms the window.
	EventActivated EventType = "correlation_activated"
	// EventCorrelated is the critical RF-NFC escalation.
	EventCorrelated EventType = "correlated_detection"
	// EventNFCDetection is an ordinary NFC read seen while idle.
	EventNFCDetection EventType = "nfc_detection"
)

// CorrelationTypeRFNFC names the only correlation this controller performs.
const CorrelationTypeRFNFC = "RF-NFC proximity"

// RFDetection is one scored RF threat handed to the controller.
type RFDetection struct {
	ThreatType  string                `json:"threat_type"`
	ThreatScore float64               `json:"threat_score"` // 0.0 - 1.0
	Report      signal.SecurityReport `json:"report"`
}

// RFContext is the stored trigger context while armed.
type RFContext struct {
	Detections     []RFDetection `json:"detections"`
	DetectionCount int           `json:"detection_count"`
	ThreatTypes    []string      `json:"threat_types"`
	ArmedAt        time.Time     `json:"armed_at"`
}

// Event is a controller output record, suitable for JSON encoding.
type Event struct {
	ID              uuid.UUID          `json:"id"`
	Type            EventType          `json:"type"`
	ThreatLevel     signal.ThreatLevel `json:"threat_level"`
	CorrelationType string             `json:"correlation_type,omitempty"`
	RFContext       *RFContext         `json:"rf_context,omitempty"`
	NFC             *signal.Observation `json:"nfc,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
}

// EventHandler consumes controller events. Handlers run on the caller's
// goroutine (or the timer goroutine for timeouts) and must not block.
type EventHandler func(Event)

// Config holds correlation settings.
type Config struct {
	ActivationThreshold float64
	Timeout             time.Duration
}

// DefaultConfig returns the stock correlation configuration.
func DefaultConfig() Config {
	return Config{
		ActivationThreshold: 0.8,
		Timeout:             30 * time.Second,
	}
}

// Controller is the IDLE/ARMED correlation state machine. At most one armed
// context exists at a time; re-arming replaces it and resets the deadline.
type Controller struct {
	config   Config
	handlers []EventHandler

	mu       sync.Mutex
	armed    bool
	context  *RFContext
	deadline time.Time
	timer    *time.Timer
	gen      uint64 // arm generation, guards stale timer callbacks

	arms     uint64
	fires    uint64
	timeouts uint64
}

// New creates a Controller with the given handlers.
func New(cfg Config, handlers ...EventHandler) *Controller {
	return &Controller{config: cfg, handlers: handlers}
}

// AddHandler registers an additional event handler.
func (c *Controller) AddHandler(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// ProcessRFDetections arms the correlation window if any detection's score
// exceeds the activation threshold. Arming while already armed replaces the
// stored context, resets the deadline and cancels the previous timer.
func (c *Controller) ProcessRFDetections(detections []RFDetection) {
	qualifying := 0
	types := make(map[string]struct{})
	for _, d := range detections {
		if d.ThreatScore > c.config.ActivationThreshold {
			qualifying++
		}
		types[d.ThreatType] = struct{}{}
	}
	if qualifying == 0 {
		return
	}

	threatTypes := make([]string, 0, len(types))
	for t := range types {
		threatTypes = append(threatTypes, t)
	}

	now := time.Now().UTC()
	ctx := &RFContext{
		Detections:     detections,
		DetectionCount: qualifying,
		ThreatTypes:    threatTypes,
		ArmedAt:        now,
	}

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.armed = true
	c.context = ctx
	c.deadline = now.Add(c.config.Timeout)
	c.gen++
	gen := c.gen
	c.arms++
	c.timer = time.AfterFunc(c.config.Timeout, func() { c.onTimeout(gen) })
	handlers := c.handlers
	c.mu.Unlock()

	slog.Info("correlation window armed",
		"qualifying_detections", qualifying,
		"threat_types", threatTypes,
		"timeout", c.config.Timeout,
	)

	emit(handlers, Event{
		ID:          uuid.New(),
		Type:        EventActivated,
		ThreatLevel: signal.Suspicious,
		RFContext:   ctx,
		Timestamp:   now,
	})
}

// ProcessNFCObservation handles an NFC read. While armed it produces exactly
// one critical correlated event and disarms; while idle it produces an
// ordinary NFC detection event.
func (c *Controller) ProcessNFCObservation(obs signal.Observation) {
	nfc := obs.Clone()
	now := time.Now().UTC()

	c.mu.Lock()
	if !c.armed {
		handlers := c.handlers
		c.mu.Unlock()
		emit(handlers, Event{
			ID:          uuid.New(),
			Type:        EventNFCDetection,
			ThreatLevel: signal.Benign,
			NFC:         &nfc,
			Timestamp:   now,
		})
		return
	}

	ctx := c.context
	c.disarmLocked()
	c.fires++
	handlers := c.handlers
	c.mu.Unlock()

	slog.Warn("correlated RF-NFC detection",
		"tag_id", nfc.TagID,
		"rf_detections", ctx.DetectionCount,
	)

	emit(handlers, Event{
		ID:              uuid.New(),
		Type:            EventCorrelated,
		ThreatLevel:     signal.Critical,
		CorrelationType: CorrelationTypeRFNFC,
		RFContext:       ctx,
		NFC:             &nfc,
		Timestamp:       now,
	})
}

// Disarm cancels any armed context and its pending timeout.
func (c *Controller) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
}

// Reset returns the controller to idle and clears all state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
	c.arms = 0
	c.fires = 0
	c.timeouts = 0
}

// disarmLocked clears armed state; callers hold c.mu.
func (c *Controller) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.armed = false
	c.context = nil
	c.deadline = time.Time{}
	c.gen++
}

func (c *Controller) onTimeout(gen uint64) {
	c.mu.Lock()
	if !c.armed || gen != c.gen {
		// A newer arm cycle or an explicit disarm superseded this timer.
		c.mu.Unlock()
		return
	}
	c.disarmLocked()
	c.timeouts++
	c.mu.Unlock()

	slog.Debug("correlation window expired without NFC observation")
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed {
		return StateArmed
	}
	return StateIdle
}

// Metrics holds controller statistics.
type Metrics struct {
	State    State  `json:"state"`
	Arms     uint64 `json:"arms"`
	Fires    uint64 `json:"fires"`
	Timeouts uint64 `json:"timeouts"`
}

// Metrics returns arm/fire/timeout counts and the current state.
func (c *Controller) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := StateIdle
	if c.armed {
		state = StateArmed
	}
	return Metrics{State: state, Arms: c.arms, Fires: c.fires, Timeouts: c.timeouts}
}

func emit(handlers []EventHandler, ev Event) {
	for _, h := range handlers {
		h(ev)
	}
}
