// Package hang detects pipeline stages that stop reporting progress.
package hang

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MessageKind is the type of a message a stage sends to the Monitor.
type MessageKind int

const (
	MsgRegister MessageKind = iota
	MsgUnregister
	// MsgNotifyActivity records progress and clears any earlier alert.
	MsgNotifyActivity
	// MsgNotifyWait marks deliberate idleness, which is not a hang.
	MsgNotifyWait
)

// Message is one activity report.
type Message struct {
	ComponentID string
	Kind        MessageKind
	Annotation  string
	Timeout     time.Duration
}

// Hang is the alert published once per stall.
type Hang struct {
	ComponentID string
	Annotation  string
	Silence     time.Duration
}

type component struct {
	lastActivity   time.Time
	lastAnnotation string
	timeout        time.Duration
	waiting        bool
	alerted        bool
}

// Monitor tracks registered components and alerts on stalls.
//
// Invariant: a component produces at most one Hang per stall; a new
// activity report re-arms it.
type Monitor struct {
	scanInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time

	inbox  chan Message
	alerts chan Hang
	done   chan struct{}

	// components is owned by the Run goroutine.
	components map[string]*component
}

// NewMonitor returns a Monitor that scans every scanInterval.
//
// Precondition: scanInterval > 0; logger must be non-nil.
func NewMonitor(scanInterval time.Duration, logger *zap.Logger) *Monitor {
	if scanInterval <= 0 {
		panic("hang.NewMonitor: scanInterval must be > 0")
	}
	return &Monitor{
		scanInterval: scanInterval,
		logger:       logger,
		now:          time.Now,
		inbox:        make(chan Message, 256),
		alerts:       make(chan Hang, 16),
		done:         make(chan struct{}),
		components:   make(map[string]*component),
	}
}

// Alerts returns the channel on which Hang alerts are published.
func (m *Monitor) Alerts() <-chan Hang { return m.alerts }

// Register starts monitoring id with the given timeout. The component
// begins in the waiting state, so it is not judged until its first
// activity report.
//
// Precondition: id must be non-empty; timeout > 0.
func (m *Monitor) Register(id string, timeout time.Duration) *Pinger {
	p := &Pinger{id: id, m: m}
	p.send(Message{ComponentID: id, Kind: MsgRegister, Timeout: timeout})
	return p
}

// Run consumes activity reports and scans for stalls until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.done)
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.inbox:
			m.handle(msg)
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *Monitor) handle(msg Message) {
	now := m.now()
	switch msg.Kind {
	case MsgRegister:
		m.components[msg.ComponentID] = &component{
			lastActivity: now,
			timeout:      msg.Timeout,
			waiting:      true,
		}
		m.logger.Debug("component registered",
			zap.String("component", msg.ComponentID),
			zap.Duration("timeout", msg.Timeout),
		)
	case MsgUnregister:
		delete(m.components, msg.ComponentID)
	case MsgNotifyActivity:
		c, ok := m.components[msg.ComponentID]
		if !ok {
			return
		}
		c.waiting = false
		c.lastActivity = now
		c.lastAnnotation = msg.Annotation
		c.alerted = false
	case MsgNotifyWait:
		c, ok := m.components[msg.ComponentID]
		if !ok {
			return
		}
		c.waiting = true
		c.lastActivity = now
	}
}

func (m *Monitor) scan() {
	now := m.now()
	for id, c := range m.components {
		if c.waiting || c.alerted {
			continue
		}
		silence := now.Sub(c.lastActivity)
		if silence <= c.timeout {
			continue
		}
		c.alerted = true
		h := Hang{ComponentID: id, Annotation: c.lastAnnotation, Silence: silence}
		m.logger.Error("component stopped responding",
			zap.String("component", id),
			zap.String("annotation", c.lastAnnotation),
			zap.Duration("silence", silence),
		)
		select {
		case m.alerts <- h:
		default:
		}
	}
}

// Pinger is a registered component's handle for reporting activity.
type Pinger struct {
	id string
	m  *Monitor
}

// ID returns the component id.
func (p *Pinger) ID() string { return p.id }

// NotifyActivity reports progress with a short annotation of what the
// component was doing.
func (p *Pinger) NotifyActivity(annotation string) {
	p.send(Message{ComponentID: p.id, Kind: MsgNotifyActivity, Annotation: annotation})
}

// NotifyWait reports that the component is idle on purpose.
func (p *Pinger) NotifyWait() {
	p.send(Message{ComponentID: p.id, Kind: MsgNotifyWait})
}

// Unregister stops monitoring the component.
func (p *Pinger) Unregister() {
	p.send(Message{ComponentID: p.id, Kind: MsgUnregister})
}

func (p *Pinger) send(msg Message) {
	select {
	case p.m.inbox <- msg:
	case <-p.m.done:
	}
}
