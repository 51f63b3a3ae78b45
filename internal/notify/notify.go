package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

type Notification struct {
	JobID     uint      `json:"job_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Deliverer shows a notification to the user.
type Deliverer interface {
	Deliver(n Notification)
}

type DelivererFunc func(Notification)

func (f DelivererFunc) Deliver(n Notification) { f(n) }

type Outcome int

const (
	Suppressed Outcome = iota
	Delivered
	Queued
)

func (o Outcome) String() string {
	switch o {
	case Suppressed:
		return "suppressed"
	case Delivered:
		return "delivered"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// Sink delivers notifications while the host is visible and queues them
// while it is hidden. Deliveries happen under the sink lock, so a flush on
// becoming visible is never interleaved with newer messages.
type Sink struct {
	mu      sync.Mutex
	global  bool
	visible bool
	pending []Notification
	out     Deliverer
}

func NewSink(out Deliverer, globalEnabled, visible bool) *Sink {
	return &Sink{
		global:  globalEnabled,
		visible: visible,
		out:     out,
	}
}

// Notify delivers or queues n depending on visibility. Nothing happens when
// either the global or the job toggle is off.
func (s *Sink) Notify(n Notification, jobEnabled bool) Outcome {
	return s.notify(n, jobEnabled, false)
}

// NotifyNow delivers n regardless of visibility, for actions the user just
// asked for. Suppression toggles still apply.
func (s *Sink) NotifyNow(n Notification, jobEnabled bool) Outcome {
	return s.notify(n, jobEnabled, true)
}

func (s *Sink) notify(n Notification, jobEnabled, immediate bool) Outcome {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.global || !jobEnabled {
		return Suppressed
	}

	if s.visible || immediate {
		s.out.Deliver(n)
		return Delivered
	}

	s.pending = append(s.pending, n)
	return Queued
}

// SetVisible records the host visibility. On a hidden to visible transition
// the pending queue is delivered in order, cleared and returned.
func (s *Sink) SetVisible(visible bool) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasVisible := s.visible
	s.visible = visible
	if !visible || wasVisible || len(s.pending) == 0 {
		return nil
	}

	flushed := s.pending
	s.pending = nil
	for _, n := range flushed {
		s.out.Deliver(n)
	}
	return flushed
}

func (s *Sink) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// ToggleGlobal flips the global toggle and returns the new value.
func (s *Sink) ToggleGlobal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = !s.global
	return s.global
}

func (s *Sink) Global() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

func (s *Sink) Pending() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.pending...)
}
