package streamworker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Channel-3-Eugene/streamworker/metrics"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Closed or Failed.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// Event is the unit of communication in both directions.
type Event struct {
	Name    string
	Payload any
}

// Subscriber receives the outbound side of a Handle. All methods are
// invoked from the handle's EventLoop, one at a time.
type Subscriber interface {
	OnEvent(ev Event)
	OnClose()
	OnError(err error)
}

// Callbacks adapts plain functions into a Subscriber. Nil fields are skipped.
type Callbacks struct {
	Event func(ev Event)
	Close func()
	Error func(err error)
}

type Bridge struct {
	registry *Registry
	opts     Options
}

type Handle struct {
	ctx      context.Context
	id       string
	worker   string
	cfg      Config
	opts     Options
	metrics  *metrics.Metrics
	instance Worker

	state       atomic.Int32
	mu          sync.Mutex
	finished    bool
	err         error
	running     chan struct{}
	runningOnce sync.Once
	done        chan struct{}

	inbox     *Mailbox[Event]
	outbox    *Mailbox[pending]
	scheduled atomic.Bool

	loop      *EventLoop
	ownLoop   bool
	mux       *outMux
	closeOnce sync.Once
	kill      func()
}

// pending is an outbound event stamped with its publish time.
type pending struct {
	ev Event
	at time.Time
}

type Supervisor struct {
	Name    string
	bridge  *Bridge
	mu      sync.Mutex
	handles map[string]*Handle
	events  chan Report
}
