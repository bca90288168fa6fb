package streamworker

import (
	"errors"
	"sync"
)

// Subscription detaches a Subscriber. Close is idempotent and always returns nil.
type Subscription interface {
	Close() error
}

// attacher is implemented by subscribers that accept a single owner, such
// as Stream.
type attacher interface {
	attach(p Protocol, sub Subscription) error
}

// detacher is implemented by subscribers that must end when unsubscribed.
type detacher interface {
	detach()
}

// outMux fans every delivered event out to the attached subscribers, in
// attach order.
type outMux struct {
	mu       sync.Mutex
	protocol Protocol
	subs     []*subscription
	ended    bool
}

type subscription struct {
	mux  *outMux
	sub  Subscriber
	once sync.Once
}

func newOutMux(p Protocol) *outMux {
	return &outMux{protocol: p}
}

func (m *outMux) add(s Subscriber) (Subscription, error) {
	if s == nil {
		return nil, errors.New("subscriber is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return nil, ErrStreamAlreadyEnded
	}
	sub := &subscription{mux: m, sub: s}
	if a, ok := s.(attacher); ok {
		if err := a.attach(m.protocol, sub); err != nil {
			return nil, err
		}
	}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *outMux) snapshot() []*subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*subscription, len(m.subs))
	copy(out, m.subs)
	return out
}

func (m *outMux) send(ev Event) {
	for _, s := range m.snapshot() {
		s.sub.OnEvent(ev)
	}
}

// terminate detaches everyone and hands each subscriber its one terminal call.
func (m *outMux) terminate(err error) {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return
	}
	m.ended = true
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, s := range subs {
		if err == nil {
			s.sub.OnClose()
		} else {
			s.sub.OnError(err)
		}
	}
}

func (m *outMux) remove(target *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s == target {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.mux.remove(s)
		if d, ok := s.sub.(detacher); ok {
			d.detach()
		}
	})
	return nil
}

func (c Callbacks) OnEvent(ev Event) {
	if c.Event != nil {
		c.Event(ev)
	}
}

func (c Callbacks) OnClose() {
	if c.Close != nil {
		c.Close()
	}
}

func (c Callbacks) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}
