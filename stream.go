package streamworker

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// Stream is the pull view of a handle's outbound events. It is single-pass:
// it can be attached to one handle once, and it ends at the protocol's
// end-of-stream event, at close, or at failure.
//
// A full buffer under the Block policy stalls delivery, which in turn lets
// the handle's bounded queue fill and blocks the worker. Delivery runs on the
// handle's EventLoop, so on a loop shared through WithEventLoop a stalled
// Stream also stalls every other handle on that loop.
type Stream struct {
	buf *Mailbox[Event]

	mu       sync.Mutex
	protocol Protocol
	sub      Subscription
	attached bool
	ended    bool
	err      error
}

// NewStream returns an unattached stream. A buffer of zero or less is unbounded.
func NewStream(buffer int, policy OverflowPolicy) *Stream {
	return &Stream{
		buf:      NewMailbox[Event](buffer, policy),
		protocol: DefaultProtocol(),
	}
}

func (s *Stream) attach(p Protocol, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrStreamAlreadyEnded
	}
	if s.attached {
		return ErrStreamAttached
	}
	s.attached = true
	s.protocol = p
	s.sub = sub
	return nil
}

// detach ends a stream whose subscription was closed. Buffered events stay
// readable.
func (s *Stream) detach() {
	s.end(ErrStreamAlreadyEnded)
}

func (s *Stream) OnEvent(ev Event) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	if s.protocol.IsEndOfStream(ev) {
		s.mu.Unlock()
		s.end(io.EOF)
		return
	}
	s.mu.Unlock()

	// Fails only once the consumer has closed the stream.
	_ = s.buf.Put(context.Background(), ev)
}

func (s *Stream) OnClose() {
	s.end(io.EOF)
}

func (s *Stream) OnError(err error) {
	s.end(err)
}

func (s *Stream) end(err error) {
	s.mu.Lock()
	if !s.ended {
		s.ended = true
		s.err = err
	}
	s.mu.Unlock()
	s.buf.Close()
}

// Next returns the next event, io.EOF after a clean end, or the error the
// handle failed with. Buffered events are always returned first.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	ev, err := s.buf.Take(ctx)
	if err == nil {
		return ev, nil
	}
	if errors.Is(err, ErrMailboxClosed) {
		s.mu.Lock()
		err = s.err
		s.mu.Unlock()
		if err == nil {
			err = io.EOF
		}
	}
	return Event{}, err
}

// All yields events until the stream ends. A clean end yields nothing more;
// a failure is yielded once as the error.
func (s *Stream) All(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Close unsubscribes from the handle and discards anything buffered. Later
// calls to Next return StreamAlreadyEnded unless the stream had already ended.
func (s *Stream) Close() {
	s.end(ErrStreamAlreadyEnded)
	s.buf.Drain()

	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		_ = sub.Close()
	}
}

func (s *Stream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Buffered is the number of events waiting to be read.
func (s *Stream) Buffered() int {
	return s.buf.Len()
}
