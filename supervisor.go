package streamworker

import (
	"context"
	"errors"
	"sort"

	"goa.design/clue/log"
)

// NewSupervisor returns a supervisor that starts handles on b and reports
// how each one ended on a channel holding up to bufferSize reports.
func NewSupervisor(name string, b *Bridge, bufferSize int) *Supervisor {
	return &Supervisor{
		Name:    name,
		bridge:  b,
		handles: make(map[string]*Handle),
		events:  make(chan Report, bufferSize),
	}
}

func (s *Supervisor) Start(ctx context.Context, workerID string, cfg Config, subs ...Subscriber) (*Handle, error) {
	h, err := s.bridge.Start(ctx, workerID, cfg, subs...)
	if err != nil {
		r := newReport(nil, err)
		r.Worker = workerID
		s.report(ctx, r)
		return nil, err
	}

	s.mu.Lock()
	s.handles[h.ID()] = h
	s.mu.Unlock()

	go s.watch(ctx, h)
	return h, nil
}

func (s *Supervisor) watch(ctx context.Context, h *Handle) {
	<-h.Done()

	s.mu.Lock()
	delete(s.handles, h.ID())
	s.mu.Unlock()

	s.report(ctx, newReport(h, h.Err()))
}

func (s *Supervisor) report(ctx context.Context, r Report) {
	select {
	case s.events <- r:
	default:
		log.Warn(ctx, log.KV{K: "msg", V: "report channel full, report dropped"}, log.KV{K: "supervisor", V: s.Name}, log.KV{K: "report", V: r.String()})
	}
}

// Events delivers one report per handle, plus one per failed Start.
func (s *Supervisor) Events() <-chan Report {
	return s.events
}

// Handles returns the live handles ordered by id.
func (s *Supervisor) Handles() []*Handle {
	s.mu.Lock()
	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Stop closes every live handle and waits for them until ctx ends. Handles
// still running at that point are returned as WorkerUnresponsive errors.
func (s *Supervisor) Stop(ctx context.Context) error {
	handles := s.Handles()
	for _, h := range handles {
		h.Close()
	}

	var errs []error
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			errs = append(errs, NewError(KindWorkerUnresponsive, ErrorLevelCritical, h.Worker(), ctx.Err(), "handle %s did not stop", h.ID()))
		}
	}
	return errors.Join(errs...)
}
