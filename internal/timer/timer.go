// Package timer runs the authoritative per-question countdown. The server's
// countdown decides whether an answer made the window; client-rendered timers
// are display only.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Event is a countdown notification. Either a per-second tick (Remaining > 0)
// or the exactly-once expiry (Expired). Question carries the ordinal the
// countdown was started for so consumers can discard stale events from a
// countdown that was replaced.
type Event struct {
	Question  int
	Remaining int
	Expired   bool
}

// Service drives one countdown at a time and posts events through emit.
// In production it runs on a real clock; tests inject a clockwork fake.
type Service struct {
	clock clockwork.Clock
	emit  func(Event)

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewService(clock clockwork.Clock, emit func(Event)) *Service {
	return &Service{
		clock: clock,
		emit:  emit,
	}
}

// Start begins a countdown from budgetSec for the given question ordinal,
// replacing any countdown still running.
func (s *Service) Start(question, budgetSec int) {
	ctx := s.replace()

	go s.run(ctx, question, budgetSec)

	log.Debug().
		Int("question", question).
		Int("budget_sec", budgetSec).
		Msg("countdown started")
}

// Stop cancels the running countdown, if any. No further events are emitted
// for it once Stop returns, apart from events already handed to emit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Service) replace() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	return ctx
}

func (s *Service) run(ctx context.Context, question, budgetSec int) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := budgetSec
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// A tick and the cancellation can be ready together; the tick
			// must lose or a stopped countdown could still fire.
			if ctx.Err() != nil {
				return
			}

			remaining--
			if remaining > 0 {
				s.emit(Event{Question: question, Remaining: remaining})
				continue
			}

			s.emit(Event{Question: question, Expired: true})
			log.Debug().Int("question", question).Msg("countdown expired")
			return
		}
	}
}
