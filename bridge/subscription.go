package bridge

import (
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Subscription is one consumer. Events wait in a FIFO backlog capped at the
// bridge maximum and a pump goroutine moves them into the channel.
type Subscription struct {
	name   string
	bridge *Bridge

	mu       sync.Mutex
	backlog  []Event
	max      int
	dropped  uint64
	finished bool

	wake chan struct{}
	done chan struct{}
	out  chan Event
	once sync.Once

	log *logger.Logger
}

func newSubscription(b *Bridge, name string, buffer, maxBacklog int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	return &Subscription{
		name:   name,
		bridge: b,
		max:    maxBacklog,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event, buffer),
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorOrange, "bridge-"+name)),
	}
}

func (s *Subscription) Name() string {
	return s.name
}

// Events is closed after Close, or after Bridge.Close once the backlog is delivered
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Dropped counts events discarded because the backlog was full
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Pending is the number of events not yet handed to the channel
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

// push appends ev, dropping the oldest queued event when the backlog is full
func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	if s.max > 0 && len(s.backlog) >= s.max {
		old := s.backlog[0]
		s.backlog[0] = Event{}
		s.backlog = s.backlog[1:]
		s.dropped++
		s.log.Warn(fmt.Sprintf("backlog full (%d), dropped event #%d", s.max, old.Seq))
	}
	s.backlog = append(s.backlog, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			finished := s.finished
			s.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.backlog[0]
		s.backlog[0] = Event{}
		s.backlog = s.backlog[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

// finish delivers what is queued, then closes the channel
func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close unsubscribes and discards anything still queued
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bridge.remove(s)
		s.mu.Lock()
		s.finished = true
		s.backlog = nil
		s.mu.Unlock()
		close(s.done)
	})
}
