// Package bridge carries events from the polling loop to any number of
// consumers. Publish never blocks; every subscriber sees every event in
// publish order unless its backlog overflows.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/google/uuid"
)

const DefaultMaxBacklog = 65536

type Event struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	AttachID uuid.UUID `json:"attach_id"`
	Payload  Payload   `json:"payload"`
}

func (e Event) Kind() Kind {
	return e.Payload.Kind()
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %s %+v", e.Seq, e.Kind(), e.Payload)
}

type Bridge struct {
	mu         sync.Mutex
	seq        uint64
	attachID   uuid.UUID
	subs       map[*Subscription]struct{}
	maxBacklog int
	now        func() time.Time
	log        *logger.Logger
}

func New(maxBacklog int) *Bridge {
	if maxBacklog <= 0 {
		maxBacklog = DefaultMaxBacklog
	}
	return &Bridge{
		subs:       make(map[*Subscription]struct{}),
		maxBacklog: maxBacklog,
		now:        time.Now,
		log:        logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorOrange, "bridge")),
	}
}

// NewAttach starts stamping events with a fresh attach ID and returns it
func (b *Bridge) NewAttach() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attachID = uuid.New()
	return b.attachID
}

// AttachID is uuid.Nil while nothing is attached
func (b *Bridge) AttachID() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attachID
}

// Detach clears the attach ID for events published afterwards
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attachID = uuid.Nil
}

// Publish stamps p and queues it for every subscriber
func (b *Bridge) Publish(p Payload) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev := Event{
		Seq:      b.seq,
		Time:     b.now(),
		AttachID: b.attachID,
		Payload:  p,
	}

	for s := range b.subs {
		s.push(ev)
	}

	b.log.Debugln("publish", ev.String())
	return ev
}

// Seq is the sequence number of the last published event
func (b *Bridge) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Subscribe registers a consumer whose channel holds up to buffer events
// beyond the subscriber's own backlog
func (b *Bridge) Subscribe(name string, buffer int) *Subscription {
	s := newSubscription(b, name, buffer, b.maxBacklog)

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

func (b *Bridge) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Close stops accepting subscribers' events; each channel closes once its backlog drains
func (b *Bridge) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.finish()
	}
}
