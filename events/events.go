// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielhkuo/ballotbridge/models"
)

const EventQueueSize = 64

type EventType string

const (
	TypeVoteRecorded     EventType = "vote.recorded"
	TypePhaseChanged     EventType = "election.phase_changed"
	TypeCandidateDecided EventType = "candidate.decided"
)

type SubscriberID int

type HandlerFunc func(Event)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// VoteRecorded carries no voter identity
type VoteRecorded struct {
	VoteID      string
	ElectionID  string
	CandidateID string
	CastAt      time.Time
}

type PhaseChanged struct {
	ElectionID string
	From       models.Phase
	To         models.Phase
}

type CandidateDecided struct {
	CandidateID string
	ElectionID  string
	Status      models.CandidateStatus
}

// NewEvent stamps the event with at, which publishers take from their
// injected clock
func NewEvent(eventType EventType, data any, at time.Time) Event {
	return Event{
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// Bus fans events out to in-process subscribers. Publish never blocks on a
// slow subscriber: when its queue is full the event is dropped and counted.
type Bus struct {
	mu          sync.Mutex
	subscribers map[EventType]map[SubscriberID]*subscriber
	lastID      SubscriberID
	wg          sync.WaitGroup
	logger      *slog.Logger

	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

// NewBus creates a Bus. A nil registry disables bus metrics.
func NewBus(reg prometheus.Registerer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		subscribers: make(map[EventType]map[SubscriberID]*subscriber),
		logger:      logger,
	}
	if reg != nil {
		factory := promauto.With(reg)
		b.published = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbridge_events_published_total",
			Help: "number of events published, by type",
		}, []string{"type"})
		b.dropped = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbridge_events_dropped_total",
			Help: "number of events dropped for a full subscriber queue, by type",
		}, []string{"type"})
	}
	return b
}

// Subscribe returns a channel receiving events of one type. The channel is
// closed by Unsubscribe or Stop.
func (b *Bus) Subscribe(eventType EventType) (SubscriberID, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	sub := &subscriber{ch: make(chan Event, EventQueueSize)}
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberID]*subscriber)
	}
	b.subscribers[eventType][b.lastID] = sub
	return b.lastID, sub.ch
}

// SubscribeFunc runs fn for every event of one type on its own goroutine
func (b *Bus) SubscribeFunc(eventType EventType, fn HandlerFunc) SubscriberID {
	id, ch := b.Subscribe(eventType)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for evt := range ch {
			fn(evt)
		}
	}()
	return id
}

func (b *Bus) Unsubscribe(eventType EventType, id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[eventType]
	if !ok {
		return
	}
	if sub, ok := subs[id]; ok {
		sub.close()
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(b.subscribers, eventType)
	}
}

// Publish delivers evt to every current subscriber of its type. Safe on a
// nil Bus.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers[evt.Type] {
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("event queue full, dropping event", "type", evt.Type)
			if b.dropped != nil {
				b.dropped.WithLabelValues(string(evt.Type)).Inc()
			}
		}
	}
	if b.published != nil {
		b.published.WithLabelValues(string(evt.Type)).Inc()
	}
}

// Stop closes every subscriber and waits for SubscribeFunc goroutines to
// drain. The Bus stays usable afterwards.
func (b *Bus) Stop() {
	b.mu.Lock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subscribers = make(map[EventType]map[SubscriberID]*subscriber)
	b.mu.Unlock()

	b.wg.Wait()
}

func (s *subscriber) close() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
