// Package live fans newly emitted notifications out to open SSE streams.
package live

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/notification/domain"
)

const DefaultSubscriberBuffer = 16

var ErrHubUnavailable = errors.New("hub_unavailable")

type Hub struct {
	mu               sync.RWMutex
	streams          map[snowflake.ID]*stream
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	subs   map[uint64]chan domain.Notification
	nextID uint64
}

type Subscription struct {
	hub       *Hub
	partnerID snowflake.ID
	id        uint64
	ch        chan domain.Notification
	once      sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[snowflake.ID]*stream),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the message
// and catches up from the list endpoint.
func (h *Hub) Publish(n domain.Notification) {
	if h == nil {
		return
	}
	h.mu.RLock()
	stream := h.streams[n.PartnerID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	subs := make([]chan domain.Notification, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *Hub) Subscribe(partnerID snowflake.ID) (*Subscription, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}
	if partnerID == 0 {
		return nil, domain.ErrInvalidID
	}

	ch := make(chan domain.Notification, h.subscriberBuffer)
	id := h.register(partnerID, ch)

	return &Subscription{hub: h, partnerID: partnerID, id: id, ch: ch}, nil
}

// Subscribers counts open streams for a partner.
func (h *Hub) Subscribers(partnerID snowflake.ID) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	stream := h.streams[partnerID]
	h.mu.RUnlock()
	if stream == nil {
		return 0
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return len(stream.subs)
}

// register holds the hub lock until the channel is in the stream, so a
// concurrent unsubscribe cannot drop the stream in between.
func (h *Hub) register(partnerID snowflake.ID, ch chan domain.Notification) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.streams[partnerID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan domain.Notification)}
		h.streams[partnerID] = current
	}
	current.mu.Lock()
	defer current.mu.Unlock()
	id := current.nextID
	current.nextID++
	current.subs[id] = ch
	return id
}

func (h *Hub) unsubscribe(partnerID snowflake.ID, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stream := h.streams[partnerID]
	if stream == nil {
		return
	}
	stream.mu.Lock()
	delete(stream.subs, id)
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, partnerID)
	}
}

func (s *Subscription) Notifications() <-chan domain.Notification {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.partnerID, s.id)
	})
}
