package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventNewBid       = "new_bid"
	EventEndingSoon   = "ending_soon"
	EventAuctionEnded = "auction_ended"
)

// Event is one live-feed message for an auction's viewers.
type Event struct {
	ID        string    `json:"id"`
	AuctionID uint64    `json:"auction_id"`
	Name      string    `json:"name"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Hub fans auction events out to connected viewers. Delivery is
// best-effort and at-most-once: a subscriber whose buffer is full simply
// misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]map[*Subscription]struct{}
	logger  *zap.Logger
	buffer  int
	dropped uint64
}

type Subscription struct {
	C         <-chan Event
	ch        chan Event
	auctionID uint64
	hub       *Hub
}

func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[uint64]map[*Subscription]struct{}),
		logger: logger,
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(auctionID uint64) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, auctionID: auctionID, hub: h}
	h.mu.Lock()
	set, ok := h.subs[auctionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[auctionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	if set, ok := h.subs[s.auctionID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.auctionID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(auctionID uint64, name string, payload any) {
	ev := Event{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		Name:      name,
		Payload:   payload,
		At:        time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[auctionID] {
		select {
		case sub.ch <- ev:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

// Subscribers reports how many viewers are attached to the auction.
func (h *Hub) Subscribers(auctionID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}

// Dropped reports how many events were discarded on full subscriber buffers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
