package settlement

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"auctionhouse/internal/broadcast"
	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
)

// Announcer broadcasts an ending_soon event once per auction when its end
// time enters the configured window, so connected viewers see the closing
// countdown without polling. The dedupe is per process: a restart or a
// second replica may announce an auction again, which is within the
// at-most-once delivery contract of the broadcast.
type Announcer struct {
	Store  repository.Store
	Hub    *broadcast.Hub
	Logger *zap.Logger
	Window time.Duration

	mu sync.Mutex
	// announced maps auction ID to its end time; entries are evicted once
	// the end time passes so the map stays bounded.
	announced map[uint64]time.Time
}

func NewAnnouncer(store repository.Store, hub *broadcast.Hub, logger *zap.Logger, window time.Duration) *Announcer {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Announcer{
		Store:     store,
		Hub:       hub,
		Logger:    logger,
		Window:    window,
		announced: make(map[uint64]time.Time),
	}
}

func (a *Announcer) Announce(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(a.Window)
	live := models.AuctionLive
	auctions, err := a.Store.ListAuctions(ctx, repository.ListAuctionsParams{
		Status:       &live,
		EndingBefore: &cutoff,
		Limit:        500,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, end := range a.announced {
		if end.Before(now) {
			delete(a.announced, id)
		}
	}
	for _, auc := range auctions {
		if auc.EndTime.Before(now) {
			continue
		}
		if _, done := a.announced[auc.ID]; done {
			continue
		}
		a.announced[auc.ID] = auc.EndTime
		a.Hub.Broadcast(auc.ID, broadcast.EventEndingSoon, map[string]any{
			"auction_id":  auc.ID,
			"ends_at":     auc.EndTime,
			"current_bid": auc.CurrentBid,
		})
		if a.Logger != nil {
			a.Logger.Debug("ending soon announced", zap.Uint64("auction_id", auc.ID))
		}
	}
	return nil
}
