package memrepository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
)

// Store is a concurrency-safe in-memory implementation of repository.Store,
// used by tests and by the memory db driver in local development.
//
// InTx serializes writers under one mutex, which gives the same guarantee
// the postgres row lock gives per auction, just coarser. A snapshot taken
// at transaction start is restored when the callback returns an error, so
// failed placements and settlements roll back like their SQL counterparts.
// Tx-suffixed methods never lock; they rely on the InTx caller holding the
// mutex and ignore the nil transaction handle.
type Store struct {
	mu sync.Mutex

	auctions      map[uint64]models.Auction
	bids          map[uint64]models.Bid
	proxies       map[uint64]models.ProxyBid
	notifications []models.Notification
	reports       []models.SweepReport

	nextAuctionID uint64
	nextBidID     uint64
	nextProxyID   uint64
	nextNotifyID  uint64
	nextReportID  uint64
}

func New() *Store {
	return &Store{
		auctions: make(map[uint64]models.Auction),
		bids:     make(map[uint64]models.Bid),
		proxies:  make(map[uint64]models.ProxyBid),
	}
}

var _ repository.Store = (*Store)(nil)

type snapshot struct {
	auctions map[uint64]models.Auction
	bids     map[uint64]models.Bid
	proxies  map[uint64]models.ProxyBid
}

func (s *Store) take() snapshot {
	snap := snapshot{
		auctions: make(map[uint64]models.Auction, len(s.auctions)),
		bids:     make(map[uint64]models.Bid, len(s.bids)),
		proxies:  make(map[uint64]models.ProxyBid, len(s.proxies)),
	}
	for k, v := range s.auctions {
		snap.auctions[k] = v
	}
	for k, v := range s.bids {
		snap.bids[k] = v
	}
	for k, v := range s.proxies {
		snap.proxies[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.auctions = snap.auctions
	s.bids = snap.bids
	s.proxies = snap.proxies
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.take()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- auctions ---------------------------------------------------------------

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextAuctionID++
		a.ID = s.nextAuctionID
	} else if a.ID > s.nextAuctionID {
		s.nextAuctionID = a.ID
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.auctions[a.ID] = *a
	return nil
}

func (s *Store) GetAuction(ctx context.Context, id uint64) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAuction(id), nil
}

func (s *Store) getAuction(id uint64) *models.Auction {
	a, ok := s.auctions[id]
	if !ok {
		return nil
	}
	return &a
}

func (s *Store) ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.filterAuctions(params)
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

func (s *Store) CountAuctions(ctx context.Context, params repository.ListAuctionsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filterAuctions(params))), nil
}

func (s *Store) filterAuctions(params repository.ListAuctionsParams) []models.Auction {
	var items []models.Auction
	for _, a := range s.auctions {
		if params.Status != nil && a.Status != *params.Status {
			continue
		}
		if params.SellerID != nil && a.SellerID != *params.SellerID {
			continue
		}
		if params.EndingBefore != nil && !a.EndTime.Before(*params.EndingBefore) {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].EndTime.Equal(items[j].EndTime) {
			return items[i].ID < items[j].ID
		}
		return items[i].EndTime.Before(items[j].EndTime)
	})
	return items
}

func (s *Store) GetAuctionTx(ctx context.Context, tx *gorm.DB, id uint64, lock bool) (*models.Auction, error) {
	return s.getAuction(id), nil
}

func (s *Store) UpdateAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction) error {
	if _, ok := s.auctions[a.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	s.auctions[a.ID] = *a
	return nil
}

func (s *Store) CompareAndSwapAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction, expectedVersion int64) (bool, error) {
	stored, ok := s.auctions[a.ID]
	if !ok || stored.Version != expectedVersion || stored.Status != models.AuctionLive {
		return false, nil
	}
	stored.CurrentBid = a.CurrentBid
	stored.BidCount = a.BidCount
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now().UTC()
	s.auctions[a.ID] = stored
	a.Version = stored.Version
	return true, nil
}

// --- bids -------------------------------------------------------------------

func (s *Store) InsertBidTx(ctx context.Context, tx *gorm.DB, b *models.Bid) error {
	s.nextBidID++
	b.ID = s.nextBidID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	s.bids[b.ID] = *b
	return nil
}

func (s *Store) GetWinningBidTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Bid, error) {
	for _, b := range s.bids {
		if b.AuctionID == auctionID && b.Status == models.BidWinning {
			bid := b
			return &bid, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateBidStatusTx(ctx context.Context, tx *gorm.DB, bidID uint64, status models.BidStatus) error {
	b, ok := s.bids[bidID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Status = status
	s.bids[bidID] = b
	return nil
}

func (s *Store) MarkOpenBidsLostTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (int64, error) {
	var n int64
	for id, b := range s.bids {
		if b.AuctionID == auctionID && b.Open() {
			b.Status = models.BidLost
			s.bids[id] = b
			n++
		}
	}
	return n, nil
}

func (s *Store) ListBidsByAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Bid
	for _, b := range s.bids {
		if b.AuctionID == auctionID {
			items = append(items, b)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// --- proxy bids -------------------------------------------------------------

func (s *Store) UpsertProxyBid(ctx context.Context, p *models.ProxyBid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range s.proxies {
		if existing.AuctionID == p.AuctionID && existing.BidderID == p.BidderID {
			p.ID = id
			p.CreatedAt = existing.CreatedAt
			p.UpdatedAt = now
			s.proxies[id] = *p
			return nil
		}
	}
	s.nextProxyID++
	p.ID = s.nextProxyID
	p.CreatedAt = now
	p.UpdatedAt = now
	s.proxies[p.ID] = *p
	return nil
}

func (s *Store) GetProxyBid(ctx context.Context, auctionID, bidderID uint64) (*models.ProxyBid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.proxies {
		if p.AuctionID == auctionID && p.BidderID == bidderID {
			proxy := p
			return &proxy, nil
		}
	}
	return nil, nil
}

func (s *Store) ListActiveProxyBids(ctx context.Context, auctionID, excludeBidderID uint64) ([]models.ProxyBid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.ProxyBid
	for _, p := range s.proxies {
		if p.AuctionID == auctionID && p.Active && p.BidderID != excludeBidderID {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].MaxAmount.Equal(items[j].MaxAmount) {
			return items[i].ID < items[j].ID
		}
		return items[i].MaxAmount.GreaterThan(items[j].MaxAmount)
	})
	return items, nil
}

func (s *Store) SetProxyBidCurrentAmount(ctx context.Context, id uint64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proxies[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.CurrentAmount = amount
	p.UpdatedAt = time.Now().UTC()
	s.proxies[id] = p
	return nil
}

func (s *Store) DeactivateProxyBid(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proxies[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	s.proxies[id] = p
	return nil
}

func (s *Store) DeactivateProxyBidsAtOrBelow(ctx context.Context, auctionID uint64, ceiling decimal.Decimal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.proxies {
		if p.AuctionID == auctionID && p.Active && p.MaxAmount.LessThanOrEqual(ceiling) {
			p.Active = false
			p.UpdatedAt = time.Now().UTC()
			s.proxies[id] = p
			n++
		}
	}
	return n, nil
}

func (s *Store) DeactivateProxyBidsTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (int64, error) {
	var n int64
	for id, p := range s.proxies {
		if p.AuctionID == auctionID && p.Active {
			p.Active = false
			s.proxies[id] = p
			n++
		}
	}
	return n, nil
}

// --- settlement -------------------------------------------------------------

func (s *Store) ListExpiredLiveAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 200
	}
	type candidate struct {
		id  uint64
		end time.Time
	}
	var found []candidate
	for _, a := range s.auctions {
		if a.Status == models.AuctionLive && !a.EndTime.After(now) {
			found = append(found, candidate{id: a.ID, end: a.EndTime})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].end.Equal(found[j].end) {
			return found[i].id < found[j].id
		}
		return found[i].end.Before(found[j].end)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	ids := make([]uint64, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.id)
	}
	return ids, nil
}

// --- notifications & reports ------------------------------------------------

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNotifyID++
	n.ID = s.nextNotifyID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotificationsByUser(ctx context.Context, userID uint64, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var items []models.Notification
	for i := len(s.notifications) - 1; i >= 0 && len(items) < limit; i-- {
		if s.notifications[i].UserID == userID {
			items = append(items, s.notifications[i])
		}
	}
	return items, nil
}

func (s *Store) InsertSweepReport(ctx context.Context, r *models.SweepReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReportID++
	r.ID = s.nextReportID
	s.reports = append(s.reports, *r)
	return nil
}

func (s *Store) ListSweepReports(ctx context.Context, limit int) ([]models.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var items []models.SweepReport
	for i := len(s.reports) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, s.reports[i])
	}
	return items, nil
}
