package gormrepository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
)

// Store is the postgres-backed auction record store. Placement and
// settlement transactions run through InTx; the row lock taken by
// GetAuctionTx(lock=true) is the single point of mutual exclusion per
// auction.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- auctions ---------------------------------------------------------------

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) error {
	if s == nil || s.db == nil || a == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) GetAuction(ctx context.Context, id uint64) (*models.Auction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var a models.Auction
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]models.Auction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyAuctionFilters(s.db.WithContext(ctx).Model(&models.Auction{}), params)
	limit := normalizeLimit(params.Limit, 100)
	var items []models.Auction
	if err := query.Order("end_time asc").Limit(limit).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAuctions(ctx context.Context, params repository.ListAuctionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyAuctionFilters(s.db.WithContext(ctx).Model(&models.Auction{}), params).Count(&total).Error
	return total, err
}

func applyAuctionFilters(query *gorm.DB, params repository.ListAuctionsParams) *gorm.DB {
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.EndingBefore != nil {
		query = query.Where("end_time < ?", *params.EndingBefore)
	}
	return query
}

func (s *Store) GetAuctionTx(ctx context.Context, tx *gorm.DB, id uint64, lock bool) (*models.Auction, error) {
	if s == nil || tx == nil {
		return nil, nil
	}
	query := tx.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a models.Auction
	err := query.First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction) error {
	if s == nil || tx == nil || a == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(a).Error
}

func (s *Store) CompareAndSwapAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction, expectedVersion int64) (bool, error) {
	if s == nil || tx == nil || a == nil {
		return false, nil
	}
	// The status predicate fences against settlement as well: the sweeper
	// moves an auction out of live without touching version, so version
	// alone cannot tell a bid the auction has closed underneath it.
	res := tx.WithContext(ctx).Model(&models.Auction{}).
		Where("id = ? AND version = ? AND status = ?", a.ID, expectedVersion, models.AuctionLive).
		Updates(map[string]any{
			"current_bid": a.CurrentBid,
			"bid_count":   a.BidCount,
			"version":     expectedVersion + 1,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		a.Version = expectedVersion + 1
		return true, nil
	}
	return false, nil
}

// --- bids -------------------------------------------------------------------

func (s *Store) InsertBidTx(ctx context.Context, tx *gorm.DB, b *models.Bid) error {
	if s == nil || tx == nil || b == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(b).Error
}

func (s *Store) GetWinningBidTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Bid, error) {
	if s == nil || tx == nil {
		return nil, nil
	}
	var b models.Bid
	err := tx.WithContext(ctx).
		Where("auction_id = ? AND status = ?", auctionID, models.BidWinning).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) UpdateBidStatusTx(ctx context.Context, tx *gorm.DB, bidID uint64, status models.BidStatus) error {
	if s == nil || tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.Bid{}).
		Where("id = ?", bidID).
		Update("status", status).Error
}

func (s *Store) MarkOpenBidsLostTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (int64, error) {
	if s == nil || tx == nil {
		return 0, nil
	}
	res := tx.WithContext(ctx).Model(&models.Bid{}).
		Where("auction_id = ? AND status IN ?", auctionID, []models.BidStatus{models.BidWinning, models.BidOutbid}).
		Update("status", models.BidLost)
	return res.RowsAffected, res.Error
}

func (s *Store) ListBidsByAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- proxy bids -------------------------------------------------------------

func (s *Store) UpsertProxyBid(ctx context.Context, p *models.ProxyBid) error {
	if s == nil || s.db == nil || p == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "auction_id"}, {Name: "bidder_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"max_amount",
			"increment_amount",
			"current_amount",
			"active",
			"updated_at",
		}),
	}).Create(p).Error
}

func (s *Store) GetProxyBid(ctx context.Context, auctionID, bidderID uint64) (*models.ProxyBid, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var p models.ProxyBid
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListActiveProxyBids(ctx context.Context, auctionID, excludeBidderID uint64) ([]models.ProxyBid, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ProxyBid
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND active = ? AND bidder_id <> ?", auctionID, true, excludeBidderID).
		Order("max_amount desc, created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SetProxyBidCurrentAmount(ctx context.Context, id uint64, amount decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.ProxyBid{}).
		Where("id = ?", id).
		Update("current_amount", amount).Error
}

func (s *Store) DeactivateProxyBid(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.ProxyBid{}).
		Where("id = ?", id).
		Update("active", false).Error
}

func (s *Store) DeactivateProxyBidsAtOrBelow(ctx context.Context, auctionID uint64, ceiling decimal.Decimal) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.ProxyBid{}).
		Where("auction_id = ? AND active = ? AND max_amount <= ?", auctionID, true, ceiling).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (s *Store) DeactivateProxyBidsTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (int64, error) {
	if s == nil || tx == nil {
		return 0, nil
	}
	res := tx.WithContext(ctx).Model(&models.ProxyBid{}).
		Where("auction_id = ? AND active = ?", auctionID, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}

// --- settlement -------------------------------------------------------------

func (s *Store) ListExpiredLiveAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 200)
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ? AND end_time <= ?", models.AuctionLive, now).
		Order("end_time asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- notifications & reports ------------------------------------------------

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	if s == nil || s.db == nil || n == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) ListNotificationsByUser(ctx context.Context, userID uint64, limit int) ([]models.Notification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 100)
	var items []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertSweepReport(ctx context.Context, r *models.SweepReport) error {
	if s == nil || s.db == nil || r == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) ListSweepReports(ctx context.Context, limit int) ([]models.SweepReport, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 50)
	var items []models.SweepReport
	err := s.db.WithContext(ctx).
		Order("finished_at desc, id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
