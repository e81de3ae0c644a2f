package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"auctionhouse/internal/models"
)

// Store owns the auction, bid and proxy-bid records; no other component
// mutates them directly.
//
// Methods with a Tx suffix must be called inside the callback of InTx and
// receive the transaction handle. Everything a single bid placement or a
// single settlement changes commits atomically through one InTx call. The
// memory implementation ignores the tx argument and serializes InTx
// callers instead; callers must not rely on the handle being non-nil.
type Store interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	CreateAuction(ctx context.Context, a *models.Auction) error
	GetAuction(ctx context.Context, id uint64) (*models.Auction, error)
	ListAuctions(ctx context.Context, params ListAuctionsParams) ([]models.Auction, error)
	CountAuctions(ctx context.Context, params ListAuctionsParams) (int64, error)

	// GetAuctionTx loads the auction inside the transaction; with lock set
	// it takes an exclusive row lock (SELECT ... FOR UPDATE) so concurrent
	// bidders on the same auction queue behind each other.
	GetAuctionTx(ctx context.Context, tx *gorm.DB, id uint64, lock bool) (*models.Auction, error)
	UpdateAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction) error
	// CompareAndSwapAuctionTx conditionally writes currentBid/bidCount and
	// bumps version by 1, but only if the stored version still equals
	// expectedVersion and the auction is still live. Settlement leaves the
	// version untouched, so the status predicate is part of the fence.
	// Returns false without error when the row moved on.
	CompareAndSwapAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction, expectedVersion int64) (bool, error)

	InsertBidTx(ctx context.Context, tx *gorm.DB, b *models.Bid) error
	GetWinningBidTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Bid, error)
	UpdateBidStatusTx(ctx context.Context, tx *gorm.DB, bidID uint64, status models.BidStatus) error
	// MarkOpenBidsLostTx flips every bid still winning or outbid to lost.
	MarkOpenBidsLostTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (int64, error)
	ListBidsByAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error)

	UpsertProxyBid(ctx context.Context, p *models.ProxyBid) error
	GetProxyBid(ctx context.Context, auctionID, bidderID uint64) (*models.ProxyBid, error)
	// ListActiveProxyBids returns active proxy bids on the auction except
	// the excluded bidder's, ordered by descending max amount.
	ListActiveProxyBids(ctx context.Context, auctionID, excludeBidderID uint64) ([]models.ProxyBid, error)
	SetProxyBidCurrentAmount(ctx context.Context, id uint64, amount decimal.Decimal) error
	DeactivateProxyBid(ctx context.Context, id uint64) error
	DeactivateProxyBidsAtOrBelow(ctx context.Context, auctionID uint64, ceiling decimal.Decimal) (int64, error)
	DeactivateProxyBidsTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (int64, error)

	// ListExpiredLiveAuctionIDs selects the settlement candidates. Only IDs
	// come back: the sweeper re-reads each row under lock inside its own
	// transaction, and the status=live filter is what makes re-running the
	// sweep a no-op.
	ListExpiredLiveAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)

	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsByUser(ctx context.Context, userID uint64, limit int) ([]models.Notification, error)

	InsertSweepReport(ctx context.Context, r *models.SweepReport) error
	ListSweepReports(ctx context.Context, limit int) ([]models.SweepReport, error)
}

type ListAuctionsParams struct {
	Status   *models.AuctionStatus
	SellerID *uint64
	// EndingBefore filters live auctions whose end time falls before the
	// given instant; used by the ending-soon announcer.
	EndingBefore *time.Time
	Limit        int
	Offset       int
}
