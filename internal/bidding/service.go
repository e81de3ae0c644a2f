package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"auctionhouse/internal/broadcast"
	"auctionhouse/internal/config"
	"auctionhouse/internal/models"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/repository"
)

type Options struct {
	Strategy     string
	MinIncrement decimal.Decimal
	MaxRetries   int
	RetryBackoff time.Duration
	TxTimeout    time.Duration
}

func OptionsFromConfig(cfg config.BiddingConfig) (Options, error) {
	inc, err := decimal.NewFromString(cfg.MinIncrement)
	if err != nil {
		return Options{}, fmt.Errorf("parse bidding.min_increment %q: %w", cfg.MinIncrement, err)
	}
	if inc.LessThanOrEqual(decimal.Zero) {
		return Options{}, fmt.Errorf("bidding.min_increment must be positive, got %s", inc)
	}
	return Options{
		Strategy:     cfg.Strategy,
		MinIncrement: inc,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		TxTimeout:    cfg.TxTimeout,
	}, nil
}

type PlaceBidRequest struct {
	AuctionID uint64
	BidderID  uint64
	Amount    decimal.Decimal
	// ExpectedVersion is the caller's last-known auction version. Only the
	// optimistic strategy consults it; a mismatch counts as one failed
	// attempt before the internal retry loop takes over with fresh reads.
	ExpectedVersion *int64
	// Proxy marks a cascade- or registration-originated bid. Proxy bids
	// never trigger another cascade round.
	Proxy bool
}

type PlaceBidResult struct {
	Bid           *models.Bid     `json:"bid"`
	NewCurrentBid decimal.Decimal `json:"new_current_bid"`
	NewVersion    int64           `json:"new_version"`

	sellerID     uint64
	outbidBidder *uint64
}

// Service is the bid placement transaction. It validates and commits a
// single bid under contention through the configured strategy, then fires
// the post-commit side effects: notifications, the broadcast event, and
// exactly one proxy cascade round for externally submitted bids.
type Service struct {
	store    repository.Store
	strategy Strategy
	cascade  *Cascade
	sink     notify.Sink
	hub      *broadcast.Hub
	logger   *zap.Logger
	opts     Options

	now func() time.Time
}

func NewService(store repository.Store, sink notify.Sink, hub *broadcast.Hub, logger *zap.Logger, opts Options) (*Service, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 25 * time.Millisecond
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 5 * time.Second
	}
	if opts.MinIncrement.LessThanOrEqual(decimal.Zero) {
		opts.MinIncrement = decimal.NewFromInt(1)
	}

	s := &Service{
		store:  store,
		sink:   sink,
		hub:    hub,
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}

	switch opts.Strategy {
	case StrategyOptimistic:
		s.strategy = &optimisticStrategy{svc: s}
	case StrategyPessimistic, "":
		s.strategy = &pessimisticStrategy{svc: s}
	default:
		return nil, fmt.Errorf("unknown bidding strategy %q", opts.Strategy)
	}

	s.cascade = &Cascade{svc: s}
	return s, nil
}

// StrategyName reports which concurrency strategy the service runs with.
func (s *Service) StrategyName() string {
	return s.strategy.Name()
}

// PlaceBid validates and commits one bid. On success exactly one bid row
// exists for it, the auction's version has moved by exactly 1, and the
// previously winning bid (if any) is flagged outbid.
func (s *Service) PlaceBid(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	res, err := s.strategy.Place(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}

	s.afterPlacement(req, res)

	if !req.Proxy {
		cascadeCtx, cancelCascade := context.WithTimeout(context.Background(), s.opts.TxTimeout)
		defer cancelCascade()
		s.cascade.React(cascadeCtx, req.AuctionID, res.Bid.Amount, req.BidderID)
	}

	return res, nil
}

// validate re-checks every precondition against a freshly read auction row.
// Called with the row lock held (pessimistic) or re-run on every retry
// before the version fence (optimistic).
func (s *Service) validate(a *models.Auction, req PlaceBidRequest, now time.Time) error {
	if a == nil {
		return ErrAuctionNotFound
	}
	if a.SellerID == req.BidderID {
		return ErrOwnListing
	}
	if !a.AcceptingBids(now) {
		return ErrAuctionNotActive
	}
	if min := a.MinimumBid(s.opts.MinIncrement); req.Amount.LessThan(min) {
		return &BidRejectedError{MinimumBid: min}
	}
	return nil
}

// afterPlacement dispatches the best-effort side effects of a committed
// bid. Nothing here can fail the placement.
func (s *Service) afterPlacement(req PlaceBidRequest, res *PlaceBidResult) {
	link := fmt.Sprintf("/auctions/%d", req.AuctionID)

	if res.outbidBidder != nil && *res.outbidBidder != req.BidderID {
		s.sink.Notify(*res.outbidBidder, models.NotifyOutbid,
			fmt.Sprintf("You have been outbid: the price is now %s", res.NewCurrentBid.StringFixed(2)), link)
	}
	s.sink.Notify(res.sellerID, models.NotifyBidPlaced,
		fmt.Sprintf("New bid of %s on your listing", res.NewCurrentBid.StringFixed(2)), link)

	if s.hub != nil {
		s.hub.Broadcast(req.AuctionID, broadcast.EventNewBid, map[string]any{
			"auction_id":  req.AuctionID,
			"amount":      res.NewCurrentBid,
			"bidder_id":   req.BidderID,
			"bid_id":      res.Bid.ID,
			"new_version": res.NewVersion,
			"proxy":       req.Proxy,
		})
	}
}

// commitPlacement performs the writes every strategy shares once its own
// fencing has succeeded: flip the previous winning bid, insert the new one.
// The auction row itself is written by the strategy (plain update under the
// row lock, or the version CAS).
func (s *Service) commitPlacement(ctx context.Context, tx txHandle, a *models.Auction, req PlaceBidRequest, now time.Time) (*models.Bid, *uint64, error) {
	prev, err := s.store.GetWinningBidTx(ctx, tx, a.ID)
	if err != nil {
		return nil, nil, err
	}
	var outbid *uint64
	if prev != nil {
		if err := s.store.UpdateBidStatusTx(ctx, tx, prev.ID, models.BidOutbid); err != nil {
			return nil, nil, err
		}
		outbid = &prev.BidderID
	}

	bid := &models.Bid{
		AuctionID: a.ID,
		BidderID:  req.BidderID,
		Amount:    req.Amount,
		Proxy:     req.Proxy,
		Status:    models.BidWinning,
		CreatedAt: now,
	}
	if err := s.store.InsertBidTx(ctx, tx, bid); err != nil {
		return nil, nil, err
	}
	return bid, outbid, nil
}
