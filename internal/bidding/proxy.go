package bidding

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"auctionhouse/internal/models"
)

// Cascade escalates the strongest standing proxy bid after an externally
// submitted bid commits. It runs exactly once per accepted bid: the bid it
// places is tagged as proxy-originated and does not trigger another round,
// so two competing proxies do not duel to their ceilings until the next
// outside bid arrives. That one-shot boundary is a deliberate contract,
// covered by tests.
type Cascade struct {
	svc *Service
}

// React inspects the active proxy bids on the auction and either places
// one escalating bid or retires the proxies that can no longer win.
// Errors from the inner placement are logged and swallowed; the outer
// placement that triggered the cascade has already committed and must not
// be affected.
func (c *Cascade) React(ctx context.Context, auctionID uint64, accepted decimal.Decimal, bidderID uint64) *PlaceBidResult {
	s := c.svc

	proxies, err := s.store.ListActiveProxyBids(ctx, auctionID, bidderID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("cascade: listing proxy bids failed",
				zap.Uint64("auction_id", auctionID), zap.Error(err))
		}
		return nil
	}

	for _, p := range proxies {
		if !p.CanBeat(accepted) {
			continue
		}
		next := p.NextBid(accepted)
		res, err := s.PlaceBid(ctx, PlaceBidRequest{
			AuctionID: auctionID,
			BidderID:  p.BidderID,
			Amount:    next,
			Proxy:     true,
		})
		if err != nil {
			// Another bid may have slipped in between the trigger and this
			// placement; the proxy gets its chance on the next round.
			if s.logger != nil {
				s.logger.Warn("cascade: proxy placement rejected",
					zap.Uint64("auction_id", auctionID),
					zap.Uint64("proxy_bidder_id", p.BidderID),
					zap.String("amount", next.StringFixed(2)),
					zap.Error(err))
			}
			return nil
		}
		if err := s.store.SetProxyBidCurrentAmount(ctx, p.ID, next); err != nil && s.logger != nil {
			s.logger.Warn("cascade: updating proxy amount failed",
				zap.Uint64("proxy_id", p.ID), zap.Error(err))
		}
		return res
	}

	// Nobody can top the accepted amount: retire every proxy at or below it.
	if n, err := s.store.DeactivateProxyBidsAtOrBelow(ctx, auctionID, accepted); err != nil {
		if s.logger != nil {
			s.logger.Warn("cascade: deactivating proxy bids failed",
				zap.Uint64("auction_id", auctionID), zap.Error(err))
		}
	} else if n > 0 && s.logger != nil {
		s.logger.Info("cascade: retired proxy bids",
			zap.Uint64("auction_id", auctionID), zap.Int64("count", n))
	}
	return nil
}

type RegisterProxyRequest struct {
	AuctionID       uint64
	BidderID        uint64
	MaxAmount       decimal.Decimal
	IncrementAmount decimal.Decimal
}

// RegisterProxyBid stores (or raises) a bidder's standing authorization
// and immediately arms it: unless the bidder already holds the winning
// bid, the proxy places the current minimum on their behalf. A failed
// opening bid leaves the registration in place.
func (s *Service) RegisterProxyBid(ctx context.Context, req RegisterProxyRequest) (*models.ProxyBid, *PlaceBidResult, error) {
	if req.MaxAmount.LessThanOrEqual(decimal.Zero) || req.IncrementAmount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrInvalidAmount
	}

	a, err := s.store.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, ErrAuctionNotFound
	}
	if a.SellerID == req.BidderID {
		return nil, nil, ErrOwnListing
	}
	if !a.AcceptingBids(s.now()) {
		return nil, nil, ErrAuctionNotActive
	}
	min := a.MinimumBid(s.opts.MinIncrement)
	if req.MaxAmount.LessThan(min) {
		return nil, nil, &BidRejectedError{MinimumBid: min}
	}

	proxy := &models.ProxyBid{
		AuctionID:       req.AuctionID,
		BidderID:        req.BidderID,
		MaxAmount:       req.MaxAmount,
		IncrementAmount: req.IncrementAmount,
		CurrentAmount:   decimal.Zero,
		Active:          true,
	}
	if err := s.store.UpsertProxyBid(ctx, proxy); err != nil {
		return nil, nil, fmt.Errorf("register proxy bid: %w", err)
	}

	if winner := s.currentWinner(ctx, req.AuctionID); winner != nil && *winner == req.BidderID {
		return proxy, nil, nil
	}

	res, err := s.PlaceBid(ctx, PlaceBidRequest{
		AuctionID: req.AuctionID,
		BidderID:  req.BidderID,
		Amount:    min,
		Proxy:     true,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("proxy opening bid rejected",
				zap.Uint64("auction_id", req.AuctionID),
				zap.Uint64("bidder_id", req.BidderID),
				zap.Error(err))
		}
		return proxy, nil, nil
	}
	if err := s.store.SetProxyBidCurrentAmount(ctx, proxy.ID, min); err != nil && s.logger != nil {
		s.logger.Warn("updating proxy amount failed", zap.Uint64("proxy_id", proxy.ID), zap.Error(err))
	}
	proxy.CurrentAmount = min
	return proxy, res, nil
}

func (s *Service) currentWinner(ctx context.Context, auctionID uint64) *uint64 {
	bids, err := s.store.ListBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil
	}
	for i := range bids {
		if bids[i].Status == models.BidWinning {
			return &bids[i].BidderID
		}
	}
	return nil
}
