package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	StrategyPessimistic = "pessimistic"
	StrategyOptimistic  = "optimistic"
)

type txHandle = *gorm.DB

// Strategy is the concurrency discipline a placement commits under. Both
// implementations uphold the same invariants: at most one winning bid per
// auction and a version bump of exactly 1 per accepted bid; they differ
// only in how they fence concurrent writers.
type Strategy interface {
	Name() string
	Place(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error)
}

// errStaleVersion aborts the optimistic transaction when the CAS missed;
// it never escapes Place.
var errStaleVersion = errors.New("stale auction version")

// pessimisticStrategy serializes all bidders for one auction behind an
// exclusive row lock. No retries: nobody can observe a stale row.
type pessimisticStrategy struct {
	svc *Service
}

func (p *pessimisticStrategy) Name() string { return StrategyPessimistic }

func (p *pessimisticStrategy) Place(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error) {
	s := p.svc
	var result *PlaceBidResult
	err := s.store.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		a, err := s.store.GetAuctionTx(ctx, tx, req.AuctionID, true)
		if err != nil {
			return err
		}
		if err := s.validate(a, req, now); err != nil {
			return err
		}

		bid, outbid, err := s.commitPlacement(ctx, tx, a, req, now)
		if err != nil {
			return err
		}

		a.CurrentBid = req.Amount
		a.BidCount++
		a.Version++
		if err := s.store.UpdateAuctionTx(ctx, tx, a); err != nil {
			return err
		}

		result = &PlaceBidResult{
			Bid:           bid,
			NewCurrentBid: a.CurrentBid,
			NewVersion:    a.Version,
			sellerID:      a.SellerID,
			outbidBidder:  outbid,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// optimisticStrategy reads without a lock and commits through a
// conditional update fenced on the auction version. A missed CAS re-reads,
// recomputes the floor and resubmits, with linearly growing backoff, until
// the retry budget runs out.
type optimisticStrategy struct {
	svc *Service
}

func (o *optimisticStrategy) Name() string { return StrategyOptimistic }

func (o *optimisticStrategy) Place(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error) {
	s := o.svc

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := s.now()
		a, err := s.store.GetAuction(ctx, req.AuctionID)
		if err != nil {
			return nil, err
		}
		if err := s.validate(a, req, now); err != nil {
			return nil, err
		}

		expected := a.Version
		if attempt == 0 && req.ExpectedVersion != nil {
			// Honor the caller's fencing token on the first try; after a
			// miss the loop continues from fresh reads.
			expected = *req.ExpectedVersion
		}

		var result *PlaceBidResult
		err = s.store.InTx(ctx, func(tx *gorm.DB) error {
			next := *a
			next.CurrentBid = req.Amount
			next.BidCount++
			swapped, err := s.store.CompareAndSwapAuctionTx(ctx, tx, &next, expected)
			if err != nil {
				return err
			}
			if !swapped {
				return errStaleVersion
			}

			bid, outbid, err := s.commitPlacement(ctx, tx, &next, req, now)
			if err != nil {
				return err
			}
			result = &PlaceBidResult{
				Bid:           bid,
				NewCurrentBid: next.CurrentBid,
				NewVersion:    next.Version,
				sellerID:      next.SellerID,
				outbidBidder:  outbid,
			}
			return nil
		})
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, errStaleVersion) {
			return nil, err
		}
		if attempt >= s.opts.MaxRetries {
			return nil, fmt.Errorf("%w: gave up after %d attempts under high contention",
				ErrConcurrentModification, attempt+1)
		}

		backoff := s.opts.RetryBackoff * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

var (
	_ Strategy = (*pessimisticStrategy)(nil)
	_ Strategy = (*optimisticStrategy)(nil)
)
