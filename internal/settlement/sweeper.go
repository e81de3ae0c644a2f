package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"auctionhouse/internal/broadcast"
	"auctionhouse/internal/config"
	"auctionhouse/internal/models"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/repository"
)

// PaymentStarter kicks off collection from the winning bidder after an
// auction settles sold. The engine only records the payment deadline; the
// gateway owns everything past that.
type PaymentStarter interface {
	StartCollection(ctx context.Context, auctionID, winnerID uint64) error
}

// LoggingPayments is the default gateway stub: it only records that
// collection should begin.
type LoggingPayments struct {
	Logger *zap.Logger
}

func (p *LoggingPayments) StartCollection(ctx context.Context, auctionID, winnerID uint64) error {
	if p.Logger != nil {
		p.Logger.Info("payment collection requested",
			zap.Uint64("auction_id", auctionID),
			zap.Uint64("winner_id", winnerID),
		)
	}
	return nil
}

// errAlreadySettled marks a candidate a concurrent sweep settled first.
var errAlreadySettled = errors.New("auction no longer live")

type Outcome string

const (
	OutcomeSold    Outcome = "sold"
	OutcomeUnsold  Outcome = "unsold"
	OutcomeSkipped Outcome = "skipped"
	OutcomeErrored Outcome = "errored"
)

type AuctionOutcome struct {
	AuctionID uint64  `json:"auction_id"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
}

type Summary struct {
	Sold     int              `json:"sold"`
	Unsold   int              `json:"unsold"`
	Skipped  int              `json:"skipped"`
	Errored  int              `json:"errored"`
	Outcomes []AuctionOutcome `json:"outcomes"`
}

// Sweeper performs the one-time transition of expired auctions out of the
// live state. Candidate selection is query-driven (status=live and
// end_time in the past), each settlement commits in its own transaction
// under the same isolation discipline as bid placement, and the status
// re-check inside that transaction is the only guard against concurrent
// sweeps. There is no in-process flag, so any number of instances may run.
type Sweeper struct {
	Store    repository.Store
	Sink     notify.Sink
	Hub      *broadcast.Hub
	Payments PaymentStarter
	Logger   *zap.Logger
	Config   config.SettlementConfig

	now func() time.Time
}

func NewSweeper(store repository.Store, sink notify.Sink, hub *broadcast.Hub, payments PaymentStarter, logger *zap.Logger, cfg config.SettlementConfig) *Sweeper {
	if cfg.PaymentDueDays <= 0 {
		cfg.PaymentDueDays = 7
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Sweeper{
		Store:    store,
		Sink:     sink,
		Hub:      hub,
		Payments: payments,
		Logger:   logger,
		Config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep settles every expired live auction it can find. A failure on one
// auction never aborts the rest; the per-auction outcomes are collected
// into one summary that is also persisted as a sweep report.
func (s *Sweeper) Sweep(ctx context.Context) (Summary, error) {
	started := s.now()
	var summary Summary

	ids, err := s.Store.ListExpiredLiveAuctionIDs(ctx, started, s.Config.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("list expired auctions: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		outcome := s.settleOne(ctx, id)
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch outcome.Outcome {
		case OutcomeSold:
			summary.Sold++
		case OutcomeUnsold:
			summary.Unsold++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeErrored:
			summary.Errored++
		}
	}

	if len(ids) > 0 {
		s.persistReport(ctx, started, summary)
	}
	if s.Logger != nil && len(ids) > 0 {
		s.Logger.Info("sweep finished",
			zap.Int("candidates", len(ids)),
			zap.Int("sold", summary.Sold),
			zap.Int("unsold", summary.Unsold),
			zap.Int("skipped", summary.Skipped),
			zap.Int("errored", summary.Errored),
		)
	}
	return summary, nil
}

type settledState struct {
	auction *models.Auction
	winner  *models.Bid
	losers  int64
}

func (s *Sweeper) settleOne(ctx context.Context, auctionID uint64) AuctionOutcome {
	var state settledState

	err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		a, err := s.Store.GetAuctionTx(ctx, tx, auctionID, true)
		if err != nil {
			return err
		}
		// Re-check under the lock: another sweep instance may have settled
		// this auction between candidate selection and here.
		if a == nil || a.Status != models.AuctionLive || a.EndTime.After(now) {
			return errAlreadySettled
		}

		winner, err := s.Store.GetWinningBidTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		if winner != nil && a.ReserveMet() {
			a.Status = models.AuctionSold
			a.WinnerID = &winner.BidderID
			due := now.AddDate(0, 0, s.Config.PaymentDueDays)
			a.PaymentDueAt = &due
			a.PaymentRequired = true
			if err := s.Store.UpdateBidStatusTx(ctx, tx, winner.ID, models.BidWon); err != nil {
				return err
			}
			state.winner = winner
		} else {
			a.Status = models.AuctionUnsold
		}

		losers, err := s.Store.MarkOpenBidsLostTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		state.losers = losers

		a.SettledAt = &now
		if err := s.Store.UpdateAuctionTx(ctx, tx, a); err != nil {
			return err
		}
		if _, err := s.Store.DeactivateProxyBidsTx(ctx, tx, auctionID); err != nil {
			return err
		}
		state.auction = a
		return nil
	})

	if errors.Is(err, errAlreadySettled) {
		return AuctionOutcome{AuctionID: auctionID, Outcome: OutcomeSkipped}
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("settlement failed",
				zap.Uint64("auction_id", auctionID), zap.Error(err))
		}
		return AuctionOutcome{AuctionID: auctionID, Outcome: OutcomeErrored, Error: err.Error()}
	}

	s.afterSettlement(ctx, state)
	if state.auction.Status == models.AuctionSold {
		return AuctionOutcome{AuctionID: auctionID, Outcome: OutcomeSold}
	}
	return AuctionOutcome{AuctionID: auctionID, Outcome: OutcomeUnsold}
}

// afterSettlement dispatches the best-effort outcome side effects; they
// can no longer roll the settlement back.
func (s *Sweeper) afterSettlement(ctx context.Context, state settledState) {
	a := state.auction
	link := fmt.Sprintf("/auctions/%d", a.ID)

	if a.Status == models.AuctionSold && state.winner != nil {
		s.Sink.Notify(state.winner.BidderID, models.NotifyAuctionWon,
			fmt.Sprintf("You won %q at %s; payment is due by %s",
				a.Title, a.CurrentBid.StringFixed(2), a.PaymentDueAt.Format(time.RFC3339)), link)
		s.Sink.Notify(a.SellerID, models.NotifyAuctionSold,
			fmt.Sprintf("%q sold for %s", a.Title, a.CurrentBid.StringFixed(2)), link)

		if s.Payments != nil {
			if err := s.Payments.StartCollection(ctx, a.ID, state.winner.BidderID); err != nil && s.Logger != nil {
				s.Logger.Warn("payment collection start failed",
					zap.Uint64("auction_id", a.ID), zap.Error(err))
			}
		}
	} else {
		s.Sink.Notify(a.SellerID, models.NotifyNoBids,
			fmt.Sprintf("%q ended without a sale", a.Title), link)
	}

	s.notifyLosers(ctx, a, state.winner)

	if s.Hub != nil {
		s.Hub.Broadcast(a.ID, broadcast.EventAuctionEnded, map[string]any{
			"auction_id": a.ID,
			"status":     a.Status,
			"final_bid":  a.CurrentBid,
			"winner_id":  a.WinnerID,
		})
	}
}

func (s *Sweeper) notifyLosers(ctx context.Context, a *models.Auction, winner *models.Bid) {
	bids, err := s.Store.ListBidsByAuction(ctx, a.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("listing bids for loser notifications failed",
				zap.Uint64("auction_id", a.ID), zap.Error(err))
		}
		return
	}
	link := fmt.Sprintf("/auctions/%d", a.ID)
	seen := make(map[uint64]struct{})
	for _, b := range bids {
		if winner != nil && b.BidderID == winner.BidderID {
			continue
		}
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		s.Sink.Notify(b.BidderID, models.NotifyAuctionLost,
			fmt.Sprintf("%q has ended; your bid did not win", a.Title), link)
	}
}

func (s *Sweeper) persistReport(ctx context.Context, started time.Time, summary Summary) {
	details, err := json.Marshal(summary.Outcomes)
	if err != nil {
		details = []byte("[]")
	}
	report := &models.SweepReport{
		Sold:       summary.Sold,
		Unsold:     summary.Unsold,
		Skipped:    summary.Skipped,
		Errored:    summary.Errored,
		Details:    datatypes.JSON(details),
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if err := s.Store.InsertSweepReport(ctx, report); err != nil && s.Logger != nil {
		s.Logger.Warn("sweep report insert failed", zap.Error(err))
	}
}
