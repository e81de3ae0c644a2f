package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"auctionhouse/internal/config"
	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
	memrepository "auctionhouse/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// recordingSink captures notifications for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	UserID uint64
	Kind   models.NotificationKind
}

func (r *recordingSink) Notify(userID uint64, kind models.NotificationKind, message, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{UserID: userID, Kind: kind})
}

func (r *recordingSink) count(kind models.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestSweeper(store repository.Store) (*Sweeper, *recordingSink) {
	sink := &recordingSink{}
	s := NewSweeper(store, sink, nil, &LoggingPayments{}, zap.NewNop(), config.SettlementConfig{
		PaymentDueDays: 7,
		BatchSize:      100,
	})
	return s, sink
}

type seedOpts struct {
	reserve string
	bids    []seedBid
}

type seedBid struct {
	bidderID uint64
	amount   string
	status   models.BidStatus
}

func seedExpiredAuction(t *testing.T, store repository.Store, sellerID uint64, starting string, opts seedOpts) *models.Auction {
	t.Helper()
	ctx := context.Background()
	a := &models.Auction{
		SellerID:      sellerID,
		Title:         "mid-century armchair",
		StartingPrice: dec(starting),
		CurrentBid:    dec(starting),
		Status:        models.AuctionLive,
		StartTime:     time.Now().UTC().Add(-2 * time.Hour),
		EndTime:       time.Now().UTC().Add(-time.Minute),
	}
	if opts.reserve != "" {
		r := dec(opts.reserve)
		a.ReservePrice = &r
	}
	require.NoError(t, store.CreateAuction(ctx, a))

	if len(opts.bids) > 0 {
		require.NoError(t, store.InTx(ctx, func(tx *gorm.DB) error {
			for _, b := range opts.bids {
				bid := &models.Bid{
					AuctionID: a.ID,
					BidderID:  b.bidderID,
					Amount:    dec(b.amount),
					Status:    b.status,
					CreatedAt: time.Now().UTC(),
				}
				if err := store.InsertBidTx(ctx, tx, bid); err != nil {
					return err
				}
			}
			return nil
		}))
		last := opts.bids[len(opts.bids)-1]
		a.CurrentBid = dec(last.amount)
		a.BidCount = len(opts.bids)
		a.Version = int64(len(opts.bids))
		require.NoError(t, store.CreateAuction(ctx, a))
	}
	return a
}

func TestSweep_UnsoldWhenReserveNotMet(t *testing.T) {
	store := memrepository.New()
	sweeper, sink := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{
		reserve: "500",
		bids: []seedBid{
			{bidderID: 2, amount: "300", status: models.BidOutbid},
			{bidderID: 3, amount: "400", status: models.BidWinning},
		},
	})

	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unsold)
	assert.Equal(t, 0, summary.Sold)

	got, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionUnsold, got.Status)
	assert.Nil(t, got.WinnerID)
	assert.False(t, got.PaymentRequired)
	require.NotNil(t, got.SettledAt)

	bids, err := store.ListBidsByAuction(ctx, a.ID)
	require.NoError(t, err)
	for _, b := range bids {
		assert.Equal(t, models.BidLost, b.Status)
	}

	assert.Equal(t, 1, sink.count(models.NotifyNoBids))
	assert.Equal(t, 2, sink.count(models.NotifyAuctionLost))
	assert.Equal(t, 0, sink.count(models.NotifyAuctionWon))
}

func TestSweep_SoldWhenReserveMet(t *testing.T) {
	store := memrepository.New()
	sweeper, sink := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{
		reserve: "500",
		bids: []seedBid{
			{bidderID: 2, amount: "550", status: models.BidOutbid},
			{bidderID: 3, amount: "600", status: models.BidWinning},
		},
	})

	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sold)

	got, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionSold, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.EqualValues(t, 3, *got.WinnerID)
	assert.True(t, got.PaymentRequired)
	require.NotNil(t, got.PaymentDueAt)
	require.NotNil(t, got.SettledAt)
	assert.WithinDuration(t, got.SettledAt.AddDate(0, 0, 7), *got.PaymentDueAt, time.Second)

	bids, err := store.ListBidsByAuction(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, models.BidLost, bids[0].Status)
	assert.Equal(t, models.BidWon, bids[1].Status)

	assert.Equal(t, 1, sink.count(models.NotifyAuctionWon))
	assert.Equal(t, 1, sink.count(models.NotifyAuctionSold))
	assert.Equal(t, 1, sink.count(models.NotifyAuctionLost))
}

func TestSweep_NoReserveSellsAtAnyBid(t *testing.T) {
	store := memrepository.New()
	sweeper, _ := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{
		bids: []seedBid{{bidderID: 2, amount: "100", status: models.BidWinning}},
	})

	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sold)

	got, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionSold, got.Status)
}

func TestSweep_NoBidsGoesUnsold(t *testing.T) {
	store := memrepository.New()
	sweeper, sink := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{})

	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unsold)

	got, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionUnsold, got.Status)
	assert.Equal(t, 1, sink.count(models.NotifyNoBids))
}

func TestSweep_SecondRunFindsNothing(t *testing.T) {
	store := memrepository.New()
	sweeper, sink := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{
		bids: []seedBid{{bidderID: 2, amount: "150", status: models.BidWinning}},
	})

	first, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Sold)
	firstSettled, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	wonBefore := sink.count(models.NotifyAuctionWon)

	second, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Outcomes)

	got, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, firstSettled.SettledAt, got.SettledAt)
	assert.Equal(t, wonBefore, sink.count(models.NotifyAuctionWon))

	reports, err := store.ListSweepReports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestSettleOne_SkipsAlreadySettled(t *testing.T) {
	store := memrepository.New()
	sweeper, _ := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{})
	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	// Candidate picked up by one instance, settled by another: the re-check
	// under the row lock turns it into a skip.
	outcome := sweeper.settleOne(ctx, a.ID)
	assert.Equal(t, OutcomeSkipped, outcome.Outcome)
}

// failUpdateStore fails the final auction write for one specific auction.
type failUpdateStore struct {
	repository.Store
	failID uint64
}

func (s *failUpdateStore) UpdateAuctionTx(ctx context.Context, tx *gorm.DB, a *models.Auction) error {
	if a.ID == s.failID {
		return errors.New("write failed")
	}
	return s.Store.UpdateAuctionTx(ctx, tx, a)
}

func TestSweep_OneFailureDoesNotAbortOthers(t *testing.T) {
	base := memrepository.New()
	ctx := context.Background()

	bad := seedExpiredAuction(t, base, 1, "100", seedOpts{})
	good := seedExpiredAuction(t, base, 1, "100", seedOpts{
		bids: []seedBid{{bidderID: 2, amount: "150", status: models.BidWinning}},
	})

	sweeper, _ := newTestSweeper(&failUpdateStore{Store: base, failID: bad.ID})
	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Sold)

	// The failed settlement rolled back wholesale.
	gotBad, err := base.GetAuction(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionLive, gotBad.Status)
	assert.Nil(t, gotBad.SettledAt)

	gotGood, err := base.GetAuction(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionSold, gotGood.Status)
}

func TestSweep_DeactivatesProxyBids(t *testing.T) {
	store := memrepository.New()
	sweeper, _ := newTestSweeper(store)
	ctx := context.Background()

	a := seedExpiredAuction(t, store, 1, "100", seedOpts{
		bids: []seedBid{{bidderID: 2, amount: "150", status: models.BidWinning}},
	})
	require.NoError(t, store.UpsertProxyBid(ctx, &models.ProxyBid{
		AuctionID:       a.ID,
		BidderID:        3,
		MaxAmount:       dec("400"),
		IncrementAmount: dec("10"),
		Active:          true,
	}))

	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	p, err := store.GetProxyBid(ctx, a.ID, 3)
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestSweep_PersistsReport(t *testing.T) {
	store := memrepository.New()
	sweeper, _ := newTestSweeper(store)
	ctx := context.Background()

	seedExpiredAuction(t, store, 1, "100", seedOpts{})
	seedExpiredAuction(t, store, 1, "100", seedOpts{
		bids: []seedBid{{bidderID: 2, amount: "150", status: models.BidWinning}},
	})

	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	reports, err := store.ListSweepReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Sold)
	assert.Equal(t, 1, reports[0].Unsold)
	assert.NotEmpty(t, reports[0].Details)
}
