package memrepository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
)

func seedAuction(t *testing.T, s *Store, status models.AuctionStatus, end time.Time) *models.Auction {
	t.Helper()
	a := &models.Auction{
		SellerID:      1,
		Title:         "test lot",
		StartingPrice: decimal.NewFromInt(100),
		CurrentBid:    decimal.NewFromInt(100),
		Status:        status,
		StartTime:     end.Add(-time.Hour),
		EndTime:       end,
	}
	require.NoError(t, s.CreateAuction(context.Background(), a))
	return a
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(time.Hour))

	sentinel := errors.New("boom")
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.InsertBidTx(ctx, tx, &models.Bid{
			AuctionID: a.ID, BidderID: 2, Amount: decimal.NewFromInt(110), Status: models.BidWinning,
		}); err != nil {
			return err
		}
		a.CurrentBid = decimal.NewFromInt(110)
		a.BidCount = 1
		if err := s.UpdateAuctionTx(ctx, tx, a); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	bids, err := s.ListBidsByAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, bids)

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBid.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, got.BidCount)
}

func TestInTx_CommitsOnNil(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(time.Hour))

	err := s.InTx(ctx, func(tx *gorm.DB) error {
		return s.InsertBidTx(ctx, tx, &models.Bid{
			AuctionID: a.ID, BidderID: 2, Amount: decimal.NewFromInt(110), Status: models.BidWinning,
		})
	})
	require.NoError(t, err)

	bids, err := s.ListBidsByAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestCompareAndSwapAuctionTx(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(time.Hour))

	next := *a
	next.CurrentBid = decimal.NewFromInt(120)
	next.BidCount = 1

	swapped, err := s.CompareAndSwapAuctionTx(ctx, nil, &next, 0)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.EqualValues(t, 1, next.Version)

	// Stale expectation misses and leaves the row untouched.
	stale := next
	stale.CurrentBid = decimal.NewFromInt(130)
	swapped, err = s.CompareAndSwapAuctionTx(ctx, nil, &stale, 0)
	require.NoError(t, err)
	assert.False(t, swapped)

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Version)
	assert.True(t, got.CurrentBid.Equal(decimal.NewFromInt(120)))
}

func TestCompareAndSwapAuctionTx_MissesOnSettledAuction(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(-time.Minute))

	a.Status = models.AuctionUnsold
	require.NoError(t, s.CreateAuction(ctx, a))

	// Version still matches, but the auction has left the live state.
	next := *a
	next.CurrentBid = decimal.NewFromInt(120)
	next.BidCount = 1
	swapped, err := s.CompareAndSwapAuctionTx(ctx, nil, &next, 0)
	require.NoError(t, err)
	assert.False(t, swapped)

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Version)
	assert.True(t, got.CurrentBid.Equal(decimal.NewFromInt(100)))
}

func TestGetAuction_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(time.Hour))

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	got.CurrentBid = decimal.NewFromInt(999)

	again, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, again.CurrentBid.Equal(decimal.NewFromInt(100)))
}

func TestListExpiredLiveAuctionIDs(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	expired1 := seedAuction(t, s, models.AuctionLive, now.Add(-2*time.Minute))
	expired2 := seedAuction(t, s, models.AuctionLive, now.Add(-time.Minute))
	seedAuction(t, s, models.AuctionLive, now.Add(time.Hour))
	seedAuction(t, s, models.AuctionSold, now.Add(-time.Hour))

	ids, err := s.ListExpiredLiveAuctionIDs(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{expired1.ID, expired2.ID}, ids)

	ids, err = s.ListExpiredLiveAuctionIDs(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{expired1.ID}, ids)
}

func TestUpsertProxyBid_ReplacesByAuctionAndBidder(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(time.Hour))

	first := &models.ProxyBid{
		AuctionID: a.ID, BidderID: 2,
		MaxAmount: decimal.NewFromInt(200), IncrementAmount: decimal.NewFromInt(10),
		Active: true,
	}
	require.NoError(t, s.UpsertProxyBid(ctx, first))

	raised := &models.ProxyBid{
		AuctionID: a.ID, BidderID: 2,
		MaxAmount: decimal.NewFromInt(300), IncrementAmount: decimal.NewFromInt(10),
		Active: true,
	}
	require.NoError(t, s.UpsertProxyBid(ctx, raised))
	assert.Equal(t, first.ID, raised.ID)

	got, err := s.GetProxyBid(ctx, a.ID, 2)
	require.NoError(t, err)
	assert.True(t, got.MaxAmount.Equal(decimal.NewFromInt(300)))
}

func TestListActiveProxyBids_OrdersByMaxDescAndExcludes(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAuction(t, s, models.AuctionLive, time.Now().Add(time.Hour))

	for bidder, max := range map[uint64]int64{2: 200, 3: 500, 4: 300} {
		require.NoError(t, s.UpsertProxyBid(ctx, &models.ProxyBid{
			AuctionID: a.ID, BidderID: bidder,
			MaxAmount: decimal.NewFromInt(max), IncrementAmount: decimal.NewFromInt(10),
			Active: true,
		}))
	}

	items, err := s.ListActiveProxyBids(ctx, a.ID, 4)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.EqualValues(t, 3, items[0].BidderID)
	assert.EqualValues(t, 2, items[1].BidderID)
}

func TestListAuctions_FilterAndPaginate(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	seedAuction(t, s, models.AuctionLive, now.Add(time.Hour))
	seedAuction(t, s, models.AuctionLive, now.Add(2*time.Hour))
	seedAuction(t, s, models.AuctionUnsold, now.Add(-time.Hour))

	live := models.AuctionLive
	items, err := s.ListAuctions(ctx, repository.ListAuctionsParams{Status: &live})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	total, err := s.CountAuctions(ctx, repository.ListAuctionsParams{Status: &live})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	page, err := s.ListAuctions(ctx, repository.ListAuctionsParams{Status: &live, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, items[1].ID, page[0].ID)
}

func TestNotifications_NewestFirstPerUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertNotification(ctx, &models.Notification{
			UserID: 7, Kind: models.NotifyOutbid, Message: "outbid",
		}))
	}
	require.NoError(t, s.InsertNotification(ctx, &models.Notification{
		UserID: 8, Kind: models.NotifyAuctionWon, Message: "won",
	}))

	items, err := s.ListNotificationsByUser(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Greater(t, items[0].ID, items[1].ID)
}
