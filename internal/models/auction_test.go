package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAuction_MinimumBid(t *testing.T) {
	inc := decimal.NewFromInt(5)

	a := &Auction{StartingPrice: decimal.NewFromInt(100), CurrentBid: decimal.NewFromInt(100)}
	assert.True(t, a.MinimumBid(inc).Equal(decimal.NewFromInt(100)))

	a.BidCount = 1
	a.CurrentBid = decimal.NewFromInt(120)
	assert.True(t, a.MinimumBid(inc).Equal(decimal.NewFromInt(125)))
}

func TestAuction_AcceptingBids(t *testing.T) {
	now := time.Now().UTC()
	a := &Auction{
		Status:    AuctionLive,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}

	assert.True(t, a.AcceptingBids(now))
	assert.True(t, a.AcceptingBids(a.StartTime))
	assert.False(t, a.AcceptingBids(a.EndTime))
	assert.False(t, a.AcceptingBids(a.StartTime.Add(-time.Second)))

	a.Status = AuctionUpcoming
	assert.False(t, a.AcceptingBids(now))

	a.Status = AuctionSold
	assert.False(t, a.AcceptingBids(now))
}

func TestAuction_ReserveMet(t *testing.T) {
	a := &Auction{CurrentBid: decimal.NewFromInt(400)}
	assert.True(t, a.ReserveMet())

	reserve := decimal.NewFromInt(500)
	a.ReservePrice = &reserve
	assert.False(t, a.ReserveMet())

	a.CurrentBid = decimal.NewFromInt(500)
	assert.True(t, a.ReserveMet())
}

func TestAuction_Settled(t *testing.T) {
	for status, want := range map[AuctionStatus]bool{
		AuctionUpcoming: false,
		AuctionLive:     false,
		AuctionSold:     true,
		AuctionUnsold:   true,
	} {
		a := &Auction{Status: status}
		assert.Equal(t, want, a.Settled(), string(status))
	}
}

func TestProxyBid_NextBidAndCanBeat(t *testing.T) {
	p := &ProxyBid{
		MaxAmount:       decimal.NewFromInt(200),
		IncrementAmount: decimal.NewFromInt(10),
	}

	assert.True(t, p.CanBeat(decimal.NewFromInt(150)))
	assert.True(t, p.NextBid(decimal.NewFromInt(150)).Equal(decimal.NewFromInt(160)))

	// Capped at the authorized maximum.
	assert.True(t, p.NextBid(decimal.NewFromInt(195)).Equal(decimal.NewFromInt(200)))

	assert.False(t, p.CanBeat(decimal.NewFromInt(200)))
	assert.False(t, p.CanBeat(decimal.NewFromInt(250)))
}
