package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProxyBid is a standing authorization to bid automatically on a bidder's
// behalf up to MaxAmount. At most one active row per bidder per auction.
// Rows are deactivated, never deleted, once they can no longer win or once
// the auction settles.
type ProxyBid struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	AuctionID       uint64          `gorm:"not null;uniqueIndex:idx_proxy_auction_bidder"`
	BidderID        uint64          `gorm:"not null;uniqueIndex:idx_proxy_auction_bidder"`
	MaxAmount       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	IncrementAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CurrentAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Active          bool            `gorm:"not null;default:true;index"`
	CreatedAt       time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ProxyBid) TableName() string {
	return "proxy_bids"
}

// NextBid computes the amount the proxy would bid in response to accepted,
// capped at its ceiling.
func (p *ProxyBid) NextBid(accepted decimal.Decimal) decimal.Decimal {
	return decimal.Min(accepted.Add(p.IncrementAmount), p.MaxAmount)
}

// CanBeat reports whether the proxy is still able to top accepted.
func (p *ProxyBid) CanBeat(accepted decimal.Decimal) bool {
	return p.MaxAmount.GreaterThan(accepted)
}
