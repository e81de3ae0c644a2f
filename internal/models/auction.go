package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionUpcoming AuctionStatus = "upcoming"
	AuctionLive     AuctionStatus = "live"
	AuctionSold     AuctionStatus = "sold"
	AuctionUnsold   AuctionStatus = "unsold"
)

type Auction struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	SellerID    uint64 `gorm:"not null;index"`
	Title       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`

	StartingPrice decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	ReservePrice  *decimal.Decimal `gorm:"type:numeric(20,2)"`
	CurrentBid    decimal.Decimal  `gorm:"type:numeric(20,2);not null;default:0"`
	BidCount      int              `gorm:"not null;default:0"`

	// Version is bumped by exactly 1 on every committed bid and is the
	// fencing token for the optimistic placement strategy.
	Version int64 `gorm:"not null;default:0"`

	Status    AuctionStatus `gorm:"type:varchar(20);not null;default:'upcoming';index"`
	StartTime time.Time     `gorm:"type:timestamptz;not null"`
	EndTime   time.Time     `gorm:"type:timestamptz;not null;index"`

	WinnerID        *uint64
	PaymentRequired bool       `gorm:"not null;default:false"`
	PaymentDueAt    *time.Time `gorm:"type:timestamptz"`
	SettledAt       *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Auction) TableName() string {
	return "auctions"
}

// Settled reports whether the auction has left the live state for good.
func (a *Auction) Settled() bool {
	return a.Status == AuctionSold || a.Status == AuctionUnsold
}

// AcceptingBids reports whether a bid submitted at now can be considered
// at all: the auction must be live and now must fall inside [start, end).
func (a *Auction) AcceptingBids(now time.Time) bool {
	if a.Status != AuctionLive {
		return false
	}
	return !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// MinimumBid returns the lowest amount the next bid may carry. Before the
// first bid the floor is the starting price itself; afterwards it is the
// current bid plus the configured increment.
func (a *Auction) MinimumBid(increment decimal.Decimal) decimal.Decimal {
	if a.BidCount == 0 {
		return a.StartingPrice
	}
	return a.CurrentBid.Add(increment)
}

// ReserveMet reports whether the current bid satisfies the reserve price.
// An unset reserve is always met.
func (a *Auction) ReserveMet() bool {
	if a.ReservePrice == nil {
		return true
	}
	return a.CurrentBid.GreaterThanOrEqual(*a.ReservePrice)
}
