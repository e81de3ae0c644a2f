package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidStatus string

const (
	// BidWinning marks the single standing highest bid of a live auction.
	BidWinning BidStatus = "winning"
	// BidOutbid marks a bid superseded by a later, higher one.
	BidOutbid BidStatus = "outbid"
	// BidWon marks the one bid promoted at settlement.
	BidWon BidStatus = "won"
	// BidLost marks every other bid at settlement.
	BidLost BidStatus = "lost"
)

// Bid rows are append-only: after insertion only Status ever changes.
type Bid struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	AuctionID uint64          `gorm:"not null;index"`
	BidderID  uint64          `gorm:"not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Proxy     bool            `gorm:"not null;default:false"`
	Status    BidStatus       `gorm:"type:varchar(20);not null;index"`
	CreatedAt time.Time       `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Bid) TableName() string {
	return "bids"
}

// Open reports whether the bid has not reached a terminal settlement status.
func (b *Bid) Open() bool {
	return b.Status == BidWinning || b.Status == BidOutbid
}
