package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationKind string

const (
	NotifyBidPlaced       NotificationKind = "bid-placed"
	NotifyOutbid          NotificationKind = "outbid"
	NotifyAuctionWon      NotificationKind = "auction-won"
	NotifyAuctionLost     NotificationKind = "auction-lost"
	NotifyNoBids          NotificationKind = "no-bids"
	NotifyAuctionSold     NotificationKind = "auction-sold"
	NotifyPaymentReceived NotificationKind = "payment-received"
)

// Notification is the persisted form of a sink delivery. Writes are
// best-effort: a failed insert is logged and dropped, never surfaced to the
// transaction that produced the event.
type Notification struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`
	UserID    uint64           `gorm:"not null;index"`
	Kind      NotificationKind `gorm:"type:varchar(30);not null;index"`
	Message   string           `gorm:"type:text;not null"`
	Link      string           `gorm:"type:text"`
	Payload   datatypes.JSON   `gorm:"type:jsonb"`
	CreatedAt time.Time        `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Notification) TableName() string {
	return "notifications"
}
