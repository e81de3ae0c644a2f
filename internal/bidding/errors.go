package bidding

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Deterministic rejections are returned to the caller as-is; conflict and
// timeout errors are retried internally before being surfaced.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrOwnListing       = errors.New("sellers cannot bid on their own listing")
	ErrAuctionNotActive = errors.New("auction is not accepting bids")
	// ErrConcurrentModification is surfaced once the optimistic strategy
	// has exhausted its retry budget under contention.
	ErrConcurrentModification = errors.New("auction changed concurrently, please try again")
	ErrTimeout       = errors.New("bid transaction timed out")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// BidRejectedError reports a bid below the current floor. MinimumBid is
// always the freshly computed minimum so the client can retry with a valid
// amount immediately.
type BidRejectedError struct {
	MinimumBid decimal.Decimal
}

func (e *BidRejectedError) Error() string {
	return fmt.Sprintf("bid too low: minimum bid is %s", e.MinimumBid.StringFixed(2))
}

// IsRetryable reports whether the caller may usefully resubmit the same
// request after a fresh read.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrTimeout)
}
