package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"auctionhouse/internal/bidding"
	"auctionhouse/internal/repository"
)

type BidHandler struct {
	Service *bidding.Service
	Store   repository.Store
	Logger  *zap.Logger
}

func (h *BidHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/auctions/:id/bids", h.placeBid)
	r.POST("/api/v1/auctions/:id/proxy-bids", h.registerProxy)
	r.GET("/api/v1/users/:id/notifications", h.notifications)
}

type placeBidRequest struct {
	BidderID        uint64 `json:"bidder_id" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	ExpectedVersion *int64 `json:"expected_version"`
}

func (h *BidHandler) placeBid(c *gin.Context) {
	auctionID := uint64Param(c, "id")
	if auctionID == 0 {
		Error(c, http.StatusBadRequest, "invalid auction id", nil)
		return
	}
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "amount must be a decimal string", nil)
		return
	}

	res, err := h.Service.PlaceBid(c.Request.Context(), bidding.PlaceBidRequest{
		AuctionID:       auctionID,
		BidderID:        req.BidderID,
		Amount:          amount,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeBiddingError(c, err)
		return
	}
	Ok(c, res, nil)
}

type registerProxyRequest struct {
	BidderID        uint64 `json:"bidder_id" binding:"required"`
	MaxAmount       string `json:"max_amount" binding:"required"`
	IncrementAmount string `json:"increment_amount" binding:"required"`
}

func (h *BidHandler) registerProxy(c *gin.Context) {
	auctionID := uint64Param(c, "id")
	if auctionID == 0 {
		Error(c, http.StatusBadRequest, "invalid auction id", nil)
		return
	}
	var req registerProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	maxAmount, err := decimal.NewFromString(req.MaxAmount)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "max_amount must be a decimal string", nil)
		return
	}
	increment, err := decimal.NewFromString(req.IncrementAmount)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "increment_amount must be a decimal string", nil)
		return
	}

	proxy, opening, err := h.Service.RegisterProxyBid(c.Request.Context(), bidding.RegisterProxyRequest{
		AuctionID:       auctionID,
		BidderID:        req.BidderID,
		MaxAmount:       maxAmount,
		IncrementAmount: increment,
	})
	if err != nil {
		writeBiddingError(c, err)
		return
	}
	Ok(c, gin.H{"proxy_bid": proxy, "opening_bid": opening}, nil)
}

func (h *BidHandler) notifications(c *gin.Context) {
	userID := uint64Param(c, "id")
	if userID == 0 {
		Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	items, err := h.Store.ListNotificationsByUser(c.Request.Context(), userID, limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

// writeBiddingError maps the placement error taxonomy onto transport
// status codes. A too-low bid always reports the current minimum so the
// client can resubmit a valid amount straight away; a conflict after
// retries says "try again" without exposing versioning internals.
func writeBiddingError(c *gin.Context, err error) {
	var rejected *bidding.BidRejectedError
	switch {
	case errors.Is(err, bidding.ErrAuctionNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, bidding.ErrOwnListing):
		Error(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, bidding.ErrAuctionNotActive):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.As(err, &rejected):
		Rejected(c, rejected)
	case errors.Is(err, bidding.ErrInvalidAmount):
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, bidding.ErrConcurrentModification):
		Error(c, http.StatusConflict, "the auction is busy, please try again", nil)
	case errors.Is(err, bidding.ErrTimeout):
		Error(c, http.StatusGatewayTimeout, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
