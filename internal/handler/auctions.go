package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"auctionhouse/internal/models"
	"auctionhouse/internal/repository"
)

type AuctionHandler struct {
	Store  repository.Store
	Logger *zap.Logger
}

func (h *AuctionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/auctions")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

type createAuctionRequest struct {
	SellerID      uint64    `json:"seller_id" binding:"required"`
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	StartingPrice string    `json:"starting_price" binding:"required"`
	ReservePrice  *string   `json:"reserve_price"`
	StartTime     time.Time `json:"start_time" binding:"required"`
	EndTime       time.Time `json:"end_time" binding:"required"`
}

func (h *AuctionHandler) create(c *gin.Context) {
	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	starting, err := decimal.NewFromString(req.StartingPrice)
	if err != nil || starting.LessThanOrEqual(decimal.Zero) {
		Error(c, http.StatusUnprocessableEntity, "starting_price must be a positive amount", nil)
		return
	}
	var reserve *decimal.Decimal
	if req.ReservePrice != nil && strings.TrimSpace(*req.ReservePrice) != "" {
		r, err := decimal.NewFromString(*req.ReservePrice)
		if err != nil || r.LessThan(starting) {
			Error(c, http.StatusUnprocessableEntity, "reserve_price must be an amount at or above the starting price", nil)
			return
		}
		reserve = &r
	}
	if !req.EndTime.After(req.StartTime) {
		Error(c, http.StatusUnprocessableEntity, "end_time must be after start_time", nil)
		return
	}

	now := time.Now().UTC()
	status := models.AuctionUpcoming
	if !now.Before(req.StartTime) && now.Before(req.EndTime) {
		status = models.AuctionLive
	}

	a := &models.Auction{
		SellerID:      req.SellerID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: starting,
		ReservePrice:  reserve,
		CurrentBid:    starting,
		Status:        status,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
	}
	if err := h.Store.CreateAuction(c.Request.Context(), a); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, a, nil)
}

func (h *AuctionHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAuctionsParams{Limit: limit, Offset: offset}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status := models.AuctionStatus(v)
		params.Status = &status
	}

	items, err := h.Store.ListAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Store.CountAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *AuctionHandler) get(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	a, err := h.Store.GetAuction(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if a == nil {
		Error(c, http.StatusNotFound, "auction not found", nil)
		return
	}
	bids, err := h.Store.ListBidsByAuction(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"auction": a, "bids": bids}, nil)
}
