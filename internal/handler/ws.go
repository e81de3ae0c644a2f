package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auctionhouse/internal/broadcast"
	"auctionhouse/internal/repository"
)

type LiveFeedHandler struct {
	Hub       *broadcast.Hub
	Store     repository.Store
	ReadLimit int64
}

func (h *LiveFeedHandler) Register(r *gin.Engine) {
	r.GET("/ws/auctions/:id", h.serve)
}

func (h *LiveFeedHandler) serve(c *gin.Context) {
	auctionID := uint64Param(c, "id")
	if auctionID == 0 {
		Error(c, http.StatusBadRequest, "invalid auction id", nil)
		return
	}
	a, err := h.Store.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if a == nil {
		Error(c, http.StatusNotFound, "auction not found", nil)
		return
	}
	h.Hub.ServeWS(c.Writer, c.Request, auctionID, h.ReadLimit)
}
