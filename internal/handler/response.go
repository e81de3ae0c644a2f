package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auctionhouse/internal/bidding"
)

// apiResponse is the envelope every endpoint answers with. Meta carries
// endpoint-specific hints: pagination fields on list responses, the
// current minimum bid on a rejected placement.
type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Rejected reports a bid below the current floor. The minimum lands in
// meta so a client can resubmit a valid amount without another read.
func Rejected(c *gin.Context, rejected *bidding.BidRejectedError) {
	Error(c, http.StatusUnprocessableEntity, rejected.Error(), map[string]any{
		"minimum_bid": rejected.MinimumBid.StringFixed(2),
	})
}
