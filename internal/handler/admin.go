package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auctionhouse/internal/repository"
	"auctionhouse/internal/settlement"
)

// AdminHandler exposes the external sweep trigger. The sweep itself is
// idempotent and safe to start from several callers at once; the endpoint
// adds nothing on top of that.
type AdminHandler struct {
	Sweeper *settlement.Sweeper
	Store   repository.Store
	Logger  *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/admin")
	g.POST("/sweep", h.sweep)
	g.GET("/sweeps", h.sweeps)
}

func (h *AdminHandler) sweep(c *gin.Context) {
	summary, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *AdminHandler) sweeps(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	items, err := h.Store.ListSweepReports(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
