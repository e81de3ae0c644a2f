package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request and streams the auction's events until the
// viewer disconnects or the request context ends.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, auctionID uint64, readLimit int64) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Viewers only listen; the read pump exists to notice the close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	sub := h.Subscribe(auctionID)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.C:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}
