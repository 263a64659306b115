package handlers

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const streamWriteTimeout = 10 * time.Second

// streamMessage is one frame of the valuation stream.
type streamMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// HandleValuationStream handles GET /api/portfolios/{portfolioId}/valuation/stream.
// It upgrades to a websocket and pushes a valuation immediately and then on
// every stream interval until the client goes away.
func (h *Handler) HandleValuationStream(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Client messages are ignored; CloseRead cancels ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	log := h.log.With().Str("portfolio_id", id).Logger()
	log.Debug().Msg("Valuation stream opened")

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		if err := h.pushValuation(ctx, conn, id); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				log.Debug().Msg("Valuation stream closed by client")
			} else {
				log.Warn().Err(err).Msg("Valuation stream write failed")
			}
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushValuation(ctx context.Context, conn *websocket.Conn, portfolioID string) error {
	msg := streamMessage{
		Type:      "valuation",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	v, err := h.engine.Valuation(ctx, portfolioID, false)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg.Type = "error"
		msg.Error = err.Error()
	} else {
		msg.Data = v
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
