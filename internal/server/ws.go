package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fx-backtest-lab/internal/domain"
)

// Streaming cadence and websocket deadlines.
const (
	streamInterval = time.Second
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy is enforced upstream when the lab runs behind a
	// gateway; the API itself accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// statusUpdate is one websocket status frame.
type statusUpdate struct {
	SessionID   string               `json:"session_id"`
	Status      domain.SessionStatus `json:"status"`
	TotalTrades int                  `json:"total_trades"`
	NetPnL      float64              `json:"net_pnl"`
	Terminal    bool                 `json:"terminal"`
}

// handleStream pushes session status frames until the session reaches a
// terminal state or the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.statusOf(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		session, err := s.statusOf(r.Context(), id)
		if err != nil {
			return
		}

		update := statusUpdate{
			SessionID:   session.ID,
			Status:      session.Status,
			TotalTrades: session.Summary.TotalTrades,
			NetPnL:      session.Summary.NetPnL,
			Terminal:    session.Terminal(),
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(update); err != nil {
			return
		}
		if update.Terminal {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(session.Status)))
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
