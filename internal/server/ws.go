package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWS runs an interactive prediction session: each selection message
// received yields exactly one prediction (or error) message back, matching
// the one-event-per-user-action flow of interactive clients.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSSessionInc()
	}
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("prediction session opened")

	for {
		var req PredictRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("prediction session ended unexpectedly")
			}
			return
		}

		start := time.Now()
		res, err := s.predict(req)
		if err != nil {
			// Per-prediction failures keep the session alive; the client may
			// retry with corrected input.
			if werr := conn.WriteJSON(ErrorResponse{Error: err.Error(), RequestID: req.RequestID}); werr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(toResponse(res, req.RequestID, time.Since(start))); err != nil {
			return
		}
	}
}
