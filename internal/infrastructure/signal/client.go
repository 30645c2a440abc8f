package signal

import (
	"time"

	"camsignal/internal/core/domain"
	apperrors "camsignal/pkg/errors"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type client struct {
	id       domain.ConnID
	deviceID string
	conn     *websocket.Conn
	send     chan []byte
	limiter  *rate.Limiter
	server   *WebSocketServer
}

func (c *client) readPump() {
	s := c.server
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
		if err := s.sink.Submit(s.ctx, domain.Disconnected{From: c.id}); err != nil {
			s.logger.Warnw("disconnect not delivered", "conn_id", c.id, "error", err)
		}
		s.logger.Infow("websocket disconnected", "conn_id", c.id)
		s.wg.Done()
	}()

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading message", "conn_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

		if msgType != websocket.TextMessage {
			s.sendError(c.id, apperrors.NewInvalidInputError("only text frames are accepted"))
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			s.sendError(c.id, apperrors.NewRateLimitError())
			continue
		}

		ev, err := parseEvent(c.id, data)
		if err != nil {
			s.logger.Debugw("rejected message", "conn_id", c.id, "error", err)
			s.sendError(c.id, err)
			continue
		}
		if err := s.sink.Submit(s.ctx, ev); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	s := c.server
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
