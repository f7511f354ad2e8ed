package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", c.id).Msg("writePump ctx done")
			c.Close()
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", c.id).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", c.id).Msg("readPump closing")
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var msg router.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch msg.ID {
	case "ping":
		ctl.handlePing(c)
		return
	case "whoami":
		ctl.handleWhoAmI(c)
		return
	}

	if !ctl.limiter.Allow(c.user) {
		log.Warn().Str("module", "signal").Str("user", string(c.user)).Msg("rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	msg.ConnectionID = c.id
	msg.UserID = c.user
	if err := ctl.router.Dispatch(ctx, msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("dispatch")
		ctl.sendError(c, "dispatch_failed")
	}
}

// ResponseLoop writes every router response to the connection it names.
// It returns when responses is closed or ctx ends.
func (ctl *SignalWSController) ResponseLoop(ctx context.Context, responses <-chan router.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-responses:
			if !ok {
				return
			}
			c, ok := ctl.lookup(msg.ConnectionID)
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", msg.ConnectionID).Msg("response for unknown connection")
				continue
			}
			ctl.sendJSON(c, msg)
		}
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, reason string) {
	ctl.sendJSON(c, router.Message{ID: router.ActionError, Message: reason})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	err = c.TrySend(b)
	c.mu.Lock()
	if err == nil {
		c.dropped = 0
		c.mu.Unlock()
		return
	}
	c.dropped++
	dropped := c.dropped
	c.mu.Unlock()
	if !errors.Is(err, ErrBackpressure) || ctl.policy == nil {
		return
	}
	if ctl.policy.OnBackPressure(c.id, dropped) == app.KickMember {
		log.Warn().Str("module", "signal").Str("conn", c.id).Int("dropped", dropped).Msg("slow client kicked")
		c.Close()
	}
}
