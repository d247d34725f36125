// Package ws accepts websocket clients and bridges them onto the session and
// lobby layers: one read loop per socket, writes through the session
// manager's transport handle.
package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/lowball/card-game-backend/internal/conn"
	"github.com/lowball/card-game-backend/internal/lobby"
	"github.com/lowball/card-game-backend/pkg/types"
)

const (
	writeTimeout   = 3 * time.Second
	maxPayloadSize = 1024
)

// transport adapts a coder/websocket connection to the session layer's
// Transport. The open flag flips exactly once so a transport replaced by a
// reconnect stops accepting writes immediately.
type transport struct {
	c      *websocket.Conn
	closed atomic.Bool
}

func (t *transport) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return t.c.Write(ctx, websocket.MessageText, payload)
}

func (t *transport) Close(code int, reason string) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.c.Close(websocket.StatusCode(code), reason)
}

func (t *transport) Open() bool {
	return !t.closed.Load()
}

// clientAddr prefers the first X-Forwarded-For hop so per-address quotas
// survive a reverse proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler upgrades requests on the websocket endpoint. A "session" query
// parameter resumes an existing session; otherwise a fresh one is minted and
// announced with SESSION_ESTABLISHED.
func Handler(conns *conn.Manager, lobbies *lobby.Manager, originPatterns []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		sock.SetReadLimit(1 << 16)

		t := &transport{c: sock}
		addr := clientAddr(r)
		sessionID := r.URL.Query().Get("session")

		c, err := conns.Admit(t, addr, sessionID)
		if err != nil {
			_ = t.Close(conn.CloseServerBusy, "Too many connections")
			return
		}

		_ = t.WriteJSON(types.SessionEstablished{Type: "SESSION_ESTABLISHED", SessionID: c.SessionID})
		if c.Seated() {
			lobbies.HandleReconnect(c)
		}

		readLoop(r.Context(), t, c, conns, lobbies, log)

		// Only the transport that is still current reports the disconnect; a
		// socket that was replaced by a reconnect must not mark the freshly
		// spliced session as gone.
		_ = t.Close(conn.CloseReplaced, "Connection closed")
		if !c.TransportIs(t) {
			return
		}
		lobbies.HandleDisconnect(c)
		if !c.Seated() {
			conns.Release(c.SessionID)
		}
	}
}

func readLoop(ctx context.Context, t *transport, c *conn.Connection, conns *conn.Manager, lobbies *lobby.Manager, log *zap.Logger) {
	for {
		_, data, err := t.c.Read(ctx)
		if err != nil {
			return
		}
		if !c.TransportIs(t) {
			return
		}

		if !c.Limiter.Consume() {
			if c.Limiter.ShouldDisconnect() {
				log.Warn("disconnecting abusive client",
					zap.String("sessionId", c.SessionID), zap.String("addr", c.Origin()))
				_ = t.Close(conn.CloseRateLimited, "Rate limit exceeded")
				return
			}
			conns.Deliver(c.SessionID, types.NewError(types.ErrRateLimited, "Too many messages, slow down"))
			continue
		}

		if len(data) > maxPayloadSize {
			conns.Deliver(c.SessionID, types.NewError(types.ErrInvalidMessage, "Message too large"))
			continue
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conns.Deliver(c.SessionID, types.NewError(types.ErrInvalidMessage, "Malformed JSON"))
			continue
		}
		if msg.Type == "" {
			conns.Deliver(c.SessionID, types.NewError(types.ErrInvalidMessage, "Missing message type"))
			continue
		}
		msg.Raw = data

		dispatch(c, conns, lobbies, msg)
	}
}

// dispatch routes one parsed message. Anything that is not a fixed lobby
// command is treated as a game action and re-validated by the room's variant.
func dispatch(c *conn.Connection, conns *conn.Manager, lobbies *lobby.Manager, msg types.ClientMessage) {
	if !types.IsLobbyCommand(msg.Type) {
		lobbies.HandleGameAction(c, msg.Raw)
		return
	}

	switch msg.Type {
	case types.MsgPing:
		conns.Deliver(c.SessionID, types.Pong{Type: "PONG"})
	case types.MsgCreateRoom:
		lobbies.CreateRoom(c, msg.PlayerName, msg.GameType)
	case types.MsgJoinRoom:
		lobbies.JoinRoom(c, msg.PlayerName, msg.RoomCode)
	case types.MsgLeaveRoom:
		lobbies.LeaveRoom(c)
	case types.MsgSetReady:
		lobbies.SetReady(c, msg.Ready)
	case types.MsgStartGame:
		lobbies.StartGame(c)
	}
}
