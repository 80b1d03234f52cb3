package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/firasmosbehi/microservice-chatapp/internal/app"
	"github.com/firasmosbehi/microservice-chatapp/internal/config"
	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
	"github.com/firasmosbehi/microservice-chatapp/internal/protocol"
)

// Controller owns the streaming endpoint: handshake, auth window,
// protocol dispatch and the transport pumps.
type Controller struct {
	Coord *app.Coordinator
	Cfg   *config.Config
}

func NewController(coord *app.Coordinator, cfg *config.Config) *Controller {
	return &Controller{Coord: coord, Cfg: cfg}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bearerToken extracts a credential presented at upgrade time, either
// an Authorization header or a token query parameter (browser
// WebSocket clients cannot set headers).
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// HandleWS accepts one streaming connection. A credential presented at
// upgrade authenticates immediately; otherwise the session has the
// configured auth window to send an auth frame before it is closed.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		socket.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := newWSConn(socket, ctl.Cfg.SendBuffer)
	sess := app.NewSession(core.ConnID(uuid.NewString()), conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Coord.Registry.Bind(sess, cancel)
	log.Info().Str("module", "ws").Str("conn", string(sess.ID)).Msg("new streaming connection")

	go ctl.writePump(ctx, conn)

	if token := bearerToken(c); token != "" {
		ctl.authenticate(ctx, sess, conn, token)
	} else {
		ctl.startAuthTimer(sess, conn)
	}

	go ctl.readPump(ctx, sess, conn)
}

// startAuthTimer closes sessions that never present a credential.
func (ctl *Controller) startAuthTimer(sess *app.Session, conn *wsConn) {
	timeout := ctl.Cfg.AuthTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	time.AfterFunc(timeout, func() {
		if _, authed := sess.Principal(); authed {
			return
		}
		if sess.State() == app.StateClosed {
			return
		}
		log.Warn().Str("module", "ws").Str("conn", string(sess.ID)).Msg("auth window expired")
		_ = conn.TrySend(protocol.Error(domain.ErrorCode(domain.ErrAuthTimeout), "authentication timed out"))
		ctl.Coord.Registry.Cancel(sess.ID)
	})
}

// authenticate runs the handshake; failure is terminal for the session.
func (ctl *Controller) authenticate(ctx context.Context, sess *app.Session, conn *wsConn, token string) {
	principal, err := ctl.Coord.Authenticate(ctx, sess, token)
	if err != nil {
		_ = conn.TrySend(protocol.Error(domain.ErrorCode(err), "invalid credential"))
		ctl.Coord.Registry.Cancel(sess.ID)
		return
	}
	_ = conn.TrySend(protocol.Welcome(principal))
}

func (ctl *Controller) handleFrame(ctx context.Context, sess *app.Session, conn *wsConn, data []byte) {
	msgType, err := protocol.ParseEnvelope(data)
	if err != nil {
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "invalid json"))
		return
	}

	// Before the handshake only auth and ping are accepted; anything
	// else fails without advancing session state.
	if _, authed := sess.Principal(); !authed && msgType != protocol.TypeAuth && msgType != protocol.TypePing {
		_ = conn.TrySend(protocol.Error(domain.ErrorCode(domain.ErrUnauthenticated), "authenticate first"))
		return
	}

	switch msgType {
	case protocol.TypeAuth:
		ctl.handleAuth(ctx, sess, conn, data)
	case protocol.TypeJoin:
		ctl.handleJoin(ctx, sess, conn, data)
	case protocol.TypeLeave:
		ctl.handleLeave(sess, conn)
	case protocol.TypeSend:
		ctl.handleSend(ctx, sess, conn, data)
	case protocol.TypeTyping:
		ctl.handleTyping(sess, conn, data)
	case protocol.TypePing:
		_ = conn.TrySend(protocol.Pong())
	default:
		log.Warn().Str("module", "ws").Str("type", msgType).Msg("unknown message type")
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "unknown message type: "+msgType))
	}
}

func (ctl *Controller) handleAuth(ctx context.Context, sess *app.Session, conn *wsConn, data []byte) {
	if _, authed := sess.Principal(); authed {
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "already authenticated"))
		return
	}
	var p protocol.AuthPayload
	if err := protocol.Decode(data, &p); err != nil {
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "bad auth payload"))
		return
	}
	ctl.authenticate(ctx, sess, conn, p.Token)
}

func (ctl *Controller) handleJoin(ctx context.Context, sess *app.Session, conn *wsConn, data []byte) {
	var p protocol.JoinPayload
	if err := protocol.Decode(data, &p); err != nil || p.RoomID == "" {
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "bad join payload"))
		return
	}
	room, _, err := ctl.Coord.Join(ctx, sess, domain.RoomID(p.RoomID))
	if err != nil {
		_ = conn.TrySend(protocol.Error(domain.ErrorCode(err), err.Error()))
		return
	}
	// Snapshot for the joiner; rejoining the same room resends it.
	_ = conn.TrySend(protocol.RoomState(room.ID, room.Members()))
}

func (ctl *Controller) handleLeave(sess *app.Session, conn *wsConn) {
	ctl.Coord.Leave(sess)
	_ = conn.TrySend(protocol.Left())
}

func (ctl *Controller) handleSend(ctx context.Context, sess *app.Session, conn *wsConn, data []byte) {
	var p protocol.SendPayload
	if err := protocol.Decode(data, &p); err != nil {
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "bad send payload"))
		return
	}
	res, err := ctl.Coord.Send(ctx, sess, app.SendRequest{
		MessageID: p.MessageID,
		Content:   p.Content,
		ParentID:  p.ParentID,
	})
	if err != nil {
		_ = conn.TrySend(protocol.Error(domain.ErrorCode(err), err.Error()))
		return
	}
	_ = conn.TrySend(protocol.Ack(p.MessageID, res.Stored.Sequence, res.Stored.CreatedAt))
}

func (ctl *Controller) handleTyping(sess *app.Session, conn *wsConn, data []byte) {
	var p protocol.TypingPayload
	if err := protocol.Decode(data, &p); err != nil {
		_ = conn.TrySend(protocol.Error("BAD_PAYLOAD", "bad typing payload"))
		return
	}
	if err := ctl.Coord.SetTyping(sess, p.IsTyping); err != nil {
		_ = conn.TrySend(protocol.Error(domain.ErrorCode(err), err.Error()))
	}
}
