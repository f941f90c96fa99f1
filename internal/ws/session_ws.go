package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/auth"
	"messenger-service/internal/observability"
	"messenger-service/internal/session"
	"messenger-service/internal/telemetry"
)

// SessionHandler upgrades authenticated clients and pumps their frames into
// the session orchestrator.
type SessionHandler struct {
	hub     *Hub
	guard   *auth.Guard
	orch    *session.Orchestrator
	emitter *telemetry.AuditEmitter
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, guard *auth.Guard, orch *session.Orchestrator, emitter *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{hub: hub, guard: guard, orch: orch, emitter: emitter}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, upgrades the connection, and runs the
// read loop until the client goes away. Authentication happens before any
// session state is created.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.guard.Authenticate(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      identity.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	client := NewClient(identity.UserID, conn)
	sess := h.orch.Connect(ctx, identity, client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.emitWSEvent(ctx, info, "ws_connect", "")

	go h.readLoop(sess, client, conn, info)
}

func (h *SessionHandler) readLoop(sess *session.Session, client *Client, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		sess.Disconnect(context.Background())
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.emitWSEvent(context.Background(), info, "ws_disconnect", closeReason)
		_ = client.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.emitWSEvent(context.Background(), info, "ws_error", closeReason)
			}
			return
		}
		if err := sess.HandleEvent(context.Background(), raw); err != nil {
			// A bad frame fails its own sender only; the session survives.
			observability.IncWSEvent("ws_bad_frame")
		}
	}
}

func (h *SessionHandler) emitWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	if h.emitter == nil {
		return
	}
	h.emitter.EmitWSEvent(ctx, telemetry.WSEvent{
		Event:      event,
		ConnID:     info.ConnID,
		UserID:     info.UserID,
		DeviceID:   info.DeviceID,
		IP:         info.IP,
		RequestID:  info.RequestID,
		TraceID:    info.TraceID,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     reason,
	})
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
