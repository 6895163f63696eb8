package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	apierrors "github.com/Apurer/vendor-orders/internal/shared/errors"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// Get /v1/orders/live
// Streams the owner's view and summary after every change
func (h *Handler) LiveOrders(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	if h.sessions == nil {
		h.responder.Respond(c, apierrors.ErrUnavailable.WithDetail("live orders are not enabled"))
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	session := h.sessions()
	// Latest state wins; a slow client skips intermediate states.
	updates := make(chan application.SessionState, 1)
	stopListening := session.OnChange(func(state application.SessionState) {
		select {
		case <-updates:
		default:
		}
		updates <- state
	})
	defer stopListening()
	defer session.Stop()

	if err := session.Start(ctx, owner); err != nil {
		h.logger.WarnContext(ctx, "live order session failed to start",
			slog.String("owner.id", owner), slog.String("error", err.Error()))
	}

	go h.readCommands(ctx, cancel, conn, session)

	catalog := h.service.Catalog()
	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-updates:
			if !state.Active {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(fromSessionState(state, catalog)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

// readCommands applies client commands until the connection closes. The
// resulting state reaches the writer through the session listener.
func (h *Handler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, session *application.Session) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WarnContext(ctx, "live connection closed", slog.String("error", err.Error()))
			}
			return
		}
		var cmd LiveCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.logger.DebugContext(ctx, "ignoring malformed live command")
			continue
		}
		if cmd.Search != nil {
			session.SetSearch(*cmd.Search)
		}
		if cmd.ToggleSort != "" {
			criteria, err := domain.ParseSortCriteria(cmd.ToggleSort)
			if err != nil {
				continue
			}
			session.ToggleSort(criteria)
		}
	}
}

func defaultCheckOrigin(*http.Request) bool { return true }
