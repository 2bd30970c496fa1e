package handlers

import (
	"context"
	"net/http"
	"time"

	"marginalia-backend/internal/common"
	"marginalia-backend/internal/events"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Extension and dashboard clients connect from arbitrary origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	Rooms  common.RoomService
	Broker events.Broker
}

func NewEventsHandler(service common.RoomService, broker events.Broker) *EventsHandler {
	return &EventsHandler{Rooms: service, Broker: broker}
}

// StreamRoomEvents upgrades to a websocket and forwards every event of one
// room until the client goes away.
func (h *EventsHandler) StreamRoomEvents(c echo.Context) error {
	roomID := c.Param("roomId")

	// Unknown rooms are rejected before the upgrade so the client gets a 404
	if _, err := h.Rooms.GetRoom(c.Request().Context(), roomID); err != nil {
		return roomError(err, "Error fetching room")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Subscribing before the upgrade means nothing published after the
	// handshake is missed
	stream, err := h.Broker.Subscribe(ctx, roomID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Message: "Failed to subscribe to room events", Error: err.Error()}).SetInternal(err)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		c.Logger().Warnf("Websocket upgrade failed for room %s: %v", roomID, err)
		return nil
	}
	defer ws.Close()

	// The reader only exists to notice the client leaving and to answer pings
	go func() {
		defer cancel()
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	c.Logger().Debugf("Client subscribed to events of room %s", roomID)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-stream:
			if !ok {
				return nil
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(e); err != nil {
				c.Logger().Debugf("Dropping events client of room %s: %v", roomID, err)
				return nil
			}
			if e.Type == events.RoomDeleted {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room deleted"),
					time.Now().Add(writeWait))
				return nil
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
