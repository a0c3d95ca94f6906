package adminapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/internal/webserver"
	"go.uber.org/zap"
)

func registerStreamRoutes() {
	webserver.ApiGET("/stream", streamEvents)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The admin console runs on its own origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// streamEvents upgrades the connection to a websocket and forwards hub events
// matching the ?session_id= and ?type= query filters. The subscription is
// removed when the client goes away.
func streamEvents(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	filter := hub.Filter{
		SessionID: c.QueryParam("session_id"),
		Type:      hub.EventType(c.QueryParam("type")),
	}
	sub := application.Hub().Subscribe(c.RealIP(), filter)
	defer application.Hub().Unsubscribe(sub)

	zap.L().Info("adminapi: stream client connected",
		zap.String("client", c.RealIP()),
		zap.String("filter_session", filter.SessionID),
		zap.String("filter_type", string(filter.Type)))

	// Reader goroutine: only consumed for close/pong detection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return nil
		case <-sub.Done():
			return nil
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case ev := <-sub.Events():
			data, err := ev.Encode()
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				zap.L().Debug("adminapi: stream write failed, dropping client",
					zap.String("client", c.RealIP()), zap.Error(err))
				return nil
			}
		}
	}
}
