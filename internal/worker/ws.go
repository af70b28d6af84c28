package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"planner/internal/action"
)

const wsWriteTimeout = 10 * time.Second

// WSServer hosts the dispatcher over websocket. Each text frame is one request envelope;
// the request's sender is the connection's Origin header, so the dispatcher's trust
// policy decides which pages may drive it.
type WSServer struct {
	d        *action.Dispatcher
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSServer(d *action.Dispatcher, log logrus.FieldLogger) *WSServer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSServer{
		d:   d,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// Origin is enforced per request by the dispatcher.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// NewHTTPServer builds the echo instance serving /healthz and /ws.
func NewHTTPServer(d *action.Dispatcher, log logrus.FieldLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	ws := NewWSServer(d, log)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "actions": len(d.Actions())})
	})
	e.GET("/ws", ws.Handle)
	return e
}

func (s *WSServer) Handle(c echo.Context) error {
	r := c.Request()
	sender := strings.TrimSpace(r.Header.Get("Origin"))
	conn, err := s.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.log.WithError(err).Warn("websocket upgrade failed")
		return nil
	}
	defer conn.Close()
	s.serveConn(r.Context(), conn, sender)
	return nil
}

func (s *WSServer) serveConn(ctx context.Context, conn *websocket.Conn, sender string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := s.log.WithField("sender", sender)
	log.Debug("websocket connected")

	var (
		wg  sync.WaitGroup
		wmu sync.Mutex
	)
	write := func(resp action.Response) {
		b, err := json.Marshal(resp)
		if err != nil {
			log.WithError(err).Error("encode response")
			return
		}
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.WithError(err).Debug("write response")
		}
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage || len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		var req action.Request
		if jerr := json.Unmarshal(data, &req); jerr != nil {
			write(action.Failure(req.ID, &action.Error{Code: action.CodeValidation, Message: "malformed request: " + jerr.Error()}))
			continue
		}
		req.Sender = sender
		wg.Add(1)
		go func() {
			defer wg.Done()
			write(s.d.Dispatch(ctx, req))
		}()
	}
	wg.Wait()
	log.Debug("websocket closed")
}
