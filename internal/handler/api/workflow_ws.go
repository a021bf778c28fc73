package api

import (
	"time"

	"ForecastDesk/internal/usecase"
	xhttp "ForecastDesk/pkg/http"
	xlogger "ForecastDesk/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 512
)

// Stream pushes one snapshot per workflow transition until the client goes away.
// Client frames are read only to notice the close.
func (h *WorkflowEchoHandler) Stream(c echo.Context) error {
	w, err := h.workflow(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	snaps, unsubscribe := w.Subscribe()
	defer unsubscribe()

	h.logger.Debug("stream opened",
		xlogger.String("identifier", w.Identifier()),
		xlogger.String("remote", c.RealIP()),
	)

	done := make(chan struct{})
	go readUntilClosed(conn, done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Debug("stream closed", xlogger.String("identifier", w.Identifier()))
			return nil
		case snap, ok := <-snaps:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteWait))
				return nil
			}
			if err := writeSnapshot(conn, snap); err != nil {
				h.logger.Debug("stream write failed", xlogger.Error(err))
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap usecase.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(snap)
}

func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
