package echoapi

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/kinderhub/core/notification"
)

const (
	writeTimeout = 10 * time.Second
	pingPeriod   = 60 * time.Second
)

var upgrader = websocket.Upgrader{}

// live streams the notifications of the authenticated admin as JSON text messages until the client leaves.
func (api *notificationApi) live(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	wc, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied to the client
		api.logger.Warn(fmt.Sprintf("live: websocket upgrade failed: %v", err))
		return nil
	}

	sub := api.hub.Subscribe(claims.Subject)
	t := time.NewTicker(pingPeriod)
	defer t.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		writeLoop(wc, sub, t)
	}()

	readLoop(wc)
	api.hub.Unsubscribe(sub)
	<-done
	return nil
}

// readLoop discards client messages and returns once the client disconnects.
func readLoop(wc *websocket.Conn) {
	for {
		if _, _, err := wc.NextReader(); err != nil {
			return
		}
	}
}

func writeLoop(wc *websocket.Conn, sub *notification.Subscription, t *time.Ticker) {
	defer wc.Close()
	for {
		select {
		case n, ok := <-sub.C:
			if !ok {
				_ = wc.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = wc.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteJSON(n); err != nil {
				return
			}
		case <-t.C:
			_ = wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return // ignore error
			}
		}
	}
}
