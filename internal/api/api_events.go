package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/protocols/websocket"
)

// onEvents streams playback events through a WebSocket.
// The optional "player" query parameter restricts events to a single player.
func (a *API) onEvents(ctx *gin.Context) {
	var filter uuid.UUID

	if s := ctx.Query("player"); s != "" {
		var err error
		filter, err = uuid.Parse(s)
		if err != nil {
			a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid player ID"))
			return
		}
	}

	conn, err := websocket.NewServerConn(ctx.Writer, ctx.Request)
	if err != nil {
		a.Log(logger.Warn, "unable to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	sub := a.Manager.Subscribe()
	defer sub.Close()

	a.Log(logger.Debug, "events subscriber %v connected", conn.RemoteAddr())

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}

			if filter != (uuid.UUID{}) && ev.PlayerID != filter {
				continue
			}

			err = conn.WriteJSON(ev)
			if err != nil {
				a.Log(logger.Debug, "events subscriber %v disconnected: %v", conn.RemoteAddr(), err)
				return
			}

		case <-conn.Done():
			a.Log(logger.Debug, "events subscriber %v disconnected", conn.RemoteAddr())
			return
		}
	}
}
