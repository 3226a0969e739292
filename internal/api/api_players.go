package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/framesink"
	"github.com/bluenviron/avplay/internal/manager"
	"github.com/bluenviron/avplay/internal/player"
)

func playerStatus(err error) int {
	switch {
	case errors.Is(err, manager.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, player.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnsupportedURL):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *API) getEntry(ctx *gin.Context) (*manager.Entry, bool) {
	id, ok := paramID(ctx)
	if !ok {
		a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid player ID"))
		return nil, false
	}

	e, err := a.Manager.Get(id)
	if err != nil {
		a.writeError(ctx, playerStatus(err), err)
		return nil, false
	}

	return e, true
}

func (a *API) onPlayersList(ctx *gin.Context) {
	entries := a.Manager.List()

	items := make([]*defs.APIPlayer, len(entries))
	for i, e := range entries {
		items[i] = e.APIItem()
	}

	data := &defs.APIPlayerList{
		ItemCount: len(items),
	}

	var err error
	data.Items, data.PageCount, err = paginate(items, ctx.Query("itemsPerPage"), ctx.Query("page"))
	if err != nil {
		a.writeError(ctx, http.StatusBadRequest, err)
		return
	}

	ctx.JSON(http.StatusOK, data)
}

func (a *API) onPlayersGet(ctx *gin.Context) {
	e, ok := a.getEntry(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, e.APIItem())
}

func (a *API) onPlayersOpen(ctx *gin.Context) {
	var req defs.APIPlayerOpenReq
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		a.writeError(ctx, http.StatusBadRequest, err)
		return
	}

	if req.URL == "" {
		a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("url is missing"))
		return
	}

	e, err := a.Manager.Open(req.URL)
	if err != nil {
		a.writeError(ctx, playerStatus(err), err)
		return
	}

	if req.Autoplay {
		e.Player.Play() //nolint:errcheck
	}

	ctx.JSON(http.StatusOK, e.APIItem())
}

func (a *API) onPlayersClose(ctx *gin.Context) {
	id, ok := paramID(ctx)
	if !ok {
		a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid player ID"))
		return
	}

	err := a.Manager.ClosePlayer(id)
	if err != nil {
		a.writeError(ctx, playerStatus(err), err)
		return
	}

	a.writeOK(ctx)
}

func (a *API) onPlayerAction(ctx *gin.Context, action func(p *player.Player) error) {
	e, ok := a.getEntry(ctx)
	if !ok {
		return
	}

	err := action(e.Player)
	if err != nil {
		a.writeError(ctx, playerStatus(err), err)
		return
	}

	a.writeOK(ctx)
}

func (a *API) onPlayersPlay(ctx *gin.Context) {
	a.onPlayerAction(ctx, (*player.Player).Play)
}

func (a *API) onPlayersPause(ctx *gin.Context) {
	a.onPlayerAction(ctx, (*player.Player).Pause)
}

func (a *API) onPlayersResume(ctx *gin.Context) {
	a.onPlayerAction(ctx, (*player.Player).Resume)
}

func (a *API) onPlayersStop(ctx *gin.Context) {
	a.onPlayerAction(ctx, (*player.Player).Stop)
}

func (a *API) onPlayersSeek(ctx *gin.Context) {
	var req defs.APIPlayerSeekReq
	err := ctx.ShouldBindJSON(&req)
	if err != nil || req.Position == nil {
		a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid position"))
		return
	}

	a.onPlayerAction(ctx, func(p *player.Player) error {
		return p.SetCurrentTime(*req.Position)
	})
}

func (a *API) onPlayersLoop(ctx *gin.Context) {
	var req defs.APIPlayerLoopReq
	err := ctx.ShouldBindJSON(&req)
	if err != nil || req.Loop == nil {
		a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid loop"))
		return
	}

	a.onPlayerAction(ctx, func(p *player.Player) error {
		p.SetLoop(*req.Loop)
		return nil
	})
}

func (a *API) onPlayersRate(ctx *gin.Context) {
	var req defs.APIPlayerRateReq
	err := ctx.ShouldBindJSON(&req)
	if err != nil || req.Rate == nil || *req.Rate < 0 {
		a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid rate"))
		return
	}

	a.onPlayerAction(ctx, func(p *player.Player) error {
		p.SetDecodeRate(*req.Rate)
		return nil
	})
}

func (a *API) onPlayersSnapshot(ctx *gin.Context) {
	e, ok := a.getEntry(ctx)
	if !ok {
		return
	}

	quality := framesink.DefaultJPEGQuality

	if q := ctx.Query("quality"); q != "" {
		tmp, err := strconv.ParseUint(q, 10, 31)
		if err != nil || tmp < 1 || tmp > 100 {
			a.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid quality"))
			return
		}
		quality = int(tmp)
	}

	var buf bytes.Buffer
	err := e.Snapshot.WriteJPEG(&buf, quality)
	if err != nil {
		if errors.Is(err, framesink.ErrNoFrame) {
			a.writeError(ctx, http.StatusNotFound, err)
			return
		}
		a.writeError(ctx, http.StatusInternalServerError, err)
		return
	}

	ctx.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}
