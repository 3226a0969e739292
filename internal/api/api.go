// Package api contains the API server.
package api //nolint:revive

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bluenviron/avplay/internal/auth"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/manager"
	"github.com/bluenviron/avplay/internal/protocols/httpp"
)

type apiAuthManager interface {
	Authenticate(req *auth.Request) *auth.Error
}

type apiManager interface {
	Open(url string) (*manager.Entry, error)
	Get(id uuid.UUID) (*manager.Entry, error)
	List() []*manager.Entry
	ClosePlayer(id uuid.UUID) error
	Subscribe() *manager.Subscription
}

func paramID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// API is an API server.
type API struct {
	Version      string
	Started      time.Time
	Address      string
	ReadTimeout  conf.StringDuration
	WriteTimeout conf.StringDuration
	Conf         *conf.Conf
	Backends     []string
	AuthManager  apiAuthManager
	Manager      apiManager
	Parent       logger.Writer

	httpServer *httpp.Server
	mutex      sync.RWMutex
}

// Initialize initializes API.
func (a *API) Initialize() error {
	router := gin.New()
	router.SetTrustedProxies(nil) //nolint:errcheck

	router.Use(a.middlewareAuth)

	group := router.Group("/v1")

	group.GET("/info", a.onInfo)

	group.GET("/players/list", a.onPlayersList)
	group.GET("/players/get/:id", a.onPlayersGet)
	group.POST("/players/open", a.onPlayersOpen)
	group.POST("/players/close/:id", a.onPlayersClose)
	group.POST("/players/play/:id", a.onPlayersPlay)
	group.POST("/players/pause/:id", a.onPlayersPause)
	group.POST("/players/resume/:id", a.onPlayersResume)
	group.POST("/players/stop/:id", a.onPlayersStop)
	group.POST("/players/seek/:id", a.onPlayersSeek)
	group.POST("/players/loop/:id", a.onPlayersLoop)
	group.POST("/players/rate/:id", a.onPlayersRate)
	group.GET("/players/snapshot/:id", a.onPlayersSnapshot)

	group.GET("/events", a.onEvents)

	a.httpServer = &httpp.Server{
		Address:      a.Address,
		ReadTimeout:  time.Duration(a.ReadTimeout),
		WriteTimeout: time.Duration(a.WriteTimeout),
		Handler:      router,
		Parent:       a,
	}
	err := a.httpServer.Initialize()
	if err != nil {
		return err
	}

	a.Log(logger.Info, "listener opened on "+a.Address)

	return nil
}

// Close closes the API.
func (a *API) Close() {
	a.Log(logger.Info, "listener is closing")
	a.httpServer.Close()
}

// Log implements logger.Writer.
func (a *API) Log(level logger.Level, format string, args ...any) {
	a.Parent.Log(level, "[API] "+format, args...)
}

func (a *API) writeError(ctx *gin.Context, status int, err error) {
	// show error in logs
	a.Log(logger.Error, err.Error())

	// add error to response
	ctx.JSON(status, &defs.APIError{
		Status: "error",
		Error:  err.Error(),
	})
}

func (a *API) writeOK(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, &defs.APIOK{Status: "ok"})
}

func (a *API) middlewareAuth(ctx *gin.Context) {
	creds := httpp.ReadCredentials(ctx.Request)

	err := a.AuthManager.Authenticate(&auth.Request{
		User: creds.User,
		Pass: creds.Pass,
		IP:   net.ParseIP(ctx.ClientIP()),
	})
	if err != nil {
		if err.AskCredentials {
			ctx.Header("WWW-Authenticate", `Basic realm="avplay"`)
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, &defs.APIError{
				Status: "error",
				Error:  "authentication error",
			})
			return
		}

		a.Log(logger.Info, "connection %v failed to authenticate: %v", httpp.RemoteAddr(ctx), err.Wrapped)

		// wait some seconds to delay brute force attacks
		<-time.After(auth.PauseAfterError)

		ctx.AbortWithStatusJSON(http.StatusUnauthorized, &defs.APIError{
			Status: "error",
			Error:  "authentication error",
		})
		return
	}
}

func (a *API) onInfo(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, &defs.APIInfo{
		Version:  a.Version,
		Started:  a.Started,
		Backends: a.Backends,
	})
}

// ReloadConf is called by core.
func (a *API) ReloadConf(conf *conf.Conf) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.Conf = conf
}
