// Package pprof contains a pprof exporter.
package pprof

import (
	"net"
	"net/http"
	"time"

	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/bluenviron/avplay/internal/auth"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/protocols/httpp"
)

type pprofAuthManager interface {
	Authenticate(req *auth.Request) *auth.Error
}

// PPROF is a pprof exporter.
type PPROF struct {
	Address      string
	ReadTimeout  conf.StringDuration
	WriteTimeout conf.StringDuration
	AuthManager  pprofAuthManager
	Parent       logger.Writer

	httpServer *httpp.Server
}

// Initialize initializes PPROF.
func (pp *PPROF) Initialize() error {
	router := gin.New()
	router.SetTrustedProxies(nil) //nolint:errcheck

	router.Use(pp.middlewareAuth)
	ginpprof.Register(router)

	pp.httpServer = &httpp.Server{
		Address:      pp.Address,
		ReadTimeout:  time.Duration(pp.ReadTimeout),
		WriteTimeout: time.Duration(pp.WriteTimeout),
		Handler:      router,
		Parent:       pp,
	}
	err := pp.httpServer.Initialize()
	if err != nil {
		return err
	}

	pp.Log(logger.Info, "listener opened on "+pp.Address)

	return nil
}

// Close closes PPROF.
func (pp *PPROF) Close() {
	pp.Log(logger.Info, "listener is closing")
	pp.httpServer.Close()
}

// Log implements logger.Writer.
func (pp *PPROF) Log(level logger.Level, format string, args ...any) {
	pp.Parent.Log(level, "[pprof] "+format, args...)
}

func (pp *PPROF) middlewareAuth(ctx *gin.Context) {
	creds := httpp.ReadCredentials(ctx.Request)

	err := pp.AuthManager.Authenticate(&auth.Request{
		User: creds.User,
		Pass: creds.Pass,
		IP:   net.ParseIP(ctx.ClientIP()),
	})
	if err != nil {
		if err.AskCredentials {
			ctx.Header("WWW-Authenticate", `Basic realm="avplay"`)
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		// wait some seconds to mitigate brute force attacks
		<-time.After(auth.PauseAfterError)

		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
}
