// Package metrics contains the metrics provider.
package metrics

import (
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bluenviron/avplay/internal/auth"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/manager"
	"github.com/bluenviron/avplay/internal/protocols/httpp"
)

func tags(m map[string]string) string {
	var tags []string
	for k, v := range m {
		tags = append(tags, k+"=\""+v+"\"")
	}
	sort.Strings(tags)
	return "{" + strings.Join(tags, ",") + "}"
}

func metric(key string, tags string, value int64) string {
	return key + tags + " " + strconv.FormatInt(value, 10) + "\n"
}

func metricFloat(key string, tags string, value float64) string {
	return key + tags + " " + strconv.FormatFloat(value, 'f', -1, 64) + "\n"
}

type metricsAuthManager interface {
	Authenticate(req *auth.Request) *auth.Error
}

type metricsManager interface {
	List() []*manager.Entry
}

// Metrics is a metrics provider.
type Metrics struct {
	Address      string
	ReadTimeout  conf.StringDuration
	WriteTimeout conf.StringDuration
	AuthManager  metricsAuthManager
	Manager      metricsManager
	Parent       logger.Writer

	httpServer *httpp.Server
}

// Initialize initializes metrics.
func (m *Metrics) Initialize() error {
	router := gin.New()
	router.SetTrustedProxies(nil) //nolint:errcheck

	router.GET("/metrics", m.onMetrics)

	m.httpServer = &httpp.Server{
		Address:      m.Address,
		ReadTimeout:  time.Duration(m.ReadTimeout),
		WriteTimeout: time.Duration(m.WriteTimeout),
		Handler:      router,
		Parent:       m,
	}
	err := m.httpServer.Initialize()
	if err != nil {
		return err
	}

	m.Log(logger.Info, "listener opened on "+m.Address)

	return nil
}

// Close closes Metrics.
func (m *Metrics) Close() {
	m.Log(logger.Info, "listener is closing")
	m.httpServer.Close()
}

// Log implements logger.Writer.
func (m *Metrics) Log(level logger.Level, format string, args ...any) {
	m.Parent.Log(level, "[metrics] "+format, args...)
}

func (m *Metrics) onMetrics(ctx *gin.Context) {
	creds := httpp.ReadCredentials(ctx.Request)

	err := m.AuthManager.Authenticate(&auth.Request{
		User: creds.User,
		Pass: creds.Pass,
		IP:   net.ParseIP(ctx.ClientIP()),
	})
	if err != nil {
		if err.AskCredentials {
			ctx.Header("WWW-Authenticate", `Basic realm="avplay"`)
			ctx.Writer.WriteHeader(http.StatusUnauthorized)
			return
		}

		m.Log(logger.Info, "connection %v failed to authenticate: %v", httpp.RemoteAddr(ctx), err.Wrapped)

		// wait some seconds to mitigate brute force attacks
		<-time.After(auth.PauseAfterError)

		ctx.Writer.WriteHeader(http.StatusUnauthorized)
		return
	}

	out := ""

	entries := m.Manager.List()

	out += metric("players", "", int64(len(entries)))

	for _, e := range entries {
		st := e.Player.State()
		ta := tags(map[string]string{
			"id":      e.ID.String(),
			"backend": e.Backend,
		})

		paused := int64(0)
		if st.Paused {
			paused = 1
		}

		out += metric("player_paused", ta, paused)
		out += metric("player_position_ms", ta, st.Position)
		out += metric("player_frames_displayed", ta, int64(st.FramesDisplayed))
		out += metric("player_frames_dropped", ta, int64(st.FramesDropped))
		out += metric("player_decode_errors", ta, int64(st.DecodeErrors))
		out += metric("player_video_queue_packets", ta, int64(st.VideoQueuePackets))
		out += metric("player_audio_queue_bytes", ta, int64(st.AudioQueueBytes))
		out += metricFloat("player_audio_video_diff_seconds", ta, st.AudioVideoDiff)
	}

	ctx.Writer.Header().Set("Content-Type", "text/plain; version=0.0.4")
	ctx.Writer.WriteHeader(http.StatusOK)
	io.WriteString(ctx.Writer, out) //nolint:errcheck
}
