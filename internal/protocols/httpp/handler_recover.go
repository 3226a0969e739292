package httpp

import (
	"net/http"
	"runtime"

	"github.com/bluenviron/avplay/internal/logger"
)

// recover from panics inside handlers, log them with the stack trace
// and reply with an internal server error.
type handlerRecover struct {
	h   http.Handler
	log logger.Writer
}

func (h *handlerRecover) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}

		if err == http.ErrAbortHandler { //nolint:errorlint
			panic(err)
		}

		buf := make([]byte, 64*1024)
		n := runtime.Stack(buf, false)
		h.log.Log(logger.Error, "panic in handler of %s %s: %v\n%s", r.Method, r.URL.Path, err, buf[:n])

		w.WriteHeader(http.StatusInternalServerError)
	}()

	h.h.ServeHTTP(w, r)
}
