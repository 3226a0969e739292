// Package httpp contains HTTP utilities.
package httpp

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bluenviron/avplay/internal/logger"
)

// listen opens a TCP listener, or a UNIX socket
// when the address starts with unix://.
func listen(address string) (net.Listener, error) {
	if !strings.HasPrefix(address, "unix://") {
		return net.Listen("tcp", address)
	}

	path := address[len("unix://"):]
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	os.Chmod(path, 0o755) //nolint:errcheck
	return ln, nil
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

// Server is a wrapper around http.Server that provides:
// - net.Listener allocation and closure
// - recovery from panics
// - logging
// - server header and filtering of invalid requests
type Server struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Handler      http.Handler
	Parent       logger.Writer

	ln    net.Listener
	inner *http.Server
}

// Initialize initializes a Server.
func (s *Server) Initialize() error {
	if s.ReadTimeout == 0 {
		return fmt.Errorf("invalid ReadTimeout")
	}
	if s.WriteTimeout == 0 {
		return fmt.Errorf("invalid WriteTimeout")
	}

	var err error
	s.ln, err = listen(s.Address)
	if err != nil {
		return err
	}

	h := s.Handler
	h = &handlerFilter{h}
	h = &handlerLogger{h, s.Parent}
	h = &handlerRecover{h, s.Parent}
	h = &handlerWriteTimeout{h, s.WriteTimeout}

	s.inner = &http.Server{
		Handler: h,

		// applied before reading any request
		ReadTimeout: s.ReadTimeout,

		// applied after HTTP handler has returned
		IdleTimeout: 30 * time.Second,

		ErrorLog: log.New(&nilWriter{}, "", 0),
	}

	go s.inner.Serve(s.ln)

	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close closes all resources and waits for all routines to return.
func (s *Server) Close() {
	ctx, ctxCancel := context.WithCancel(context.Background())
	ctxCancel()
	s.inner.Shutdown(ctx)
	s.ln.Close() // in case Shutdown() is called before Serve()
}
