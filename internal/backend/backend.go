// Package backend contains the media backend registry.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/logger"
)

// ErrUnsupportedURL is returned when no backend supports the URL scheme.
var ErrUnsupportedURL = errors.New("no backend supports the URL")

// Options are options passed to backends.
type Options struct {
	ReadTimeout time.Duration
	Parent      logger.Writer
}

// Backend opens media sources.
type Backend interface {
	// Schemes returns the supported URL schemes. An empty list means any.
	Schemes() []string
	Open(ctx context.Context, u *URL, opts Options) (*av.Source, error)
}

// URL is a parsed media URL.
type URL struct {
	// Raw is the URL as provided.
	Raw string
	*url.URL
}

// ParseURL parses a media URL. Paths without a scheme are file URLs.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, including Windows drive letters
		return &URL{
			Raw: raw,
			URL: &url.URL{Scheme: "file", Path: raw},
		}, nil
	}

	u.Scheme = strings.ToLower(u.Scheme)
	return &URL{Raw: raw, URL: u}, nil
}

// FilePath returns the local path of a file URL.
func (u *URL) FilePath() string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}

type registered struct {
	name    string
	backend Backend
}

// Registry is an ordered list of backends.
type Registry struct {
	backends []registered
}

// Register adds a backend. Backends are tried in registration order.
func (r *Registry) Register(name string, b Backend) {
	r.backends = append(r.backends, registered{name: name, backend: b})
}

// Names returns the names of registered backends.
func (r *Registry) Names() []string {
	ret := make([]string, len(r.backends))
	for i, b := range r.backends {
		ret[i] = b.name
	}
	return ret
}

// Open opens a URL with the first backend that supports it.
// It returns the name of the backend that succeeded.
func (r *Registry) Open(ctx context.Context, raw string, opts Options) (*av.Source, string, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return nil, "", err
	}

	var errs []error

	for _, b := range r.backends {
		schemes := b.backend.Schemes()
		if len(schemes) != 0 && !slices.Contains(schemes, u.Scheme) {
			continue
		}

		src, err := b.backend.Open(ctx, u, opts)
		if err == nil {
			return src, b.name, nil
		}

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}

	if len(errs) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedURL, u.Scheme)
	}

	return nil, "", errors.Join(errs...)
}
