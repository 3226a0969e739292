// Package auth contains the authentication system.
package auth

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bluenviron/avplay/internal/conf"
)

// PauseAfterError is the pause to apply after an authentication failure.
var PauseAfterError = 2 * time.Second

var (
	errNoCredentials      = errors.New("credentials not provided")
	errInvalidCredentials = errors.New("invalid credentials")
)

// Request is an authentication request.
type Request struct {
	User string
	Pass string
	IP   net.IP
}

// Error is an authentication error.
// AskCredentials is true when the client did not provide any credential
// and should be asked for them instead of being delayed.
type Error struct {
	Wrapped        error
	AskCredentials bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "authentication failed: " + e.Wrapped.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Manager checks credentials of HTTP clients
// against the apiUser and apiPass parameters.
type Manager struct {
	User conf.Credential
	Pass conf.Credential

	mutex sync.RWMutex
}

// Authenticate authenticates a request.
func (m *Manager) Authenticate(req *Request) *Error {
	m.mutex.RLock()
	user := m.User
	pass := m.Pass
	m.mutex.RUnlock()

	if user.IsEmpty() && pass.IsEmpty() {
		return nil
	}

	if req.User == "" && req.Pass == "" {
		return &Error{
			Wrapped:        errNoCredentials,
			AskCredentials: true,
		}
	}

	if !user.Check(req.User) || !pass.Check(req.Pass) {
		return &Error{
			Wrapped: errInvalidCredentials,
		}
	}

	return nil
}

// ReloadConf is called by core.
func (m *Manager) ReloadConf(c *conf.Conf) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.User = c.APIUser
	m.Pass = c.APIPass
}
