// Package manager contains the player manager.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bluenviron/avplay/internal/asyncwriter"
	"github.com/bluenviron/avplay/internal/audiosink"
	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/externalcmd"
	"github.com/bluenviron/avplay/internal/framesink"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/player"
)

const (
	eventQueueSize      = 256
	subscriberQueueSize = 64
)

// ErrPlayerNotFound is returned when a player is not found.
var ErrPlayerNotFound = errors.New("player not found")

var errTerminated = errors.New("terminated")

// Manager opens players and keeps track of them.
type Manager struct {
	Conf            *conf.Conf
	Registry        *backend.Registry
	ExternalCmdPool *externalcmd.Pool
	Parent          logger.Writer

	ctx         context.Context
	ctxCancel   func()
	mutex       sync.RWMutex
	players     map[uuid.UUID]*Entry
	events      *asyncwriter.Writer
	pushMutex   sync.Mutex
	subsMutex   sync.Mutex
	subscribers map[*Subscription]struct{}
	closed      bool
}

// Initialize initializes Manager.
func (m *Manager) Initialize() error {
	m.ctx, m.ctxCancel = context.WithCancel(context.Background())
	m.players = make(map[uuid.UUID]*Entry)
	m.subscribers = make(map[*Subscription]struct{})

	m.events = &asyncwriter.Writer{
		QueueSize: eventQueueSize,
		Parent:    m,
	}
	err := m.events.Initialize()
	if err != nil {
		m.ctxCancel()
		return err
	}
	m.events.Start()

	return nil
}

// Close closes all players.
func (m *Manager) Close() {
	m.ctxCancel()

	m.mutex.Lock()
	m.closed = true
	m.mutex.Unlock()

	m.CloseAll()
	m.events.Stop()

	m.subsMutex.Lock()
	for s := range m.subscribers {
		close(s.ch)
	}
	m.subscribers = nil
	m.subsMutex.Unlock()
}

// Log implements logger.Writer.
func (m *Manager) Log(level logger.Level, format string, args ...any) {
	m.Parent.Log(level, "[manager] "+format, args...)
}

// ReloadConf is called by core. It affects players opened afterwards.
func (m *Manager) ReloadConf(c *conf.Conf) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Conf = c
}

func newAudioSink(c *conf.Conf) player.AudioSink {
	switch c.AudioOutput {
	case conf.AudioOutputOto:
		return &audiosink.Oto{
			SampleRate: c.AudioSampleRate,
			Channels:   c.AudioChannels,
		}

	case conf.AudioOutputNull:
		return &audiosink.Null{}
	}

	return nil
}

// Open opens a URL and returns the new player, that is paused.
func (m *Manager) Open(url string) (*Entry, error) {
	m.mutex.RLock()
	c := m.Conf
	closed := m.closed
	m.mutex.RUnlock()

	if closed {
		return nil, errTerminated
	}

	ctx, ctxCancel := context.WithTimeout(m.ctx, time.Duration(c.ReadTimeout))
	defer ctxCancel()

	src, backendName, err := m.Registry.Open(ctx, url, backend.Options{
		ReadTimeout: time.Duration(c.ReadTimeout),
		Parent:      m.Parent,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", url, err)
	}

	e := &Entry{
		ID:       uuid.New(),
		URL:      url,
		Backend:  backendName,
		Created:  time.Now(),
		Snapshot: &framesink.Snapshot{},
		m:        m,
		conf:     c,
	}

	e.Player = &player.Player{
		ID:        e.ID.String(),
		Conf:      c.PlayerConf(),
		Source:    src,
		AudioSink: newAudioSink(c),
		FrameSink: e.Snapshot,
		EventSink: e,
		Parent:    m.Parent,
	}
	err = e.Player.Initialize()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("unable to open '%s': %w", url, err)
	}

	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		e.Player.Close()
		return nil, errTerminated
	}
	m.players[e.ID] = e
	m.mutex.Unlock()

	m.Log(logger.Info, "player %s opened '%s' with backend %s", e.ID, url, backendName)

	if c.RunOnOpen != "" {
		m.Log(logger.Info, "runOnOpen command started")
		e.onOpenCmd = &externalcmd.Cmd{
			Pool:    m.ExternalCmdPool,
			Cmdstr:  c.RunOnOpen,
			Restart: false,
			Env:     e.env(),
			OnExit: func(err error) {
				m.Log(logger.Info, "runOnOpen command exited: %v", err)
			},
		}
		e.onOpenCmd.Initialize()
	}

	return e, nil
}

// Get returns a player.
func (m *Manager) Get(id uuid.UUID) (*Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	e, ok := m.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return e, nil
}

// List returns all players, sorted by creation time.
func (m *Manager) List() []*Entry {
	m.mutex.RLock()
	ret := make([]*Entry, 0, len(m.players))
	for _, e := range m.players {
		ret = append(ret, e)
	}
	m.mutex.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Created.Before(ret[j].Created)
	})

	return ret
}

// ClosePlayer closes a player.
func (m *Manager) ClosePlayer(id uuid.UUID) error {
	m.mutex.Lock()
	e, ok := m.players[id]
	if !ok {
		m.mutex.Unlock()
		return ErrPlayerNotFound
	}
	delete(m.players, id)
	m.mutex.Unlock()

	e.close()
	m.Log(logger.Info, "player %s closed", id)

	return nil
}

// CloseAll closes all players.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	players := m.players
	m.players = make(map[uuid.UUID]*Entry)
	m.mutex.Unlock()

	for _, e := range players {
		e.close()
	}
}

// Subscribe returns a subscription to playback events of all players.
func (m *Manager) Subscribe() *Subscription {
	s := &Subscription{
		ch: make(chan defs.APIEvent, subscriberQueueSize),
		m:  m,
	}

	m.subsMutex.Lock()
	defer m.subsMutex.Unlock()

	if m.subscribers == nil {
		close(s.ch)
		return s
	}

	m.subscribers[s] = struct{}{}
	return s
}

func (m *Manager) unsubscribe(s *Subscription) {
	m.subsMutex.Lock()
	defer m.subsMutex.Unlock()

	if _, ok := m.subscribers[s]; ok {
		delete(m.subscribers, s)
		close(s.ch)
	}
}

func (m *Manager) dispatch(ev defs.APIEvent) {
	m.pushMutex.Lock()
	defer m.pushMutex.Unlock()

	m.events.Push(func() error {
		m.subsMutex.Lock()
		defer m.subsMutex.Unlock()

		for s := range m.subscribers {
			select {
			case s.ch <- ev:
			default:
			}
		}
		return nil
	})
}

// Subscription is a subscription to playback events.
type Subscription struct {
	ch chan defs.APIEvent
	m  *Manager
}

// Events returns a channel that receives events.
// The channel is closed when the subscription or the manager is closed.
func (s *Subscription) Events() <-chan defs.APIEvent {
	return s.ch
}

// Close closes the subscription.
func (s *Subscription) Close() {
	s.m.unsubscribe(s)
}
