// Package core contains the main struct of the software.
package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bluenviron/avplay/internal/api"
	"github.com/bluenviron/avplay/internal/auth"
	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/backend/libav"
	"github.com/bluenviron/avplay/internal/backend/mpegts"
	"github.com/bluenviron/avplay/internal/backend/synth"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/confwatcher"
	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/externalcmd"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/manager"
	"github.com/bluenviron/avplay/internal/metrics"
	"github.com/bluenviron/avplay/internal/player"
	"github.com/bluenviron/avplay/internal/pprof"
)

var version = "v0.0.0"

var defaultConfPaths = []string{
	"avplay.yml",
	"/usr/local/etc/avplay.yml",
	"/usr/etc/avplay.yml",
	"/etc/avplay/avplay.yml",
}

type cliArgs struct {
	Version      bool     `help:"print version"`
	Confpath     string   `arg:"" optional:""`
	Open         []string `help:"open and play a URL on start" placeholder:"URL" sep:"none"`
	Sync         string   `help:"synchronization mode (audio, video or external)"`
	ExitOnFinish bool     `help:"exit once every opened player finished"`
}

func newBackend(name string, parent logger.Writer) (backend.Backend, error) {
	switch name {
	case "synth":
		return synth.Backend{}, nil

	case "mpegts":
		return mpegts.Backend{}, nil

	case "libav":
		return &libav.Backend{Log: parent}, nil
	}

	return nil, fmt.Errorf("unknown backend: %s", name)
}

// Core is an instance of avplay.
type Core struct {
	ctx             context.Context
	ctxCancel       func()
	confPath        string
	syncMode        string
	openURLs        []string
	exitOnFinish    bool
	conf            *conf.Conf
	logger          *logger.Logger
	externalCmdPool *externalcmd.Pool
	authManager     *auth.Manager
	registry        *backend.Registry
	manager         *manager.Manager
	metrics         *metrics.Metrics
	pprof           *pprof.PPROF
	api             *api.API
	confWatcher     *confwatcher.ConfWatcher
	finishSub       *manager.Subscription
	pending         map[uuid.UUID]struct{}

	// out
	done chan struct{}
}

// New allocates a Core.
func New(args []string) (*Core, bool) {
	var cli cliArgs

	parser, err := kong.New(&cli,
		kong.Name("avplay"),
		kong.Description("avplay "+version),
		kong.UsageOnError(),
		kong.ValueFormatter(func(value *kong.Value) string {
			switch value.Name {
			case "confpath":
				return "path to a config file. The default is avplay.yml."

			default:
				return kong.DefaultHelpValueFormatter(value)
			}
		}))
	if err != nil {
		panic(err)
	}

	_, err = parser.Parse(args)
	parser.FatalIfErrorf(err)

	if cli.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	p := &Core{
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		syncMode:     cli.Sync,
		openURLs:     cli.Open,
		exitOnFinish: cli.ExitOnFinish,
		pending:      make(map[uuid.UUID]struct{}),
		done:         make(chan struct{}),
	}

	p.conf, p.confPath, err = p.loadConf(cli.Confpath)
	if err != nil {
		fmt.Printf("ERR: %s\n", err)
		ctxCancel()
		return nil, false
	}

	err = p.createResources(true)
	if err != nil {
		if p.logger != nil {
			p.Log(logger.Error, "%s", err)
		} else {
			fmt.Printf("ERR: %s\n", err)
		}
		p.closeResources(nil)
		ctxCancel()
		return nil, false
	}

	p.openInitialURLs()

	go p.run()

	return p, true
}

// Close closes Core and waits for all goroutines to return.
func (p *Core) Close() {
	p.ctxCancel()
	<-p.done
}

// Wait waits for the Core to exit.
func (p *Core) Wait() {
	<-p.done
}

// Log implements logger.Writer.
func (p *Core) Log(level logger.Level, format string, args ...any) {
	if p.logger != nil {
		p.logger.Log(level, format, args...)
	}
}

func (p *Core) loadConf(fpath string) (*conf.Conf, string, error) {
	c, fpath, err := conf.Load(fpath, defaultConfPaths)
	if err != nil {
		return nil, "", err
	}

	if p.syncMode != "" {
		err = c.SyncMode.UnmarshalJSON([]byte(strconv.Quote(p.syncMode)))
		if err != nil {
			return nil, "", err
		}
	}

	return c, fpath, nil
}

func (p *Core) openInitialURLs() {
	for _, u := range p.openURLs {
		e, err := p.manager.Open(u)
		if err != nil {
			p.Log(logger.Error, "%s", err)
			continue
		}

		p.pending[e.ID] = struct{}{}

		err = e.Player.Play()
		if err != nil {
			p.Log(logger.Error, "%s", err)
		}
	}
}

func (p *Core) finishEvents() <-chan defs.APIEvent {
	if p.finishSub != nil {
		return p.finishSub.Events()
	}
	return nil
}

func (p *Core) run() {
	defer close(p.done)

	confChanged := func() chan struct{} {
		if p.confWatcher != nil {
			return p.confWatcher.Watch()
		}
		return make(chan struct{})
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	if p.exitOnFinish && len(p.pending) == 0 {
		p.Log(logger.Info, "no players to wait for, exiting")
		p.ctxCancel()
	}

outer:
	for {
		select {
		case <-confChanged:
			p.Log(logger.Info, "reloading configuration (file changed)")

			newConf, _, err := p.loadConf(p.confPath)
			if err != nil {
				p.Log(logger.Error, "%s", err)
				break outer
			}

			err = p.reloadConf(newConf)
			if err != nil {
				p.Log(logger.Error, "%s", err)
				break outer
			}

		case ev, ok := <-p.finishEvents():
			if !ok {
				p.finishSub = nil
				continue
			}

			if ev.Type == player.EventFinish.String() {
				delete(p.pending, ev.PlayerID)

				if len(p.pending) == 0 {
					p.Log(logger.Info, "all players finished, exiting")
					break outer
				}
			}

		case <-interrupt:
			p.Log(logger.Info, "shutting down gracefully")
			break outer

		case <-p.ctx.Done():
			break outer
		}
	}

	p.ctxCancel()

	p.closeResources(nil)
}

func (p *Core) createResources(initial bool) error {
	var err error

	if p.logger == nil {
		p.logger = &logger.Logger{
			Level:        logger.Level(p.conf.LogLevel),
			Destinations: p.conf.LogDestinations,
			Structured:   p.conf.LogStructured,
			File:         p.conf.LogFile,
		}
		err = p.logger.Initialize()
		if err != nil {
			p.logger = nil
			return err
		}
	}

	if initial {
		p.Log(logger.Info, "avplay %s", version)

		if p.confPath != "" {
			a, _ := filepath.Abs(p.confPath)
			p.Log(logger.Info, "configuration loaded from %s", a)
		} else {
			p.Log(logger.Warn, "configuration file not found, using the default one")
		}

		gin.SetMode(gin.ReleaseMode)

		p.externalCmdPool = &externalcmd.Pool{}
		p.externalCmdPool.Initialize()
	}

	if p.authManager == nil {
		p.authManager = &auth.Manager{
			User: p.conf.APIUser,
			Pass: p.conf.APIPass,
		}
	}

	if p.registry == nil {
		p.registry = &backend.Registry{}

		for _, name := range p.conf.Backends {
			var b backend.Backend
			b, err = newBackend(name, p)
			if err != nil {
				return err
			}
			p.registry.Register(name, b)
		}
	}

	if p.manager == nil {
		p.manager = &manager.Manager{
			Conf:            p.conf,
			Registry:        p.registry,
			ExternalCmdPool: p.externalCmdPool,
			Parent:          p,
		}
		err = p.manager.Initialize()
		if err != nil {
			p.manager = nil
			return err
		}

		if p.exitOnFinish {
			p.finishSub = p.manager.Subscribe()
		}
	}

	if p.conf.Metrics &&
		p.metrics == nil {
		i := &metrics.Metrics{
			Address:      p.conf.MetricsAddress,
			ReadTimeout:  p.conf.ReadTimeout,
			WriteTimeout: p.conf.WriteTimeout,
			AuthManager:  p.authManager,
			Manager:      p.manager,
			Parent:       p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.metrics = i
	}

	if p.conf.PPROF &&
		p.pprof == nil {
		i := &pprof.PPROF{
			Address:      p.conf.PPROFAddress,
			ReadTimeout:  p.conf.ReadTimeout,
			WriteTimeout: p.conf.WriteTimeout,
			AuthManager:  p.authManager,
			Parent:       p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.pprof = i
	}

	if p.conf.API &&
		p.api == nil {
		i := &api.API{
			Version:      version,
			Started:      time.Now(),
			Address:      p.conf.APIAddress,
			ReadTimeout:  p.conf.ReadTimeout,
			WriteTimeout: p.conf.WriteTimeout,
			Conf:         p.conf,
			Backends:     p.registry.Names(),
			AuthManager:  p.authManager,
			Manager:      p.manager,
			Parent:       p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.api = i
	}

	if initial && p.confPath != "" {
		p.confWatcher = &confwatcher.ConfWatcher{FilePath: p.confPath}
		err = p.confWatcher.Initialize()
		if err != nil {
			p.confWatcher = nil
			return err
		}
	}

	return nil
}

func (p *Core) closeResources(newConf *conf.Conf) {
	closeLogger := newConf == nil ||
		newConf.LogLevel != p.conf.LogLevel ||
		!reflect.DeepEqual(newConf.LogDestinations, p.conf.LogDestinations) ||
		newConf.LogStructured != p.conf.LogStructured ||
		newConf.LogFile != p.conf.LogFile

	closeRegistry := newConf == nil ||
		!reflect.DeepEqual(newConf.Backends, p.conf.Backends) ||
		closeLogger

	closeManager := newConf == nil ||
		closeRegistry
	if !closeManager && p.manager != nil {
		p.manager.ReloadConf(newConf)
	}

	if newConf != nil && p.authManager != nil {
		p.authManager.ReloadConf(newConf)
	}

	closeMetrics := newConf == nil ||
		newConf.Metrics != p.conf.Metrics ||
		newConf.MetricsAddress != p.conf.MetricsAddress ||
		newConf.ReadTimeout != p.conf.ReadTimeout ||
		newConf.WriteTimeout != p.conf.WriteTimeout ||
		closeManager

	closePPROF := newConf == nil ||
		newConf.PPROF != p.conf.PPROF ||
		newConf.PPROFAddress != p.conf.PPROFAddress ||
		newConf.ReadTimeout != p.conf.ReadTimeout ||
		newConf.WriteTimeout != p.conf.WriteTimeout ||
		closeLogger

	closeAPI := newConf == nil ||
		newConf.API != p.conf.API ||
		newConf.APIAddress != p.conf.APIAddress ||
		newConf.ReadTimeout != p.conf.ReadTimeout ||
		newConf.WriteTimeout != p.conf.WriteTimeout ||
		closeManager
	if !closeAPI && p.api != nil {
		p.api.ReloadConf(newConf)
	}

	if newConf == nil && p.confWatcher != nil {
		p.confWatcher.Close()
		p.confWatcher = nil
	}

	if closeAPI && p.api != nil {
		p.api.Close()
		p.api = nil
	}

	if closePPROF && p.pprof != nil {
		p.pprof.Close()
		p.pprof = nil
	}

	if closeMetrics && p.metrics != nil {
		p.metrics.Close()
		p.metrics = nil
	}

	if closeManager && p.manager != nil {
		if newConf != nil && len(p.manager.List()) != 0 {
			p.Log(logger.Warn, "backends changed, closing all players")
		}
		clear(p.pending)

		if p.finishSub != nil {
			p.finishSub.Close()
			p.finishSub = nil
		}
		p.manager.Close()
		p.manager = nil
	}

	if closeRegistry {
		p.registry = nil
	}

	if newConf == nil {
		p.authManager = nil

		if p.externalCmdPool != nil {
			p.externalCmdPool.Close()
			p.externalCmdPool = nil
		}
	}

	if closeLogger && p.logger != nil {
		p.logger.Close()
		p.logger = nil
	}
}

func (p *Core) reloadConf(newConf *conf.Conf) error {
	p.closeResources(newConf)
	p.conf = newConf
	return p.createResources(false)
}
