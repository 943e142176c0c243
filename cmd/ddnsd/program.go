package main

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/judwhite/go-svc"
	"github.com/jxo-me/ddnsd/cmd/ddnsd/cliutil"
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/pkg/metrics"
	"github.com/jxo-me/ddnsd/pkg/overwatch"
	"github.com/jxo-me/ddnsd/pkg/watcher"
	"github.com/jxo-me/ddnsd/sdk/service"
	"github.com/pkg/errors"
)

// program runs the daemon under go-svc. Configuration changes on disk
// replace the running services.
type program struct {
	configPath string
	logLevel   string
	bInfo      *cliutil.BuildInfo

	configManager  *config.FileManager
	serviceManager overwatch.Manager
	// options are passed to every DDNS service built on reload.
	options []service.Option

	// mu serializes reloads.
	mu     sync.Mutex
	hash   string
	logKey string
	logOut io.Writer
	// metrics is read by ready, which runs on service goroutines that a
	// reload may be waiting for.
	metrics atomic.Pointer[metrics.Server]
}

func (p *program) Init(env svc.Environment) error {
	cfg, err := config.ReadConfig(p.configPath, nil)
	if err != nil {
		return err
	}
	p.setLogger(&cfg)
	log := logger.Default()
	p.bInfo.Log(log)
	if env.IsWindowsService() {
		log.Infof("running as a windows service")
	}

	f, err := watcher.NewFile()
	if err != nil {
		return errors.Wrap(err, "cannot create config watcher")
	}
	p.configManager, err = config.NewFileManager(f, p.configPath, zerologFromConfig(cfg.Log, p.logLevel, p.logOut))
	if err != nil {
		return errors.Wrap(err, "cannot setup config file for monitoring")
	}
	log.Infof("monitoring config file at: %s", p.configPath)

	p.serviceManager = overwatch.NewAppManager(func(name string, hash string, err error) {
		if err != nil {
			logger.Default().Errorf("%s service (%s) encountered an error: %v", name, hash, err)
			return
		}
		logger.Default().Debugf("%s service (%s) stopped", name, hash)
	})
	return nil
}

func (p *program) Start() error {
	go func() {
		if err := p.configManager.Start(p); err != nil {
			logger.Default().Errorf("config manager: %v", err)
		}
	}()
	return nil
}

func (p *program) Stop() error {
	log := logger.Default()
	notifyStopping(log)
	p.configManager.Shutdown()
	p.serviceManager.Shutdown()
	log.Infof("ddnsd stopped")
	if c, ok := p.logOut.(io.Closer); ok && !isStdStream(p.logOut) {
		_ = c.Close()
	}
	return nil
}

// ConfigDidUpdate replaces the running services when the configuration
// changed.
func (p *program) ConfigDidUpdate(cfg config.Root) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := cfg.Hash()
	if hash == p.hash {
		return
	}
	p.hash = hash
	p.setLogger(&cfg)
	log := logger.Default()

	current := p.metrics.Load()
	if cfg.Metrics == nil || cfg.Metrics.Listen == "" {
		if current != nil {
			p.metrics.Store(nil)
			p.serviceManager.Remove(metrics.Code)
		}
	} else if srv := metrics.NewServer(cfg.Metrics, log); current == nil || current.Hash() != srv.Hash() {
		p.metrics.Store(srv)
		p.serviceManager.Add(srv)
	}

	opts := append([]service.Option{service.WithReady(p.ready)}, p.options...)
	ddns, errs := service.NewDDNS(&cfg, log, opts...)
	if len(errs) > 0 {
		log.Warnf("%d target(s) excluded by configuration errors", len(errs))
	}
	log.Infof("configuration %s loaded with %d scheduled target(s)", hash, len(ddns.Targets()))
	p.serviceManager.Add(ddns)
}

func (p *program) ready() {
	if srv := p.metrics.Load(); srv != nil {
		srv.SetReady(true)
	}
	notifyReady(logger.Default())
}

// setLogger installs the process logger for cfg, reusing the current output
// when it did not change.
func (p *program) setLogger(cfg *config.Root) {
	key := logOutputKey(cfg.Log)
	if p.logOut == nil || key != p.logKey {
		if c, ok := p.logOut.(io.Closer); ok && !isStdStream(p.logOut) {
			_ = c.Close()
		}
		p.logOut = logOutput(cfg.Log)
		p.logKey = key
	}
	logger.SetDefault(logFromConfig(cfg.Log, p.logLevel, p.logOut))
}

func isStdStream(w io.Writer) bool {
	return w == os.Stdout || w == os.Stderr
}
