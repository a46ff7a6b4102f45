// Package app assembles the daemon: settings store, display, network
// watcher, cycle orchestrator, and the HTTP API, with one lifecycle for all
// of them.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/internal/api"
	"github.com/Alpha162/armoured-candles/internal/display"
	"github.com/Alpha162/armoured-candles/internal/exchange"
	"github.com/Alpha162/armoured-candles/internal/metrics"
	"github.com/Alpha162/armoured-candles/internal/netwatch"
	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/internal/store"
	"github.com/Alpha162/armoured-candles/internal/ticker"
	"github.com/Alpha162/armoured-candles/pkg/config"
)

// App is the assembled device daemon.
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	kv       store.KV
	settings *store.Store
	met      *metrics.Metrics
	display  *display.Display
	watcher  *netwatch.Watcher
	orch     *ticker.Orchestrator
	api      *api.Server
}

// New creates the application shell; Initialize wires the components.
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize connects the settings store, loads settings, and builds every
// component in dependency order.
func (a *App) Initialize() error {
	if err := a.initializeStore(); err != nil {
		return fmt.Errorf("failed to initialize settings store: %w", err)
	}

	settings, err := a.settings.Load(a.ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	a.met = metrics.New()

	driver := display.NewSimDriver(a.cfg.Display.FrameDir, a.logger)
	if err := driver.Init(); err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	a.display = display.New(driver, display.NewPolicy(settings.FullRefreshEvery, settings.PartialThreshold), a.logger)

	radio := netwatch.NewSystemRadio(a.cfg.Network.Interface, a.cfg.Network.CommandTimeout, a.logger)
	a.watcher = netwatch.NewWatcher(radio, a.cfg.Network, clock.New(), a.logger)

	httpClient := exchange.NewHTTPClient(a.cfg.Fetch.Timeout)
	a.orch = ticker.New(httpClient, a.display, a.watcher, a.met, clock.New(), a.cfg.Display.Width, a.cfg.Display.Height, a.logger)
	a.orch.ApplySettings(settings)

	a.api = api.NewServer(a.cfg, a.logger, a.orch, a.settings, a.display, a.met, rebootDevice)
	return nil
}

// initializeStore connects to the persistent store, falling back to an
// in-memory store so the device still boots, serves its setup UI, and renders
// with factory defaults when the store is unreachable.
func (a *App) initializeStore() error {
	kv, err := store.NewRedisKV(&a.cfg.Redis)
	if err != nil {
		a.logger.WithError(err).Warn("Settings store unreachable, settings will not persist")
		a.kv = store.NewMemoryKV()
	} else {
		a.kv = kv
	}
	a.settings = store.New(a.kv, a.logger)
	return nil
}

// Start pushes the boot status screen and launches the long-running loops.
func (a *App) Start() error {
	a.showBootScreen()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watcher.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.orch.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.api.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server exited")
		}
	}()

	a.logger.Info("Device daemon started")
	return nil
}

// Stop shuts everything down, putting the panel to sleep last.
func (a *App) Stop() error {
	a.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.api.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.wg.Wait()

	if err := a.display.Sleep(); err != nil {
		a.logger.WithError(err).Warn("Panel sleep failed")
	}
	if err := a.kv.Close(); err != nil {
		a.logger.WithError(err).Warn("Settings store close failed")
	}

	a.logger.Info("Device daemon stopped")
	return nil
}

// showBootScreen renders the startup status so the panel is never blank
// while the first fetch cycle runs.
func (a *App) showBootScreen() {
	fb := render.NewFramebuffer(a.cfg.Display.Width, a.cfg.Display.Height)
	render.DrawStatus(fb, render.StatusInfo{
		Mode:  "starting",
		Lines: []string{fmt.Sprintf("config: http://%s/", a.cfg.GetServerAddr())},
	})
	if _, err := a.display.Push(fb, true); err != nil {
		a.logger.WithError(err).Warn("Boot screen push failed")
	}
}

// rebootDevice asks the init system for a reboot.
func rebootDevice() error {
	return exec.Command("systemctl", "reboot").Run()
}
