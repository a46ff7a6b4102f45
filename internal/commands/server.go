package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Alpha162/armoured-candles/internal/app"
	"github.com/Alpha162/armoured-candles/pkg/config"
	"github.com/Alpha162/armoured-candles/pkg/logger"
)

var (
	serverPort int
	serverHost string
	logLevel   string
	frameDir   string
)

// serverCmd runs the device daemon.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the ticker daemon",
	Long: `Start the ticker daemon: the fetch/render/refresh cycle, the network
watcher, and the HTTP configuration API.

Examples:
  armoured-candles server                      # defaults
  armoured-candles server --port 9090          # custom API port
  armoured-candles server --frame-dir ./frames # dump rendered frames as BMPs
  armoured-candles server --log-level debug`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "API port (overrides SERVER_PORT)")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "", "API host (overrides SERVER_HOST)")
	serverCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	serverCmd.Flags().StringVar(&frameDir, "frame-dir", "", "dump each pushed frame as a BMP into this directory")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(cfg)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log.Info("Starting armoured-candles daemon")

	daemon := app.New(cfg, log)
	if err := daemon.Initialize(); err != nil {
		log.WithError(err).Error("Initialization failed")
		return err
	}
	if err := daemon.Start(); err != nil {
		log.WithError(err).Error("Startup failed")
		return err
	}

	sig := waitForSignal()
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	return stopWithTimeout(daemon, log, 10*time.Second)
}

// applyFlags lets command-line flags win over environment configuration.
func applyFlags(cfg *config.Config) {
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if frameDir != "" {
		cfg.Display.FrameDir = frameDir
	}
}

func waitForSignal() os.Signal {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	return <-interrupt
}

// stopWithTimeout runs the graceful shutdown but refuses to hang the host
// forever; the panel sleep command can block on a wedged SPI bus.
func stopWithTimeout(daemon *app.App, log *logrus.Logger, budget time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- daemon.Stop() }()

	select {
	case err := <-done:
		log.Info("Shutdown complete")
		return err
	case <-ctx.Done():
		log.Warn("Shutdown timeout, forcing exit")
		os.Exit(1)
		return nil
	}
}
