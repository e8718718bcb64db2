package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	stderrors "errors"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/booth/cli"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/pidfile"
	"github.com/grovetools/booth/internal/daemon/server"
	"github.com/grovetools/booth/logging"
	"github.com/grovetools/booth/pkg/boothclient"
	"github.com/grovetools/booth/pkg/paths"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 5 * time.Second
	stopTimeout     = 10 * time.Second
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Long: `Start boothd in the foreground. The daemon serves the kiosk API on a
unix socket (and optionally TCP), watches connectivity and uploads queued
photos whenever the network is back.

Examples:
  boothd start
  boothd start -c /etc/booth/booth.yml -v`,
		RunE: runStart,
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	cfg, err := cli.LoadConfig(opts)
	if err != nil {
		return err
	}
	logger := cli.GetLogger(cmd, "boothd")

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create state directories: %w", err)
	}

	// 1. Acquire lock
	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	// 2. Wire components
	d, err := buildDaemon(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.queue.Close(); err != nil {
			logger.WithError(err).Error("Failed to close queue")
		}
	}()
	logStartup(logger, cfg, d)

	// 3. Handle signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			logger.Info("Received stop signal")
		case <-ctx.Done():
			return
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	// 4. Start engine in background
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		d.engine.Start(ctx)
	}()

	// 5. Serve (blocking)
	logger.WithField("pid", os.Getpid()).Info("Starting daemon")
	serveErr := d.server.ListenAndServe(cfg.Server.Socket, cfg.Server.Addr)
	cancel()
	<-engineDone

	if serveErr != nil && !stderrors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", serveErr)
	}
	logger.Info("Daemon stopped")
	return nil
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := pidfile.Stop(paths.PidFilePath(), stopTimeout)
			if errors.Is(err, errors.ErrCodeDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped daemon (PID %d)\n", pid)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, network and queue status",
		Long: `Show whether boothd is running and, if so, its connectivity, queue and
effective configuration. Exits non-zero when the daemon is stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			client := boothclient.New(cfg.Server.Socket)
			defer client.Close()
			if !running && !client.IsRunning() {
				if opts.JSONOutput {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"running": false})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				os.Exit(1)
			}

			st, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			renderStatus(cmd, pid, cfg.Server.Socket, st)
			return nil
		},
	}
}

func renderStatus(cmd *cobra.Command, pid int, socket string, st *server.Status) {
	w := cmd.OutOrStdout()
	label := lipgloss.NewStyle().Foreground(cli.ColorMuted).Width(12)
	online := lipgloss.NewStyle().Bold(true).Foreground(cli.ColorGreen).Render("online")
	if !st.Network.Online {
		online = lipgloss.NewStyle().Bold(true).Foreground(cli.ColorRed).Render("offline")
	}

	fmt.Fprintf(w, "%s%s\n", label.Render("Daemon"), lipgloss.NewStyle().Foreground(cli.ColorGreen).Render(fmt.Sprintf("running (PID %d)", pid)))
	fmt.Fprintf(w, "%s%s\n", label.Render("Version"), st.Version)
	fmt.Fprintf(w, "%s%s\n", label.Render("Socket"), socket)
	network := online
	if st.Network.SSID != "" {
		network += " " + st.Network.SSID
	}
	fmt.Fprintf(w, "%s%s\n", label.Render("Network"), network)
	fmt.Fprintf(w, "%s%d pending (%s)\n", label.Render("Queue"), st.QueueLength, st.QueuePath)
	fmt.Fprintf(w, "%s%d active\n", label.Render("Sessions"), st.Sessions)
	fmt.Fprintf(w, "%s%v\n", label.Render("Workers"), st.Workers)
	if st.Config != nil {
		fmt.Fprintf(w, "%s%s\n", label.Render("Config"), valueOr(st.Config.ConfigFile, "(defaults)"))
		fmt.Fprintf(w, "%s%s\n", label.Render("Uptime"), time.Since(st.Config.StartedAt).Round(time.Second))
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// daemonClient connects to the running daemon configured for cmd.
func daemonClient(cmd *cobra.Command) (*boothclient.Client, error) {
	cfg, err := cli.LoadConfig(cli.GetOptions(cmd))
	if err != nil {
		return nil, err
	}
	return boothclient.Connect(cfg.Server.Socket)
}

// logPathFor returns today's daemon log file for the loaded configuration.
func logPathFor(cmd *cobra.Command) string {
	var logCfg logging.Config
	if cfg, err := cli.LoadConfig(cli.GetOptions(cmd)); err == nil {
		_ = cfg.UnmarshalExtension("logging", &logCfg)
	}
	return logging.ResolveFilePath("boothd", logCfg, time.Now())
}
