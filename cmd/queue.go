package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/booth/cli"
	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/reconciler"
	"github.com/grovetools/booth/pkg/models"
	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drain the offline upload queue",
	}
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueFlushCmd())
	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List photos waiting for upload",
		Long: `List photos waiting for upload. When the daemon is stopped the persisted
queue is read directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}

			items, err := queuedItems(cmd, cfg)
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), items)
			}
			renderQueue(cmd.OutOrStdout(), items, time.Now())
			return nil
		},
	}
}

// queuedItems asks the daemon for its queue and falls back to the
// persisted file when no daemon is running.
func queuedItems(cmd *cobra.Command, cfg *config.Config) ([]models.QueueItem, error) {
	client, err := daemonClient(cmd)
	if err == nil {
		defer client.Close()
		return client.Queue(cmd.Context())
	}
	if !errors.Is(err, errors.ErrCodeDaemonNotRunning) {
		return nil, err
	}

	persister, err := openPersister(cfg)
	if err != nil {
		return nil, err
	}
	defer persister.Close()
	return persister.Load()
}

func renderQueue(w io.Writer, items []models.QueueItem, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Queue is empty")
		return
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(cli.ColorAccent)
	fmt.Fprintln(w, header.Render(fmt.Sprintf("%-36s  %-10s  %s", "SESSION", "WAITING", "PHOTO")))
	for _, item := range items {
		waiting := now.Sub(item.EnqueuedAt).Round(time.Second)
		fmt.Fprintf(w, "%-36s  %-10s  %s\n", item.SessionID, waiting, item.PhotoPath)
	}
}

func newQueueFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Run a reconcile pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			report, err := client.Flush(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func renderReport(w io.Writer, r reconciler.Report) {
	if !r.Online {
		fmt.Fprintf(w, "Offline: %d photo(s) still queued\n", r.Remaining)
	} else {
		fmt.Fprintf(w, "Uploaded %d of %d, %d failed, %d remaining\n", r.Uploaded, r.Attempted, r.Failed, r.Remaining)
	}
	if len(r.Expired) > 0 {
		fmt.Fprintf(w, "Expired %d session(s)\n", len(r.Expired))
	}
}
