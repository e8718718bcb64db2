package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/booth/cli"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/pkg/models"
	"github.com/spf13/cobra"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take a photo through the running daemon",
		Long: `Trigger one capture. Without --session a new session is started; with it
the photo is added to that session ("take another").

Examples:
  boothd capture
  boothd capture --session 5b1c... --overlay=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			req := orchestrator.Request{}
			req.SessionID, _ = cmd.Flags().GetString("session")
			if cmd.Flags().Changed("overlay") {
				overlay, _ := cmd.Flags().GetBool("overlay")
				req.Overlay = &overlay
			}

			result, err := client.Capture(cmd.Context(), req)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				renderCapture(cmd.OutOrStdout(), result)
			}
			if !result.Success {
				return errors.New(errors.ErrorCode(result.ErrorCode), result.Error)
			}
			return nil
		},
	}
	cmd.Flags().String("session", "", "Add the photo to this session")
	cmd.Flags().Bool("overlay", true, "Apply the configured overlay (overrides the config)")
	return cmd
}

func renderCapture(w io.Writer, r models.CaptureResult) {
	if !r.Success {
		return
	}
	ok := lipgloss.NewStyle().Bold(true).Foreground(cli.ColorGreen)
	muted := lipgloss.NewStyle().Foreground(cli.ColorMuted)
	fmt.Fprintf(w, "%s %s\n", ok.Render("Captured"), r.PhotoPath)
	fmt.Fprintf(w, "  session  %s\n", r.SessionID)
	switch {
	case r.RemoteURL != "":
		fmt.Fprintf(w, "  uploaded %s\n", r.RemoteURL)
	case r.Queued:
		fmt.Fprintln(w, muted.Render("  queued for upload when the network returns"))
	}
}

func newQRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qr <session-id>",
		Short: "Show what the QR screen displays for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			qr, err := client.QR(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), qr)
			}
			w := cmd.OutOrStdout()
			if qr.Type == models.QROnline {
				fmt.Fprintf(w, "%s %s\n", lipgloss.NewStyle().Bold(true).Foreground(cli.ColorGreen).Render("online"), qr.URL)
			} else {
				fmt.Fprintf(w, "%s %s\n", lipgloss.NewStyle().Bold(true).Foreground(cli.ColorAccent).Render("offline"), qr.Message)
			}
			fmt.Fprintf(w, "  %d photo(s) in session %s\n", qr.PhotoCount, qr.SessionID)
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			sessions, err := client.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			renderSessions(cmd.OutOrStdout(), sessions, time.Now())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Start an empty session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			s, err := client.CreateSession(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	})
	return cmd
}

func renderSessions(w io.Writer, sessions []*models.Session, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No active sessions")
		return
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(cli.ColorAccent)
	fmt.Fprintln(w, header.Render(fmt.Sprintf("%-36s  %6s  %-8s  %s", "SESSION", "PHOTOS", "IDLE", "LINK")))
	for _, s := range sessions {
		link := s.ShareURL
		if link == "" {
			link = "-"
		}
		idle := now.Sub(s.LastActivity).Round(time.Second)
		fmt.Fprintf(w, "%-36s  %6d  %-8s  %s\n", s.ID, len(s.Photos), idle, link)
	}
}
