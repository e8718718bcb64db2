package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/booth/cli"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Long: `Print today's daemon log file. JSON lines are pretty-printed unless
--json is given.

Examples:
  # Follow the log
  boothd logs -f

  # Last 50 lines as JSON
  boothd logs --tail 50 --json`,
		RunE: runLogs,
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	path := logPathFor(cmd)
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	jsonOut := cli.GetOptions(cmd).JSONOutput
	w := cmd.OutOrStdout()

	emit := func(line string) {
		if line = strings.TrimSpace(line); line == "" {
			return
		}
		if jsonOut {
			fmt.Fprintln(w, line)
			return
		}
		fmt.Fprintln(w, formatLogLine(line))
	}

	var offset int64
	f, err := os.Open(path)
	switch {
	case err == nil:
		lines, end, err := readLastLines(f, tailLines)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		for _, line := range lines {
			emit(line)
		}
		offset = end
	case os.IsNotExist(err) && follow:
	case os.IsNotExist(err):
		return fmt.Errorf("no log file at %s", path)
	default:
		return err
	}

	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			emit(line.Text)
		}
	}
}

// readLastLines returns the last n lines of r (all of them when n < 0) and
// the number of bytes read.
func readLastLines(r io.Reader, n int) ([]string, int64, error) {
	var lines []string
	var read int64
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		read += int64(len(line))
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
			if n >= 0 && len(lines) > n {
				lines = lines[1:]
			}
		}
		if err == io.EOF {
			return lines, read, nil
		}
		if err != nil {
			return nil, read, err
		}
	}
}

var (
	logTimeStyle  = lipgloss.NewStyle().Foreground(cli.ColorMuted)
	logCompStyle  = lipgloss.NewStyle().Foreground(cli.ColorAccent)
	logErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.ColorRed)
	logWarnStyle  = lipgloss.NewStyle().Foreground(cli.ColorAccent)
	logInfoStyle  = lipgloss.NewStyle().Foreground(cli.ColorBlue)
)

// formatLogLine pretty-prints a JSON log line. Other lines are returned
// unchanged.
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	ts, _ := entry["time"].(string)
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)
	component, _ := entry["component"].(string)

	timeStr := ts
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		timeStr = parsed.Format("15:04:05")
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = logErrorStyle
	case "warning", "warn":
		levelStyle = logWarnStyle
	case "info":
		levelStyle = logInfoStyle
	default:
		levelStyle = logTimeStyle
	}

	var keys []string
	for k := range entry {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := []string{
		logTimeStyle.Render(timeStr),
		levelStyle.Render(strings.ToUpper(level)),
		"[" + logCompStyle.Render(component) + "]",
		msg,
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", logTimeStyle.Render(k), entry[k]))
	}
	return strings.Join(parts, " ")
}
