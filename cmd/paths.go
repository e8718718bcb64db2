package cmd

import (
	"fmt"

	"github.com/grovetools/booth/cli"
	"github.com/grovetools/booth/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the directories and files boothd uses.
type PathsOutput struct {
	ConfigDir   string `json:"config_dir"`
	DataDir     string `json:"data_dir"`
	StateDir    string `json:"state_dir"`
	RuntimeDir  string `json:"runtime_dir"`
	PicturesDir string `json:"pictures_dir"`
	QueueDir    string `json:"queue_dir"`
	LogsDir     string `json:"logs_dir"`
	Socket      string `json:"socket"`
	PidFile     string `json:"pid_file"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by boothd",
		Long: `Print the directories and files boothd uses. BOOTH_HOME moves all of
them under one directory; otherwise the XDG base directories apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := PathsOutput{
				ConfigDir:   paths.ConfigDir(),
				DataDir:     paths.DataDir(),
				StateDir:    paths.StateDir(),
				RuntimeDir:  paths.RuntimeDir(),
				PicturesDir: paths.PicturesDir(),
				QueueDir:    paths.QueueDir(),
				LogsDir:     paths.LogsDir(),
				Socket:      paths.SocketPath(),
				PidFile:     paths.PidFilePath(),
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "config    %s\n", out.ConfigDir)
			fmt.Fprintf(w, "data      %s\n", out.DataDir)
			fmt.Fprintf(w, "state     %s\n", out.StateDir)
			fmt.Fprintf(w, "runtime   %s\n", out.RuntimeDir)
			fmt.Fprintf(w, "pictures  %s\n", out.PicturesDir)
			fmt.Fprintf(w, "queue     %s\n", out.QueueDir)
			fmt.Fprintf(w, "logs      %s\n", out.LogsDir)
			fmt.Fprintf(w, "socket    %s\n", out.Socket)
			fmt.Fprintf(w, "pidfile   %s\n", out.PidFile)
			return nil
		},
	}
}
