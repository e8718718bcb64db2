package cmd

import (
	"github.com/grovetools/booth/cli"
	"github.com/grovetools/booth/version"
	"github.com/spf13/cobra"
)

// NewRootCmd returns the boothd command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("boothd", "Photo booth kiosk daemon")
	root.Long = `boothd captures photos, groups them into sessions and uploads them to
cloud storage. While the network is down photos are queued on disk and
uploaded once connectivity returns.`

	info := version.GetInfo()
	cli.SetVersionTemplate(root, info)

	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCaptureCmd())
	root.AddCommand(newQRCmd())
	root.AddCommand(newSessionsCmd())
	root.AddCommand(newQueueCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newPathsCmd())
	root.AddCommand(cli.NewVersionCommand("boothd", info))

	cli.ApplyStyledHelpRecursive(root)
	return root
}
