package cli

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/booth/version"
	"github.com/spf13/cobra"
)

// SetVersionTemplate sets a custom version template for a cobra command
func SetVersionTemplate(cmd *cobra.Command, info version.Info) {
	cmd.Version = info.Version
	cmd.SetVersionTemplate(fmt.Sprintf(`{{.Name}} {{.Version}}
  Commit:    %s
  Built:     %s
  Arch:      %s
`, info.Commit, info.BuildDate, info.Platform))
}

// NewVersionCommand creates a standard version command
func NewVersionCommand(componentName string, info version.Info) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Print the version number of %s", componentName),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
				return nil
			}
			fmt.Fprintf(w, "%s %s\n", componentName, info.Version)
			fmt.Fprintf(w, "  Commit:    %s\n", info.Commit)
			fmt.Fprintf(w, "  Built:     %s\n", info.BuildDate)
			fmt.Fprintf(w, "  Go:        %s\n", info.GoVersion)
			fmt.Fprintf(w, "  Arch:      %s\n", info.Platform)
			return nil
		},
	}
}
