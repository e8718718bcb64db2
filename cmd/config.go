package cmd

import (
	"fmt"
	"strings"

	"github.com/grovetools/booth/cli"
	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/logging"
	"github.com/grovetools/booth/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect, validate and change the booth configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}

			w := cmd.OutOrStdout()
			source := cfg.Path()
			if source == "" {
				source = "(defaults, no file found)"
			}
			fmt.Fprintf(w, "# Source: %s\n", source)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(w, string(data))
			return nil
		},
	}
}

// composedSchema returns the booth.yml schema including extension sections.
func composedSchema() ([]byte, error) {
	base, err := config.GenerateSchema()
	if err != nil {
		return nil, err
	}
	logSchema, err := logging.GenerateSchema()
	if err != nil {
		return nil, err
	}
	return schema.Compose(base, map[string][]byte{"logging": logSchema})
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for booth.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := composedSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			if len(args) == 1 {
				opts.ConfigFile = args[0]
			}
			cfg, err := cli.LoadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Path() == "" {
				return errors.ConfigNotFound(config.DefaultWritePath())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", cfg.Path())
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change settings and write them back to booth.yml",
		Long: `Change one or more settings by dotted key. Values are parsed as YAML
scalars. A running daemon applies them immediately; otherwise the file is
updated for the next start.

Examples:
  boothd config set --pin 1234 session.max_photos=10
  boothd config set --pin 1234 camera.overlay_enabled=false upload.folder_prefix=wedding`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}
			pin, _ := cmd.Flags().GetString("pin")

			var updated []string
			client, err := daemonClient(cmd)
			switch {
			case err == nil:
				defer client.Close()
				resp, err := client.UpdateSettings(cmd.Context(), pin, values)
				if err != nil {
					return err
				}
				updated = resp.Updated
			case errors.Is(err, errors.ErrCodeDaemonNotRunning):
				cfg, err := cli.LoadConfig(cli.GetOptions(cmd))
				if err != nil {
					return err
				}
				if _, updated, err = config.UpdateSettings(cfg, pin, values); err != nil {
					return err
				}
			default:
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"updated": updated})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", strings.Join(updated, ", "))
			return nil
		},
	}
	cmd.Flags().String("pin", "", "Admin PIN")
	return cmd
}

// parseAssignments turns key=value arguments into typed settings values.
func parseAssignments(args []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("expected key=value, got %q", arg))
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		values[key] = value
	}
	return values, nil
}
