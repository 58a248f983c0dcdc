package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/dissect/internal/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a capture would run with, after merging the
config file, DISSECT_* environment variables and flags, as YAML.

Examples:
  dissect config -c dissect.yml
  DISSECT_CAPTURE_PORT=5080 dissect config --protocol sip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printConfig(cfg, cmd.OutOrStdout())
		},
	}
}

func printConfig(cfg *config.Config, out io.Writer) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
