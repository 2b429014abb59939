package main

import (
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/internal/config"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "gosession",
		Short: "Session and token lifecycle demo",
		Long: `gosession serves a demo site guarded by cookie sessions and can drive a
refresh storm against the embedded GraphQL API to show single-flight refresh.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: CONFIG_PATH, ./local.yaml, or env only)")

	cmd.AddCommand(newServeCmd(opts), newLoadtestCmd(opts))
	return cmd
}
