package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentharness/harness/internal/config"
	"github.com/agentharness/harness/internal/daemon"
)

// serveCmd starts harnessd in the foreground. Grounded on the teacher's
// own `serve` subcommand, which parsed its own flag set and called
// straight into the server package rather than shelling out.
func serveCmd() *cobra.Command {
	var configPath string
	var host string
	var port int
	var token string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the harness daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("token") {
				cfg.AuthToken = token
				cfg.RequireToken = true
			}
			return daemon.Run(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&host, "host", "", "override listen host")
	cmd.Flags().IntVar(&port, "port", 0, "override listen port")
	cmd.Flags().StringVar(&token, "token", "", "shared bearer token (implies --require-token)")
	return cmd
}
