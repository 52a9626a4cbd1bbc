// Command harnessd is the control-plane daemon (spec.md §2): it owns the
// Store, Journal, Session Registry, and Stream Server, and serves the
// line-JSON protocol described in spec.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentharness/harness/internal/config"
	"github.com/agentharness/harness/internal/daemon"
)

func main() {
	var configPath string
	var host string
	var port int
	var authToken string
	var requireToken bool

	root := &cobra.Command{
		Use:   "harnessd",
		Short: "harness control-plane daemon",
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
				cfg.AuthToken = authToken
				cfg.RequireToken = true
			}
			if cmd.Flags().Changed("require-token") {
				cfg.RequireToken = requireToken
			}
			return daemon.Run(cfg)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.Flags().StringVar(&host, "host", "", "override listen host")
	root.Flags().IntVar(&port, "port", 0, "override listen port")
	root.Flags().StringVar(&authToken, "token", "", "shared bearer token (implies --require-token)")
	root.Flags().BoolVar(&requireToken, "require-token", false, "require auth before any command")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
