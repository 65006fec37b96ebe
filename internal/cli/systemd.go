package cli

import (
	"github.com/spf13/cobra"

	"dashstat/internal/config"
	"dashstat/internal/httpserver"
	"dashstat/internal/systemd"
)

func newSystemdCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "systemd",
		Short: "Systemd unit health status",
	}
	cmd.AddCommand(newSystemdServeCmd(opts))
	return cmd
}

func newSystemdServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host    string
		port    int
		timeout int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve allow-listed systemd unit states",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Systemd.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Systemd.Port = port
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Systemd.Timeout = timeout
			}
			if err := config.ValidateSystemd(cfg); err != nil {
				return err
			}

			logger = logger.With("server", "systemd")
			checker := systemd.NewChecker(cfg.Systemd.Services, cfg.Systemd.CommandTimeout())
			handler := systemd.NewHandler(checker, cfg.Server.Token, logger)
			return httpserver.ListenAndServe(cmd.Context(), config.Addr(cfg.Systemd.Host, cfg.Systemd.Port), handler, logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "systemctl timeout in seconds")

	return cmd
}
