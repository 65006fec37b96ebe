package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dashstat/internal/config"
	"dashstat/internal/httpserver"
	"dashstat/internal/jsonx"
	"dashstat/internal/weather"
)

func newWeatherCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Cached OpenWeatherMap forecast",
	}
	cmd.AddCommand(newWeatherServeCmd(opts))
	cmd.AddCommand(newWeatherFetchCmd(opts))
	return cmd
}

func newWeatherService(cfg config.Config, logger *slog.Logger) (*weather.Service, error) {
	if err := config.ValidateWeather(cfg); err != nil {
		return nil, err
	}
	dataDir, err := config.ExpandPath(cfg.Weather.DataDir)
	if err != nil {
		return nil, fmt.Errorf("weather.data_dir: %w", err)
	}

	return weather.NewService(weather.Options{
		Endpoint: cfg.Weather.Endpoint,
		APIKey:   cfg.Weather.APIKey,
		Lat:      cfg.Weather.Lat,
		Lon:      cfg.Weather.Lon,
		Units:    cfg.Weather.Units,
		DataDir:  dataDir,
		TTL:      cfg.Weather.TTL(),
		Days:     cfg.Weather.Days,
	}, nil, logger), nil
}

func newWeatherServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached forecast as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Weather.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Weather.Port = port
			}

			logger = logger.With("server", "weather")
			svc, err := newWeatherService(cfg, logger)
			if err != nil {
				return err
			}
			return httpserver.ListenAndServe(cmd.Context(), config.Addr(cfg.Weather.Host, cfg.Weather.Port), weather.NewHandler(svc), logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port")

	return cmd
}

func newWeatherFetchCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Refresh the forecast cache and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			svc, err := newWeatherService(cfg, logger)
			if err != nil {
				return err
			}

			if err := svc.Refresh(cmd.Context()); err != nil {
				logger.Warn("refresh incomplete, serving cache", "error", err)
			}
			report, err := svc.Forecast(cmd.Context(), days)
			if err != nil {
				return err
			}
			out, err := jsonx.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Number of days to print (default weather.days)")

	return cmd
}
