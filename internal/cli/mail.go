package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"dashstat/internal/config"
	"dashstat/internal/httpserver"
	"dashstat/internal/imap"
	"dashstat/internal/jsonx"
	"dashstat/internal/maildir"
	"dashstat/internal/mailstatus"
)

func newMailCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Mailbox unread-count status",
	}
	cmd.AddCommand(newMailServeCmd(opts))
	cmd.AddCommand(newMailOnceCmd(opts))
	cmd.AddCommand(newMailMailboxesCmd(opts))
	return cmd
}

// newMailMailboxesCmd lists the selectable IMAP folders, to check the imap
// settings before switching mail.source to imap.
func newMailMailboxesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailboxes",
		Short: "List selectable IMAP mailboxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if err := config.ValidateIMAP(cfg); err != nil {
				return err
			}

			names, err := imap.NewService().ListMailboxes(cfg)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	return cmd
}

type mailFlags struct {
	maildir         string
	syncCommand     string
	syncTimeout     int
	refreshInterval int
	source          string
	preview         bool
}

func (f *mailFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.maildir, "maildir", "", "Maildir root to scan")
	cmd.Flags().StringVar(&f.syncCommand, "sync-command", "", "Sync command run before each scan (empty disables)")
	cmd.Flags().IntVar(&f.syncTimeout, "sync-timeout", 0, "Sync command timeout in seconds")
	cmd.Flags().IntVar(&f.refreshInterval, "refresh-interval", 0, "Seconds between refreshes")
	cmd.Flags().StringVar(&f.source, "source", "", "Mailbox source: maildir or imap")
	cmd.Flags().BoolVar(&f.preview, "preview", false, "Include the newest unread message in mailbox titles")
}

func (f *mailFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("maildir") {
		cfg.Mail.Maildir = f.maildir
	}
	if cmd.Flags().Changed("sync-command") {
		cfg.Mail.SyncCommand = f.syncCommand
	}
	if cmd.Flags().Changed("sync-timeout") {
		cfg.Mail.SyncTimeout = f.syncTimeout
	}
	if cmd.Flags().Changed("refresh-interval") {
		cfg.Mail.RefreshInterval = f.refreshInterval
	}
	if cmd.Flags().Changed("source") {
		cfg.Mail.Source = f.source
	}
	if cmd.Flags().Changed("preview") {
		cfg.Mail.Preview = f.preview
	}
}

// newRefresher validates the mail config and wires the configured source.
// A missing Maildir root is a startup error.
func newRefresher(cfg config.Config, logger *slog.Logger) (*mailstatus.Refresher, error) {
	if err := config.ValidateMail(cfg); err != nil {
		return nil, err
	}

	var source mailstatus.Source
	switch cfg.Mail.Source {
	case config.SourceIMAP:
		source = imap.Source{Service: imap.NewService(), Config: cfg}
	default:
		root, err := config.ExpandPath(cfg.Mail.Maildir)
		if err != nil {
			return nil, fmt.Errorf("mail.maildir: %w", err)
		}
		if err := maildir.CheckRoot(root); err != nil {
			return nil, err
		}
		source = maildir.NewScanner(root, cfg.Mail.Preview)
	}

	return &mailstatus.Refresher{
		Source:      source,
		SyncCommand: cfg.Mail.SyncCommand,
		SyncTimeout: cfg.Mail.Timeout(),
		Interval:    cfg.Mail.Interval(),
		Logger:      logger,
	}, nil
}

func newMailServeCmd(opts *rootOptions) *cobra.Command {
	var (
		flags mailFlags
		host  string
		port  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh unread counts periodically and serve them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)
			if cmd.Flags().Changed("host") {
				cfg.Mail.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Mail.Port = port
			}

			refresher, err := newRefresher(cfg, logger)
			if err != nil {
				return err
			}
			ln, err := httpserver.Listen(config.Addr(cfg.Mail.Host, cfg.Mail.Port))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			store := mailstatus.NewStore()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				refresher.Run(ctx, store)
			}()

			handler := mailstatus.NewHandler(store, cfg.Server.Token)
			serveErr := httpserver.Serve(ctx, ln, handler, logger.With("server", "mail"))

			cancel()
			logger.Info("waiting for refresh to finish")
			wg.Wait()
			return serveErr
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&host, "host", "", "Listen host")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port")

	return cmd
}

func newMailOnceCmd(opts *rootOptions) *cobra.Command {
	var flags mailFlags

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run one refresh and print the payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)

			refresher, err := newRefresher(cfg, logger)
			if err != nil {
				return err
			}

			entries := refresher.RefreshOnce(cmd.Context())
			out, err := jsonx.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
