package imap

import (
	"context"
	"crypto/tls"
	"fmt"

	"dashstat/internal/config"
	"dashstat/internal/mailbox"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
)

type Client interface {
	Login(username, password string) error
	Logout() error
	StartTLS(config *tls.Config) error
	Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error)
	List(ref, name string, ch chan *imap.MailboxInfo) error
}

type Service struct {
	Connector func(cfg config.Config) (Client, error)
}

func NewService() *Service {
	return &Service{Connector: Connect}
}

func Connect(cfg config.Config) (Client, error) {
	addr := config.Addr(cfg.IMAP.Host, cfg.IMAP.Port)
	tlsConfig := &tls.Config{
		ServerName:         cfg.IMAP.Host,
		InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
	}

	var c *imapclient.Client
	var err error

	if cfg.IMAP.TLS {
		c, err = imapclient.DialTLS(addr, tlsConfig)
	} else {
		c, err = imapclient.Dial(addr)
		if err == nil && cfg.IMAP.StartTLS {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Logout()
				return nil, err
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}

	if err := c.Login(cfg.Auth.Username, cfg.Auth.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	return c, nil
}

func (s *Service) withClient(cfg config.Config, fn func(Client) error) error {
	connector := s.Connector
	if connector == nil {
		connector = Connect
	}
	client, err := connector(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Logout()
	}()
	return fn(client)
}

// ListMailboxes returns the names of all selectable mailboxes.
func (s *Service) ListMailboxes(cfg config.Config) ([]string, error) {
	mailboxes := []string{}
	err := s.withClient(cfg, func(c Client) error {
		names, err := listSelectable(c)
		mailboxes = names
		return err
	})
	return mailboxes, err
}

// Unread asks the server for the UNSEEN count of every selectable mailbox
// over a single connection. The result is sorted by name.
func (s *Service) Unread(ctx context.Context, cfg config.Config) ([]mailbox.Status, error) {
	var statuses []mailbox.Status
	err := s.withClient(cfg, func(c Client) error {
		names, err := listSelectable(c)
		if err != nil {
			return err
		}
		statuses = make([]mailbox.Status, 0, len(names))
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return err
			}
			mb, err := c.Status(name, []imap.StatusItem{imap.StatusUnseen})
			if err != nil {
				return fmt.Errorf("status %s: %w", name, err)
			}
			statuses = append(statuses, mailbox.Status{Name: name, Unread: int(mb.Unseen)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	mailbox.SortByName(statuses)
	return statuses, nil
}

func listSelectable(c Client) ([]string, error) {
	names := []string{}
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", ch)
	}()
	for mbox := range ch {
		if hasAttr(mbox.Attributes, imap.NoSelectAttr) {
			continue
		}
		names = append(names, mbox.Name)
	}
	return names, <-done
}

func hasAttr(attrs []string, want string) bool {
	for _, attr := range attrs {
		if attr == want {
			return true
		}
	}
	return false
}

// Source adapts the service to the refresher's mailbox source contract.
type Source struct {
	Service *Service
	Config  config.Config
}

func (s Source) Mailboxes(ctx context.Context) ([]mailbox.Status, error) {
	return s.Service.Unread(ctx, s.Config)
}
