package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"

	"dashstat/internal/config"

	"github.com/emersion/go-imap"
)

type mockClient struct {
	list      []*imap.MailboxInfo
	unseen    map[string]uint32
	statusErr error
	loggedOut bool
	queried   []string
}

func (m *mockClient) Login(username, password string) error { return nil }
func (m *mockClient) Logout() error {
	m.loggedOut = true
	return nil
}
func (m *mockClient) StartTLS(config *tls.Config) error { return nil }
func (m *mockClient) Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error) {
	m.queried = append(m.queried, name)
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &imap.MailboxStatus{Name: name, Unseen: m.unseen[name]}, nil
}
func (m *mockClient) List(ref, name string, ch chan *imap.MailboxInfo) error {
	for _, mailbox := range m.list {
		ch <- mailbox
	}
	close(ch)
	return nil
}

func newMockService(mock *mockClient) *Service {
	return &Service{Connector: func(cfg config.Config) (Client, error) {
		return mock, nil
	}}
}

func TestListMailboxesWithMock(t *testing.T) {
	mock := &mockClient{list: []*imap.MailboxInfo{
		{Name: "INBOX"},
		{Name: "[Gmail]", Attributes: []string{imap.NoSelectAttr}},
		{Name: "Archive"},
	}}

	mailboxes, err := newMockService(mock).ListMailboxes(config.Config{})
	if err != nil {
		t.Fatalf("list mailboxes: %v", err)
	}
	if len(mailboxes) != 2 {
		t.Fatalf("expected 2 mailboxes, got %d", len(mailboxes))
	}
	if mailboxes[0] != "INBOX" || mailboxes[1] != "Archive" {
		t.Fatalf("unexpected mailboxes: %v", mailboxes)
	}
	if !mock.loggedOut {
		t.Fatalf("expected logout to be called")
	}
}

func TestUnreadSortedByName(t *testing.T) {
	mock := &mockClient{
		list:   []*imap.MailboxInfo{{Name: "Work"}, {Name: "INBOX"}, {Name: "Archive"}},
		unseen: map[string]uint32{"INBOX": 4, "Work": 1},
	}

	src := Source{Service: newMockService(mock)}
	got, err := src.Mailboxes(context.Background())
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 statuses, got %+v", got)
	}
	if got[0].Name != "Archive" || got[1].Name != "INBOX" || got[2].Name != "Work" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Unread != 4 || got[2].Unread != 1 || got[0].Unread != 0 {
		t.Fatalf("unexpected counts: %+v", got)
	}
}

func TestUnreadStatusError(t *testing.T) {
	mock := &mockClient{
		list:      []*imap.MailboxInfo{{Name: "INBOX"}},
		statusErr: errors.New("NO mailbox locked"),
	}

	if _, err := newMockService(mock).Unread(context.Background(), config.Config{}); err == nil {
		t.Fatalf("expected status error")
	}
	if !mock.loggedOut {
		t.Fatalf("expected logout after failure")
	}
}

func TestUnreadConnectError(t *testing.T) {
	svc := &Service{Connector: func(cfg config.Config) (Client, error) {
		return nil, errors.New("dial refused")
	}}
	if _, err := svc.Unread(context.Background(), config.Config{}); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestUnreadStopsOnCancel(t *testing.T) {
	mock := &mockClient{list: []*imap.MailboxInfo{{Name: "INBOX"}, {Name: "Work"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newMockService(mock).Unread(ctx, config.Config{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(mock.queried) != 0 {
		t.Fatalf("no mailbox should be queried after cancel, got %v", mock.queried)
	}
}
