package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"dashstat/internal/jsonx"
	"dashstat/internal/maildir"
	"dashstat/internal/mailstatus"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DASHSTAT_KEYRING_BACKEND", "none")
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe for a logger writing from another
// goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func makeMaildir(t *testing.T, unread int) string {
	t.Helper()
	root := t.TempDir()
	newDir := filepath.Join(root, "Inbox", "new")
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i := 0; i < unread; i++ {
		name := filepath.Join(newDir, string(rune('a'+i)))
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "Sent", "cur"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return root
}

func TestMailOncePrintsPayload(t *testing.T) {
	isolate(t)
	root := makeMaildir(t, 3)

	out, err := execute(t, "mail", "once",
		"--maildir", root,
		"--sync-command=",
	)
	if err != nil {
		t.Fatalf("mail once: %v", err)
	}

	var entries []mailstatus.Entry
	if err := jsonx.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(entries) != 1 || entries[0].Value.Text != "Inbox: 3 unread" {
		t.Fatalf("unexpected payload: %s", out)
	}
}

func TestMailOnceReportsFailedSync(t *testing.T) {
	isolate(t)
	root := makeMaildir(t, 1)

	out, err := execute(t, "mail", "once",
		"--maildir", root,
		"--sync-command", "exit 1",
		"--sync-timeout", "10",
	)
	if err != nil {
		t.Fatalf("mail once should succeed even when sync fails: %v", err)
	}

	var entries []mailstatus.Entry
	if err := jsonx.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(entries) != 2 || !strings.HasPrefix(entries[0].Value.Text, "Last sync: exit 1 in ") {
		t.Fatalf("unexpected payload: %s", out)
	}
}

func TestMailOnceMissingRootFails(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "mail", "once",
		"--maildir", filepath.Join(home, "no-such-maildir"),
	)
	if !errors.Is(err, maildir.ErrRootMissing) {
		t.Fatalf("expected ErrRootMissing, got %v", err)
	}
}

func TestMailServeMissingRootFails(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "mail", "serve",
		"--maildir", filepath.Join(home, "no-such-maildir"),
		"--port", "0",
	)
	if !errors.Is(err, maildir.ErrRootMissing) {
		t.Fatalf("expected ErrRootMissing, got %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("DASHSTAT_SERVER_TOKEN", "tok-123")
	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "tok-123") || !strings.Contains(out, "****") {
		t.Fatalf("token should be masked:\n%s", out)
	}

	out, err = execute(t, "config", "show", "--show-secrets")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "tok-123") {
		t.Fatalf("token should be shown with --show-secrets:\n%s", out)
	}
}

func TestLoadConfigSkipsKeyringWhenDisabled(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Token != "" || cfg.Weather.APIKey != "" {
		t.Fatalf("secrets should stay empty: %+v %+v", cfg.Server, cfg.Weather)
	}
}

func TestSecretsSetRejectsUnknownName(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "secrets", "set", "password", "x"); err == nil {
		t.Fatalf("expected error for unknown secret name")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	isolate(t)
	root := makeMaildir(t, 0)

	_, err := execute(t, "mail", "once",
		"--maildir", root,
		"--log-level", "loud",
	)
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected log level error, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}

func TestExplicitMissingConfigFails(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "config", "show", "--config", filepath.Join(home, "typo.yaml"))
	if err == nil || !strings.Contains(err.Error(), "typo.yaml") {
		t.Fatalf("expected error naming the missing file, got %v", err)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "dashstat.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("expected saved path in output, got %q", out)
	}

	out, err = execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show after init: %v", err)
	}
	if !strings.Contains(out, "mbsync -a") {
		t.Fatalf("expected default sync command in:\n%s", out)
	}

	if _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Fatalf("init should refuse to overwrite without --force")
	}
	if _, err := execute(t, "config", "init", "--config", path, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestMailMailboxesRequiresIMAPHost(t *testing.T) {
	isolate(t)

	_, err := execute(t, "mail", "mailboxes")
	if err == nil || !strings.Contains(err.Error(), "imap.host") {
		t.Fatalf("expected imap.host validation error, got %v", err)
	}
}

var listenAddr = regexp.MustCompile(`msg=listening server=mail addr=(\S+)`)

func TestMailServeServesAndShutsDown(t *testing.T) {
	isolate(t)
	root := makeMaildir(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logs := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"mail", "serve",
		"--maildir", root,
		"--sync-command=",
		"--host", "127.0.0.1",
		"--port", "0",
	})
	cmd.SetOut(io.Discard)
	cmd.SetErr(logs)

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var addr string
	deadline := time.Now().Add(5 * time.Second)
	for addr == "" {
		if time.Now().After(deadline) {
			t.Fatalf("server did not start; logs:\n%s", logs.String())
		}
		if m := listenAddr.FindStringSubmatch(logs.String()); m != nil {
			addr = m[1]
			break
		}
		select {
		case err := <-done:
			t.Fatalf("serve exited early: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Inbox: 2 unread") {
		t.Fatalf("got %d %s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v after shutdown", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
