package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigWithEnvOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg := DefaultConfig()
	cfg.Mail.Maildir = "/srv/mail"
	cfg.Mail.Port = 9000
	cfg.IMAP.Host = "imap.example.com"

	if _, err := Save(cfg, ""); err != nil {
		t.Fatalf("save config: %v", err)
	}

	t.Setenv("DASHSTAT_IMAP_HOST", "env.imap.local")

	loaded, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if loaded.IMAP.Host != "env.imap.local" {
		t.Fatalf("expected env override, got %q", loaded.IMAP.Host)
	}
	if loaded.Mail.Maildir != "/srv/mail" {
		t.Fatalf("expected maildir from file, got %q", loaded.Mail.Maildir)
	}
	if loaded.Mail.Port != 9000 {
		t.Fatalf("expected port from file, got %d", loaded.Mail.Port)
	}
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loaded, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.Mail.SyncCommand != "mbsync -a" {
		t.Fatalf("sync command = %q, want default", loaded.Mail.SyncCommand)
	}
	if loaded.Mail.RefreshInterval != 120 || loaded.Mail.SyncTimeout != 120 {
		t.Fatalf("unexpected intervals: %+v", loaded.Mail)
	}
	if len(loaded.Systemd.Services) != 2 {
		t.Fatalf("expected default systemd allow-list, got %v", loaded.Systemd.Services)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing --config file %s", path)
	}
}

func TestLoadLegacyEnvNames(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MAILDIR", "/var/mail/me")
	t.Setenv("MAIL_STATUS_PORT", "9911")
	t.Setenv("STATUS_API_TOKEN", "s3cret")

	loaded, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.Mail.Maildir != "/var/mail/me" {
		t.Fatalf("maildir = %q, want legacy env value", loaded.Mail.Maildir)
	}
	if loaded.Mail.Port != 9911 {
		t.Fatalf("port = %d, want 9911", loaded.Mail.Port)
	}
	if loaded.Server.Token != "s3cret" {
		t.Fatalf("token = %q, want legacy env value", loaded.Server.Token)
	}
}

func TestLoadEmptyEnvDisablesSync(t *testing.T) {
	for _, name := range []string{"MBSYNC_COMMAND", "DASHSTAT_MAIL_SYNC_COMMAND"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv(name, "")

			loaded, err := Load("")
			if err != nil {
				t.Fatalf("load config: %v", err)
			}
			if loaded.Mail.SyncCommand != "" {
				t.Fatalf("sync command = %q, want empty", loaded.Mail.SyncCommand)
			}
		})
	}
}

func TestLoadReplacesSystemdAllowList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("systemd:\n  services:\n    nginx: nginx.service\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(loaded.Systemd.Services) != 1 || loaded.Systemd.Services["nginx"] != "nginx.service" {
		t.Fatalf("services = %v, want only nginx", loaded.Systemd.Services)
	}
}

func TestValidateMail(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateMail(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Mail.Source = "pop3"
	if err := ValidateMail(cfg); err == nil {
		t.Fatalf("expected error for unknown source")
	}

	cfg = DefaultConfig()
	cfg.Mail.RefreshInterval = 0
	if err := ValidateMail(cfg); err == nil {
		t.Fatalf("expected error for zero interval")
	}

	cfg = DefaultConfig()
	cfg.Mail.Source = SourceIMAP
	if err := ValidateMail(cfg); err == nil {
		t.Fatalf("expected error for imap source without host")
	}
}

func TestRedactMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Token = "tok"
	cfg.Weather.APIKey = "key"

	masked := Redact(cfg)
	if masked.Server.Token != "****" || masked.Weather.APIKey != "****" {
		t.Fatalf("secrets not masked: %+v %+v", masked.Server, masked.Weather)
	}
	if masked.Auth.Password != "" {
		t.Fatalf("empty password should stay empty")
	}
	if cfg.Server.Token != "tok" {
		t.Fatalf("Redact must not modify its input")
	}
}

func TestExpandPath(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	got, err := ExpandPath("~/.mail")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(tmp, ".mail") {
		t.Fatalf("ExpandPath = %q, want %q", got, filepath.Join(tmp, ".mail"))
	}

	if _, err := ExpandPath("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
