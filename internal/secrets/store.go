package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"dashstat/internal/config"
)

const keyringPasswordEnv = "DASHSTAT_KEYRING_PASSWORD" //nolint:gosec // env var name, not a credential

// Keyring entry names.
const (
	TokenKey         = "status:token"
	WeatherAPIKeyKey = "weather:api_key" //nolint:gosec // entry name, not a credential
)

var (
	ErrSecretNotFound        = errors.New("secret not found")
	errMissingSecretKey      = errors.New("missing secret key")
	errMissingValue          = errors.New("missing secret value")
	errNoTTY                 = errors.New("no TTY available for keyring file backend password prompt")
	errInvalidKeyringBackend = errors.New("invalid keyring backend")
	errKeyringTimeout        = errors.New("keyring connection timed out")
	openKeyringFunc          = openKeyring
	keyringOpenFunc          = keyring.Open
)

const (
	keyringBackendAuto     = "auto"
	keyringBackendKeychain = "keychain"
	keyringBackendFile     = "file"
)

// Store reads and writes dashstat secrets in the OS keyring. Backend is one
// of "auto", "keychain" or "file"; empty means auto.
type Store struct {
	Backend string
}

func NewStore(backend string) *Store {
	return &Store{Backend: backend}
}

func keyringItem(key string, data []byte) keyring.Item {
	return keyring.Item{
		Key:   key,
		Data:  data,
		Label: config.AppName,
	}
}

func allowedBackends(backend string) ([]keyring.BackendType, error) {
	switch backend {
	case "", keyringBackendAuto:
		return nil, nil
	case keyringBackendKeychain:
		return []keyring.BackendType{keyring.KeychainBackend}, nil
	case keyringBackendFile:
		return []keyring.BackendType{keyring.FileBackend}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %s, %s, or %s)", errInvalidKeyringBackend, backend,
			keyringBackendAuto, keyringBackendKeychain, keyringBackendFile)
	}
}

// wrapKeychainError adds unlock guidance for a locked macOS keychain.
func wrapKeychainError(err error) error {
	if err == nil {
		return nil
	}

	if isKeychainLockedError(err.Error()) {
		return fmt.Errorf("%w\n\nYour macOS keychain is locked. To unlock it, run:\n  security unlock-keychain ~/Library/Keychains/login.keychain-db", err)
	}

	return err
}

func isKeychainLockedError(msg string) bool {
	return strings.Contains(msg, "-25308") || strings.Contains(strings.ToLower(msg), "keychain is locked")
}

func fileKeyringPasswordFuncFrom(password string, passwordSet bool, isTTY bool) keyring.PromptFunc {
	// Set-but-empty is intentional; an empty passphrase is valid.
	if passwordSet {
		return keyring.FixedStringPrompt(password)
	}

	if isTTY {
		return keyring.TerminalPrompt
	}

	return func(_ string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoTTY, keyringPasswordEnv)
	}
}

func fileKeyringPasswordFunc() keyring.PromptFunc {
	password, passwordSet := os.LookupEnv(keyringPasswordEnv)
	return fileKeyringPasswordFuncFrom(password, passwordSet, term.IsTerminal(int(os.Stdin.Fd())))
}

func normalizeKeyringBackend(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return keyringBackendAuto
	}
	return v
}

// keyringOpenTimeout bounds keyring.Open. On headless Linux the D-Bus
// SecretService can hang indefinitely when gnome-keyring is installed but
// not running.
const keyringOpenTimeout = 5 * time.Second

func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	return goos == "linux" && backend == keyringBackendAuto && dbusAddr == ""
}

func shouldUseKeyringTimeout(goos, backend, dbusAddr string) bool {
	return goos == "linux" && backend == keyringBackendAuto && dbusAddr != ""
}

func openKeyring(backend string) (keyring.Keyring, error) {
	keyringDir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, fmt.Errorf("ensure keyring dir: %w", err)
	}

	backend = normalizeKeyringBackend(backend)
	backends, err := allowedBackends(backend)
	if err != nil {
		return nil, err
	}

	dbusAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if shouldForceFileBackend(runtime.GOOS, backend, dbusAddr) {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	cfg := keyring.Config{
		ServiceName:              config.AppName,
		KeychainTrustApplication: false,
		AllowedBackends:          backends,
		FileDir:                  keyringDir,
		FilePasswordFunc:         fileKeyringPasswordFunc(),
	}

	if shouldUseKeyringTimeout(runtime.GOOS, backend, dbusAddr) {
		return openKeyringWithTimeout(cfg, keyringOpenTimeout)
	}

	ring, err := keyringOpenFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	return ring, nil
}

type keyringResult struct {
	ring keyring.Keyring
	err  error
}

func openKeyringWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	ch := make(chan keyringResult, 1)

	go func() {
		ring, err := keyringOpenFunc(cfg)
		ch <- keyringResult{ring, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}

		return res.ring, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v (D-Bus SecretService may be unresponsive); "+
			"set DASHSTAT_KEYRING_BACKEND=file and %s=<password> to use encrypted file storage instead",
			errKeyringTimeout, timeout, keyringPasswordEnv)
	}
}

func (s *Store) Set(key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errMissingSecretKey
	}
	if len(value) == 0 {
		return errMissingValue
	}

	ring, err := openKeyringFunc(s.Backend)
	if err != nil {
		return err
	}

	if err := ring.Set(keyringItem(key, value)); err != nil {
		return wrapKeychainError(fmt.Errorf("store secret: %w", err))
	}

	return nil
}

func (s *Store) Get(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errMissingSecretKey
	}

	ring, err := openKeyringFunc(s.Backend)
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrSecretNotFound
		}
		return nil, wrapKeychainError(fmt.Errorf("read secret: %w", err))
	}

	return item.Data, nil
}

// GetString is Get with surrounding whitespace trimmed.
func (s *Store) GetString(key string) (string, error) {
	data, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) Token() (string, error) {
	return s.GetString(TokenKey)
}

func (s *Store) WeatherAPIKey() (string, error) {
	return s.GetString(WeatherAPIKeyKey)
}

// KeyFor maps the short names accepted on the command line to entry names.
func KeyFor(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "token", TokenKey:
		return TokenKey, nil
	case "weather-api-key", WeatherAPIKeyKey:
		return WeatherAPIKeyKey, nil
	default:
		return "", fmt.Errorf("unknown secret %q (expected token or weather-api-key)", name)
	}
}
