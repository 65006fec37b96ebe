package cli

import (
	"errors"
	"fmt"
	"strings"

	"dashstat/internal/config"
	"dashstat/internal/secrets"
)

const keyringDisabled = "none"

// loadConfig reads the config and fills empty secrets from the keyring.
// Secrets missing from the keyring are left empty.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if strings.EqualFold(strings.TrimSpace(cfg.KeyringBackend), keyringDisabled) {
		return cfg, nil
	}
	store := secrets.NewStore(cfg.KeyringBackend)

	if cfg.Server.Token == "" {
		token, err := lookupSecret(store.Token)
		if err != nil {
			return cfg, fmt.Errorf("read status token from keyring: %w", err)
		}
		cfg.Server.Token = token
	}

	if cfg.Weather.APIKey == "" {
		key, err := lookupSecret(store.WeatherAPIKey)
		if err != nil {
			return cfg, fmt.Errorf("read weather api key from keyring: %w", err)
		}
		cfg.Weather.APIKey = key
	}

	return cfg, nil
}

func lookupSecret(get func() (string, error)) (string, error) {
	v, err := get()
	if errors.Is(err, secrets.ErrSecretNotFound) {
		return "", nil
	}
	return v, err
}
