package config

import (
	"errors"
	"fmt"
)

var knownProviders = map[string]struct{}{
	"giantbomb":  {},
	"igdb":       {},
	"opencritic": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.GiantBomb.Enabled && c.GiantBomb.APIKey == "" {
		return errors.New("giantbomb.api_key is required when giantbomb.enabled is true (create a config with 'ludex config init')")
	}
	if c.IGDB.Enabled {
		if c.IGDB.ClientID == "" {
			return errors.New("igdb.client_id is required when igdb.enabled is true")
		}
		if c.IGDB.ClientSecret == "" {
			return errors.New("igdb.client_secret is required when igdb.enabled is true")
		}
	}
	if !c.GiantBomb.Enabled && !c.IGDB.Enabled && !c.OpenCritic.Enabled {
		return errors.New("at least one provider must be enabled")
	}
	return nil
}

func (c *Config) validateSync() error {
	if len(c.Sync.ProviderOrder) == 0 {
		return errors.New("sync.provider_order must list at least one provider")
	}
	for _, id := range c.Sync.ProviderOrder {
		if _, ok := knownProviders[id]; !ok {
			return fmt.Errorf("sync.provider_order contains unknown provider %q", id)
		}
	}
	if c.Sync.SearchLimit > 100 {
		return errors.New("sync.search_limit must not exceed 100")
	}
	if c.Sync.ChoiceTimeout < 0 {
		return errors.New("sync.choice_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.RequestTimeout <= 0 {
		return errors.New("notify.request_timeout must be positive")
	}
	return nil
}
