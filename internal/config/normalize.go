package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	roots := make([]string, 0, len(c.Paths.LibraryRoots))
	for _, root := range c.Paths.LibraryRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := ExpandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.library_roots: %w", err)
		}
		roots = append(roots, expanded)
	}
	c.Paths.LibraryRoots = roots
	return nil
}

func (c *Config) normalizeProviders() {
	c.GiantBomb.APIKey = strings.TrimSpace(c.GiantBomb.APIKey)
	c.GiantBomb.BaseURL = strings.TrimRight(strings.TrimSpace(c.GiantBomb.BaseURL), "/")
	if c.GiantBomb.BaseURL == "" {
		c.GiantBomb.BaseURL = defaultGiantBombBaseURL
	}
	if c.GiantBomb.RequestsPerSecond <= 0 {
		c.GiantBomb.RequestsPerSecond = defaultRequestsPerSecond
	}

	c.IGDB.ClientID = strings.TrimSpace(c.IGDB.ClientID)
	c.IGDB.ClientSecret = strings.TrimSpace(c.IGDB.ClientSecret)
	c.IGDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.IGDB.BaseURL), "/")
	if c.IGDB.BaseURL == "" {
		c.IGDB.BaseURL = defaultIGDBBaseURL
	}
	c.IGDB.TokenURL = strings.TrimSpace(c.IGDB.TokenURL)
	if c.IGDB.TokenURL == "" {
		c.IGDB.TokenURL = defaultIGDBTokenURL
	}
	if c.IGDB.RequestsPerSecond <= 0 {
		c.IGDB.RequestsPerSecond = defaultRequestsPerSecond
	}

	c.OpenCritic.APIKey = strings.TrimSpace(c.OpenCritic.APIKey)
	c.OpenCritic.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenCritic.BaseURL), "/")
	if c.OpenCritic.BaseURL == "" {
		c.OpenCritic.BaseURL = defaultOpenCriticBaseURL
	}
	if c.OpenCritic.RequestsPerSecond <= 0 {
		c.OpenCritic.RequestsPerSecond = defaultRequestsPerSecond
	}
}

func (c *Config) normalizeSync() {
	order := make([]string, 0, len(c.Sync.ProviderOrder))
	seen := make(map[string]struct{}, len(c.Sync.ProviderOrder))
	for _, id := range c.Sync.ProviderOrder {
		normalized := strings.ToLower(strings.TrimSpace(id))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	c.Sync.ProviderOrder = order
	if c.Sync.SearchLimit <= 0 {
		c.Sync.SearchLimit = defaultSearchLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
