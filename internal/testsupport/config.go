package testsupport

import (
	"path/filepath"
	"testing"

	"ludex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LibraryRoots = []string{filepath.Join(base, "games")}
	cfgVal.GiantBomb.APIKey = "test"
	cfgVal.IGDB.ClientID = "test"
	cfgVal.IGDB.ClientSecret = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProviderOrder overrides the provider priority order on the test config.
func WithProviderOrder(order ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.ProviderOrder = order
	}
}

// WithSmartChoose toggles automatic exact-match acceptance on the test config.
func WithSmartChoose(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.AllowSmartChoose = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
