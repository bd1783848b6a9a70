package sevnup

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Ring:    newFakeRing("A", 4),
		Store:   newFakeStore(),
		Recover: func(key string) (bool, error) { return true, nil },
		Release: func(key string) error { return nil },
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := validConfig().withDefaults()
	if err != nil {
		t.Fatalf("withDefaults: %v", err)
	}
	if cfg.TotalVNodes != defaultTotalVNodes {
		t.Fatalf("expected default TotalVNodes %d, got %d", defaultTotalVNodes, cfg.TotalVNodes)
	}
	if cfg.CalmThreshold != defaultCalmThreshold {
		t.Fatalf("expected default CalmThreshold %v, got %v", defaultCalmThreshold, cfg.CalmThreshold)
	}
	if cfg.MaxParallelTasks != defaultMaxParallelTasks {
		t.Fatalf("expected default MaxParallelTasks %d, got %d", defaultMaxParallelTasks, cfg.MaxParallelTasks)
	}
	if cfg.Logger == nil {
		t.Fatalf("expected a non-nil default logger")
	}
}

func TestConfigRejectsMissingCollaborators(t *testing.T) {
	cases := []struct {
		name string
		mod  func(Config) Config
	}{
		{"ring", func(c Config) Config { c.Ring = nil; return c }},
		{"store", func(c Config) Config { c.Store = nil; return c }},
		{"recover", func(c Config) Config { c.Recover = nil; return c }},
		{"release", func(c Config) Config { c.Release = nil; return c }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.mod(validConfig()).withDefaults()
			if err == nil {
				t.Fatalf("expected ConfigurationError when %s is missing", tc.name)
			}
		})
	}
}

func TestConfigRejectsNegativeValues(t *testing.T) {
	cfg := validConfig()
	cfg.TotalVNodes = -1
	if _, err := cfg.withDefaults(); err == nil {
		t.Fatalf("expected ConfigurationError for negative TotalVNodes")
	}

	cfg = validConfig()
	cfg.CalmThreshold = -1 * time.Second
	if _, err := cfg.withDefaults(); err == nil {
		t.Fatalf("expected ConfigurationError for negative CalmThreshold")
	}

	cfg = validConfig()
	cfg.MaxParallelTasks = -1
	if _, err := cfg.withDefaults(); err == nil {
		t.Fatalf("expected ConfigurationError for negative MaxParallelTasks")
	}
}
