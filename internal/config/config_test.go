package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, meta, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != DefaultEnvironment {
		t.Fatalf("expected default environment, got %q", cfg.Environment)
	}
	if meta.SourceOf("environment") != SourceDefault {
		t.Fatalf("expected default provenance, got %s", meta.SourceOf("environment"))
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	lookup := func(key string) (string, bool) {
		switch key {
		case "MEMCORE_DB_HOST":
			return "db.internal", true
		case "MEMCORE_LOG_LEVEL":
			return "debug", true
		}
		return "", false
	}
	cfg, meta, err := Load(WithEnvLookup(lookup))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBHost != "db.internal" {
		t.Fatalf("expected db host override, got %q", cfg.DBHost)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level override, got %q", cfg.LogLevel)
	}
	if meta.SourceOf("db_host") != SourceEnv {
		t.Fatalf("expected env provenance for db_host, got %s", meta.SourceOf("db_host"))
	}
}

func TestLoadOverridesWinOverEverything(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "MEMCORE_DB_HOST" {
			return "db.internal", true
		}
		return "", false
	}
	cfg, meta, err := Load(WithEnvLookup(lookup), WithOverride(func(c *RuntimeConfig, m *Metadata) {
		c.DBHost = "override.internal"
		m.Sources["db_host"] = SourceOverride
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBHost != "override.internal" {
		t.Fatalf("expected override to win, got %q", cfg.DBHost)
	}
	if meta.SourceOf("db_host") != SourceOverride {
		t.Fatalf("expected override provenance, got %s", meta.SourceOf("db_host"))
	}
}

func TestDSNPrefersDatabaseURL(t *testing.T) {
	cfg := RuntimeConfig{DatabaseURL: "postgres://explicit", DBHost: "ignored"}
	if got := cfg.DSN(); got != "postgres://explicit" {
		t.Fatalf("expected explicit DSN, got %q", got)
	}
}

func TestDSNComposesFromDiscreteFields(t *testing.T) {
	cfg := RuntimeConfig{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "d"}
	got := cfg.DSN()
	want := "postgres://u:p@h:5432/d?sslmode=disable"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
