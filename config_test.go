package main

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		answerDelay: time.Second,
		bind:        "0.0.0.0",
		dbPath:      "players.db",
		minPlayers:  3,
		maxPlayers:  6,
		port:        8080,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"cert without key":      func(c *Config) { c.tlsCert = "cert.pem" },
		"key without cert":      func(c *Config) { c.tlsKey = "key.pem" },
		"port zero":             func(c *Config) { c.port = 0 },
		"port too high":         func(c *Config) { c.port = 70000 },
		"min players zero":      func(c *Config) { c.minPlayers = 0 },
		"max below min":         func(c *Config) { c.maxPlayers = 2 },
		"negative answer delay": func(c *Config) { c.answerDelay = -time.Second },
	} {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: validate accepted invalid config", name)
		}
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := validConfig()
	if got := cfg.scheme(); got != "http" {
		t.Fatalf("scheme = %q, want http", got)
	}

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	if got := cfg.scheme(); got != "https" {
		t.Fatalf("scheme = %q, want https", got)
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}

	if cfg.port != 8080 {
		t.Fatalf("default port = %d, want 8080", cfg.port)
	}
	if cfg.minPlayers != 3 || cfg.maxPlayers != 6 {
		t.Fatalf("default player bounds = %d/%d, want 3/6", cfg.minPlayers, cfg.maxPlayers)
	}
	if cfg.answerDelay != time.Second {
		t.Fatalf("default answer delay = %s, want 1s", cfg.answerDelay)
	}
	if cfg.dbPath != "players.db" {
		t.Fatalf("default db path = %q, want players.db", cfg.dbPath)
	}
}
