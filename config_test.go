package main

import (
	"testing"
	"time"
)

func TestEnvFillsUnsetFlags(t *testing.T) {
	t.Setenv("CONNECTIONS_PORT", "9090")
	t.Setenv("CONNECTIONS_NOTICE_TTL", "3s")
	t.Setenv("CONNECTIONS_LOG_LEVEL", "debug")

	cfg := &Config{}
	cmd := newCmd(cfg)
	serve, _, err := cmd.Find([]string{"serve"})
	if err != nil {
		t.Fatal(err)
	}
	if err := serve.ParseFlags([]string{"--port", "7000"}); err != nil {
		t.Fatal(err)
	}

	if cfg.port != 7000 {
		t.Errorf("flag should win over env, got port %d", cfg.port)
	}
	if cfg.noticeTTL != 3*time.Second {
		t.Errorf("expected notice ttl from env, got %s", cfg.noticeTTL)
	}
	if cfg.logLevel != "debug" {
		t.Errorf("expected log level from env, got %q", cfg.logLevel)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			logLevel:       "info",
			noticeTTL:      2 * time.Second,
			revealDelay:    500 * time.Millisecond,
			port:           5175,
			sessionTimeout: time.Hour,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		serve  bool
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true, true},
		{"bad level", func(c *Config) { c.logLevel = "loud" }, false, false},
		{"both sources", func(c *Config) { c.puzzleFile, c.puzzleDB = "a.csv", "b.db" }, false, false},
		{"negative reveal", func(c *Config) { c.revealDelay = -time.Second }, false, false},
		{"zero reveal", func(c *Config) { c.revealDelay = 0 }, false, true},
		{"zero notice", func(c *Config) { c.noticeTTL = 0 }, false, false},
		{"bad port", func(c *Config) { c.port = 70000 }, true, false},
		{"bad port ignored by play", func(c *Config) { c.port = 0 }, false, true},
		{"zero session timeout", func(c *Config) { c.sessionTimeout = 0 }, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			var err error
			if tt.serve {
				err = c.validateServe()
			} else {
				err = c.validate()
			}
			if (err == nil) != tt.ok {
				t.Errorf("ok=%v, got err %v", tt.ok, err)
			}
		})
	}
}
