/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		autoEnd:      true,
		bind:         "0.0.0.0",
		grace:        5 * time.Second,
		lateJoin:     "wait",
		logFormat:    "console",
		port:         8080,
		questions:    "questions.yaml",
		sendBuffer:   32,
		storeBackoff: 200 * time.Millisecond,
		storeRetries: 3,
		storeTimeout: 2 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Config)
		ok     bool
	}{
		"defaults":       {func(*Config) {}, true},
		"resend":         {func(c *Config) { c.lateJoin = "resend" }, true},
		"json logs":      {func(c *Config) { c.logFormat = "json" }, true},
		"tls pair":       {func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, true},
		"cert only":      {func(c *Config) { c.tlsCert = "cert.pem" }, false},
		"port zero":      {func(c *Config) { c.port = 0 }, false},
		"port too high":  {func(c *Config) { c.port = 65536 }, false},
		"no questions":   {func(c *Config) { c.questions = "" }, false},
		"bad late join":  {func(c *Config) { c.lateJoin = "always" }, false},
		"bad log format": {func(c *Config) { c.logFormat = "xml" }, false},
		"no send buffer": {func(c *Config) { c.sendBuffer = 0 }, false},
		"negative retry": {func(c *Config) { c.storeRetries = -1 }, false},
		"negative grace": {func(c *Config) { c.grace = -time.Second }, false},
		"no timeout":     {func(c *Config) { c.storeTimeout = 0 }, false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.validate()
			if tc.ok && err != nil {
				t.Errorf("validate: %v", err)
			}
			if !tc.ok && err == nil {
				t.Errorf("validate accepted invalid config")
			}
		})
	}
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("TRIVIABOX_LATE_JOIN", "resend")
	t.Setenv("TRIVIABOX_SEND_BUFFER", "8")
	t.Setenv("TRIVIABOX_GRACE", "3s")
	t.Setenv("TRIVIABOX_STORE_TIMEOUT", "500ms")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.lateJoin != "resend" || cfg.sendBuffer != 8 || cfg.grace != 3*time.Second {
		t.Errorf("environment not applied: late-join=%q send-buffer=%d grace=%s", cfg.lateJoin, cfg.sendBuffer, cfg.grace)
	}
	if cfg.storeTimeout != 500*time.Millisecond {
		t.Errorf("store-timeout = %s, want 500ms", cfg.storeTimeout)
	}
	if cfg.port != 8080 || !cfg.autoEnd {
		t.Errorf("defaults lost: port=%d auto-end=%v", cfg.port, cfg.autoEnd)
	}
}
