package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// No config file in the test working directory: defaults apply.
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.Mode != "release" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.PingPeriod != 54*time.Second {
		t.Errorf("PingPeriod = %s", cfg.PingPeriod)
	}
	if cfg.ReadLimit != 32768 {
		t.Errorf("ReadLimit = %d", cfg.ReadLimit)
	}
	if len(cfg.ICEServers) == 0 {
		t.Error("no default ICE servers")
	}
}
