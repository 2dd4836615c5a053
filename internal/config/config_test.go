package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Rate != 1.0 {
		t.Errorf("Rate = %v, want 1.0", c.Rate)
	}
	if c.Scale != 1.0 {
		t.Errorf("Scale = %v, want 1.0", c.Scale)
	}
	if c.StateDir == "" {
		t.Error("StateDir not defaulted")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "voice: english-us\nrate: 1.5\nscale: 1.2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Voice != "english-us" {
		t.Errorf("Voice = %q", c.Voice)
	}
	if c.Rate != 1.5 {
		t.Errorf("Rate = %v, want 1.5", c.Rate)
	}
	if c.Scale != 1.2 {
		t.Errorf("Scale = %v, want 1.2", c.Scale)
	}
}

func TestLoadClampsRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rate: 9.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Rate != 2.0 {
		t.Errorf("Rate = %v, want clamped 2.0", c.Rate)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\t not yaml ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
