package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConsoleSpecRoundTrips(t *testing.T) {
	path := writeFile(t, `
tag = "TEST"
title = "Test Console"
width = 320
height = 240
default_tick_rate = 60
ram_bytes = 65536
vram_bytes = 1048576
rom_bytes = 1048576
cpu_budget_nanos = 4000000
`)
	spec, err := LoadConsoleSpec(path)
	if err != nil {
		t.Fatalf("LoadConsoleSpec: %v", err)
	}
	if spec.Tag != "TEST" || spec.Resolution.Width != 320 || spec.DefaultTickRate != 60 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestLoadConsoleSpecRejectsInvalid(t *testing.T) {
	path := writeFile(t, `
tag = ""
width = 320
height = 240
default_tick_rate = 60
ram_bytes = 65536
rom_bytes = 1048576
`)
	if _, err := LoadConsoleSpec(path); err == nil {
		t.Fatal("expected an error for an empty tag")
	}
}

func TestLoadCartpackDefaultsAppliesFallbacks(t *testing.T) {
	path := writeFile(t, `console_tag = "TEST"`)
	d, err := LoadCartpackDefaults(path)
	if err != nil {
		t.Fatalf("LoadCartpackDefaults: %v", err)
	}
	if d.TickRate != 60 || d.AssetTableCap != 256 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}
