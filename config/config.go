// Package config loads console specs and cartridge-authoring defaults from
// TOML. The teacher has no config-file layer of its own (its tunables are
// Go const blocks); this package gives the core an on-disk override path
// without requiring a host to recompile for every console variant.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/nczxlabs/nczx-core/console"
)

// ConsoleFile is the on-disk shape of a console.Spec, mirroring its fields
// one-to-one so a TOML author never has to know the Go struct layout.
type ConsoleFile struct {
	Tag             string `toml:"tag"`
	Title           string `toml:"title"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	DefaultTickRate int    `toml:"default_tick_rate"`
	RAM             int    `toml:"ram_bytes"`
	VRAM            int    `toml:"vram_bytes"`
	ROM             int    `toml:"rom_bytes"`
	CPUBudgetNanos  int    `toml:"cpu_budget_nanos"`
}

// Spec converts f into a console.Spec, validating it before returning.
func (f ConsoleFile) Spec() (console.Spec, error) {
	spec := console.Spec{
		Tag:             f.Tag,
		Title:           f.Title,
		Resolution:      console.Resolution{Width: f.Width, Height: f.Height},
		DefaultTickRate: console.TickRate(f.DefaultTickRate),
		Limits: console.Limits{
			RAM:       f.RAM,
			VRAM:      f.VRAM,
			ROM:       f.ROM,
			CPUBudget: f.CPUBudgetNanos,
		},
	}
	if err := spec.Validate(); err != nil {
		return console.Spec{}, err
	}
	return spec, nil
}

// LoadConsoleSpec reads and validates a console.Spec from a TOML file at
// path.
func LoadConsoleSpec(path string) (console.Spec, error) {
	var f ConsoleFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return console.Spec{}, fmt.Errorf("config: decode console spec %s: %w", path, err)
	}
	return f.Spec()
}

// CartpackDefaults is the author-tool default configuration tools/cartpack
// falls back to when a cartridge project doesn't set its own values.
type CartpackDefaults struct {
	ConsoleTag    string `toml:"console_tag"`
	TickRate      int    `toml:"tick_rate"`
	AssetTableCap int    `toml:"asset_table_capacity"`
}

// LoadCartpackDefaults reads CartpackDefaults from a TOML file at path.
func LoadCartpackDefaults(path string) (CartpackDefaults, error) {
	var d CartpackDefaults
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return CartpackDefaults{}, fmt.Errorf("config: decode cartpack defaults %s: %w", path, err)
	}
	if d.TickRate == 0 {
		d.TickRate = int(console.TickRate60)
	}
	if d.AssetTableCap == 0 {
		d.AssetTableCap = 256
	}
	return d, nil
}
