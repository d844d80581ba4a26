// Command cartpack packs a compiled bytecode module and a directory of
// source assets into an NCZX cartridge container. See Build in this
// package for the directory layout it expects.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/config"
	"github.com/nczxlabs/nczx-core/tools/cartpack"
)

func main() {
	bytecodePath := flag.String("bytecode", "", "path to the compiled game module (required)")
	assetsDir := flag.String("assets", "", "path to the asset source directory (optional)")
	out := flag.String("o", "", "output cartridge path (required)")
	defaultsPath := flag.String("defaults", "", "path to a cartpack defaults TOML file (optional)")
	id := flag.String("id", "", "cartridge id")
	title := flag.String("title", "", "cartridge title")
	author := flag.String("author", "", "cartridge author")
	version := flag.String("version", "0.1.0", "cartridge version string")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartpack -bytecode game.wasm -o game.nczx [options]\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *bytecodePath == "" || *out == "" {
		flag.Usage()
		os.Exit(1)
	}

	defaults := config.CartpackDefaults{TickRate: 60, AssetTableCap: 256}
	if *defaultsPath != "" {
		d, err := config.LoadCartpackDefaults(*defaultsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defaults = d
	}

	c, err := cartpack.Build(cartpack.BuildOptions{
		BytecodePath: *bytecodePath,
		AssetsDir:    *assetsDir,
		Defaults:     defaults,
		Metadata: cartridge.Metadata{
			ID:      *id,
			Title:   *title,
			Author:  *author,
			Version: *version,
		},
		TextureOpts: cartpack.DecodeOptions{ChromaKeyBlack: false},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	encoded, err := cartridge.Encode(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s (%d bytes)\n", *out, len(encoded))
}
