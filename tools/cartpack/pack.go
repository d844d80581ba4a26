package cartpack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nczxlabs/nczx-core/cartridge"
	"github.com/nczxlabs/nczx-core/config"
)

// dirLayout maps an asset subdirectory name to the AssetKind its files
// belong to. tools/cartpack's source tree is one directory per kind.
var dirLayout = map[string]cartridge.AssetKind{
	"textures":  cartridge.KindTexture,
	"meshes":    cartridge.KindMesh,
	"skeletons": cartridge.KindSkeleton,
	"keyframes": cartridge.KindKeyframes,
	"fonts":     cartridge.KindFont,
	"sounds":    cartridge.KindSound,
	"data":      cartridge.KindData,
	"trackers":  cartridge.KindTracker,
}

// BuildOptions describes one cartpack invocation: the compiled bytecode
// module, the asset source tree, the author metadata to stamp, and the
// texture decode options applied to every PNG under textures/ and fonts/.
type BuildOptions struct {
	BytecodePath string
	AssetsDir    string // may be empty: no bundled assets
	Defaults     config.CartpackDefaults
	Metadata     cartridge.Metadata
	TextureOpts  DecodeOptions
}

// Build assembles a *cartridge.Cartridge from opts, decoding every texture
// or font PNG it finds and passing every other asset kind's files through
// as raw payload bytes.
func Build(opts BuildOptions) (*cartridge.Cartridge, error) {
	bytecode, err := os.ReadFile(opts.BytecodePath)
	if err != nil {
		return nil, fmt.Errorf("cartpack: read bytecode %s: %w", opts.BytecodePath, err)
	}

	meta := opts.Metadata
	now := time.Now().Unix()
	if meta.CreatedAt == 0 {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	if meta.TickRate == 0 {
		meta.TickRate = uint8(opts.Defaults.TickRate)
	}

	c := &cartridge.Cartridge{
		Version:  cartridge.FormatVersion,
		Metadata: meta,
		Bytecode: bytecode,
	}

	if opts.AssetsDir != "" {
		assets, err := buildAssetTable(opts.AssetsDir, opts.TextureOpts)
		if err != nil {
			return nil, err
		}
		c.Assets = assets
	}

	return c, nil
}

func buildAssetTable(root string, texOpts DecodeOptions) (*cartridge.AssetTable, error) {
	table := cartridge.NewAssetTable()

	for dirName, kind := range dirLayout {
		dir := filepath.Join(root, dirName)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("cartpack: read %s: %w", dir, err)
		}

		var assets []cartridge.Asset
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			path := filepath.Join(dir, ent.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("cartpack: read asset %s: %w", path, err)
			}

			id := strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name()))
			payload := raw
			if (kind == cartridge.KindTexture || kind == cartridge.KindFont) && strings.EqualFold(filepath.Ext(ent.Name()), ".png") {
				pixels, _, _, err := DecodeTexture(raw, texOpts)
				if err != nil {
					return nil, fmt.Errorf("cartpack: decode texture %s: %w", path, err)
				}
				payload = pixels
			}
			assets = append(assets, cartridge.Asset{ID: id, Payload: payload})
		}
		table.Set(kind, assets)
	}

	return table, nil
}
