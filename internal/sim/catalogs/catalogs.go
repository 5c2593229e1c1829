package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

//go:embed blocks.json
var defaultBlocks []byte

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	flags []BlockDef // by palette id
}

type BlockDef struct {
	ID     string `json:"id"`
	Solid  bool   `json:"solid"`
	Liquid bool   `json:"liquid,omitempty"`
	// Hazard blocks hurt whatever stands in or on them.
	Hazard bool `json:"hazard,omitempty"`
	// Partial blocks (fences, walls) are solid but cannot be stood on.
	Partial bool `json:"partial,omitempty"`
}

// Load reads blocks.json from configDir, falling back to the built-in set
// when the file does not exist.
func Load(configDir string) (*BlockCatalog, error) {
	var c BlockCatalog
	raw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if errors.Is(err, fs.ErrNotExist) {
		raw = defaultBlocks
	} else if err != nil {
		return nil, err
	}
	if err := parseBlocks(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Default() *BlockCatalog {
	var c BlockCatalog
	if err := parseBlocks(defaultBlocks, &c); err != nil {
		panic(err)
	}
	return &c
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}
	air, ok := out.Defs["AIR"]
	if !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	if air.Solid || air.Liquid {
		return fmt.Errorf("blocks.json: AIR must be empty")
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	// AIR is palette id 0 so zeroed chunks are empty.
	ids = append([]string{"AIR"}, ids...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	out.flags = make([]BlockDef, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
		out.flags[i] = out.Defs[id]
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// ID returns the palette id for a block name, or 0 (AIR) when unknown.
func (c *BlockCatalog) ID(name string) uint16 { return c.Index[name] }

func (c *BlockCatalog) Def(id uint16) BlockDef {
	if int(id) >= len(c.flags) {
		return BlockDef{}
	}
	return c.flags[id]
}

// Empty blocks can be occupied by an agent's body.
func (c *BlockCatalog) Empty(id uint16) bool {
	d := c.Def(id)
	return !d.Solid && !d.Liquid
}

// Floor blocks can be stood on.
func (c *BlockCatalog) Floor(id uint16) bool {
	d := c.Def(id)
	return d.Solid && !d.Partial && !d.Hazard
}

func (c *BlockCatalog) Hazard(id uint16) bool { return c.Def(id).Hazard }
