package store

import (
	"crypto/sha256"
	"encoding/binary"
)

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is a 16x16 column stack of Height blocks.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*16 + y*256
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Palette holds the block ids the generator places.
type Palette struct {
	Air, Bedrock, Stone, Dirt, Grass, Sand, Gravel uint16
	Log, Leaves, Water, Lava, Magma, Cactus        uint16
	Fence, Wall                                    uint16
}

type WorldGen struct {
	Seed   int64
	Height int
	BaseY  int
	Relief int

	BiomeRegionSize int
	// Scales hazard cluster probability; 1000 is the baseline, 0 means 1000.
	HazardProbScalePermille int

	Blocks Palette
}

// SeaLevel is where low columns fill with water.
func (g WorldGen) SeaLevel() int { return g.BaseY - g.Relief/2 }

type ChunkStore struct {
	Gen    WorldGen
	Chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	if gen.BiomeRegionSize <= 0 {
		gen.BiomeRegionSize = 96
	}
	return &ChunkStore{
		Gen:    gen,
		Chunks: map[ChunkKey]*Chunk{},
	}
}
