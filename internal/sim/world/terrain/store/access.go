package store

import (
	"sort"

	"legioncraft.ai/internal/sim/world/logic/mathx"
)

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// GetBlock reads one block. Below the world is bedrock, above it is air.
func (s *ChunkStore) GetBlock(x, y, z int) uint16 {
	if y < 0 {
		return s.Gen.Blocks.Bedrock
	}
	if y >= s.Gen.Height {
		return s.Gen.Blocks.Air
	}
	ch := s.GetOrGenChunk(mathx.FloorDiv(x, 16), mathx.FloorDiv(z, 16))
	return ch.Get(mathx.Mod(x, 16), y, mathx.Mod(z, 16))
}

func (s *ChunkStore) SetBlock(x, y, z int, b uint16) {
	if y < 0 || y >= s.Gen.Height {
		return
	}
	ch := s.GetOrGenChunk(mathx.FloorDiv(x, 16), mathx.FloorDiv(z, 16))
	ch.Set(mathx.Mod(x, 16), y, mathx.Mod(z, 16), b)
}

// TopSolid returns the highest y in the column holding a non-air block.
func (s *ChunkStore) TopSolid(x, z int) int {
	for y := s.Gen.Height - 1; y >= 0; y-- {
		if s.GetBlock(x, y, z) != s.Gen.Blocks.Air {
			return y
		}
	}
	return -1
}

func (s *ChunkStore) GetOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.Chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.Gen.Height,
		Blocks: make([]uint16, 16*16*s.Gen.Height),
	}
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[k] = ch
	return ch
}
