package store

import "testing"

func testGen(seed int64) WorldGen {
	return WorldGen{
		Seed:   seed,
		Height: 64,
		BaseY:  32,
		Relief: 8,
		Blocks: Palette{
			Air: 0, Bedrock: 1, Stone: 2, Dirt: 3, Grass: 4, Sand: 5, Gravel: 6,
			Log: 7, Leaves: 8, Water: 9, Lava: 10, Magma: 11, Cactus: 12, Fence: 13, Wall: 14,
		},
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := NewChunkStore(testGen(42))
	b := NewChunkStore(testGen(42))
	for _, k := range []ChunkKey{{0, 0}, {-3, 5}, {7, -2}} {
		if a.GetOrGenChunk(k.CX, k.CZ).Digest() != b.GetOrGenChunk(k.CX, k.CZ).Digest() {
			t.Fatalf("chunk %v differs between identical seeds", k)
		}
	}
	c := NewChunkStore(testGen(43))
	same := 0
	for cx := 0; cx < 4; cx++ {
		if a.GetOrGenChunk(cx, 0).Digest() == c.GetOrGenChunk(cx, 0).Digest() {
			same++
		}
	}
	if same == 4 {
		t.Fatalf("different seeds produced identical chunks")
	}
}

func TestGenerate_ColumnShape(t *testing.T) {
	s := NewChunkStore(testGen(7))
	g := s.Gen
	for x := -40; x < 40; x += 3 {
		for z := -40; z < 40; z += 5 {
			if got := s.GetBlock(x, 0, z); got != g.Blocks.Bedrock {
				t.Fatalf("(%d,0,%d) = %d, want bedrock", x, z, got)
			}
			if got := s.GetBlock(x, g.Height-1, z); got != g.Blocks.Air {
				t.Fatalf("(%d,top,%d) = %d, want air", x, z, got)
			}
			top := s.TopSolid(x, z)
			if top < 1 || top >= g.Height-1 {
				t.Fatalf("column (%d,%d) top %d out of range", x, z, top)
			}
		}
	}
}

func TestSetBlock_OutOfRangeIgnored(t *testing.T) {
	s := NewChunkStore(testGen(1))
	s.SetBlock(3, -1, 3, 2)
	s.SetBlock(3, 999, 3, 2)
	if s.GetBlock(3, -1, 3) != s.Gen.Blocks.Bedrock {
		t.Fatalf("below world should read as bedrock")
	}
	s.SetBlock(-17, 40, 33, s.Gen.Blocks.Stone)
	if s.GetBlock(-17, 40, 33) != s.Gen.Blocks.Stone {
		t.Fatalf("set/get mismatch at negative coords")
	}
	keys := s.LoadedChunkKeys()
	if len(keys) != 1 || keys[0].CX != -2 || keys[0].CZ != 2 {
		t.Fatalf("unexpected loaded keys %v", keys)
	}
}
