// Package world is a small deterministic voxel world that hosts legions when
// no real game is attached: it generates terrain, walks a few actors around,
// moves and fights the spawned agents and reports what happened as host
// events.
//
// A World is not safe for concurrent use. It is meant to be stepped on the
// same goroutine that ticks the registry.
package world

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/catalogs"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/tuning"
	"legioncraft.ai/internal/sim/world/logic/rates"
	"legioncraft.ai/internal/sim/world/terrain/store"
)

type Config struct {
	Seed   int64
	Height int
	BaseY  int
	Relief int

	Actors    int
	DayTicks  int
	HitChance float64

	// RespawnTicks is how long a killed actor stays away.
	RespawnTicks int
}

func ConfigFrom(t tuning.World) Config {
	return Config{
		Seed:         t.Seed,
		Height:       t.Height,
		BaseY:        t.BaseY,
		Relief:       t.Relief,
		Actors:       t.Actors,
		DayTicks:     t.DayTicks,
		HitChance:    t.HitChance,
		RespawnTicks: 400,
	}
}

const (
	actorHealth   = 20
	agentHealth   = 20
	leaderHealth  = 30
	agentDamage   = 2
	actorDamage   = 5
	hitRange      = 1.5
	immunityTicks = 4
)

var agentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("legioncraft.ai/agents"))

type actor struct {
	ref     host.ActorRef
	pos     host.Vec3i
	health  int
	hits    rates.Window
	heading host.Vec3i
}

type agent struct {
	id        host.AgentID
	legion    int
	leader    bool
	pos       host.Vec3i
	health    float64
	maxHealth float64
	target    host.ActorRef
	moveTo    *host.Vec3i
	released  bool
}

type World struct {
	cfg    Config
	blocks *catalogs.BlockCatalog
	chunks *store.ChunkStore
	rng    *rand.Rand
	log    *zap.Logger
	emit   func(host.Event) bool

	tick     uint64
	spawned  uint64
	actorSeq int
	actors   map[host.ActorRef]*actor
	agents   map[host.AgentID]*agent
	// respawns holds the ticks at which replacement actors arrive.
	respawns []uint64
}

func New(cfg Config, blocks *catalogs.BlockCatalog, logger *zap.Logger) *World {
	if blocks == nil {
		blocks = catalogs.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DayTicks <= 0 {
		cfg.DayTicks = 4800
	}
	if cfg.RespawnTicks <= 0 {
		cfg.RespawnTicks = 400
	}
	w := &World{
		cfg:    cfg,
		blocks: blocks,
		chunks: store.NewChunkStore(store.WorldGen{
			Seed:   cfg.Seed,
			Height: cfg.Height,
			BaseY:  cfg.BaseY,
			Relief: cfg.Relief,
			Blocks: paletteOf(blocks),
		}),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    logger.Named("world"),
		emit:   func(host.Event) bool { return false },
		actors: map[host.ActorRef]*actor{},
		agents: map[host.AgentID]*agent{},
	}
	for i := 0; i < cfg.Actors; i++ {
		w.spawnActor(host.Vec3i{X: i * 48, Z: i * 32})
	}
	return w
}

func paletteOf(c *catalogs.BlockCatalog) store.Palette {
	return store.Palette{
		Air:     c.ID("AIR"),
		Bedrock: c.ID("BEDROCK"),
		Stone:   c.ID("STONE"),
		Dirt:    c.ID("DIRT"),
		Grass:   c.ID("GRASS"),
		Sand:    c.ID("SAND"),
		Gravel:  c.ID("GRAVEL"),
		Log:     c.ID("LOG"),
		Leaves:  c.ID("LEAVES"),
		Water:   c.ID("WATER"),
		Lava:    c.ID("LAVA"),
		Magma:   c.ID("MAGMA"),
		Cactus:  c.ID("CACTUS"),
		Fence:   c.ID("FENCE"),
		Wall:    c.ID("WALL"),
	}
}

// SetEventSink routes host events, usually into registry.Enqueue.
func (w *World) SetEventSink(fn func(host.Event) bool) {
	if fn == nil {
		fn = func(host.Event) bool { return false }
	}
	w.emit = fn
}

func (w *World) Tick() uint64 { return w.tick }

// IsNight reports whether the current tick falls in the first half of the
// day cycle.
func (w *World) IsNight() bool {
	return w.tick%uint64(w.cfg.DayTicks) < uint64(w.cfg.DayTicks/2)
}

// Step advances the world by one tick.
func (w *World) Step() {
	w.tick++
	w.respawnActors()
	w.walkActors()
	w.moveAgents()
	w.fight()
	if !w.IsNight() {
		w.burnReleased()
	}
}

func (w *World) nextAgentID() host.AgentID {
	w.spawned++
	u := uuid.NewSHA1(agentNamespace, []byte(fmt.Sprintf("%d:%d", w.cfg.Seed, w.spawned)))
	return host.AgentID(u.String())
}

func (w *World) sortedAgents() []*agent {
	out := make([]*agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (w *World) sortedActors() []*actor {
	out := make([]*actor, 0, len(w.actors))
	for _, a := range w.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ref < out[j].ref })
	return out
}

// Counts reports how many actors and agents are in the world.
func (w *World) Counts() (actors, agents int) { return len(w.actors), len(w.agents) }
