package tuning

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON []byte

type Tuning struct {
	TickMs             int  `yaml:"tick_ms" json:"tick_ms"`
	DevelopmentMode    bool `yaml:"development_mode" json:"development_mode"`
	NightOnly          bool `yaml:"night_only" json:"night_only"`
	SnapshotEveryTicks int  `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	Spawn     Spawn     `yaml:"spawn" json:"spawn"`
	Legion    Legion    `yaml:"legion" json:"legion"`
	Placement Placement `yaml:"placement" json:"placement"`
	Tactics   Tactics   `yaml:"tactics" json:"tactics"`
	Cleanup   Cleanup   `yaml:"cleanup" json:"cleanup"`
	World     World     `yaml:"world" json:"world"`
}

type Spawn struct {
	StartupGraceS int     `yaml:"startup_grace_s" json:"startup_grace_s"`
	IntervalMinS  int     `yaml:"interval_min_s" json:"interval_min_s"`
	IntervalMaxS  int     `yaml:"interval_max_s" json:"interval_max_s"`
	Chance        float64 `yaml:"chance" json:"chance"`
	WarningDelayS int     `yaml:"warning_delay_s" json:"warning_delay_s"`
	CooldownS     int     `yaml:"cooldown_s" json:"cooldown_s"`
	MaxConcurrent int     `yaml:"max_concurrent" json:"max_concurrent"`
	MinSize       int     `yaml:"min_size" json:"min_size"`
	MaxSize       int     `yaml:"max_size" json:"max_size"`
	Scatter       int     `yaml:"scatter" json:"scatter"`
}

type Legion struct {
	StalenessS       int     `yaml:"staleness_s" json:"staleness_s"`
	SearchTimeoutS   int     `yaml:"search_timeout_s" json:"search_timeout_s"`
	TargetLossS      int     `yaml:"target_loss_s" json:"target_loss_s"`
	RetreatS         int     `yaml:"retreat_s" json:"retreat_s"`
	Floor            int     `yaml:"floor" json:"floor"`
	FloorUpdates     int     `yaml:"floor_updates" json:"floor_updates"`
	MassingThreshold int     `yaml:"massing_threshold" json:"massing_threshold"`
	MassedFraction   float64 `yaml:"massed_fraction" json:"massed_fraction"`
	CohesionRadius   float64 `yaml:"cohesion_radius" json:"cohesion_radius"`
	EngageRadius     float64 `yaml:"engage_radius" json:"engage_radius"`
	ContactWindowS   int     `yaml:"contact_window_s" json:"contact_window_s"`

	MoraleDecay    float64 `yaml:"morale_decay" json:"morale_decay"`
	EngageBonus    float64 `yaml:"engage_bonus" json:"engage_bonus"`
	RetreatPenalty float64 `yaml:"retreat_penalty" json:"retreat_penalty"`
	MoraleFloor    float64 `yaml:"morale_floor" json:"morale_floor"`
	RetreatMorale  float64 `yaml:"retreat_morale" json:"retreat_morale"`

	CohesionGain      float64 `yaml:"cohesion_gain" json:"cohesion_gain"`
	CohesionLoss      float64 `yaml:"cohesion_loss" json:"cohesion_loss"`
	CohesionFloor     float64 `yaml:"cohesion_floor" json:"cohesion_floor"`
	CohesionLargeSize int     `yaml:"cohesion_large_size" json:"cohesion_large_size"`
	CohesionSmallSize int     `yaml:"cohesion_small_size" json:"cohesion_small_size"`
	SmallSize         int     `yaml:"small_size" json:"small_size"`
}

type Placement struct {
	MinRadius      float64 `yaml:"min_radius" json:"min_radius"`
	MaxRadius      float64 `yaml:"max_radius" json:"max_radius"`
	Attempts       int     `yaml:"attempts" json:"attempts"`
	HeightWindow   int     `yaml:"height_window" json:"height_window"`
	GroundSearch   int     `yaml:"ground_search" json:"ground_search"`
	MaxHeightDelta int     `yaml:"max_height_delta" json:"max_height_delta"`
	NeighbourMin   int     `yaml:"neighbour_min" json:"neighbour_min"`
	NeighbourMaxDY int     `yaml:"neighbour_max_dy" json:"neighbour_max_dy"`
}

type Tactics struct {
	CoordinateEveryTicks int     `yaml:"coordinate_every_ticks" json:"coordinate_every_ticks"`
	GuerrillaMorale      float64 `yaml:"guerrilla_morale" json:"guerrilla_morale"`
	DefensiveMorale      float64 `yaml:"defensive_morale" json:"defensive_morale"`
	DisperseCohesion     float64 `yaml:"disperse_cohesion" json:"disperse_cohesion"`
	EncircleEngagingSize int     `yaml:"encircle_engaging_size" json:"encircle_engaging_size"`
	EncirclePursuitSize  int     `yaml:"encircle_pursuit_size" json:"encircle_pursuit_size"`
	DispersalRadius      float64 `yaml:"dispersal_radius" json:"dispersal_radius"`
	WoundedFraction      float64 `yaml:"wounded_fraction" json:"wounded_fraction"`
	CriticalHealth       float64 `yaml:"critical_health" json:"critical_health"`
	DefensiveExpand      float64 `yaml:"defensive_expand" json:"defensive_expand"`
	ScoutMax             int     `yaml:"scout_max" json:"scout_max"`
	ScoutDistance        float64 `yaml:"scout_distance" json:"scout_distance"`
}

type Cleanup struct {
	MaxTargetDistance float64 `yaml:"max_target_distance" json:"max_target_distance"`
	DistanceGraceS    int     `yaml:"distance_grace_s" json:"distance_grace_s"`
	EmptyGraceS       int     `yaml:"empty_grace_s" json:"empty_grace_s"`
}

// World configures the built-in synthetic host.
type World struct {
	Seed     int64 `yaml:"seed" json:"seed"`
	Height   int   `yaml:"height" json:"height"`
	BaseY    int   `yaml:"base_y" json:"base_y"`
	Relief   int   `yaml:"relief" json:"relief"`
	Actors   int   `yaml:"actors" json:"actors"`
	DayTicks int   `yaml:"day_ticks" json:"day_ticks"`
	// Per tick chance that an agent adjacent to its target trades a hit.
	HitChance float64 `yaml:"hit_chance" json:"hit_chance"`
}

func Defaults() Tuning {
	return Tuning{
		TickMs:             250,
		NightOnly:          true,
		SnapshotEveryTicks: 1200,
		Spawn: Spawn{
			StartupGraceS: 300,
			IntervalMinS:  30,
			IntervalMaxS:  120,
			Chance:        0.8,
			WarningDelayS: 30,
			CooldownS:     300,
			MaxConcurrent: 10,
			MinSize:       5,
			MaxSize:       25,
			Scatter:       5,
		},
		Legion: Legion{
			StalenessS:        300,
			SearchTimeoutS:    300,
			TargetLossS:       60,
			RetreatS:          30,
			Floor:             3,
			FloorUpdates:      5,
			MassingThreshold:  5,
			MassedFraction:    0.75,
			CohesionRadius:    12,
			EngageRadius:      6,
			ContactWindowS:    10,
			MoraleDecay:       0.001,
			EngageBonus:       0.2,
			RetreatPenalty:    0.3,
			MoraleFloor:       0.1,
			RetreatMorale:     0.2,
			CohesionGain:      0.05,
			CohesionLoss:      0.1,
			CohesionFloor:     0.1,
			CohesionLargeSize: 8,
			CohesionSmallSize: 3,
			SmallSize:         5,
		},
		Placement: Placement{
			MinRadius:      60,
			MaxRadius:      80,
			Attempts:       80,
			HeightWindow:   10,
			GroundSearch:   20,
			MaxHeightDelta: 15,
			NeighbourMin:   5,
			NeighbourMaxDY: 3,
		},
		Tactics: Tactics{
			CoordinateEveryTicks: 4,
			GuerrillaMorale:      0.3,
			DefensiveMorale:      0.5,
			DisperseCohesion:     0.5,
			EncircleEngagingSize: 10,
			EncirclePursuitSize:  8,
			DispersalRadius:      24,
			WoundedFraction:      0.3,
			CriticalHealth:       0.3,
			DefensiveExpand:      1.5,
			ScoutMax:             2,
			ScoutDistance:        16,
		},
		Cleanup: Cleanup{
			MaxTargetDistance: 128,
			DistanceGraceS:    300,
			EmptyGraceS:       60,
		},
		World: World{
			Seed:      1,
			Height:    128,
			BaseY:     64,
			Relief:    12,
			Actors:    3,
			DayTicks:  4800,
			HitChance: 0.15,
		},
	}
}

// Load reads a YAML file over Defaults, so a file only needs the keys it
// changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := Decode(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Decode validates raw YAML against the embedded schema and merges it into t.
func Decode(raw []byte, t *Tuning) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc != nil {
		s, err := compiledSchema()
		if err != nil {
			return err
		}
		if err := s.Validate(jsonCompatible(doc)); err != nil {
			return err
		}
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return err
	}
	t.Normalize()
	return t.Validate()
}

func compiledSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tuning.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("tuning.schema.json")
}

// jsonCompatible rewrites yaml.v3 output into the shapes jsonschema expects.
func jsonCompatible(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = jsonCompatible(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[fmt.Sprint(k)] = jsonCompatible(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = jsonCompatible(vv)
		}
		return out
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return v
	}
}

// Normalize fills zero values that would stall the engine.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickMs <= 0 {
		t.TickMs = d.TickMs
	}
	if t.Spawn.MaxConcurrent <= 0 {
		t.Spawn.MaxConcurrent = d.Spawn.MaxConcurrent
	}
	if t.Placement.Attempts <= 0 {
		t.Placement.Attempts = d.Placement.Attempts
	}
	if t.Tactics.CoordinateEveryTicks <= 0 {
		t.Tactics.CoordinateEveryTicks = 1
	}
	if t.World.Height <= 0 {
		t.World.Height = d.World.Height
	}
	if t.World.DayTicks <= 0 {
		t.World.DayTicks = d.World.DayTicks
	}
}

func (t Tuning) Validate() error {
	if t.Spawn.MinSize < 1 || t.Spawn.MaxSize < t.Spawn.MinSize {
		return fmt.Errorf("spawn size range [%d,%d] invalid", t.Spawn.MinSize, t.Spawn.MaxSize)
	}
	if t.Spawn.IntervalMinS < 0 || t.Spawn.IntervalMaxS < t.Spawn.IntervalMinS {
		return fmt.Errorf("spawn interval range [%d,%d] invalid", t.Spawn.IntervalMinS, t.Spawn.IntervalMaxS)
	}
	if t.Spawn.Chance < 0 || t.Spawn.Chance > 1 {
		return fmt.Errorf("spawn chance %v out of [0,1]", t.Spawn.Chance)
	}
	if t.Placement.MinRadius <= 0 || t.Placement.MaxRadius < t.Placement.MinRadius {
		return fmt.Errorf("placement radius range [%v,%v] invalid", t.Placement.MinRadius, t.Placement.MaxRadius)
	}
	if t.Placement.NeighbourMin > 9 {
		return fmt.Errorf("placement neighbour_min %d exceeds 3x3", t.Placement.NeighbourMin)
	}
	if t.Legion.Floor < 1 {
		return fmt.Errorf("legion floor must be >= 1")
	}
	if t.Legion.MassedFraction <= 0 || t.Legion.MassedFraction > 1 {
		return fmt.Errorf("legion massed_fraction %v out of (0,1]", t.Legion.MassedFraction)
	}
	if t.World.BaseY+t.World.Relief+4 >= t.World.Height {
		return fmt.Errorf("world height %d too small for base_y %d + relief %d", t.World.Height, t.World.BaseY, t.World.Relief)
	}
	return nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func (t Tuning) TickInterval() time.Duration { return time.Duration(t.TickMs) * time.Millisecond }

func (s Spawn) StartupGrace() time.Duration { return secs(s.StartupGraceS) }
func (s Spawn) IntervalMin() time.Duration  { return secs(s.IntervalMinS) }
func (s Spawn) IntervalMax() time.Duration  { return secs(s.IntervalMaxS) }
func (s Spawn) WarningDelay() time.Duration { return secs(s.WarningDelayS) }
func (s Spawn) Cooldown() time.Duration     { return secs(s.CooldownS) }

func (l Legion) Staleness() time.Duration     { return secs(l.StalenessS) }
func (l Legion) SearchTimeout() time.Duration { return secs(l.SearchTimeoutS) }
func (l Legion) TargetLoss() time.Duration    { return secs(l.TargetLossS) }
func (l Legion) Retreat() time.Duration       { return secs(l.RetreatS) }
func (l Legion) ContactWindow() time.Duration { return secs(l.ContactWindowS) }

func (c Cleanup) DistanceGrace() time.Duration { return secs(c.DistanceGraceS) }
func (c Cleanup) EmptyGrace() time.Duration    { return secs(c.EmptyGraceS) }
