package registry

import (
	"time"

	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/legion/placement"
	"legioncraft.ai/internal/sim/legion/tactics"
	"legioncraft.ai/internal/sim/tuning"
)

// Settings is the registry's view of the tuning file.
type Settings struct {
	TickInterval time.Duration

	StartupGrace  time.Duration
	IntervalMin   time.Duration
	IntervalMax   time.Duration
	WarningDelay  time.Duration
	Cooldown      time.Duration
	SpawnChance   float64
	MaxConcurrent int
	MinSize       int
	MaxSize       int
	Scatter       int

	NightOnly   bool
	Development bool

	CoordinateEvery int

	MaxTargetDistance float64
	DistanceGrace     time.Duration
	EmptyGrace        time.Duration

	Legion    legion.Params
	Placement placement.Params
	Tactics   tactics.Params
}

func SettingsFrom(t tuning.Tuning) Settings {
	l := t.Legion
	return Settings{
		TickInterval: t.TickInterval(),

		StartupGrace:  t.Spawn.StartupGrace(),
		IntervalMin:   t.Spawn.IntervalMin(),
		IntervalMax:   t.Spawn.IntervalMax(),
		WarningDelay:  t.Spawn.WarningDelay(),
		Cooldown:      t.Spawn.Cooldown(),
		SpawnChance:   t.Spawn.Chance,
		MaxConcurrent: t.Spawn.MaxConcurrent,
		MinSize:       t.Spawn.MinSize,
		MaxSize:       t.Spawn.MaxSize,
		Scatter:       t.Spawn.Scatter,

		NightOnly:   t.NightOnly,
		Development: t.DevelopmentMode,

		CoordinateEvery: t.Tactics.CoordinateEveryTicks,

		MaxTargetDistance: t.Cleanup.MaxTargetDistance,
		DistanceGrace:     t.Cleanup.DistanceGrace(),
		EmptyGrace:        t.Cleanup.EmptyGrace(),

		Legion: legion.Params{
			Staleness:            l.Staleness(),
			SearchTimeout:        l.SearchTimeout(),
			TargetLoss:           l.TargetLoss(),
			Retreat:              l.Retreat(),
			ContactWindow:        l.ContactWindow(),
			Floor:                l.Floor,
			FloorUpdates:         l.FloorUpdates,
			MassingThreshold:     l.MassingThreshold,
			MassedFraction:       l.MassedFraction,
			CohesionRadius:       l.CohesionRadius,
			EngageRadius:         l.EngageRadius,
			MoraleDecay:          l.MoraleDecay,
			EngageBonus:          l.EngageBonus,
			RetreatPenalty:       l.RetreatPenalty,
			MoraleFloor:          l.MoraleFloor,
			RetreatMorale:        l.RetreatMorale,
			CohesionGain:         l.CohesionGain,
			CohesionLoss:         l.CohesionLoss,
			CohesionFloor:        l.CohesionFloor,
			CohesionLargeSize:    l.CohesionLargeSize,
			CohesionSmallSize:    l.CohesionSmallSize,
			SmallSize:            l.SmallSize,
			GuerrillaMorale:      t.Tactics.GuerrillaMorale,
			DefensiveMorale:      t.Tactics.DefensiveMorale,
			DisperseCohesion:     t.Tactics.DisperseCohesion,
			EncircleEngagingSize: t.Tactics.EncircleEngagingSize,
			EncirclePursuitSize:  t.Tactics.EncirclePursuitSize,
		},
		Placement: placement.Params{
			MinRadius:      t.Placement.MinRadius,
			MaxRadius:      t.Placement.MaxRadius,
			MaxAttempts:    t.Placement.Attempts,
			HeightWindow:   t.Placement.HeightWindow,
			GroundSearch:   t.Placement.GroundSearch,
			MaxHeightDelta: t.Placement.MaxHeightDelta,
			NeighbourMin:   t.Placement.NeighbourMin,
			NeighbourMaxDY: t.Placement.NeighbourMaxDY,
		},
		Tactics: tactics.Params{
			DispersalRadius: t.Tactics.DispersalRadius,
			WoundedFraction: t.Tactics.WoundedFraction,
			CriticalHealth:  t.Tactics.CriticalHealth,
			DefensiveExpand: t.Tactics.DefensiveExpand,
			ScoutMax:        t.Tactics.ScoutMax,
			ScoutDistance:   t.Tactics.ScoutDistance,
		},
	}
}
