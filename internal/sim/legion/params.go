package legion

import "time"

// Params are the state machine tunables. They are read-only for the
// lifetime of an update.
type Params struct {
	Staleness     time.Duration
	SearchTimeout time.Duration
	TargetLoss    time.Duration
	Retreat       time.Duration
	ContactWindow time.Duration

	// Floor is the retreat floor; below it for more than FloorUpdates
	// consecutive updates the legion disbands.
	Floor            int
	FloorUpdates     int
	MassingThreshold int
	MassedFraction   float64
	CohesionRadius   float64
	EngageRadius     float64

	MoraleDecay    float64
	EngageBonus    float64
	RetreatPenalty float64
	MoraleFloor    float64
	RetreatMorale  float64

	CohesionGain      float64
	CohesionLoss      float64
	CohesionFloor     float64
	CohesionLargeSize int
	CohesionSmallSize int
	// SmallSize doubles morale decay below it and gates ResourceSharing.
	SmallSize int

	GuerrillaMorale      float64
	DefensiveMorale      float64
	DisperseCohesion     float64
	EncircleEngagingSize int
	EncirclePursuitSize  int
}

func DefaultParams() Params {
	return Params{
		Staleness:     5 * time.Minute,
		SearchTimeout: 5 * time.Minute,
		TargetLoss:    time.Minute,
		Retreat:       30 * time.Second,
		ContactWindow: 10 * time.Second,

		Floor:            3,
		FloorUpdates:     5,
		MassingThreshold: 5,
		MassedFraction:   0.75,
		CohesionRadius:   12,
		EngageRadius:     6,

		MoraleDecay:    0.001,
		EngageBonus:    0.2,
		RetreatPenalty: 0.3,
		MoraleFloor:    0.1,
		RetreatMorale:  0.2,

		CohesionGain:      0.05,
		CohesionLoss:      0.1,
		CohesionFloor:     0.1,
		CohesionLargeSize: 8,
		CohesionSmallSize: 3,
		SmallSize:         5,

		GuerrillaMorale:      0.3,
		DefensiveMorale:      0.5,
		DisperseCohesion:     0.5,
		EncircleEngagingSize: 10,
		EncirclePursuitSize:  8,
	}
}
