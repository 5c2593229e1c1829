package legion

import "fmt"

type State uint8

const (
	Initializing State = iota
	Massing
	Pursuing
	Engaging
	Searching
	Retreating
	Disbanding
	Disbanded
)

var stateNames = [...]string{
	Initializing: "initializing",
	Massing:      "massing",
	Pursuing:     "pursuing",
	Engaging:     "engaging",
	Searching:    "searching",
	Retreating:   "retreating",
	Disbanding:   "disbanding",
	Disbanded:    "disbanded",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool { return s == Disbanded }

// allowed lists the edges of the transition table. Disbanding and Disbanded
// are reachable from anywhere and are not listed.
var allowed = map[State][]State{
	Initializing: {Massing},
	Massing:      {Pursuing},
	Pursuing:     {Engaging, Searching},
	Engaging:     {Pursuing, Searching, Retreating},
	Searching:    {Pursuing},
	Retreating:   {Searching},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	if from == Disbanded {
		return false
	}
	if to == Disbanded {
		return true
	}
	if to == Disbanding {
		return from != Disbanding
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Tactic uint8

const (
	Concentration Tactic = iota
	Encirclement
	Dispersal
	DefensiveFormation
	Reconnaissance
	ResourceSharing
	Guerrilla
)

var tacticNames = [...]string{
	Concentration:      "concentration",
	Encirclement:       "encirclement",
	Dispersal:          "dispersal",
	DefensiveFormation: "defensive_formation",
	Reconnaissance:     "reconnaissance",
	ResourceSharing:    "resource_sharing",
	Guerrilla:          "guerrilla",
}

func (t Tactic) String() string {
	if int(t) < len(tacticNames) {
		return tacticNames[t]
	}
	return fmt.Sprintf("tactic(%d)", int(t))
}

// Tactics lists every tactic in declaration order.
func Tactics() []Tactic {
	out := make([]Tactic, len(tacticNames))
	for i := range tacticNames {
		out[i] = Tactic(i)
	}
	return out
}
