package host

import "fmt"

type EventKind int

const (
	// AgentJoined reports an agent that attached itself to a legion outside
	// of bulk creation.
	AgentJoined EventKind = iota + 1
	// AgentLeft reports an agent that detached without dying.
	AgentLeft
	AgentDied
	// AgentHurt carries the remaining health fraction in Value.
	AgentHurt
	// ActorAttacked reports a member landing a hit on an actor.
	ActorAttacked
	// ActorKilled reports a member killing an actor.
	ActorKilled
)

func (k EventKind) String() string {
	switch k {
	case AgentJoined:
		return "agent_joined"
	case AgentLeft:
		return "agent_left"
	case AgentDied:
		return "agent_died"
	case AgentHurt:
		return "agent_hurt"
	case ActorAttacked:
		return "actor_attacked"
	case ActorKilled:
		return "actor_killed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type Event struct {
	Kind   EventKind
	Agent  AgentID
	Legion int // only for AgentJoined
	Actor  ActorRef
	Value  float64
}
