package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWarn      = "WARN"
	TypeSpotted   = "LEGION_SPOTTED"
	TypeStatus    = "STATUS"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Actors limits WARN and LEGION_SPOTTED to these actors. Empty means all.
	Actors []string `json:"actors,omitempty"`
	// StatusEveryTicks sends one STATUS per this many ticks; 0 disables them.
	StatusEveryTicks int `json:"status_every_ticks"`
}

// Server -> Client. An actor was warned that a legion is about to form.
type WarnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Actor           string `json:"actor"`
	Pos             [3]int `json:"pos"`
}

// Server -> Client. A legion formed against an actor.
type SpottedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Actor           string `json:"actor"`
	Pos             [3]int `json:"pos"`
}

// Server -> Client. Registry summary after a tick.
type StatusMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AtUnixMs        int64        `json:"at_unix_ms"`
	Stats           StatusCounts `json:"stats"`
	Legions         []LegionView `json:"legions"`
}

type StatusCounts struct {
	Legions         int    `json:"legions"`
	Members         int    `json:"members"`
	PendingWarnings int    `json:"pending_warnings"`
	Cooldowns       int    `json:"cooldowns"`
	Created         uint64 `json:"created"`
	Retired         uint64 `json:"retired"`
	Aborted         uint64 `json:"aborted"`
	Violations      uint64 `json:"violations"`
}

type LegionView struct {
	ID       int     `json:"id"`
	Target   string  `json:"target"`
	Anchor   [3]int  `json:"anchor"`
	State    string  `json:"state"`
	Tactic   string  `json:"tactic"`
	Size     int     `json:"size"`
	PeakSize int     `json:"peak_size"`
	Leader   string  `json:"leader,omitempty"`
	Cohesion float64 `json:"cohesion"`
	Morale   float64 `json:"morale"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
}

// HTTP request body for POST /admin/v1/legions/spawn.
type SpawnRequest struct {
	Actor string `json:"actor"`
	Size  int    `json:"size,omitempty"`
}

type SpawnResponse struct {
	OK     bool   `json:"ok"`
	Legion int    `json:"legion,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ClearResponse struct {
	OK        bool `json:"ok"`
	Despawned int  `json:"despawned"`
}

// HTTP response for GET /admin/v1/legions.
type LegionsResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Stats           StatusCounts `json:"stats"`
	Legions         []LegionView `json:"legions"`
}
