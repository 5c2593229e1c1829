package indexdb

import (
	"context"
	"database/sql"
	"time"

	"legioncraft.ai/internal/sim/host"
)

type LegionRow struct {
	ID           int          `json:"id"`
	Target       string       `json:"target"`
	Anchor       host.Vec3i   `json:"anchor"`
	CreatedTick  uint64       `json:"created_tick"`
	CreatedAt    time.Time    `json:"created_at"`
	Requested    int          `json:"requested"`
	Spawned      int          `json:"spawned"`
	RetiredTick  uint64       `json:"retired_tick,omitempty"`
	RetiredAt    time.Time    `json:"retired_at,omitempty"`
	RetireReason string       `json:"retire_reason,omitempty"`
	Kills        int          `json:"kills"`
	Deaths       int          `json:"deaths"`
	Transitions  []Transition `json:"transitions,omitempty"`
}

func (r LegionRow) Active() bool { return r.RetireReason == "" }

type Transition struct {
	Tick uint64    `json:"tick"`
	At   time.Time `json:"at"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Size int       `json:"size"`
}

// Outcomes summarises the index: retired legions per reason, warnings per
// outcome and spawn failures per kind.
type Outcomes struct {
	Active   int            `json:"active"`
	Retired  map[string]int `json:"retired"`
	Warnings map[string]int `json:"warnings"`
	Failures map[string]int `json:"failures"`
}

func parseTS(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RecentLegions returns the newest legions first, each with its state
// transitions in tick order.
func (s *SQLiteIndex) RecentLegions(ctx context.Context, limit int) ([]LegionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, anchor_x, anchor_y, anchor_z, created_tick, created_at,
		       requested, spawned, retired_tick, retired_at, retire_reason, kills, deaths
		FROM legions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LegionRow
	for rows.Next() {
		var (
			r           LegionRow
			created     sql.NullString
			retiredTick sql.NullInt64
			retiredAt   sql.NullString
			reason      sql.NullString
			createdTick int64
		)
		if err := rows.Scan(&r.ID, &r.Target, &r.Anchor.X, &r.Anchor.Y, &r.Anchor.Z, &createdTick, &created,
			&r.Requested, &r.Spawned, &retiredTick, &retiredAt, &reason, &r.Kills, &r.Deaths); err != nil {
			return nil, err
		}
		r.CreatedTick = uint64(createdTick)
		r.CreatedAt = parseTS(created)
		if retiredTick.Valid {
			r.RetiredTick = uint64(retiredTick.Int64)
		}
		r.RetiredAt = parseTS(retiredAt)
		r.RetireReason = reason.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		tr, err := s.Transitions(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Transitions = tr
	}
	return out, nil
}

func (s *SQLiteIndex) Transitions(ctx context.Context, legionID int) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, at, from_state, to_state, size
		FROM transitions WHERE legion_id = ? ORDER BY tick`, legionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var (
			t    Transition
			tick int64
			at   sql.NullString
		)
		if err := rows.Scan(&tick, &at, &t.From, &t.To, &t.Size); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		t.At = parseTS(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) OutcomeCounts(ctx context.Context) (Outcomes, error) {
	o := Outcomes{
		Retired:  map[string]int{},
		Warnings: map[string]int{},
		Failures: map[string]int{},
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM legions WHERE retire_reason IS NULL`).Scan(&o.Active); err != nil {
		return o, err
	}
	groups := []struct {
		query string
		into  map[string]int
	}{
		{`SELECT retire_reason, COUNT(*) FROM legions WHERE retire_reason IS NOT NULL GROUP BY retire_reason`, o.Retired},
		{`SELECT CASE WHEN outcome = 'dropped' THEN 'dropped:' || COALESCE(reason, '') ELSE outcome END, COUNT(*) FROM warnings GROUP BY 1`, o.Warnings},
		{`SELECT kind, COUNT(*) FROM failures GROUP BY kind`, o.Failures},
	}
	for _, g := range groups {
		if err := countInto(ctx, s.db, g.query, g.into); err != nil {
			return o, err
		}
	}
	return o, nil
}

func countInto(ctx context.Context, db *sql.DB, query string, into map[string]int) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// LatestSnapshot returns the path of the newest snapshot the index knows
// about, or "" when none was recorded.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (string, uint64, error) {
	var (
		path string
		tick int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT path, tick FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&path, &tick)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return path, uint64(tick), nil
}
