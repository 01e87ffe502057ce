package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Reader runs read-only queries against an index written by SQLiteIndex.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	return v, err
}

// Saves returns the newest saves first.
func (r *Reader) Saves(ctx context.Context, limit int) ([]SaveRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,world,path,voxels,digest,kind_counts,recorded_at FROM saves ORDER BY tick DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		var s SaveRow
		var tick int64
		if err := rows.Scan(&tick, &s.World, &s.Path, &s.Voxels, &s.Digest, &s.KindCounts, &s.RecordedAt); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ticks returns the newest logged passes first.
func (r *Reader) Ticks(ctx context.Context, limit int) ([]TickRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,digest,gates,sinks,wires,changes,overwrites FROM ticks ORDER BY tick DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var t TickRow
		var tick int64
		if err := rows.Scan(&tick, &t.Digest, &t.Gates, &t.Sinks, &t.Wires, &t.Changes, &t.Overwrites); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Audits returns the newest audit entries first, optionally filtered by actor.
func (r *Reader) Audits(ctx context.Context, actor string, limit int) ([]AuditRow, error) {
	q := `SELECT tick,seq,actor,action,x,y,z,COALESCE(from_state,''),COALESCE(to_state,''),COALESCE(reason,'') FROM audits`
	args := []any{}
	if actor != "" {
		q += ` WHERE actor=?`
		args = append(args, actor)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var a AuditRow
		var tick int64
		if err := rows.Scan(&tick, &a.Seq, &a.Actor, &a.Action, &a.Pos[0], &a.Pos[1], &a.Pos[2], &a.From, &a.To, &a.Reason); err != nil {
			return nil, err
		}
		a.Tick = uint64(tick)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SignalHistory returns committed transitions of one position, oldest first.
func (r *Reader) SignalHistory(ctx context.Context, pos [3]int, limit int) ([]uint64, []bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,signal FROM signal_changes WHERE x=? AND y=? AND z=? ORDER BY tick ASC LIMIT ?`, pos[0], pos[1], pos[2], clampLimit(limit))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var ticks []uint64
	var sig []bool
	for rows.Next() {
		var tick int64
		var on int
		if err := rows.Scan(&tick, &on); err != nil {
			return nil, nil, fmt.Errorf("scan signal change: %w", err)
		}
		ticks = append(ticks, uint64(tick))
		sig = append(sig, on != 0)
	}
	return ticks, sig, rows.Err()
}

func clampLimit(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 10000 {
		return 10000
	}
	return n
}
