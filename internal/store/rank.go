package store

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"planner/internal/model"
)

// RankStep spaces ranks so a scope's relative order survives without renumbering neighbours.
// Every reorder still rewrites the whole sequence.
const RankStep int64 = 1000

func rankAt(index int) int64 { return int64(index+1) * RankStep }

func loadRanks(ctx context.Context, q querier, scopeID string) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT entity_id, rank FROM ranks WHERE scope_id = ?`, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id string
		var r int64
		if err := rows.Scan(&id, &r); err != nil {
			return nil, err
		}
		out[id] = r
	}
	return out, rows.Err()
}

// writeRanks assigns (index+1)*RankStep to ids in order and stamps updated_at on each row.
func writeRanks(ctx context.Context, q querier, scopeID string, ids []string, now time.Time) error {
	ms := toUnixMs(now)
	for i, id := range ids {
		if _, err := q.ExecContext(ctx, `INSERT INTO ranks(scope_id, entity_id, rank, updated_at_unixms) VALUES(?, ?, ?, ?)
			ON CONFLICT(scope_id, entity_id) DO UPDATE SET rank = excluded.rank, updated_at_unixms = excluded.updated_at_unixms`,
			scopeID, id, rankAt(i), ms); err != nil {
			return err
		}
	}
	return nil
}

func deleteRank(ctx context.Context, q querier, scopeID, entityID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM ranks WHERE scope_id = ? AND entity_id = ?`, scopeID, entityID)
	return err
}

// needsInit reports whether any member lacks a rank row, or two members share a rank.
// Shared ranks only appear when stale rows from an earlier membership resurface.
func needsInit(ms []member, ranks map[string]int64) bool {
	seen := make(map[int64]bool, len(ms))
	for _, m := range ms {
		r, ok := ranks[m.ID]
		if !ok || seen[r] {
			return true
		}
		seen[r] = true
	}
	return false
}

// fallbackOrder puts previously ranked members first in rank order, then unranked members by
// creation time and id.
func fallbackOrder(ms []member, ranks map[string]int64) []string {
	cur := append([]member{}, ms...)
	sort.SliceStable(cur, func(i, j int) bool {
		a, b := cur[i], cur[j]
		ra, oka := ranks[a.ID]
		rb, okb := ranks[b.ID]
		if oka != okb {
			return oka
		}
		if oka && ra != rb {
			return ra < rb
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
	return memberIDs(cur)
}

// ensureInitialized materializes ranks for every current member of sc when any is missing.
// It returns the number of rank rows written (0 when the scope was already consistent).
func (s *Store) ensureInitialized(ctx context.Context, q querier, sc Scope, ms []member) (int, error) {
	ranks, err := loadRanks(ctx, q, sc.ID())
	if err != nil {
		return 0, err
	}
	if !needsInit(ms, ranks) {
		return 0, nil
	}
	order := fallbackOrder(ms, ranks)
	if err := writeRanks(ctx, q, sc.ID(), order, s.now()); err != nil {
		return 0, err
	}
	return len(order), nil
}

// orderedIDs returns sc's current members in display order, initializing ranks first.
func (s *Store) orderedIDs(ctx context.Context, q querier, sc Scope) ([]string, error) {
	if err := checkScopeTarget(ctx, q, sc); err != nil {
		return nil, err
	}
	ms, err := s.members(ctx, q, sc)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensureInitialized(ctx, q, sc, ms); err != nil {
		return nil, err
	}
	ranks, err := loadRanks(ctx, q, sc.ID())
	if err != nil {
		return nil, err
	}
	return fallbackOrder(ms, ranks), nil
}

// EnsureInitialized is the standalone lazy initializer for one scope.
func (s *Store) EnsureInitialized(ctx context.Context, sc Scope) (int, error) {
	var n int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkScopeTarget(ctx, tx, sc); err != nil {
			return err
		}
		ms, err := s.members(ctx, tx, sc)
		if err != nil {
			return err
		}
		n, err = s.ensureInitialized(ctx, tx, sc, ms)
		return err
	})
	return n, err
}

// OrderedIDs initializes sc if needed and returns its members in display order.
func (s *Store) OrderedIDs(ctx context.Context, sc Scope) ([]string, error) {
	var out []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.orderedIDs(ctx, tx, sc)
		return err
	})
	return out, err
}

// Ranks returns the stored rank rows of sc ordered by rank. Stale rows for entities that left
// the scope are included; they never affect ordering.
func (s *Store) Ranks(ctx context.Context, sc Scope) ([]model.RankEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, rank, updated_at_unixms FROM ranks WHERE scope_id = ? ORDER BY rank, entity_id`, sc.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RankEntry
	for rows.Next() {
		e := model.RankEntry{ScopeID: sc.ID()}
		var ms int64
		if err := rows.Scan(&e.EntityID, &e.Rank, &ms); err != nil {
			return nil, err
		}
		e.Updated = fromUnixMs(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}
