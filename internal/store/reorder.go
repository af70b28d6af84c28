package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
)

// orderMismatch describes how a proposed ordering differs from the expected membership.
type orderMismatch struct {
	Missing    []string
	Extra      []string
	Duplicates []string
}

func (m orderMismatch) empty() bool {
	return len(m.Missing) == 0 && len(m.Extra) == 0 && len(m.Duplicates) == 0
}

// compareOrder checks that ordered is a duplicate-free permutation of want.
func compareOrder(want []string, ordered []string) orderMismatch {
	wantSet := make(map[string]bool, len(want))
	for _, id := range want {
		wantSet[id] = true
	}

	var out orderMismatch
	seen := make(map[string]bool, len(ordered))
	dupSeen := map[string]bool{}
	for _, id := range ordered {
		if seen[id] {
			if !dupSeen[id] {
				out.Duplicates = append(out.Duplicates, id)
				dupSeen[id] = true
			}
			continue
		}
		seen[id] = true
		if !wantSet[id] {
			out.Extra = append(out.Extra, id)
		}
	}
	for _, id := range want {
		if !seen[id] {
			out.Missing = append(out.Missing, id)
		}
	}
	sort.Strings(out.Missing)
	sort.Strings(out.Extra)
	sort.Strings(out.Duplicates)
	return out
}

func invalidOrder(sc Scope, m orderMismatch) *Error {
	var parts []string
	if len(m.Duplicates) > 0 {
		parts = append(parts, "duplicate ids: "+strings.Join(m.Duplicates, ", "))
	}
	if len(m.Missing) > 0 {
		parts = append(parts, "missing ids: "+strings.Join(m.Missing, ", "))
	}
	if len(m.Extra) > 0 {
		parts = append(parts, "unknown ids: "+strings.Join(m.Extra, ", "))
	}
	return &Error{
		Code:    CodeInvalidOrder,
		Message: "ordering for " + sc.ID() + " does not match current members (" + strings.Join(parts, "; ") + ")",
		Details: map[string]any{
			"scope_id":   sc.ID(),
			"missing":    nonNil(m.Missing),
			"extra":      nonNil(m.Extra),
			"duplicates": nonNil(m.Duplicates),
		},
	}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

func checkIDs(field string, ids []string) error {
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return Validation(field+" contains an empty id", map[string]any{"field": field, "index": i})
		}
	}
	return nil
}

// Reorder replaces the whole manual ordering of sc. ordered must be exactly the scope's
// current derived membership; any mismatch fails with INVALID_ORDER and writes nothing.
func (s *Store) Reorder(ctx context.Context, sc Scope, ordered []string) error {
	if err := checkIDs("ordered_ids", ordered); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkScopeTarget(ctx, tx, sc); err != nil {
			return err
		}
		ms, err := s.members(ctx, tx, sc)
		if err != nil {
			return err
		}
		if _, err := s.ensureInitialized(ctx, tx, sc, ms); err != nil {
			return err
		}
		if m := compareOrder(memberIDs(ms), ordered); !m.empty() {
			return invalidOrder(sc, m)
		}
		return writeRanks(ctx, tx, sc.ID(), ordered, s.now())
	})
}
