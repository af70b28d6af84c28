package store

import (
	"context"
	"database/sql"
	"strings"

	"planner/internal/model"
	"planner/internal/statusutil"
)

type MoveProjectInput struct {
	ProjectID  string
	FromAreaID *string
	ToAreaID   *string

	// FromOrdered is the source group's new order without the moved project.
	FromOrdered []string
	// ToOrdered is the destination group's new order including the moved project.
	ToOrdered []string
}

func areaLabel(id *string) any {
	if id == nil {
		return nil
	}
	return *id
}

// MoveProject relocates a project between area groups and re-ranks both groups in one
// transaction. Every check runs before the first write; any failure leaves ownership and
// both rank sequences untouched.
func (s *Store) MoveProject(ctx context.Context, in MoveProjectInput) error {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.ProjectID == "" {
		return Validation("project_id is required", map[string]any{"field": "project_id"})
	}
	if model.SameStrPtr(in.FromAreaID, in.ToAreaID) {
		return InvalidMove("source and destination are the same group", map[string]any{
			"project_id": in.ProjectID,
			"area_id":    areaLabel(in.FromAreaID),
		})
	}
	if err := checkIDs("from_ordered_project_ids", in.FromOrdered); err != nil {
		return err
	}
	if err := checkIDs("to_ordered_project_ids", in.ToOrdered); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getProject(ctx, tx, in.ProjectID)
		if err != nil {
			return err
		}
		if !statusutil.CanMove(p.Status) {
			return InvalidMove("project cannot be moved while "+string(p.Status), map[string]any{
				"project_id": p.ID,
				"status":     string(p.Status),
			})
		}
		if !model.SameStrPtr(p.AreaID, in.FromAreaID) {
			return Conflict("project is no longer in the stated source group", map[string]any{
				"project_id":     p.ID,
				"from_area_id":   areaLabel(in.FromAreaID),
				"actual_area_id": areaLabel(p.AreaID),
			})
		}

		fromSc := AreaProjectsScope(in.FromAreaID)
		toSc := AreaProjectsScope(in.ToAreaID)
		if err := checkScopeTarget(ctx, tx, toSc); err != nil {
			return err
		}

		fromMembers, err := s.members(ctx, tx, fromSc)
		if err != nil {
			return err
		}
		toMembers, err := s.members(ctx, tx, toSc)
		if err != nil {
			return err
		}
		if _, err := s.ensureInitialized(ctx, tx, fromSc, fromMembers); err != nil {
			return err
		}
		if _, err := s.ensureInitialized(ctx, tx, toSc, toMembers); err != nil {
			return err
		}

		for _, id := range in.FromOrdered {
			if id == p.ID {
				return InvalidMove("moved project must not appear in the source ordering", map[string]any{
					"project_id": p.ID,
					"scope_id":   fromSc.ID(),
				})
			}
		}
		wantFrom := make([]string, 0, len(fromMembers))
		for _, m := range fromMembers {
			if m.ID != p.ID {
				wantFrom = append(wantFrom, m.ID)
			}
		}
		if m := compareOrder(wantFrom, in.FromOrdered); !m.empty() {
			return invalidOrder(fromSc, m)
		}

		for _, m := range toMembers {
			if m.ID == p.ID {
				return Conflict("destination group already contains the project", map[string]any{
					"project_id": p.ID,
					"scope_id":   toSc.ID(),
				})
			}
		}
		included := false
		for _, id := range in.ToOrdered {
			if id == p.ID {
				included = true
				break
			}
		}
		if !included {
			return InvalidMove("destination ordering must include the moved project", map[string]any{
				"project_id": p.ID,
				"scope_id":   toSc.ID(),
			})
		}
		wantTo := append(memberIDs(toMembers), p.ID)
		if m := compareOrder(wantTo, in.ToOrdered); !m.empty() {
			return invalidOrder(toSc, m)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET area_id = ?, updated_at_unixms = ? WHERE id = ?`,
			strArg(in.ToAreaID), toUnixMs(now), p.ID); err != nil {
			return err
		}
		// Drop the source row so a later return to this group is re-ranked instead of
		// colliding with a rank that has since been reassigned.
		if err := deleteRank(ctx, tx, fromSc.ID(), p.ID); err != nil {
			return err
		}
		if err := writeRanks(ctx, tx, fromSc.ID(), in.FromOrdered, now); err != nil {
			return err
		}
		return writeRanks(ctx, tx, toSc.ID(), in.ToOrdered, now)
	})
}
