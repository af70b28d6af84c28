package statusutil

import (
	"fmt"
	"strings"

	"planner/internal/model"
)

func NormalizeStatus(s string) (model.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "todo":
		return model.StatusOpen, nil
	case "completed", "complete", "done":
		return model.StatusCompleted, nil
	case "canceled", "cancelled":
		return model.StatusCanceled, nil
	case "":
		return "", fmt.Errorf("invalid status: empty")
	default:
		return "", fmt.Errorf("invalid status: %q", s)
	}
}

// IsEndState reports whether the status closes the entity (removes it from open lists).
func IsEndState(s model.Status) bool {
	return s == model.StatusCompleted || s == model.StatusCanceled
}

// CanMove reports whether an entity in this status may change ownership group.
func CanMove(s model.Status) bool {
	return s == model.StatusOpen
}
