package perm

import "strings"

// Policy decides which request senders the action boundary accepts. A sender is the
// transport-level identity of the calling surface: a fixed surface name for stdio and
// in-process callers, the Origin header for websocket callers.
type Policy struct {
	trusted map[string]bool
}

func NewPolicy(senders ...string) Policy {
	p := Policy{trusted: map[string]bool{}}
	for _, s := range senders {
		if n := normalizeSender(s); n != "" {
			p.trusted[n] = true
		}
	}
	return p
}

// Allows reports whether requests from sender may reach a handler.
// An empty policy trusts nobody.
func (p Policy) Allows(sender string) bool {
	n := normalizeSender(sender)
	if n == "" {
		return false
	}
	return p.trusted[n]
}

func normalizeSender(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), "/")
}
