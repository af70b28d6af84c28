package autosave

import (
	"context"
	"fmt"
	"sync"

	"planner/internal/model"
)

// BlockedError reports a close or switch refused because the open editor could not be
// flushed. The editor stays open with its draft intact.
type BlockedError struct {
	TaskID string
	Err    error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("unsaved changes to %s: %v", e.TaskID, e.Err)
}

func (e *BlockedError) Unwrap() error { return e.Err }

// Host owns the single open editor session. Switching or closing always flushes first.
type Host struct {
	saver Saver
	opts  Options

	mu  sync.Mutex
	cur *Session
}

func NewHost(saver Saver, opts Options) *Host {
	return &Host{saver: saver, opts: opts}
}

func (h *Host) Current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// Open makes t the edited task. The current session, if any, is flushed and discarded
// first; a failed flush leaves it open and returns a *BlockedError.
func (h *Host) Open(ctx context.Context, t model.Task) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur != nil {
		if h.cur.TaskID() == t.ID {
			return h.cur, nil
		}
		if err := h.closeLocked(ctx); err != nil {
			return nil, err
		}
	}
	h.cur = NewSession(t, h.saver, h.opts)
	return h.cur, nil
}

// Close flushes and discards the current session.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur == nil {
		return nil
	}
	return h.closeLocked(ctx)
}

func (h *Host) closeLocked(ctx context.Context) error {
	if err := h.cur.Flush(ctx); err != nil {
		return &BlockedError{TaskID: h.cur.TaskID(), Err: err}
	}
	h.cur.Discard()
	h.cur = nil
	return nil
}
