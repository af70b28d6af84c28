// Package autosave coalesces editor changes into serialized task.update writes.
//
// A Session belongs to one open task. Draft changes are debounced per field class,
// at most one write is in flight at a time, and anything that changed while a write was
// running is re-diffed against the last confirmed snapshot once it completes.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"planner/internal/model"
)

const (
	DefaultTextDebounce       = 450 * time.Millisecond
	DefaultStructuralDebounce = 120 * time.Millisecond
)

// ErrDiscarded is returned by operations on a session that has been closed.
var ErrDiscarded = errors.New("autosave: session discarded")

type State string

const (
	StateIdle   State = "idle"
	StateSaving State = "saving"
	StateError  State = "error"
)

type Status struct {
	TaskID string
	State  State
	// Err is the last write failure while State is error.
	Err error
	// Dirty reports unsaved draft changes.
	Dirty bool
	// Writes counts completed successful writes.
	Writes int
}

type Options struct {
	TextDebounce       time.Duration
	StructuralDebounce time.Duration
	Logger             logrus.FieldLogger
	// OnChange is called after every state transition, outside the session lock.
	OnChange func(Status)
}

func (o Options) withDefaults() Options {
	if o.TextDebounce <= 0 {
		o.TextDebounce = DefaultTextDebounce
	}
	if o.StructuralDebounce <= 0 {
		o.StructuralDebounce = DefaultStructuralDebounce
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

type Session struct {
	id    string
	saver Saver
	opts  Options
	log   logrus.FieldLogger

	mu        sync.Mutex
	confirmed Fields
	draft     Fields
	task      model.Task
	state     State
	err       error
	failed    Patch
	inflight  bool
	// queued asks for an immediate re-diff once the in-flight write completes.
	queued    bool
	timer     *time.Timer
	due       time.Time
	writes    int
	discarded bool
	changed   chan struct{}
}

// NewSession starts a session on the stored task t.
func NewSession(t model.Task, saver Saver, opts Options) *Session {
	opts = opts.withDefaults()
	f := FieldsOf(t)
	return &Session{
		id:        t.ID,
		saver:     saver,
		opts:      opts,
		log:       opts.Logger.WithField("task_id", t.ID),
		confirmed: f,
		draft:     f.clone(),
		task:      t,
		state:     StateIdle,
		changed:   make(chan struct{}),
	}
}

func (s *Session) TaskID() string { return s.id }

// Task is the task as last returned by storage.
func (s *Session) Task() model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

func (s *Session) Draft() Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	return Status{
		TaskID: s.id,
		State:  s.state,
		Err:    s.err,
		Dirty:  !Diff(s.confirmed, s.draft).Empty(),
		Writes: s.writes,
	}
}

// broadcastLocked wakes Flush waiters and returns the status to publish once unlocked.
func (s *Session) broadcastLocked() Status {
	close(s.changed)
	s.changed = make(chan struct{})
	return s.statusLocked()
}

func (s *Session) publish(st Status) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
}

// Update replaces the draft and schedules a write if it differs from the confirmed
// snapshot. Text-only changes restart the long debounce; a structural change brings
// the pending write forward to the short debounce.
func (s *Session) Update(draft Fields) {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return
	}
	s.draft = draft.clone()
	p := Diff(s.confirmed, s.draft)
	if p.Empty() {
		s.stopTimerLocked()
		// The snapshot is stale while a write runs; the revert is re-diffed once it lands.
		if s.inflight {
			s.queued = true
		}
		st := s.broadcastLocked()
		s.mu.Unlock()
		s.publish(st)
		return
	}

	delay := s.opts.TextDebounce
	if p.Class() == Structural {
		delay = s.opts.StructuralDebounce
	}
	due := time.Now().Add(delay)
	keep := s.timer != nil && p.Class() == Structural && s.due.Before(due)
	if !keep {
		s.stopTimerLocked()
		s.due = due
		s.timer = time.AfterFunc(delay, s.fire)
	}
	st := s.broadcastLocked()
	s.mu.Unlock()
	s.publish(st)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.discarded {
		s.mu.Unlock()
		return
	}
	if s.inflight {
		s.queued = true
		s.mu.Unlock()
		return
	}
	st, ok := s.sendLocked(Diff(s.confirmed, s.draft))
	s.mu.Unlock()
	if ok {
		s.publish(st)
	}
}

// sendLocked starts writing p. It reports false when there is nothing to send.
func (s *Session) sendLocked(p Patch) (Status, bool) {
	if p.Empty() || s.inflight {
		return Status{}, false
	}
	s.stopTimerLocked()
	s.inflight = true
	s.queued = false
	s.state = StateSaving
	go s.write(p)
	return s.broadcastLocked(), true
}

func (s *Session) write(p Patch) {
	start := time.Now()
	task, err := s.saver.Save(context.Background(), s.id, p)

	s.mu.Lock()
	s.inflight = false
	if s.discarded {
		s.mu.Unlock()
		s.log.WithField("fields", p.Fields()).Debug("ignoring response for discarded session")
		return
	}
	log := s.log.WithFields(logrus.Fields{"fields": p.Fields(), "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		s.state = StateError
		s.err = err
		s.failed = p
		s.queued = false
		st := s.broadcastLocked()
		s.mu.Unlock()
		log.WithError(err).Warn("autosave failed")
		s.publish(st)
		return
	}

	s.confirmed = p.Apply(s.confirmed)
	s.task = task
	s.writes++
	s.state = StateIdle
	s.err = nil
	s.failed = nil
	log.Debug("autosaved")

	var st Status
	sent := false
	if s.queued {
		st, sent = s.sendLocked(Diff(s.confirmed, s.draft))
		s.queued = false
	}
	if !sent {
		st = s.broadcastLocked()
	}
	s.mu.Unlock()
	s.publish(st)
}

// Retry resubmits the last failed patch. Once it succeeds, whatever changed in the
// meantime is re-diffed and written as a follow-up. It reports false when the session is
// not in the error state or a write is already running.
func (s *Session) Retry() bool {
	s.mu.Lock()
	if s.discarded || s.state != StateError || s.failed == nil || s.inflight {
		s.mu.Unlock()
		return false
	}
	p := s.failed
	st, ok := s.sendLocked(p)
	if ok {
		s.queued = true
	}
	s.mu.Unlock()
	if ok {
		s.publish(st)
	}
	return ok
}

// Flush drains the debounce timer and waits until every draft change is confirmed.
// It returns the write error if the last attempt failed; the draft is kept.
func (s *Session) Flush(ctx context.Context) error {
	attempted := false
	for {
		s.mu.Lock()
		if s.discarded {
			s.mu.Unlock()
			return ErrDiscarded
		}
		s.stopTimerLocked()
		if s.inflight {
			s.queued = true
			ch := s.changed
			s.mu.Unlock()
			if err := wait(ctx, ch); err != nil {
				return err
			}
			continue
		}
		if s.state == StateError && attempted {
			err := s.err
			s.mu.Unlock()
			return err
		}
		p := Diff(s.confirmed, s.draft)
		if p.Empty() {
			var st Status
			changed := s.state != StateIdle
			if changed {
				s.state = StateIdle
				s.err = nil
				s.failed = nil
				st = s.broadcastLocked()
			}
			s.mu.Unlock()
			if changed {
				s.publish(st)
			}
			return nil
		}
		attempted = true
		st, _ := s.sendLocked(p)
		ch := s.changed
		s.mu.Unlock()
		s.publish(st)
		if err := wait(ctx, ch); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discard closes the session. A pending debounce is dropped and a response to an
// in-flight write is ignored.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.discarded = true
	s.stopTimerLocked()
	close(s.changed)
	s.changed = make(chan struct{})
}
