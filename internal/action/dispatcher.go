package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"planner/internal/perm"
)

// HandlerFunc serves one action. Returned errors are shaped by the dispatcher; handlers
// never write responses themselves.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

type validator interface {
	Validate() error
}

// Handle adapts a typed handler: the payload is decoded strictly into P and validated
// (when P implements Validate) before fn runs.
func Handle[P any](fn func(ctx context.Context, p P) (any, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		if v, ok := any(&p).(validator); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		return fn(ctx, p)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &Error{Code: CodeValidation, Message: "invalid payload: " + err.Error()}
	}
	return nil
}

type Options struct {
	Policy perm.Policy
	Logger logrus.FieldLogger
}

// Dispatcher is the action boundary: it checks the sender, routes by action name and turns
// every outcome, including panics, into a Response.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	policy   perm.Policy
	log      logrus.FieldLogger
}

func NewDispatcher(opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		handlers: map[string]HandlerFunc{},
		policy:   opts.Policy,
		log:      log,
	}
}

func (d *Dispatcher) Register(name string, h HandlerFunc) {
	name = strings.TrimSpace(name)
	if name == "" || h == nil {
		panic("action: invalid registration")
	}
	if _, dup := d.handlers[name]; dup {
		panic("action: duplicate registration for " + name)
	}
	d.handlers[name] = h
}

func (d *Dispatcher) Actions() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	entry := d.log.WithFields(logrus.Fields{"id": req.ID, "action": req.Action, "sender": req.Sender})

	defer func() {
		if r := recover(); r != nil {
			entry.WithField("stack", string(debug.Stack())).Errorf("action panicked: %v", r)
			resp = Failure(req.ID, &Error{Code: CodeInternal, Message: fmt.Sprintf("internal error: %v", r)})
		}
		f := entry.WithField("duration_ms", time.Since(start).Milliseconds())
		if resp.OK {
			f.Debug("action ok")
			return
		}
		if resp.Error != nil && resp.Error.Code == CodeInternal {
			f.WithField("code", resp.Error.Code).Error(resp.Error.Message)
			return
		}
		if resp.Error != nil {
			f.WithField("code", resp.Error.Code).Warn(resp.Error.Message)
		}
	}()

	if !d.policy.Allows(req.Sender) {
		return Failure(req.ID, &Error{
			Code:    CodeForbidden,
			Message: "untrusted sender",
			Details: map[string]any{"sender": req.Sender},
		})
	}
	h, ok := d.handlers[strings.TrimSpace(req.Action)]
	if !ok {
		return Failure(req.ID, &Error{
			Code:    CodeUnknownAction,
			Message: "unknown action: " + req.Action,
			Details: map[string]any{"action": req.Action},
		})
	}

	data, err := h(ctx, req.Payload)
	if err != nil {
		return Failure(req.ID, err)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Failure(req.ID, fmt.Errorf("encode result: %w", err))
	}
	return Response{ID: req.ID, OK: true, Data: b}
}
