// Package worker carries action envelopes between the UI surfaces and the dispatcher.
//
// The dispatcher normally runs in a separate `planner worker` process speaking
// newline-delimited JSON over stdio. The same dispatcher can be hosted over websocket
// (`planner serve`) or called in-process.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"planner/internal/action"
)

// SenderUI is the sender stamped on requests from the local UI surfaces.
const SenderUI = "ui"

// Caller sends one action and returns its data. Failures are always *action.Error.
type Caller interface {
	Call(ctx context.Context, name string, payload any) (json.RawMessage, error)
}

// Decode unpacks a Call result into T.
func Decode[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &action.Error{Code: action.CodeInternal, Message: "decode response: " + err.Error()}
	}
	return out, nil
}

func newRequest(name string, payload any) (action.Request, error) {
	req := action.Request{ID: uuid.NewString(), Action: name}
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		req.Payload = p
	case []byte:
		req.Payload = json.RawMessage(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return action.Request{}, &action.Error{Code: action.CodeValidation, Message: fmt.Sprintf("encode payload: %v", err)}
		}
		req.Payload = b
	}
	return req, nil
}

func result(resp action.Response) (json.RawMessage, error) {
	if !resp.OK {
		if resp.Error == nil {
			return nil, &action.Error{Code: action.CodeInternal, Message: "failure without error"}
		}
		return nil, resp.Error
	}
	return resp.Data, nil
}

// Local calls a dispatcher in the same process.
type Local struct {
	Dispatcher *action.Dispatcher
	Sender     string
}

func (l Local) Call(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	req, err := newRequest(name, payload)
	if err != nil {
		return nil, err
	}
	req.Sender = l.Sender
	if req.Sender == "" {
		req.Sender = SenderUI
	}
	return result(l.Dispatcher.Dispatch(ctx, req))
}
