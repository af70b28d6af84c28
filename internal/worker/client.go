package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"planner/internal/action"
)

const DefaultTimeout = 5 * time.Second

type ClientOptions struct {
	// Timeout bounds each call. A timed-out call has an unknown outcome.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// Client speaks the line protocol to a worker over a pair of streams.
type Client struct {
	w       io.WriteCloser
	timeout time.Duration
	log     logrus.FieldLogger

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan action.Response

	done    chan struct{}
	doneErr error

	// cmd is set for clients that own a worker process.
	cmd *exec.Cmd
}

// NewClient starts reading responses from r. Requests are written to w.
func NewClient(r io.Reader, w io.WriteCloser, opts ClientOptions) *Client {
	c := &Client{
		w:       w,
		timeout: opts.Timeout,
		log:     opts.Logger,
		pending: map[string]chan action.Response{},
		done:    make(chan struct{}),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	go c.readLoop(r)
	return c
}

type ProcessOptions struct {
	ClientOptions
	// Path is the planner binary; empty means the running executable.
	Path string
	// Args are passed before the "worker" subcommand (e.g. --db, --config).
	Args []string
	Env  []string
}

// StartProcess spawns `planner worker` and returns a client bound to its stdio.
// The worker's stderr is forwarded to ours so its logs stay visible.
func StartProcess(ctx context.Context, opts ProcessOptions) (*Client, error) {
	path := opts.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		path = exe
	}
	args := append(append([]string{}, opts.Args...), "worker")
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	c := NewClient(stdout, stdin, opts.ClientOptions)
	c.cmd = cmd
	return c, nil
}

func (c *Client) readLoop(r io.Reader) {
	br := bufio.NewReader(r)
	var err error
	for {
		var line []byte
		line, err = br.ReadBytes('\n')
		if len(line) > 0 {
			var resp action.Response
			if jerr := json.Unmarshal(line, &resp); jerr != nil {
				c.log.WithError(jerr).Warn("worker sent malformed response")
			} else {
				c.deliver(resp)
			}
		}
		if err != nil {
			break
		}
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("worker closed its output")
	}
	c.mu.Lock()
	c.doneErr = err
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) deliver(resp action.Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()
	if !ok {
		// Late response for a call that already timed out.
		c.log.WithField("id", resp.ID).Debug("dropping unmatched response")
		return
	}
	ch <- resp
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) transportError(err error) *action.Error {
	msg := "worker unavailable"
	if err != nil {
		msg = "worker unavailable: " + err.Error()
	}
	return &action.Error{Code: action.CodeTransport, Message: msg}
}

func (c *Client) Call(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	req, err := newRequest(name, payload)
	if err != nil {
		return nil, err
	}

	select {
	case <-c.done:
		return nil, c.transportError(c.exitErr())
	default:
	}

	ch := make(chan action.Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	b, err := json.Marshal(req)
	if err != nil {
		c.forget(req.ID)
		return nil, &action.Error{Code: action.CodeInternal, Message: "encode request: " + err.Error()}
	}
	c.wmu.Lock()
	_, err = c.w.Write(append(b, '\n'))
	c.wmu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return nil, c.transportError(err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return result(resp)
	case <-timer.C:
		c.forget(req.ID)
		return nil, &action.Error{
			Code:    action.CodeTimeout,
			Message: fmt.Sprintf("%s timed out after %s; outcome unknown", name, c.timeout),
			Details: map[string]any{"action": name, "id": req.ID},
		}
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, &action.Error{
			Code:    action.CodeTimeout,
			Message: fmt.Sprintf("%s abandoned: %v; outcome unknown", name, ctx.Err()),
			Details: map[string]any{"action": name, "id": req.ID},
		}
	case <-c.done:
		select {
		case resp := <-ch:
			return result(resp)
		default:
		}
		c.forget(req.ID)
		return nil, c.transportError(c.exitErr())
	}
}

func (c *Client) exitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doneErr
}

// Done is closed once the worker stops producing responses.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the request stream and, for spawned workers, waits for the process.
func (c *Client) Close() error {
	err := c.w.Close()
	if c.cmd == nil {
		return err
	}
	// Drain stdout before Wait closes the pipe.
	select {
	case <-c.done:
	case <-time.After(3 * time.Second):
		_ = c.cmd.Process.Kill()
		<-c.done
	}
	if werr := c.cmd.Wait(); werr != nil {
		return werr
	}
	return err
}
