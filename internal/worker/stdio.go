package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"planner/internal/action"
)

// Serve reads request envelopes from r, one JSON object per line, and writes responses
// to w. Requests are handled concurrently, so responses may come back out of order;
// callers correlate by id. Serve returns when r reaches EOF and every request has
// been answered, or when ctx is done.
func Serve(ctx context.Context, r io.Reader, w io.Writer, d *action.Dispatcher, sender string, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var (
		wg  sync.WaitGroup
		wmu sync.Mutex
	)
	enc := json.NewEncoder(w)
	write := func(resp action.Response) {
		wmu.Lock()
		defer wmu.Unlock()
		if err := enc.Encode(resp); err != nil {
			log.WithError(err).WithField("id", resp.ID).Error("write response")
		}
	}

	br := bufio.NewReader(r)
	var readErr error
	for {
		if ctx.Err() != nil {
			readErr = ctx.Err()
			break
		}
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var req action.Request
			if jerr := json.Unmarshal(line, &req); jerr != nil {
				write(action.Failure(req.ID, &action.Error{Code: action.CodeValidation, Message: "malformed request: " + jerr.Error()}))
			} else {
				req.Sender = sender
				wg.Add(1)
				go func() {
					defer wg.Done()
					write(d.Dispatch(ctx, req))
				}()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}
	wg.Wait()
	return readErr
}
