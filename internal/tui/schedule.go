package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const dateLayout = "2006-01-02"

var scheduleParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSchedule turns schedule input into a calendar date. Empty input and "none"
// clear the schedule (nil). Besides YYYY-MM-DD it accepts phrases like "tomorrow" or
// "next friday", resolved against now.
func parseSchedule(input string, now time.Time) (*string, error) {
	s := strings.TrimSpace(input)
	switch strings.ToLower(s) {
	case "", "none":
		return nil, nil
	case "today":
		d := now.Format(dateLayout)
		return &d, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, now.Location()); err == nil {
		d := t.Format(dateLayout)
		return &d, nil
	}
	r, err := scheduleParser.Parse(s, now)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s, err)
	}
	if r == nil {
		return nil, fmt.Errorf("unrecognized date %q", s)
	}
	d := r.Time.Format(dateLayout)
	return &d, nil
}

func parseTags(input string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.Split(input, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
