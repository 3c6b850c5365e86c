package events

import (
	"encoding/json"
	"strings"
)

// Filter selects events for a subscriber. The zero Filter matches everything.
type Filter struct {
	// Types holds exact event types or family prefixes such as "order.".
	Types []string
	// Queue keeps only events whose payload names this queue.
	Queue string
}

// ParseFilter builds a Filter from a comma separated type list and a queue
// name. A bare family name like "dispatch" matches every "dispatch." event.
func ParseFilter(types, queue string) Filter {
	var f Filter
	for t := range strings.SplitSeq(types, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.Contains(t, ".") {
			t += "."
		}
		f.Types = append(f.Types, t)
	}
	f.Queue = strings.TrimSpace(queue)
	return f
}

func (f Filter) Match(ev Event) bool {
	if len(f.Types) > 0 && !f.matchType(ev.Type) {
		return false
	}
	if f.Queue == "" {
		return true
	}
	var p struct {
		Queue string `json:"queue"`
	}
	return json.Unmarshal(ev.Data, &p) == nil && p.Queue == f.Queue
}

func (f Filter) matchType(eventType string) bool {
	for _, t := range f.Types {
		if strings.HasSuffix(t, ".") {
			if strings.HasPrefix(eventType, t) {
				return true
			}
		} else if eventType == t {
			return true
		}
	}
	return false
}
