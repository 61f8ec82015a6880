package lifecycle

import (
	"fmt"
	"strings"
)

// Trigger names an event that may count as the first response.
type Trigger string

const (
	// TriggerStatusChange: an assigned ticket leaves open.
	TriggerStatusChange Trigger = "status_change"
	// TriggerPublicComment: staff posts a non-internal comment.
	TriggerPublicComment Trigger = "public_comment"
	// TriggerInternalComment: staff posts an internal note.
	TriggerInternalComment Trigger = "internal_comment"
)

// Triggers is the enabled trigger set.
type Triggers map[Trigger]bool

// DefaultTriggers enables status_change and public_comment.
func DefaultTriggers() Triggers {
	return Triggers{TriggerStatusChange: true, TriggerPublicComment: true}
}

// ParseTriggers reads a trigger list such as the SLA_FIRST_RESPONSE_TRIGGERS
// setting. An empty list yields the defaults.
func ParseTriggers(names []string) (Triggers, error) {
	if len(names) == 0 {
		return DefaultTriggers(), nil
	}
	set := Triggers{}
	for _, name := range names {
		trigger := Trigger(strings.ToLower(strings.TrimSpace(name)))
		switch trigger {
		case TriggerStatusChange, TriggerPublicComment, TriggerInternalComment:
			set[trigger] = true
		default:
			return nil, fmt.Errorf("unknown first response trigger %q", name)
		}
	}
	return set, nil
}

// Enabled reports whether t is on.
func (ts Triggers) Enabled(t Trigger) bool {
	return ts[t]
}
