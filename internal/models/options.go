package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/bulksms/internal/smserr"
	"github.com/example/bulksms/internal/util"
)

// Recognised send option keys.
const (
	OptionSender      = "sender"
	OptionPriority    = "priority"
	OptionScheduledAt = "scheduled_at"
)

// SendOptions are the delivery options applied to every recipient of a send.
type SendOptions struct {
	// Sender overrides the session sender ID. The gateway decides whether
	// the value is allowed for the account.
	Sender   string `json:"sender,omitempty"`
	Priority bool   `json:"priority,omitempty"`
	// ScheduledAt defers delivery; the zero value sends immediately.
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
}

// Scheduled reports whether delivery is deferred.
func (o SendOptions) Scheduled() bool { return !o.ScheduledAt.IsZero() }

// ParseSendOptions builds SendOptions from a loosely typed map, as produced by
// decoded JSON or command line flags. Unknown keys and ill-typed values are
// rejected.
func ParseSendOptions(raw map[string]any) (SendOptions, error) {
	var opts SendOptions
	var errs smserr.FieldErrors

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		field := "options." + key
		switch key {
		case OptionSender:
			s, ok := value.(string)
			if !ok {
				errs.Add(field, fmt.Sprintf("expected string, got %T", value))
				continue
			}
			opts.Sender = strings.TrimSpace(s)
		case OptionPriority:
			switch v := value.(type) {
			case bool:
				opts.Priority = v
			case string:
				b, err := strconv.ParseBool(strings.TrimSpace(v))
				if err != nil {
					errs.Add(field, "expected boolean")
					continue
				}
				opts.Priority = b
			default:
				errs.Add(field, fmt.Sprintf("expected boolean, got %T", value))
			}
		case OptionScheduledAt:
			switch v := value.(type) {
			case time.Time:
				opts.ScheduledAt = v
			case string:
				ts, err := util.ParseRFC3339(v)
				if err != nil {
					errs.Add(field, "expected RFC3339 timestamp")
					continue
				}
				opts.ScheduledAt = ts
			default:
				errs.Add(field, fmt.Sprintf("expected timestamp, got %T", value))
			}
		default:
			errs.Add(field, "unknown option")
		}
	}

	if err := errs.Err(); err != nil {
		return SendOptions{}, err
	}
	return opts, nil
}
