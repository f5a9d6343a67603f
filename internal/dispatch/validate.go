package dispatch

import (
	"fmt"

	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
	"github.com/example/bulksms/internal/util"
)

// validateRequest normalises the recipients and sender of req. Every invalid
// field is reported, not only the first. Duplicate recipients collapse into
// their first occurrence.
func validateRequest(req models.SendRequest) ([]string, models.SendOptions, error) {
	var errs smserr.FieldErrors

	if len(req.Recipients) == 0 {
		errs.Add("recipients", "at least one recipient is required")
	}

	seen := make(map[string]struct{}, len(req.Recipients))
	recipients := make([]string, 0, len(req.Recipients))
	for i, raw := range req.Recipients {
		normalized, err := util.NormalizeRecipient(raw)
		if err != nil {
			errs.Add(fmt.Sprintf("recipients[%d]", i), err.Error())
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		recipients = append(recipients, normalized)
	}

	if req.Body == "" {
		errs.Add("body", "message body is required")
	}

	opts := req.Options
	if opts.Sender != "" {
		sender, err := util.NormalizeSender(opts.Sender)
		if err != nil {
			errs.Add("options.sender", err.Error())
		}
		opts.Sender = sender
	}

	if err := errs.Err(); err != nil {
		return nil, models.SendOptions{}, err
	}
	return recipients, opts, nil
}
