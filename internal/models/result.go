package models

// RecipientOutcome is the result of submitting a message to one recipient:
// either a handle or a failure reason.
type RecipientOutcome struct {
	Recipient string
	Handle    DeliveryHandle
	Err       error
	// Attempts counts transport calls made for the recipient. It is 0 when
	// the submission was skipped.
	Attempts int
}

// OK reports whether the recipient received a handle.
func (o RecipientOutcome) OK() bool { return o.Err == nil && o.Handle != "" }

// DispatchResult holds one outcome per requested recipient, in the order the
// recipients were given.
type DispatchResult struct {
	RequestID string
	Message   Message
	Outcomes  []RecipientOutcome
}

// Lookup returns the outcome for a normalised recipient.
func (r *DispatchResult) Lookup(recipient string) (RecipientOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Recipient == recipient {
			return o, true
		}
	}
	return RecipientOutcome{}, false
}

// Handles returns the handles of every successful recipient.
func (r *DispatchResult) Handles() map[string]DeliveryHandle {
	out := make(map[string]DeliveryHandle, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.OK() {
			out[o.Recipient] = o.Handle
		}
	}
	return out
}

// Failures returns the failure reason of every unsuccessful recipient.
func (r *DispatchResult) Failures() map[string]error {
	out := make(map[string]error)
	for _, o := range r.Outcomes {
		if !o.OK() {
			out[o.Recipient] = o.Err
		}
	}
	return out
}

// Succeeded counts recipients that received a handle.
func (r *DispatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}
