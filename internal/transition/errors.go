package transition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition matches every *InvalidTransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrUnknownKind is returned for a kind no machine is registered for.
var ErrUnknownKind = errors.New("unknown entity kind")

// InvalidTransitionError describes a rejected status change together with the
// states that would have been legal.
type InvalidTransitionError struct {
	Kind          Kind
	Current       string
	Target        string
	Allowed       []string
	GuardRejected bool
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	msg := fmt.Sprintf("invalid %s transition from %s to %s; allowed next states: %s", e.Kind, e.Current, e.Target, allowed)
	if e.GuardRejected {
		msg += " (preconditions not met)"
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// DomainCode is read by errorutil when mapping to a response.
func (e *InvalidTransitionError) DomainCode() string {
	return "INVALID_TRANSITION"
}

// DomainDetails is read by errorutil when mapping to a response.
func (e *InvalidTransitionError) DomainDetails() map[string]any {
	allowed := e.Allowed
	if allowed == nil {
		allowed = []string{}
	}
	return map[string]any{
		"entity":         string(e.Kind),
		"current_status": e.Current,
		"target_status":  e.Target,
		"allowed":        allowed,
	}
}
