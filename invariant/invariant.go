// Package invariant defines Invariant, the property the scheduler checks
// after every executed action (spec.md §4.4), and Severity, its totally
// ordered importance ranking.
package invariant

import (
	"context"
	"fmt"

	"venomqa.dev/venomqa/world"
)

// Severity ranks how serious an invariant violation is. Severities are
// totally ordered: Critical > High > Medium > Low (spec.md §4.4).
type Severity int

const (
	Low Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Less reports whether s is strictly less severe than other.
func (s Severity) Less(other Severity) bool { return s < other }

// CheckFunc inspects the World's current state and returns violated=true,
// with a message describing the failure, if the invariant is violated.
type CheckFunc func(ctx context.Context, w *world.World) (violated bool, message string)

// Invariant is a named property checked after every action in the
// exploration loop.
type Invariant struct {
	Name     string
	Check    CheckFunc
	Severity Severity
	// MessageTemplate, if set, overrides the message returned by Check when
	// rendering a Violation (e.g. to add remediation guidance); %s is
	// substituted with Check's message.
	MessageTemplate string
}

// Violation records one invariant failure observed during exploration.
type Violation struct {
	InvariantName string
	Severity      Severity
	Message       string
	StateBefore   string // fingerprint.StateID, as string to avoid an import cycle
	StateAfter    string
	ActionName    string
}

// Evaluate runs inv against w, producing a *Violation if it failed. A panic
// inside Check is recovered and treated as a raise (spec.md §3: "An
// invariant may raise instead of returning false; a raise is treated as a
// critical failure of that invariant with the exception message") — the
// resulting Violation is forced to Critical regardless of inv.Severity.
func Evaluate(ctx context.Context, inv Invariant, w *world.World) (v *Violation) {
	defer func() {
		if r := recover(); r != nil {
			v = &Violation{
				InvariantName: inv.Name,
				Severity:      Critical,
				Message:       fmt.Sprintf("%v", r),
			}
		}
	}()

	violated, msg := inv.Check(ctx, w)
	if !violated {
		return nil
	}
	if inv.MessageTemplate != "" {
		msg = renderTemplate(inv.MessageTemplate, msg)
	}
	return &Violation{
		InvariantName: inv.Name,
		Severity:      inv.Severity,
		Message:       msg,
	}
}

func renderTemplate(tmpl, msg string) string {
	const placeholder = "%s"
	for i := 0; i+len(placeholder) <= len(tmpl); i++ {
		if tmpl[i:i+len(placeholder)] == placeholder {
			return tmpl[:i] + msg + tmpl[i+len(placeholder):]
		}
	}
	return tmpl
}

// ValidateSet checks that invariant names are unique and every Check is
// non-nil.
func ValidateSet(invariants []Invariant) error {
	seen := make(map[string]bool, len(invariants))
	for _, inv := range invariants {
		if inv.Name == "" {
			return fmt.Errorf("invariant: unnamed invariant in set")
		}
		if seen[inv.Name] {
			return fmt.Errorf("invariant: duplicate invariant name %q", inv.Name)
		}
		seen[inv.Name] = true
		if inv.Check == nil {
			return fmt.Errorf("invariant %q: Check must not be nil", inv.Name)
		}
	}
	return nil
}
