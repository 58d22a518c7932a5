// Package issues records the errors and warnings raised while a descriptor is
// validated or a conversion runs. Each issue carries a snapshot of the
// table/row/column position that was current when it was raised.
package issues

import (
	"fmt"
	"sync"

	"github.com/geoknoesis/csvw-go/errs"
)

// Severity of an issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Issue is one recorded error or warning.
type Issue struct {
	Severity Severity
	Message  string
	Location Location
}

func (i Issue) String() string {
	if i.Location.IsZero() {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", i.Severity, i.Location, i.Message)
}

// Tracker accumulates issues for one conversion. It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	issues []Issue
	loc    Location
	hooks  []func(Issue)
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// OnIssue registers fn to be called synchronously for every new issue.
func (t *Tracker) OnIssue(fn func(Issue)) {
	t.mu.Lock()
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}

// AddError records an error. A non-recoverable error is also returned as a
// structural *errs.Error, which the caller must propagate.
func (t *Tracker) AddError(msg string, recoverable bool) error {
	issue := t.add(SeverityError, msg)
	if recoverable {
		return nil
	}
	return errs.New(errs.KindStructural, issue.String())
}

// Errorf is AddError with a format string.
func (t *Tracker) Errorf(recoverable bool, format string, args ...any) error {
	return t.AddError(fmt.Sprintf(format, args...), recoverable)
}

// AddWarning records a warning.
func (t *Tracker) AddWarning(msg string) {
	t.add(SeverityWarning, msg)
}

// Warnf is AddWarning with a format string.
func (t *Tracker) Warnf(format string, args ...any) {
	t.AddWarning(fmt.Sprintf(format, args...))
}

func (t *Tracker) add(sev Severity, msg string) Issue {
	t.mu.Lock()
	issue := Issue{Severity: sev, Message: msg, Location: t.loc.snapshot()}
	t.issues = append(t.issues, issue)
	hooks := t.hooks
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(issue)
	}
	return issue
}

// Issues returns all issues in the order they were raised.
func (t *Tracker) Issues() []Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Issue, len(t.issues))
	copy(out, t.issues)
	return out
}

// Errors returns the recorded errors.
func (t *Tracker) Errors() []Issue {
	return t.filter(SeverityError)
}

// Warnings returns the recorded warnings.
func (t *Tracker) Warnings() []Issue {
	return t.filter(SeverityWarning)
}

// HasErrors reports whether any error was recorded.
func (t *Tracker) HasErrors() bool {
	return len(t.Errors()) > 0
}

func (t *Tracker) filter(sev Severity) []Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Issue
	for _, issue := range t.issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Location returns a copy of the current location.
func (t *Tracker) Location() Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loc.snapshot()
}

// Update changes the current location. Setting an outer layer clears the
// inner layers not given in the same update.
func (t *Tracker) Update(u Update) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := t.loc.apply(u)
	if err != nil {
		return err
	}
	t.loc = next
	return nil
}

// ClearTable resets the whole location.
func (t *Tracker) ClearTable() {
	t.mu.Lock()
	t.loc = Location{}
	t.mu.Unlock()
}

// ClearRow clears the row and column layers.
func (t *Tracker) ClearRow() {
	t.mu.Lock()
	t.loc.Row = nil
	t.loc.Column = nil
	t.mu.Unlock()
}

// ClearColumn clears the column layer.
func (t *Tracker) ClearColumn() {
	t.mu.Lock()
	t.loc.Column = nil
	t.mu.Unlock()
}
