// Package validator checks a translated graph against the operator rewrite
// table.
//
// Every distinct operator of the original graph is checked; violations are
// collected into one Report rather than stopping at the first failure.
package validator

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/valpere/graphtran/internal"
)

// Lookup is the read-only view of a rule table the verifier needs.
type Lookup interface {
	Lookup(src string) (string, bool)
}

// Kind tells which contract an entry was checked against.
type Kind string

const (
	// KindMapped entries have a rule: the source must be gone and the
	// target present.
	KindMapped Kind = "mapped"
	// KindPassThrough entries have no rule and must survive unchanged.
	KindPassThrough Kind = "pass-through"
)

// Entry is the outcome for one operator. Found tells whether Expected
// occurs in the translated graph; Leftover whether a mapped operator's
// original identifier is still there.
type Entry struct {
	Operator string
	Expected string
	Kind     Kind
	Found    bool
	Leftover bool
	OK       bool
	Message  string
}

// Report is the result of one verification run.
type Report struct {
	entries []Entry
}

// Entries returns the report entries in check order.
func (r *Report) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Violations returns the failing entries in check order.
func (r *Report) Violations() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if !e.OK {
			out = append(out, e)
		}
	}
	return out
}

// OK is true when no violation was found.
func (r *Report) OK() bool {
	for _, e := range r.entries {
		if !e.OK {
			return false
		}
	}
	return true
}

// Err combines every violation into a single error, or returns nil.
func (r *Report) Err() error {
	var err error
	for _, e := range r.entries {
		if e.OK {
			continue
		}
		err = multierr.Append(err, &internal.ValidationError{
			Operator: e.Operator,
			Expected: e.Expected,
			Message:  e.Message,
		})
	}
	return err
}

// Verify checks every operator in ops (extracted from the original graph)
// against translated. ops is expected to be deduplicated; repeated entries
// are checked once.
func Verify(ops []string, table Lookup, translated string) *Report {
	report := &Report{}
	seen := make(map[string]struct{}, len(ops))

	for _, op := range ops {
		if _, dup := seen[op]; dup {
			continue
		}
		seen[op] = struct{}{}

		expected, mapped := table.Lookup(op)
		if !mapped {
			found := strings.Contains(translated, op)
			e := Entry{Operator: op, Expected: op, Kind: KindPassThrough, Found: found, OK: found}
			if found {
				e.Message = fmt.Sprintf("Op '%s' not in rulebook, left unchanged", op)
			} else {
				e.Message = fmt.Sprintf("Untranslatable op '%s' was incorrectly removed from the graph", op)
			}
			report.entries = append(report.entries, e)
			continue
		}

		leftover := strings.Contains(translated, op)
		found := strings.Contains(translated, expected)
		e := Entry{Operator: op, Expected: expected, Kind: KindMapped, Found: found, Leftover: leftover, OK: found && !leftover}
		switch {
		case e.OK:
			e.Message = fmt.Sprintf("Rule applied: '%s' -> '%s'", op, expected)
		case leftover && !found:
			e.Message = fmt.Sprintf("Rule broken: original op '%s' is still in the translated graph and expected op '%s' was NOT found", op, expected)
		case leftover:
			e.Message = fmt.Sprintf("Rule broken: original op '%s' was found in the translated graph (expected '%s')", op, expected)
		default:
			e.Message = fmt.Sprintf("Rule broken: expected op '%s' was NOT found for original op '%s'", expected, op)
		}
		report.entries = append(report.entries, e)
	}
	return report
}
