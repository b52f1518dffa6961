package harness

import (
	"fmt"
	"slices"
	"strings"
)

// ExpectError describes one failed expect check.
type ExpectError struct {
	Field    string       // Checked field
	Expected string       // Human-readable expected value
	Actual   string       // Human-readable actual value
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *ExpectError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %-6s ok=%-5t state=%s", ev.Step, ev.Do, ev.OK, ev.State)
		if ev.Flash != nil {
			fmt.Fprintf(&buf, " flash=%s[%d]", ev.Flash.Axis, ev.Flash.Index)
		}
		if ev.Value != nil {
			fmt.Fprintf(&buf, " value=%g", *ev.Value)
		}
		if ev.Decoded != "" {
			fmt.Fprintf(&buf, " decoded=%q", ev.Decoded)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// EvaluateExpect checks the final state against expect and returns one
// message per failed check.
func EvaluateExpect(result *Result, expect Expect) []string {
	var errs []string
	fail := func(field, want, got string) {
		err := &ExpectError{Field: field, Expected: want, Actual: got, Trace: result.Trace}
		errs = append(errs, err.Error())
	}

	final := result.Final
	if expect.Symbols != nil && !slices.Equal(expect.Symbols, final.Symbols) {
		fail("symbols", fmt.Sprintf("%q", expect.Symbols), fmt.Sprintf("%q", final.Symbols))
	}
	if expect.Text != nil && *expect.Text != final.Text {
		fail("text", fmt.Sprintf("%q", *expect.Text), fmt.Sprintf("%q", final.Text))
	}
	if expect.State != "" && expect.State != final.State.String() {
		fail("state", expect.State, final.State.String())
	}
	if expect.Running != nil && *expect.Running != final.Running {
		fail("running", fmt.Sprint(*expect.Running), fmt.Sprint(final.Running))
	}
	if expect.Connected != nil && *expect.Connected != final.Connected {
		fail("connected", fmt.Sprint(*expect.Connected), fmt.Sprint(final.Connected))
	}
	return errs
}
