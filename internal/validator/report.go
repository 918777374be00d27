package validator

import (
	"fmt"
	"strings"
)

// Verdict is the outcome of one check.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictWarn Verdict = "WARN"
	VerdictFail Verdict = "FAIL"
)

// CheckResult is one entry in the ordered validation report.
type CheckResult struct {
	ID      string
	Verdict Verdict
	Message string
}

// Report is the ordered list of check results for one artifact. It is
// the only contract the pipeline exposes to its caller; exit status is
// derived solely from it.
type Report struct {
	Results []CheckResult
}

// Add appends one check result in battery order.
func (r *Report) Add(id string, verdict Verdict, format string, args ...interface{}) {
	r.Results = append(r.Results, CheckResult{
		ID:      id,
		Verdict: verdict,
		Message: fmt.Sprintf(format, args...),
	})
}

// Failed reports whether any check failed. Warnings never fail a build.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Verdict == VerdictFail {
			return true
		}
	}
	return false
}

// Counts returns the number of passed, failed and warned checks.
func (r *Report) Counts() (passed, failed, warned int) {
	for _, res := range r.Results {
		switch res.Verdict {
		case VerdictPass:
			passed++
		case VerdictFail:
			failed++
		case VerdictWarn:
			warned++
		}
	}
	return
}

// Summary renders the one-line aggregate in the fixed report format.
func (r *Report) Summary() string {
	passed, failed, warned := r.Counts()
	return fmt.Sprintf("%d passed, %d failed, %d warnings", passed, failed, warned)
}

// String renders the full report, one line per check.
func (r *Report) String() string {
	var b strings.Builder
	for _, res := range r.Results {
		fmt.Fprintf(&b, "[%s] %s: %s\n", res.Verdict, res.ID, res.Message)
	}
	b.WriteString(r.Summary())
	return b.String()
}
