package framework

import (
	"fmt"
	"io"
	"strings"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// FailedPaths returns the ID of every failed test that has no failed subtest of its own, which
// is the set of tests that would need to be re-run to reproduce every failure.
func (r Results) FailedPaths() []TestID {
	var ret []TestID
	for i, f := range r.Failures {
		if len(f.TestID.Path) == 0 {
			continue
		}
		hasFailedChild := false
		for j, g := range r.Failures {
			if i != j && f.TestID.IsAncestorOf(g.TestID) {
				hasFailedChild = true
				break
			}
		}
		if !hasFailedChild {
			ret = append(ret, f.TestID)
		}
	}
	return ret
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// IsAncestorOf is true if other is a subtest, at any depth, of t.
func (t TestID) IsAncestorOf(other TestID) bool {
	if len(other.Path) <= len(t.Path) {
		return false
	}
	for i, name := range t.Path {
		if other.Path[i] != name {
			return false
		}
	}
	return true
}

// PrintResults writes a summary of the test run.
func PrintResults(out io.Writer, results Results) {
	if results.OK() {
		fmt.Fprintf(out, "All tests passed (%d)\n", len(results.Tests))
		return
	}
	fmt.Fprintf(out, "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		fmt.Fprintf(out, "  * %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(out, "      %s\n", line)
			}
		}
	}
}
