package harness

import (
	"fmt"
	"strings"
)

// StructuralHarness grades frontend questions with a static checklist:
// required HTML elements, CSS properties and JS functionality must all
// appear in the submission. No browser is involved.
type StructuralHarness struct{}

// NewStructuralHarness creates a structural harness.
func NewStructuralHarness() *StructuralHarness {
	return &StructuralHarness{}
}

// Run checks every required item against the submission text. Each item
// is one test case so the score stays proportional.
func (h *StructuralHarness) Run(submission string, td *TestData) Envelope {
	lower := strings.ToLower(submission)

	var results []TestResult
	n := 0
	addCheck := func(kind, needle, detail string) {
		n++
		results = append(results, TestResult{
			TestCase: n,
			Check:    fmt.Sprintf("%s:%s", kind, needle),
			Passed:   strings.Contains(lower, strings.ToLower(needle)),
			Detail:   detail,
		})
	}

	for _, el := range td.HTMLRequiredElements {
		addCheck("html", "<"+el, fmt.Sprintf("requires a <%s> element", el))
	}
	for _, prop := range td.CSSRequiredProperties {
		addCheck("css", prop, fmt.Sprintf("requires %q in the styles", prop))
	}
	for _, fn := range td.JSRequiredFunctionality {
		addCheck("js", fn, fmt.Sprintf("requires %q in the script", fn))
	}
	if len(results) == 0 {
		return NewErrorEnvelope("test data names no checks", "")
	}
	return Finalize(results)
}
