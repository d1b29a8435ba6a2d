package harness

import "testing"

func frontendTestData() *TestData {
	return &TestData{
		HTMLRequiredElements:    []string{"nav", "ul", "li", "button"},
		CSSRequiredProperties:   []string{"display: flex", "media"},
		JSRequiredFunctionality: []string{"addEventListener", "toggle"},
	}
}

const goodFrontendSubmission = `
<nav class="menu">
  <ul>
    <li><button id="burger">Menu</button></li>
  </ul>
</nav>
<style>
nav { display: flex; }
@media (max-width: 600px) { nav { display: block; } }
</style>
<script>
document.getElementById('burger').addEventListener('click', function () {
  document.querySelector('nav').classList.toggle('open');
});
</script>
`

func TestStructuralHarnessCompleteSubmission(t *testing.T) {
	env := NewStructuralHarness().Run(goodFrontendSubmission, frontendTestData())
	if env.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", env.Status)
	}
	if !env.PassedAll || env.EvaluationScore != 100 {
		t.Fatalf("passed_all = %v score = %v, results: %+v", env.PassedAll, env.EvaluationScore, env.TestResults)
	}
	if len(env.TestResults) != 8 {
		t.Errorf("results = %d, want one per checklist item", len(env.TestResults))
	}
}

func TestStructuralHarnessMissingItems(t *testing.T) {
	submission := "<nav><ul><li>plain</li></ul></nav>"
	env := NewStructuralHarness().Run(submission, frontendTestData())
	if env.PassedAll {
		t.Error("passed_all = true with missing checklist items")
	}
	failed := 0
	for _, r := range env.TestResults {
		if !r.Passed {
			failed++
			if r.Check == "" {
				t.Error("failed result does not name its check")
			}
		}
	}
	if failed != 5 {
		t.Errorf("failed checks = %d, want 5 (button, both css, both js)", failed)
	}
}

func TestStructuralHarnessChecksAreCaseInsensitive(t *testing.T) {
	submission := "<NAV><UL><LI><BUTTON>x</BUTTON></LI></UL></NAV> DISPLAY: FLEX @MEDIA ADDEVENTLISTENER TOGGLE"
	env := NewStructuralHarness().Run(submission, frontendTestData())
	if !env.PassedAll {
		t.Fatalf("passed_all = false, results: %+v", env.TestResults)
	}
}

func TestStructuralHarnessEmptyChecklist(t *testing.T) {
	env := NewStructuralHarness().Run("anything", &TestData{})
	if env.Status != StatusError {
		t.Fatalf("status = %s, want error", env.Status)
	}
}
