package settlement

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusBurning},
		{StatusBurning, StatusBurned},
		{StatusBurned, StatusMinting},
		{StatusMinting, StatusMinted},
		{StatusMinted, StatusCompleted},
		{StatusBurning, StatusFailed},
		{StatusMinting, StatusFailed},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusCompensating},
		{StatusBurned, StatusCompensating},
		{StatusCompensating, StatusCompensated},
		// Resume edges: a retry picks up past the stages whose tx hashes
		// are already durable.
		{StatusProcessing, StatusMinting},
		{StatusProcessing, StatusMinted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusBurning},
		{StatusPending, StatusCompleted},
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusCompensating},
		{StatusCompensated, StatusProcessing},
		{StatusMinted, StatusFailed},
		{StatusCompensating, StatusProcessing},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestCanTransition_SameStatusRefresh(t *testing.T) {
	for _, s := range []Status{StatusProcessing, StatusBurning, StatusCompensating} {
		if !CanTransition(s, s) {
			t.Errorf("%s -> %s refresh should be allowed", s, s)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusCompensated.IsTerminal() {
		t.Fatalf("completed and compensated are terminal")
	}
	if StatusFailed.IsTerminal() {
		t.Fatalf("failed is retryable, not terminal")
	}
	if !StatusBurning.InFlight() || StatusPending.InFlight() {
		t.Fatalf("in-flight covers processing stages only")
	}
}
