package policy

import "testing"

func TestClassifyThresholdBoundary(t *testing.T) {
	if got := Classify(0.5, 0.5); got != Forged {
		t.Fatalf("score at threshold must be forged, got %s", got)
	}
	if got := Classify(0.499, 0.5); got != Authentic {
		t.Fatalf("score below threshold must be authentic, got %s", got)
	}
	if got := Classify(0.82, 0.5); got != Forged {
		t.Fatalf("expected forged, got %s", got)
	}
}

func TestClassifyIsMonotone(t *testing.T) {
	scores := []float64{0.0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0}
	for _, threshold := range []float64{0.0, 0.3, 0.5, 0.8, 1.0} {
		// Walking scores upward, the verdict may flip to forged once and
		// never back.
		forgedSeen := false
		for _, score := range scores {
			v := Classify(score, threshold)
			if v == Forged {
				forgedSeen = true
			} else if forgedSeen {
				t.Fatalf("classify not monotone: score %f authentic after forged at threshold %f", score, threshold)
			}
		}
	}
}
