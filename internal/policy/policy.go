// Package policy decides authentic versus forged from a raw model score.
package policy

// Verdict is the outcome of a forgery classification.
type Verdict string

const (
	Authentic Verdict = "authentic"
	Forged    Verdict = "forged"
)

// Classify applies the confidence threshold to a raw forgery score.
// A score at or above the threshold is forged. The function is pure and
// monotone in score.
func Classify(score, threshold float64) Verdict {
	if score >= threshold {
		return Forged
	}
	return Authentic
}
