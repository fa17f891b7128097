// Package scoring awards points for answers. Pure functions only: the same
// (correct, remaining, budget) triple always yields the same score, so a
// stored answer record is enough to reproduce every award.
package scoring

const (
	// BasePoints is awarded for any correct answer regardless of speed.
	BasePoints = 100

	// MaxSpeedBonus is awarded on top of BasePoints for an instant answer
	// and decays linearly to zero as the time budget is spent.
	MaxSpeedBonus = 100
)

// Score computes the points for one answer. Incorrect answers and
// non-answers score zero. Correct answers score BasePoints plus a speed
// bonus that never increases as remaining time decreases.
func Score(correct bool, remainingSec, budgetSec int) int {
	if !correct || budgetSec <= 0 {
		return 0
	}

	if remainingSec < 0 {
		remainingSec = 0
	}
	if remainingSec > budgetSec {
		remainingSec = budgetSec
	}

	return BasePoints + MaxSpeedBonus*remainingSec/budgetSec
}
