package quiz

// Scorer computes the points awarded for one answer.
type Scorer interface {
	// Score returns the points for an answer given whether it was correct and
	// the player's streak of correct answers before this one.
	Score(correct bool, streak int) (int, error)
}

// DefaultPoints is awarded per correct answer by FixedScorer when Points is zero.
const DefaultPoints = 100

// FixedScorer awards a constant number of points per correct answer.
type FixedScorer struct {
	Points int
}

// Score implements Scorer.
func (f FixedScorer) Score(correct bool, _ int) (int, error) {
	if !correct {
		return 0, nil
	}
	if f.Points == 0 {
		return DefaultPoints, nil
	}
	return f.Points, nil
}
