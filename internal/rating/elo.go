package rating

import (
	"fmt"
	"math"

	"github.com/kapu/chessmate/internal/domain"
)

// KFactor is the fixed Elo K used for every update.
const KFactor = 24

// ExpectedScore is white's expected score against black, rounded to two
// decimal places.
func ExpectedScore(whiteRating, blackRating int) float64 {
	raw := 1 / (1 + math.Pow(10, float64(blackRating-whiteRating)/400))
	return math.Round(raw*100) / 100
}

// actualScore is white's score for the recorded outcome.
func actualScore(w domain.Winner) float64 {
	switch w {
	case domain.WinnerWhite:
		return 1
	case domain.WinnerBlack:
		return 0
	default:
		return 0.5
	}
}

// Apply recomputes both ratings from a terminal outcome. The update is
// zero-sum before rounding; new ratings are rounded to integers and floored
// at zero. Returns white's delta (black's is its negation).
func Apply(white, black *domain.User, outcome domain.Winner) (float64, error) {
	if white == nil || black == nil {
		return 0, fmt.Errorf("both players are required for a rating update")
	}

	expected := ExpectedScore(white.Rating, black.Rating)
	delta := KFactor * (actualScore(outcome) - expected)

	white.Rating = clampRating(float64(white.Rating) + delta)
	black.Rating = clampRating(float64(black.Rating) - delta)
	return delta, nil
}

func clampRating(r float64) int {
	n := int(math.Round(r))
	if n < 0 {
		return 0
	}
	return n
}
