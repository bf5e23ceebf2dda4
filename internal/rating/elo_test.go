package rating

import (
	"math"
	"testing"

	"github.com/kapu/chessmate/internal/domain"
)

func TestExpectedScoreRounding(t *testing.T) {
	cases := []struct {
		white, black int
		want         float64
	}{
		{1000, 1000, 0.5},
		{1200, 1000, 0.76},
		{1000, 1200, 0.24},
	}
	for _, c := range cases {
		got := ExpectedScore(c.white, c.black)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("ExpectedScore(%d, %d) = %v, want %v", c.white, c.black, got, c.want)
		}
	}
}

func TestApplyWhiteWins(t *testing.T) {
	white := &domain.User{ID: 1, Rating: 1200}
	black := &domain.User{ID: 2, Rating: 1000}

	delta, err := Apply(white, black, domain.WinnerWhite)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// K * (1 - 0.76)
	if math.Abs(delta-5.76) > 1e-9 {
		t.Fatalf("delta = %v, want 5.76", delta)
	}
	if white.Rating != 1206 {
		t.Fatalf("white rating = %d, want 1206", white.Rating)
	}
	if black.Rating != 994 {
		t.Fatalf("black rating = %d, want 994", black.Rating)
	}
}

func TestApplyDrawBetweenEqualsIsNeutral(t *testing.T) {
	white := &domain.User{ID: 1, Rating: 1000}
	black := &domain.User{ID: 2, Rating: 1000}

	delta, err := Apply(white, black, domain.WinnerDraw)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if delta != 0 {
		t.Fatalf("delta = %v, want 0", delta)
	}
	if white.Rating != 1000 || black.Rating != 1000 {
		t.Fatalf("ratings changed on an even draw: %d / %d", white.Rating, black.Rating)
	}
}

func TestApplyFloorsAtZero(t *testing.T) {
	white := &domain.User{ID: 1, Rating: 10}
	black := &domain.User{ID: 2, Rating: 10}

	if _, err := Apply(white, black, domain.WinnerBlack); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if white.Rating != 0 {
		t.Fatalf("white rating = %d, want floor at 0", white.Rating)
	}
	if black.Rating != 22 {
		t.Fatalf("black rating = %d, want 22", black.Rating)
	}
}

func TestApplyNilPlayers(t *testing.T) {
	if _, err := Apply(nil, &domain.User{}, domain.WinnerDraw); err == nil {
		t.Fatalf("expected error for nil white")
	}
}
