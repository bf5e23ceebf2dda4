package board

import (
	"testing"

	"github.com/kapu/chessmate/internal/domain"
)

func TestLoadEmptyAndRoundTrip(t *testing.T) {
	game, err := Load("")
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if Turn(game) != domain.White {
		t.Fatalf("fresh game should be white to move")
	}

	game2, err := Load("*")
	if err != nil {
		t.Fatalf("Load bare asterisk: %v", err)
	}
	if len(game2.Moves()) != 0 {
		t.Fatalf("bare asterisk should have no moves")
	}

	for _, mv := range []string{"e4", "e5", "Nf3"} {
		if _, err := ApplySAN(game, mv); err != nil {
			t.Fatalf("ApplySAN %s: %v", mv, err)
		}
	}
	pgn := Save(game)
	if pgn == "" {
		t.Fatalf("Save returned empty PGN")
	}

	reloaded, err := Load(pgn)
	if err != nil {
		t.Fatalf("Load saved PGN: %v", err)
	}
	if got := len(reloaded.Moves()); got != 3 {
		t.Fatalf("expected 3 moves after reload, got %d", got)
	}
	if Turn(reloaded) != domain.Black {
		t.Fatalf("expected black to move after 3 plies")
	}
}

func TestApplySANRejectsIllegal(t *testing.T) {
	game, _ := Load("")
	before := Save(game)

	for _, bad := range []string{"", "Ke2", "e5", "xyzzy", "e2e5"} {
		if _, err := ApplySAN(game, bad); err == nil {
			t.Fatalf("expected rejection for %q", bad)
		}
	}
	if Save(game) != before {
		t.Fatalf("failed moves must leave the game untouched")
	}
}

func TestApplySANUCIFallback(t *testing.T) {
	game, _ := Load("")
	san, err := ApplySAN(game, "E2E4")
	if err != nil {
		t.Fatalf("uppercase UCI input: %v", err)
	}
	if san != "e4" {
		t.Fatalf("expected canonical SAN e4, got %q", san)
	}
}

func TestEvaluateCheckmate(t *testing.T) {
	game, _ := Load("")
	for _, mv := range []string{"f3", "e5", "g4", "Qh4"} {
		if _, err := ApplySAN(game, mv); err != nil {
			t.Fatalf("ApplySAN %s: %v", mv, err)
		}
	}
	res := Evaluate(game, false, false)
	if !res.Terminal {
		t.Fatalf("fool's mate should be terminal")
	}
	if res.Winner != domain.WinnerBlack {
		t.Fatalf("expected black winner, got %v", res.Winner)
	}
	if res.Reason != "checkmate" {
		t.Fatalf("expected checkmate reason, got %q", res.Reason)
	}
}

func TestEvaluateAgreedDrawBeatsEverything(t *testing.T) {
	game, _ := Load("")
	res := Evaluate(game, true, true)
	if !res.Terminal || res.Winner != domain.WinnerDraw || res.Reason != "agreed draw" {
		t.Fatalf("unexpected agreed-draw result: %+v", res)
	}
}

func TestEvaluateThreefoldClaim(t *testing.T) {
	game, _ := Load("")
	// Knight shuffles produce the start-like position three times.
	shuffle := []string{"Nf3", "Nf6", "Ng1", "Ng8", "Nf3", "Nf6", "Ng1", "Ng8"}
	for _, mv := range shuffle {
		if _, err := ApplySAN(game, mv); err != nil {
			t.Fatalf("ApplySAN %s: %v", mv, err)
		}
	}

	if res := Evaluate(game, false, false); res.Terminal {
		t.Fatalf("repetition must not end the game without a claim: %+v", res)
	}
	res := Evaluate(game, true, false)
	if !res.Terminal || res.Winner != domain.WinnerDraw {
		t.Fatalf("claimed repetition should be a draw: %+v", res)
	}
	if res.Reason != "threefold repetition" {
		t.Fatalf("expected threefold repetition, got %q", res.Reason)
	}
}

func TestUndoRemovesLastMove(t *testing.T) {
	game, _ := Load("")
	for _, mv := range []string{"e4", "e5", "Nf3"} {
		if _, err := ApplySAN(game, mv); err != nil {
			t.Fatalf("ApplySAN %s: %v", mv, err)
		}
	}

	trimmed, ok := Undo(game)
	if !ok {
		t.Fatalf("undo should succeed with moves on the board")
	}
	if got := len(trimmed.Moves()); got != 2 {
		t.Fatalf("expected 2 moves after undo, got %d", got)
	}
	if Turn(trimmed) != domain.White {
		t.Fatalf("after undoing white's Nf3, white should be to move")
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	game, _ := Load("")
	if _, ok := Undo(game); ok {
		t.Fatalf("undo on an empty game must report false")
	}
}

func TestSANHistory(t *testing.T) {
	game, _ := Load("")
	moves := []string{"d4", "d5", "c4"}
	for _, mv := range moves {
		if _, err := ApplySAN(game, mv); err != nil {
			t.Fatalf("ApplySAN %s: %v", mv, err)
		}
	}
	got := SANHistory(game)
	if len(got) != len(moves) {
		t.Fatalf("history length %d, want %d", len(got), len(moves))
	}
	for i := range moves {
		if got[i] != moves[i] {
			t.Fatalf("history[%d] = %q, want %q", i, got[i], moves[i])
		}
	}
}
