package board

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/kapu/chessmate/internal/domain"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadPGN      = errors.New("malformed game notation")
)

// Result is the explicit terminal-state answer for a position. Terminal is
// false for an ongoing game; Winner and Reason are only meaningful when it
// is true.
type Result struct {
	Terminal bool
	Winner   domain.Winner
	Reason   string
}

// Load reconstructs a game from its PGN move history. An empty record
// ("" or the bare "*" a fresh game serializes to) yields the start position.
func Load(pgn string) (*nchess.Game, error) {
	text := strings.TrimSpace(pgn)
	if text == "" || text == "*" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPGN, err)
	}
	return nchess.NewGame(opt), nil
}

// Save serializes the full move history back to PGN.
func Save(game *nchess.Game) string {
	return strings.TrimSpace(game.String())
}

// Turn returns the side to move.
func Turn(game *nchess.Game) domain.Color {
	if game.Position().Turn() == nchess.White {
		return domain.White
	}
	return domain.Black
}

// ApplySAN validates and applies one move given in SAN, with a lowercase UCI
// fallback for inputs like "e2e4". The game is left untouched on failure.
// Returns the canonical SAN of the applied move.
func ApplySAN(game *nchess.Game, input string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", ErrIllegalMove
	}

	notationSAN := nchess.AlgebraicNotation{}
	notationUCI := nchess.UCINotation{}
	pos := game.Position()

	move, err := notationSAN.Decode(pos, text)
	if err != nil {
		move, err = notationUCI.Decode(pos, strings.ToLower(text))
		if err != nil {
			return "", ErrIllegalMove
		}
	}
	if err := game.Move(move, nil); err != nil {
		return "", ErrIllegalMove
	}
	return notationSAN.Encode(pos, move), nil
}

// Undo rebuilds the game with the last move removed. The second return is
// false when there was nothing to undo.
func Undo(game *nchess.Game) (*nchess.Game, bool) {
	moves := game.Moves()
	if len(moves) == 0 {
		return game, false
	}
	positions := game.Positions()
	trimmed := nchess.NewGame()
	notation := nchess.AlgebraicNotation{}
	for i := 0; i < len(moves)-1; i++ {
		san := notation.Encode(positions[i], moves[i])
		if err := trimmed.PushNotationMove(san, notation, nil); err != nil {
			// History came from this library; a replay failure means the
			// record is corrupt, not that the undo is invalid.
			return game, false
		}
	}
	return trimmed, true
}

// SANHistory encodes the applied moves back to SAN, in order.
func SANHistory(game *nchess.Game) []string {
	moves := game.Moves()
	positions := game.Positions()
	sans := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		sans = append(sans, notation.Encode(positions[i], mv))
	}
	return sans
}

// Evaluate checks for a terminal state in fixed priority order: an agreed
// draw first, then the automatic terminals the rules library applies itself
// (checkmate, stalemate, insufficient material, seventy-five-move rule,
// fivefold repetition), then claimable draws when claimDraw is asserted
// (fifty-move rule before threefold repetition).
func Evaluate(game *nchess.Game, claimDraw, bothAgreed bool) Result {
	if bothAgreed {
		return Result{Terminal: true, Winner: domain.WinnerDraw, Reason: "agreed draw"}
	}

	switch game.Outcome() {
	case nchess.WhiteWon:
		return Result{Terminal: true, Winner: domain.WinnerWhite, Reason: reasonFromMethod(game.Method())}
	case nchess.BlackWon:
		return Result{Terminal: true, Winner: domain.WinnerBlack, Reason: reasonFromMethod(game.Method())}
	case nchess.Draw:
		return Result{Terminal: true, Winner: domain.WinnerDraw, Reason: reasonFromMethod(game.Method())}
	}

	if claimDraw {
		var fifty, threefold bool
		for _, m := range game.EligibleDraws() {
			switch m {
			case nchess.FiftyMoveRule:
				fifty = true
			case nchess.ThreefoldRepetition:
				threefold = true
			}
		}
		if fifty {
			return Result{Terminal: true, Winner: domain.WinnerDraw, Reason: "fifty-move rule"}
		}
		if threefold {
			return Result{Terminal: true, Winner: domain.WinnerDraw, Reason: "threefold repetition"}
		}
	}

	return Result{}
}

func reasonFromMethod(method nchess.Method) string {
	switch method {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.SeventyFiveMoveRule:
		return "seventy-five-move rule"
	case nchess.FivefoldRepetition:
		return "fivefold repetition"
	case nchess.FiftyMoveRule:
		return "fifty-move rule"
	case nchess.ThreefoldRepetition:
		return "threefold repetition"
	default:
		return strings.ToLower(method.String())
	}
}
