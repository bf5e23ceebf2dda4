package domain

import "time"

// Color identifies a chess side.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Winner is the recorded outcome of a finished game.
type Winner int8

const (
	WinnerWhite Winner = iota
	WinnerBlack
	WinnerDraw
)

func (w Winner) String() string {
	switch w {
	case WinnerWhite:
		return "white"
	case WinnerBlack:
		return "black"
	default:
		return "draw"
	}
}

// WinnerOf maps a losing side to the opposing winner value.
func WinnerOf(c Color) Winner {
	if c == White {
		return WinnerWhite
	}
	return WinnerBlack
}

// OfferKind is the pending-offer slate of a game. At most one offer is
// pending at a time.
type OfferKind int8

const (
	OfferNone OfferKind = iota
	OfferDraw
	OfferUndo
)

func (k OfferKind) String() string {
	switch k {
	case OfferDraw:
		return "draw"
	case OfferUndo:
		return "undo"
	default:
		return "none"
	}
}

// User is a registered player.
type User struct {
	ID         int64
	ActorID    string
	Username   string
	Rating     int
	LastGameID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Game is one session between two players. PGN holds the full move history
// and is re-serialized on every mutation. Winner and WinReason are set
// together, exactly once, when the game reaches a terminal state.
type Game struct {
	ID            int64
	WhiteID       int64
	BlackID       int64
	PGN           string
	Winner        *Winner
	WinReason     string
	Offer         OfferKind
	WhiteAccepted bool
	BlackAccepted bool
	ExpiresAt     *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the game has a recorded result.
func (g *Game) Terminal() bool { return g.Winner != nil }

// IsPlayer reports whether userID is one of the two sides.
func (g *Game) IsPlayer(userID int64) bool {
	return g.WhiteID == userID || g.BlackID == userID
}

// SideOf returns the color userID plays. Callers must check IsPlayer first.
func (g *Game) SideOf(userID int64) Color {
	if g.WhiteID == userID {
		return White
	}
	return Black
}

// OpponentID returns the other participant's user id.
func (g *Game) OpponentID(userID int64) int64 {
	if g.WhiteID == userID {
		return g.BlackID
	}
	return g.WhiteID
}

// PlayerID returns the user id playing the given color.
func (g *Game) PlayerID(c Color) int64 {
	if c == White {
		return g.WhiteID
	}
	return g.BlackID
}

// Accepted reports the acceptance flag for one side of the pending offer.
func (g *Game) Accepted(c Color) bool {
	if c == White {
		return g.WhiteAccepted
	}
	return g.BlackAccepted
}

// SetAccepted sets the acceptance flag for one side.
func (g *Game) SetAccepted(c Color, v bool) {
	if c == White {
		g.WhiteAccepted = v
	} else {
		g.BlackAccepted = v
	}
}

// ClearOffer resets the pending-offer slate and both acceptance flags.
func (g *Game) ClearOffer() {
	g.Offer = OfferNone
	g.WhiteAccepted = false
	g.BlackAccepted = false
}

// Finish records the terminal result and drops the expiration deadline.
// It is a no-op on an already-terminal game.
func (g *Game) Finish(w Winner, reason string) bool {
	if g.Terminal() {
		return false
	}
	g.Winner = &w
	g.WinReason = reason
	g.ExpiresAt = nil
	g.ClearOffer()
	return true
}
