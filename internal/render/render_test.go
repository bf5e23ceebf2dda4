package render

import (
	"bytes"
	"context"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRenderPNGStartPosition(t *testing.T) {
	r := NewRenderer()
	game := nchess.NewGame()

	png, err := r.RenderPNG(context.Background(), game.Position().Board(), Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if len(png) == 0 || !bytes.HasPrefix(png, pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestRenderPNGFlippedDiffers(t *testing.T) {
	r := NewRenderer()
	game := nchess.NewGame()
	if err := game.PushNotationMove("e4", nchess.AlgebraicNotation{}, nil); err != nil {
		t.Fatalf("push move: %v", err)
	}
	board := game.Position().Board()

	normal, err := r.RenderPNG(context.Background(), board, Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	flipped, err := r.RenderPNG(context.Background(), board, Options{Flipped: true})
	if err != nil {
		t.Fatalf("RenderPNG flipped: %v", err)
	}
	if bytes.Equal(normal, flipped) {
		t.Fatalf("flipped board should render differently")
	}
}

func TestRenderPNGHighlight(t *testing.T) {
	r := NewRenderer()
	game := nchess.NewGame()
	board := game.Position().Board()

	plain, err := r.RenderPNG(context.Background(), board, Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	marked, err := r.RenderPNG(context.Background(), board, Options{
		Highlight: &Highlight{From: nchess.E2, To: nchess.E4},
	})
	if err != nil {
		t.Fatalf("RenderPNG highlight: %v", err)
	}
	if bytes.Equal(plain, marked) {
		t.Fatalf("highlight should change the image")
	}
}

func TestRenderPNGNilBoard(t *testing.T) {
	r := NewRenderer()
	if _, err := r.RenderPNG(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected error for nil board")
	}
}

func TestPieceAssetsComplete(t *testing.T) {
	pieces := []nchess.Piece{
		nchess.WhiteKing, nchess.WhiteQueen, nchess.WhiteRook,
		nchess.WhiteBishop, nchess.WhiteKnight, nchess.WhitePawn,
		nchess.BlackKing, nchess.BlackQueen, nchess.BlackRook,
		nchess.BlackBishop, nchess.BlackKnight, nchess.BlackPawn,
	}
	for _, p := range pieces {
		img, err := pieceImage(p, squareSize)
		if err != nil {
			t.Fatalf("pieceImage %v: %v", p, err)
		}
		if img.Bounds().Dx() != squareSize {
			t.Fatalf("piece %v rendered at wrong size", p)
		}
	}
}
