package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
)

// Options controls one board rendering. Flipped draws the board from
// black's point of view. Highlight marks the from/to squares of the most
// recent move.
type Options struct {
	Flipped   bool
	Highlight *Highlight
}

type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

// Renderer turns a position into a PNG board image.
type Renderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error)
}

type svgRenderer struct{}

func NewRenderer() Renderer {
	return &svgRenderer{}
}

const (
	squareSize   = 72
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	margin       = 16
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	frameColor     = color.RGBA{48, 40, 32, 255}
	highlightColor = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
)

func (r *svgRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	total := boardSize + margin*2
	origin := image.Point{X: margin, Y: margin}
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin, opts.Flipped)
	if opts.Highlight != nil {
		drawSquareOverlay(img, opts.Highlight.From, origin, opts.Flipped)
		drawSquareOverlay(img, opts.Highlight.To, origin, opts.Flipped)
	}
	if err := drawPieces(img, board, origin, opts.Flipped); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareOrigin maps a square to its top-left pixel. White's view puts rank 1
// at the bottom; flipping mirrors both axes.
func squareOrigin(sq nchess.Square, origin image.Point, flipped bool) image.Point {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flipped {
		col = 7 - col
		row = 7 - row
	}
	return image.Point{X: origin.X + col*squareSize, Y: origin.Y + row*squareSize}
}

func drawSquares(dst imagedraw.Image, origin image.Point, flipped bool) {
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		p := squareOrigin(sq, origin, flipped)
		clr := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			clr = darkSquare
		}
		rect := image.Rect(p.X, p.Y, p.X+squareSize, p.Y+squareSize)
		imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func drawSquareOverlay(dst imagedraw.Image, sq nchess.Square, origin image.Point, flipped bool) {
	p := squareOrigin(sq, origin, flipped)
	rect := image.Rect(p.X, p.Y, p.X+squareSize, p.Y+squareSize)
	imagedraw.Draw(dst, rect, image.NewUniform(highlightColor), image.Point{}, imagedraw.Over)
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point, flipped bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := pieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		p := squareOrigin(sq, origin, flipped)
		rect := image.Rect(p.X, p.Y, p.X+squareSize, p.Y+squareSize)
		imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
	}
	return nil
}
