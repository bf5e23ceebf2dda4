package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/kapu/chessmate/internal/board"
	"github.com/kapu/chessmate/internal/domain"
	"github.com/kapu/chessmate/internal/msgcat"
	"github.com/kapu/chessmate/internal/render"
	"github.com/kapu/chessmate/internal/session"
	"github.com/kapu/chessmate/internal/store"
	"github.com/kapu/chessmate/pkg/gamedto"
)

const (
	leaderboardMin     = 3
	leaderboardMax     = 50
	leaderboardDefault = 10
)

// Service is the presentation-facing facade: it registers users, delegates
// session mutations to the engine and shapes results into DTOs.
type Service struct {
	store    store.Store
	engine   *session.Engine
	renderer render.Renderer
	catalog  *msgcat.Catalog
	logger   *zap.Logger
}

func New(st store.Store, engine *session.Engine, renderer render.Renderer, catalog *msgcat.Catalog, logger *zap.Logger) (*Service, error) {
	if st == nil || engine == nil {
		return nil, fmt.Errorf("store and engine are required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("message catalog is required")
	}
	if renderer == nil {
		renderer = render.NewRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, engine: engine, renderer: renderer, catalog: catalog, logger: logger}, nil
}

// StartGame registers both players if needed and opens a session with the
// caller as white.
func (s *Service) StartGame(ctx context.Context, req gamedto.StartGameRequest) (*gamedto.GameState, error) {
	if strings.TrimSpace(req.ActorID) == "" || strings.TrimSpace(req.OpponentID) == "" {
		return nil, s.badRequest("actor_id and opponent_id are required")
	}
	if strings.TrimSpace(req.ActorID) == strings.TrimSpace(req.OpponentID) {
		return nil, s.domainError(session.ErrSelfPlay)
	}

	white, err := s.store.EnsureUser(ctx, req.ActorID, req.Username)
	if err != nil {
		return nil, s.domainError(err)
	}
	black, err := s.store.EnsureUser(ctx, req.OpponentID, req.OpponentName)
	if err != nil {
		return nil, s.domainError(err)
	}

	g, err := s.engine.Create(ctx, white, black)
	if err != nil {
		return nil, s.domainError(err)
	}

	state, err := s.buildState(ctx, g, nil)
	if err != nil {
		return nil, s.domainError(err)
	}
	state.Message = s.catalog.RenderOr("game.started", map[string]any{
		"GameID": g.ID,
		"White":  displayName(white),
		"Black":  displayName(black),
	}, "")
	return state, nil
}

// MakeMove plays one move for the caller on the resolved game.
func (s *Service) MakeMove(ctx context.Context, req gamedto.MoveRequest) (*gamedto.GameState, error) {
	g, err := s.engine.Move(ctx, req.ActorID, req.Move, req.GameID)
	if err != nil {
		return nil, s.domainError(err)
	}
	return s.stateWithOutcome(ctx, g)
}

// Offer places a draw or undo proposal for the caller.
func (s *Service) Offer(ctx context.Context, req gamedto.OfferRequest) (*gamedto.GameState, error) {
	var kind domain.OfferKind
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "draw":
		kind = domain.OfferDraw
	case "undo":
		kind = domain.OfferUndo
	default:
		return nil, s.badRequest("kind must be draw or undo")
	}

	g, err := s.engine.Offer(ctx, req.ActorID, kind, req.GameID)
	if err != nil {
		return nil, s.domainError(err)
	}
	state, err := s.buildState(ctx, g, nil)
	if err != nil {
		return nil, s.domainError(err)
	}
	state.Message = s.catalog.RenderOr("offer."+kind.String(), map[string]any{
		"Player": state.OfferedBy,
	}, "")
	return state, nil
}

// Accept agrees to the opponent's pending proposal.
func (s *Service) Accept(ctx context.Context, req gamedto.AcceptRequest) (*gamedto.GameState, error) {
	g, err := s.engine.Accept(ctx, req.ActorID, req.GameID)
	if err != nil {
		return nil, s.domainError(err)
	}
	return s.stateWithOutcome(ctx, g)
}

// Concede forfeits the resolved game for the caller.
func (s *Service) Concede(ctx context.Context, req gamedto.ConcedeRequest) (*gamedto.GameState, error) {
	g, err := s.engine.Concede(ctx, req.ActorID, req.GameID)
	if err != nil {
		return nil, s.domainError(err)
	}
	return s.stateWithOutcome(ctx, g)
}

// Status returns the refreshed view of the resolved game, optionally with a
// rendered board image.
func (s *Service) Status(ctx context.Context, req gamedto.StatusRequest) (*gamedto.GameState, error) {
	g, err := s.engine.Status(ctx, req.ActorID, req.GameID)
	if err != nil {
		return nil, s.domainError(err)
	}
	var opts *render.Options
	if req.WithImage {
		flip := req.FlipImage
		if u, _ := s.store.UserByActor(ctx, req.ActorID); u != nil && g.IsPlayer(u.ID) {
			flip = g.SideOf(u.ID) == domain.Black
		}
		opts = &render.Options{Flipped: flip}
	}
	return s.buildState(ctx, g, opts)
}

// BoardPNG renders the resolved game's current position.
func (s *Service) BoardPNG(ctx context.Context, req gamedto.StatusRequest) ([]byte, error) {
	g, err := s.engine.Status(ctx, req.ActorID, req.GameID)
	if err != nil {
		return nil, s.domainError(err)
	}
	game, err := board.Load(g.PGN)
	if err != nil {
		return nil, s.domainError(err)
	}
	opts := render.Options{Flipped: req.FlipImage}
	if u, _ := s.store.UserByActor(ctx, req.ActorID); u != nil && g.IsPlayer(u.ID) {
		opts.Flipped = g.SideOf(u.ID) == domain.Black
	}
	if hl := lastMoveHighlight(game); hl != nil {
		opts.Highlight = hl
	}
	png, err := s.renderer.RenderPNG(ctx, game.Position().Board(), opts)
	if err != nil {
		return nil, s.domainError(err)
	}
	return png, nil
}

// ListGames lists the caller's sessions, newest first.
func (s *Service) ListGames(ctx context.Context, req gamedto.ListGamesRequest) (*gamedto.ListGamesResponse, error) {
	games, err := s.engine.List(ctx, req.ActorID, req.IncludeFinished)
	if err != nil {
		return nil, s.domainError(err)
	}
	out := make([]*gamedto.GameSummary, 0, len(games))
	for _, g := range games {
		sum, err := s.buildSummary(ctx, g)
		if err != nil {
			return nil, s.domainError(err)
		}
		out = append(out, sum)
	}
	return &gamedto.ListGamesResponse{Games: out}, nil
}

// Rating returns the caller's profile.
func (s *Service) Rating(ctx context.Context, req gamedto.RatingRequest) (*gamedto.Profile, error) {
	u, err := s.store.UserByActor(ctx, req.ActorID)
	if err != nil {
		return nil, s.domainError(err)
	}
	if u == nil {
		return nil, s.domainError(session.ErrUserNotFound)
	}
	return profileOf(u), nil
}

// Leaderboard returns the top-rated players. TopN is clamped to [3, 50];
// zero means the default of 10.
func (s *Service) Leaderboard(ctx context.Context, req gamedto.LeaderboardRequest) (*gamedto.LeaderboardResponse, error) {
	n := req.TopN
	if n == 0 {
		n = leaderboardDefault
	}
	if n < leaderboardMin {
		n = leaderboardMin
	}
	if n > leaderboardMax {
		n = leaderboardMax
	}
	users, err := s.store.TopUsers(ctx, n)
	if err != nil {
		return nil, s.domainError(err)
	}
	players := make([]*gamedto.Profile, 0, len(users))
	for _, u := range users {
		players = append(players, profileOf(u))
	}
	return &gamedto.LeaderboardResponse{Players: players}, nil
}

func (s *Service) stateWithOutcome(ctx context.Context, g *domain.Game) (*gamedto.GameState, error) {
	state, err := s.buildState(ctx, g, nil)
	if err != nil {
		return nil, s.domainError(err)
	}
	if g.Terminal() {
		state.Message = s.catalog.RenderOr("game.finished", map[string]any{
			"GameID": g.ID,
			"Result": s.resultText(*g.Winner),
			"Reason": g.WinReason,
		}, "")
	} else {
		state.Message = s.catalog.RenderOr("game.turn", map[string]any{
			"Turn": state.Turn,
		}, "")
	}
	return state, nil
}

func (s *Service) buildState(ctx context.Context, g *domain.Game, imgOpts *render.Options) (*gamedto.GameState, error) {
	game, err := board.Load(g.PGN)
	if err != nil {
		return nil, err
	}
	white, err := s.store.UserByID(ctx, g.WhiteID)
	if err != nil {
		return nil, err
	}
	black, err := s.store.UserByID(ctx, g.BlackID)
	if err != nil {
		return nil, err
	}

	state := &gamedto.GameState{
		GameID:    g.ID,
		White:     displayName(white),
		Black:     displayName(black),
		MovesSAN:  board.SANHistory(game),
		FEN:       game.FEN(),
		Turn:      board.Turn(game).String(),
		Finished:  g.Terminal(),
		ExpiresAt: g.ExpiresAt,
	}
	if g.Terminal() {
		state.Result = s.resultText(*g.Winner)
		state.Reason = g.WinReason
	}
	if g.Offer != domain.OfferNone {
		state.PendingOffer = g.Offer.String()
		if g.WhiteAccepted {
			state.OfferedBy = displayName(white)
		} else {
			state.OfferedBy = displayName(black)
		}
	}

	if imgOpts != nil {
		opts := *imgOpts
		if hl := lastMoveHighlight(game); hl != nil {
			opts.Highlight = hl
		}
		png, err := s.renderer.RenderPNG(ctx, game.Position().Board(), opts)
		if err != nil {
			s.logger.Warn("board_render_failed", zap.Int64("game_id", g.ID), zap.Error(err))
		} else {
			state.BoardImageB64 = base64.StdEncoding.EncodeToString(png)
		}
	}
	return state, nil
}

func (s *Service) buildSummary(ctx context.Context, g *domain.Game) (*gamedto.GameSummary, error) {
	game, err := board.Load(g.PGN)
	if err != nil {
		return nil, err
	}
	white, err := s.store.UserByID(ctx, g.WhiteID)
	if err != nil {
		return nil, err
	}
	black, err := s.store.UserByID(ctx, g.BlackID)
	if err != nil {
		return nil, err
	}
	sum := &gamedto.GameSummary{
		GameID:    g.ID,
		White:     displayName(white),
		Black:     displayName(black),
		MoveCount: len(game.Moves()),
		Finished:  g.Terminal(),
		UpdatedAt: g.UpdatedAt,
	}
	if g.Terminal() {
		sum.Result = s.resultText(*g.Winner)
		sum.Reason = g.WinReason
	}
	return sum, nil
}

func (s *Service) resultText(w domain.Winner) string {
	return s.catalog.RenderOr("game.result."+w.String(), nil, w.String())
}

func (s *Service) badRequest(msg string) error {
	return gamedto.DomainError{Code: gamedto.CodeBadRequest, Message: msg}
}

// domainError maps engine and store errors onto the stable code space with
// player-facing messages from the catalog.
func (s *Service) domainError(err error) error {
	var de gamedto.DomainError
	if errors.As(err, &de) {
		return de
	}

	code := gamedto.CodeInternal
	retryable := false
	switch {
	case errors.Is(err, session.ErrNotYourTurn):
		code = gamedto.CodeNotYourTurn
	case errors.Is(err, session.ErrIllegalMove):
		code = gamedto.CodeIllegalMove
	case errors.Is(err, session.ErrGameOver):
		code = gamedto.CodeGameOver
	case errors.Is(err, session.ErrNothingToAccept):
		code = gamedto.CodeNothingToAccept
	case errors.Is(err, session.ErrDuplicateOffer):
		code = gamedto.CodeDuplicateOffer
	case errors.Is(err, session.ErrSelfPlay):
		code = gamedto.CodeSelfPlay
	case errors.Is(err, session.ErrNoLastGame):
		code = gamedto.CodeNoLastGame
	case errors.Is(err, session.ErrGameNotFound):
		code = gamedto.CodeGameNotFound
	case errors.Is(err, session.ErrUserNotFound):
		code = gamedto.CodeUserNotFound
	case errors.Is(err, session.ErrNotAPlayer):
		code = gamedto.CodeNotAPlayer
	case errors.Is(err, session.ErrConflict):
		code = gamedto.CodeConflict
		retryable = true
	default:
		s.logger.Error("service_error", zap.Error(err))
	}

	msg := s.catalog.RenderOr("error."+code, nil, err.Error())
	return gamedto.DomainError{Code: code, Message: msg, Retryable: retryable}
}

func lastMoveHighlight(game *nchess.Game) *render.Highlight {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	last := moves[len(moves)-1]
	return &render.Highlight{From: last.S1(), To: last.S2()}
}

func displayName(u *domain.User) string {
	if u == nil {
		return "unknown"
	}
	if strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return u.ActorID
}

func profileOf(u *domain.User) *gamedto.Profile {
	return &gamedto.Profile{ActorID: u.ActorID, Username: u.Username, Rating: u.Rating}
}
