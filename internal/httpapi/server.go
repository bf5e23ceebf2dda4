package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/chessmate/internal/service"
	"github.com/kapu/chessmate/pkg/gamedto"
)

// Server exposes the game service over HTTP. All responses are JSON except
// the board endpoint, which returns a PNG.
type Server struct {
	svc    *service.Service
	logger *zap.Logger
	srv    *fasthttp.Server
}

func NewServer(svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		Name:         "chessmate",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz" && method == fasthttp.MethodGet:
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case path == "/v1/games" && method == fasthttp.MethodPost:
		s.startGame(ctx)
	case path == "/v1/games" && method == fasthttp.MethodGet:
		s.listGames(ctx)
	case path == "/v1/games/move" && method == fasthttp.MethodPost:
		s.makeMove(ctx)
	case path == "/v1/games/offer" && method == fasthttp.MethodPost:
		s.offer(ctx)
	case path == "/v1/games/accept" && method == fasthttp.MethodPost:
		s.accept(ctx)
	case path == "/v1/games/concede" && method == fasthttp.MethodPost:
		s.concede(ctx)
	case path == "/v1/status" && method == fasthttp.MethodGet:
		s.status(ctx)
	case path == "/v1/board" && method == fasthttp.MethodGet:
		s.board(ctx)
	case path == "/v1/rating" && method == fasthttp.MethodGet:
		s.rating(ctx)
	case path == "/v1/leaderboard" && method == fasthttp.MethodGet:
		s.leaderboard(ctx)
	default:
		s.writeError(ctx, gamedto.DomainError{Code: gamedto.CodeBadRequest, Message: "unknown route"})
	}
}

func (s *Server) startGame(ctx *fasthttp.RequestCtx) {
	var req gamedto.StartGameRequest
	if !s.readJSON(ctx, &req) {
		return
	}
	state, err := s.svc.StartGame(reqCtx(ctx), req)
	s.respond(ctx, state, err)
}

func (s *Server) makeMove(ctx *fasthttp.RequestCtx) {
	var req gamedto.MoveRequest
	if !s.readJSON(ctx, &req) {
		return
	}
	state, err := s.svc.MakeMove(reqCtx(ctx), req)
	s.respond(ctx, state, err)
}

func (s *Server) offer(ctx *fasthttp.RequestCtx) {
	var req gamedto.OfferRequest
	if !s.readJSON(ctx, &req) {
		return
	}
	state, err := s.svc.Offer(reqCtx(ctx), req)
	s.respond(ctx, state, err)
}

func (s *Server) accept(ctx *fasthttp.RequestCtx) {
	var req gamedto.AcceptRequest
	if !s.readJSON(ctx, &req) {
		return
	}
	state, err := s.svc.Accept(reqCtx(ctx), req)
	s.respond(ctx, state, err)
}

func (s *Server) concede(ctx *fasthttp.RequestCtx) {
	var req gamedto.ConcedeRequest
	if !s.readJSON(ctx, &req) {
		return
	}
	state, err := s.svc.Concede(reqCtx(ctx), req)
	s.respond(ctx, state, err)
}

func (s *Server) status(ctx *fasthttp.RequestCtx) {
	req := gamedto.StatusRequest{
		ActorID:   queryString(ctx, "actor_id"),
		GameID:    queryInt64Ptr(ctx, "game_id"),
		WithImage: queryBool(ctx, "with_image"),
		FlipImage: queryBool(ctx, "flip"),
	}
	state, err := s.svc.Status(reqCtx(ctx), req)
	s.respond(ctx, state, err)
}

func (s *Server) board(ctx *fasthttp.RequestCtx) {
	req := gamedto.StatusRequest{
		ActorID:   queryString(ctx, "actor_id"),
		GameID:    queryInt64Ptr(ctx, "game_id"),
		FlipImage: queryBool(ctx, "flip"),
	}
	png, err := s.svc.BoardPNG(reqCtx(ctx), req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.SetContentType("image/png")
	ctx.SetBody(png)
}

func (s *Server) listGames(ctx *fasthttp.RequestCtx) {
	req := gamedto.ListGamesRequest{
		ActorID:         queryString(ctx, "actor_id"),
		IncludeFinished: queryBool(ctx, "include_finished"),
	}
	resp, err := s.svc.ListGames(reqCtx(ctx), req)
	s.respond(ctx, resp, err)
}

func (s *Server) rating(ctx *fasthttp.RequestCtx) {
	req := gamedto.RatingRequest{ActorID: queryString(ctx, "actor_id")}
	resp, err := s.svc.Rating(reqCtx(ctx), req)
	s.respond(ctx, resp, err)
}

func (s *Server) leaderboard(ctx *fasthttp.RequestCtx) {
	n, _ := strconv.Atoi(queryString(ctx, "top_n"))
	resp, err := s.svc.Leaderboard(reqCtx(ctx), gamedto.LeaderboardRequest{TopN: n})
	s.respond(ctx, resp, err)
}

func (s *Server) readJSON(ctx *fasthttp.RequestCtx, out any) bool {
	if err := json.Unmarshal(ctx.PostBody(), out); err != nil {
		s.writeError(ctx, gamedto.DomainError{Code: gamedto.CodeBadRequest, Message: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) respond(ctx *fasthttp.RequestCtx, payload any, err error) {
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	body, merr := json.Marshal(payload)
	if merr != nil {
		s.writeError(ctx, merr)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	var de gamedto.DomainError
	if !errors.As(err, &de) {
		s.logger.Error("http_internal_error", zap.Error(err))
		de = gamedto.DomainError{Code: gamedto.CodeInternal, Message: "internal error"}
	}
	body, _ := json.Marshal(de)
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(statusFor(de.Code))
	ctx.SetBody(body)
}

func statusFor(code string) int {
	switch code {
	case gamedto.CodeGameNotFound, gamedto.CodeUserNotFound, gamedto.CodeNoLastGame:
		return fasthttp.StatusNotFound
	case gamedto.CodeNotAPlayer:
		return fasthttp.StatusForbidden
	case gamedto.CodeConflict:
		return fasthttp.StatusConflict
	case gamedto.CodeInternal:
		return fasthttp.StatusInternalServerError
	case gamedto.CodeNotYourTurn, gamedto.CodeIllegalMove, gamedto.CodeGameOver,
		gamedto.CodeNothingToAccept, gamedto.CodeDuplicateOffer, gamedto.CodeSelfPlay:
		return fasthttp.StatusUnprocessableEntity
	default:
		return fasthttp.StatusBadRequest
	}
}

func reqCtx(ctx *fasthttp.RequestCtx) context.Context {
	return ctx
}

func queryString(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

func queryBool(ctx *fasthttp.RequestCtx, key string) bool {
	v := strings.ToLower(queryString(ctx, key))
	return v == "1" || v == "true" || v == "yes"
}

func queryInt64Ptr(ctx *fasthttp.RequestCtx, key string) *int64 {
	v := queryString(ctx, key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
