package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chessmate/internal/board"
	"github.com/kapu/chessmate/internal/domain"
	"github.com/kapu/chessmate/internal/lock"
	"github.com/kapu/chessmate/internal/rating"
	"github.com/kapu/chessmate/internal/store"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoLastGame      = errors.New("no last game for user")
	ErrNotAPlayer      = errors.New("user is not a participant")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrGameOver        = errors.New("game already over")
	ErrNothingToAccept = errors.New("nothing to accept")
	ErrDuplicateOffer  = errors.New("offer already pending")
	ErrSelfPlay        = errors.New("cannot play against yourself")
	ErrConflict        = errors.New("concurrent update conflict")

	// ErrIllegalMove is re-exported so callers deal with one error surface.
	ErrIllegalMove = board.ErrIllegalMove
)

const saveAttempts = 3

// Engine drives the lifecycle of game sessions: turn order, offers,
// expiration and terminal transitions. Every operation runs as a
// read-modify-write under a per-game lock; the store's version check backs
// it up.
type Engine struct {
	store    store.Store
	locker   *lock.Locker
	ttl      time.Duration
	lockWait time.Duration
	logger   *zap.Logger
}

func NewEngine(st store.Store, locker *lock.Locker, ttl, lockWait time.Duration, logger *zap.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("game TTL must be greater than 0")
	}
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, locker: locker, ttl: ttl, lockWait: lockWait, logger: logger}, nil
}

// Create opens a new session between two distinct users and records it as
// the last game of both.
func (e *Engine) Create(ctx context.Context, white, black *domain.User) (*domain.Game, error) {
	if white == nil || black == nil {
		return nil, ErrUserNotFound
	}
	if white.ID == black.ID {
		return nil, ErrSelfPlay
	}

	expires := time.Now().Add(e.ttl)
	g := &domain.Game{
		WhiteID:   white.ID,
		BlackID:   black.ID,
		PGN:       "*",
		Offer:     domain.OfferNone,
		ExpiresAt: &expires,
	}
	if err := e.store.CreateGame(ctx, g); err != nil {
		return nil, err
	}

	first, second := white, black
	if second.ID < first.ID {
		first, second = second, first
	}
	for _, u := range []*domain.User{first, second} {
		if err := e.setLastGame(ctx, u.ID, g.ID); err != nil {
			return nil, err
		}
		u.LastGameID = &g.ID
	}

	e.logger.Info("game_create",
		zap.Int64("game_id", g.ID),
		zap.Int64("white_id", white.ID),
		zap.Int64("black_id", black.ID),
		zap.Time("expires_at", expires),
	)
	return g, nil
}

// Status resolves and refreshes a game without acting on it. Non-players
// may look at a game by explicit id.
func (e *Engine) Status(ctx context.Context, actorID string, gameID *int64) (*domain.Game, error) {
	return e.do(ctx, actorID, gameID, false, nil)
}

// Move applies one SAN move for the acting user: turn checked, notation
// validated, expiration extended, any pending offer withdrawn.
func (e *Engine) Move(ctx context.Context, actorID, san string, gameID *int64) (*domain.Game, error) {
	return e.do(ctx, actorID, gameID, true, func(g *domain.Game, u *domain.User) (bool, error) {
		game, err := board.Load(g.PGN)
		if err != nil {
			return false, err
		}
		if board.Turn(game) != g.SideOf(u.ID) {
			return false, ErrNotYourTurn
		}
		san, err := board.ApplySAN(game, san)
		if err != nil {
			return false, err
		}

		g.PGN = board.Save(game)
		expires := time.Now().Add(e.ttl)
		g.ExpiresAt = &expires
		g.ClearOffer()

		e.logger.Info("game_move",
			zap.Int64("game_id", g.ID),
			zap.Int64("user_id", u.ID),
			zap.String("san", san),
		)
		return true, nil
	})
}

// Offer places a draw or undo proposal. The acting side counts as having
// accepted; the opponent's flag is reset. Re-offering the pending kind
// fails; a different kind supersedes it.
func (e *Engine) Offer(ctx context.Context, actorID string, kind domain.OfferKind, gameID *int64) (*domain.Game, error) {
	if kind != domain.OfferDraw && kind != domain.OfferUndo {
		return nil, fmt.Errorf("unsupported offer kind %q", kind)
	}
	return e.do(ctx, actorID, gameID, true, func(g *domain.Game, u *domain.User) (bool, error) {
		if g.Offer == kind {
			return false, ErrDuplicateOffer
		}
		side := g.SideOf(u.ID)
		g.Offer = kind
		g.SetAccepted(side, true)
		g.SetAccepted(side.Other(), false)

		e.logger.Info("game_offer",
			zap.Int64("game_id", g.ID),
			zap.Int64("user_id", u.ID),
			zap.String("kind", kind.String()),
		)
		return false, nil
	})
}

// Accept agrees to the opponent's pending offer. A side cannot accept its
// own offer. Resolution (draw result or one undone move) happens in the
// refresh that follows.
func (e *Engine) Accept(ctx context.Context, actorID string, gameID *int64) (*domain.Game, error) {
	return e.do(ctx, actorID, gameID, true, func(g *domain.Game, u *domain.User) (bool, error) {
		if g.Offer == domain.OfferNone {
			return false, ErrNothingToAccept
		}
		if g.WhiteAccepted == g.BlackAccepted {
			// Either nobody has offered or both already agreed; neither
			// state is acceptable input.
			return false, ErrNothingToAccept
		}
		side := g.SideOf(u.ID)
		if g.Accepted(side) {
			return false, ErrNothingToAccept
		}
		g.SetAccepted(side, true)

		e.logger.Info("game_accept",
			zap.Int64("game_id", g.ID),
			zap.Int64("user_id", u.ID),
			zap.String("kind", g.Offer.String()),
		)
		return false, nil
	})
}

// Concede forfeits the game for the acting side.
func (e *Engine) Concede(ctx context.Context, actorID string, gameID *int64) (*domain.Game, error) {
	return e.do(ctx, actorID, gameID, true, func(g *domain.Game, u *domain.User) (bool, error) {
		side := g.SideOf(u.ID)
		g.Finish(domain.WinnerOf(side.Other()), concedeReason(side))

		e.logger.Info("game_concede",
			zap.Int64("game_id", g.ID),
			zap.Int64("user_id", u.ID),
			zap.String("side", side.String()),
		)
		return false, nil
	})
}

// List returns the resolved user's games, optionally including finished ones.
func (e *Engine) List(ctx context.Context, actorID string, includeFinished bool) ([]*domain.Game, error) {
	u, err := e.resolveUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.store.GamesByUser(ctx, u.ID, includeFinished)
}

// SweepExpired refreshes every ongoing game, finishing the expired ones.
// Contended games are skipped and picked up on the next sweep.
func (e *Engine) SweepExpired(ctx context.Context) (expired int, err error) {
	ids, err := e.store.OngoingGameIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		finished, serr := e.sweepOne(ctx, id)
		if serr != nil {
			e.logger.Warn("sweep_game_error", zap.Int64("game_id", id), zap.Error(serr))
			continue
		}
		if finished {
			expired++
		}
	}
	if expired > 0 {
		e.logger.Info("sweep_done", zap.Int("scanned", len(ids)), zap.Int("expired", expired))
	}
	return expired, nil
}

func (e *Engine) sweepOne(ctx context.Context, gameID int64) (bool, error) {
	key := lock.GameKey(gameID)
	token, err := e.locker.TryAcquire(ctx, key)
	if errors.Is(err, lock.ErrNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = e.locker.Release(ctx, key, token) }()

	g, err := e.store.GameByID(ctx, gameID)
	if err != nil || g == nil {
		return false, err
	}
	mutated, err := e.refreshGame(g)
	if err != nil || !mutated {
		return false, err
	}
	finished := g.Terminal()
	if err := e.store.SaveGame(ctx, g); err != nil {
		return false, err
	}
	if finished {
		if err := e.applyRating(ctx, g); err != nil {
			return false, err
		}
	}
	return finished, nil
}

// trackGame asks the pipeline to repoint the actor's last game at this
// game after a successful save.
type actionFunc func(g *domain.Game, u *domain.User) (trackGame bool, err error)

// do is the shared per-operation pipeline: resolve actor and game, take the
// per-game lock, refresh lazily, run the action, refresh again so terminal
// and offer resolution happen immediately, then persist with the store's
// version check. Rating runs exactly once, on the save that records the
// winner.
func (e *Engine) do(ctx context.Context, actorID string, gameID *int64, requirePlayer bool, action actionFunc) (*domain.Game, error) {
	u, err := e.resolveUser(ctx, actorID)
	if err != nil {
		// On the implicit-game path an unregistered actor has, by
		// definition, no last game.
		if gameID == nil && errors.Is(err, ErrUserNotFound) {
			return nil, ErrNoLastGame
		}
		return nil, err
	}
	id, err := e.resolveGameID(u, gameID)
	if err != nil {
		return nil, err
	}

	key := lock.GameKey(id)
	lctx, cancel := context.WithTimeout(ctx, e.lockWait)
	token, err := e.locker.Acquire(lctx, key)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrConflict
		}
		return nil, err
	}
	defer func() { _ = e.locker.Release(ctx, key, token) }()

	lastErr := error(ErrConflict)
	for attempt := 0; attempt < saveAttempts; attempt++ {
		g, err := e.store.GameByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, ErrGameNotFound
		}
		if requirePlayer && !g.IsPlayer(u.ID) {
			return nil, ErrNotAPlayer
		}

		// Lazy refresh: expiration and stale offer resolution are applied
		// before the action sees the game.
		mutated, err := e.refreshGame(g)
		if err != nil {
			return nil, err
		}
		if mutated {
			finished := g.Terminal()
			if err := e.store.SaveGame(ctx, g); err != nil {
				if errors.Is(err, store.ErrStaleGame) {
					lastErr = ErrConflict
					continue
				}
				return nil, err
			}
			if finished {
				if err := e.applyRating(ctx, g); err != nil {
					return nil, err
				}
			}
		}

		if action == nil {
			return g, nil
		}
		if g.Terminal() {
			return g, ErrGameOver
		}

		trackGame, err := action(g, u)
		if err != nil {
			return g, err
		}

		if _, err := e.refreshGame(g); err != nil {
			return nil, err
		}
		finished := g.Terminal()
		if err := e.store.SaveGame(ctx, g); err != nil {
			if errors.Is(err, store.ErrStaleGame) {
				lastErr = ErrConflict
				continue
			}
			return nil, err
		}
		if finished {
			if err := e.applyRating(ctx, g); err != nil {
				return nil, err
			}
		}
		if trackGame {
			if err := e.setLastGame(ctx, u.ID, g.ID); err != nil {
				return nil, err
			}
		}
		return g, nil
	}
	return nil, lastErr
}

// refreshGame advances the game's lazy state in memory: no-op when
// terminal; expiration loses for the side to move; otherwise terminal
// detection with the pending draw offer taken into account; a mutually
// accepted undo removes the last move and clears the slate.
func (e *Engine) refreshGame(g *domain.Game) (bool, error) {
	if g.Terminal() {
		return false, nil
	}

	game, err := board.Load(g.PGN)
	if err != nil {
		return false, fmt.Errorf("game %d: %w", g.ID, err)
	}
	turn := board.Turn(game)

	if g.ExpiresAt != nil && time.Now().After(*g.ExpiresAt) {
		g.Finish(domain.WinnerOf(turn.Other()), "Game expired")
		e.logger.Info("game_expired",
			zap.Int64("game_id", g.ID),
			zap.String("loser", turn.String()),
		)
		return true, nil
	}

	claimDraw := g.Offer == domain.OfferDraw
	bothAgreed := claimDraw && g.WhiteAccepted && g.BlackAccepted
	res := board.Evaluate(game, claimDraw, bothAgreed)
	if res.Terminal {
		g.Finish(res.Winner, res.Reason)
		e.logger.Info("game_finished",
			zap.Int64("game_id", g.ID),
			zap.String("winner", res.Winner.String()),
			zap.String("reason", res.Reason),
		)
		return true, nil
	}

	if g.Offer == domain.OfferUndo && g.WhiteAccepted && g.BlackAccepted {
		trimmed, ok := board.Undo(game)
		if ok {
			g.PGN = board.Save(trimmed)
		} else {
			e.logger.Info("game_undo_empty", zap.Int64("game_id", g.ID))
		}
		g.ClearOffer()
		return true, nil
	}

	return false, nil
}

// lockUsers takes the per-user locks in ascending id order and returns a
// release for all of them. Every read-modify-write of a user record runs
// under its lock: two games finishing concurrently with a shared player
// would otherwise both read that player's rating and the second save
// would drop the first delta.
func (e *Engine) lockUsers(ctx context.Context, ids ...int64) (func(), error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	keys := make([]string, 0, len(sorted))
	tokens := make([]string, 0, len(sorted))
	release := func() {
		for i := len(keys) - 1; i >= 0; i-- {
			_ = e.locker.Release(ctx, keys[i], tokens[i])
		}
	}

	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		key := lock.UserKey(id)
		lctx, cancel := context.WithTimeout(ctx, e.lockWait)
		token, err := e.locker.Acquire(lctx, key)
		cancel()
		if err != nil {
			release()
			if errors.Is(err, lock.ErrNotAcquired) {
				return nil, ErrConflict
			}
			return nil, err
		}
		keys = append(keys, key)
		tokens = append(tokens, token)
	}
	return release, nil
}

// setLastGame repoints the user's last-game reference against a fresh
// read under the user lock, so a snapshot taken before the game lock
// cannot clobber a concurrent rating write on the same record.
func (e *Engine) setLastGame(ctx context.Context, userID, gameID int64) error {
	release, err := e.lockUsers(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	fresh, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if fresh == nil {
		return ErrUserNotFound
	}
	fresh.LastGameID = &gameID
	return e.store.SaveUser(ctx, fresh)
}

func (e *Engine) applyRating(ctx context.Context, g *domain.Game) error {
	release, err := e.lockUsers(ctx, g.WhiteID, g.BlackID)
	if err != nil {
		return err
	}
	defer release()

	white, err := e.store.UserByID(ctx, g.WhiteID)
	if err != nil {
		return err
	}
	black, err := e.store.UserByID(ctx, g.BlackID)
	if err != nil {
		return err
	}
	if white == nil || black == nil {
		return fmt.Errorf("rating update for game %d: missing player record", g.ID)
	}

	delta, err := rating.Apply(white, black, *g.Winner)
	if err != nil {
		return err
	}

	// Persist in ascending id order so any per-user writer sees one order.
	first, second := white, black
	if second.ID < first.ID {
		first, second = second, first
	}
	for _, u := range []*domain.User{first, second} {
		if err := e.store.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	e.logger.Info("rating_update",
		zap.Int64("game_id", g.ID),
		zap.String("winner", g.Winner.String()),
		zap.Float64("white_delta", delta),
		zap.Int("white_rating", white.Rating),
		zap.Int("black_rating", black.Rating),
	)
	return nil
}

func (e *Engine) resolveUser(ctx context.Context, actorID string) (*domain.User, error) {
	u, err := e.store.UserByActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (e *Engine) resolveGameID(u *domain.User, gameID *int64) (int64, error) {
	if gameID != nil {
		return *gameID, nil
	}
	if u.LastGameID == nil {
		return 0, ErrNoLastGame
	}
	return *u.LastGameID, nil
}

func concedeReason(loser domain.Color) string {
	if loser == domain.White {
		return "White conceded"
	}
	return "Black conceded"
}
