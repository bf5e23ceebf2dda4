package store

import (
	"context"
	"errors"

	"github.com/kapu/chessmate/internal/domain"
)

var (
	// ErrStaleGame is returned by SaveGame when the record's version no
	// longer matches, i.e. another writer got there first.
	ErrStaleGame = errors.New("game record modified concurrently")
)

// Store is the persistence boundary for users and game sessions. Lookups
// return (nil, nil) when the record does not exist; callers decide whether
// that is an error.
type Store interface {
	// EnsureUser creates the user for actorID if absent and returns the
	// stored record either way. Repeated calls for the same actor are not
	// an error.
	EnsureUser(ctx context.Context, actorID, username string) (*domain.User, error)
	UserByActor(ctx context.Context, actorID string) (*domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error
	TopUsers(ctx context.Context, limit int) ([]*domain.User, error)

	CreateGame(ctx context.Context, g *domain.Game) error
	GameByID(ctx context.Context, id int64) (*domain.Game, error)
	// SaveGame persists the record only if g.Version still matches the
	// stored row, then bumps the version. ErrStaleGame on mismatch.
	SaveGame(ctx context.Context, g *domain.Game) error
	GamesByUser(ctx context.Context, userID int64, includeFinished bool) ([]*domain.Game, error)
	OngoingGameIDs(ctx context.Context) ([]int64, error)

	Close() error
}
