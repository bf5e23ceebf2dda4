package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kapu/chessmate/internal/domain"
)

func TestEnsureUserIdempotent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	u1, err := st.EnsureUser(ctx, "actor-1", "alice")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u1.Rating != 1000 {
		t.Fatalf("new user rating = %d, want 1000", u1.Rating)
	}

	u2, err := st.EnsureUser(ctx, "actor-1", "someone-else")
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if u2.ID != u1.ID {
		t.Fatalf("EnsureUser must return the existing record")
	}
	if u2.Username != "alice" {
		t.Fatalf("EnsureUser must not overwrite the stored username")
	}
}

func TestUserLookupsMissing(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	u, err := st.UserByActor(ctx, "ghost")
	if err != nil || u != nil {
		t.Fatalf("missing actor should be (nil, nil), got %v / %v", u, err)
	}
	u, err = st.UserByID(ctx, 42)
	if err != nil || u != nil {
		t.Fatalf("missing id should be (nil, nil), got %v / %v", u, err)
	}
}

func TestSaveGameVersionCheck(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	w, _ := st.EnsureUser(ctx, "w", "")
	b, _ := st.EnsureUser(ctx, "b", "")
	g := &domain.Game{WhiteID: w.ID, BlackID: b.ID, PGN: "*"}
	if err := st.CreateGame(ctx, g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	stale, _ := st.GameByID(ctx, g.ID)
	fresh, _ := st.GameByID(ctx, g.ID)

	fresh.PGN = "1. e4 *"
	if err := st.SaveGame(ctx, fresh); err != nil {
		t.Fatalf("first save: %v", err)
	}

	stale.PGN = "1. d4 *"
	if err := st.SaveGame(ctx, stale); !errors.Is(err, ErrStaleGame) {
		t.Fatalf("stale save should fail with ErrStaleGame, got %v", err)
	}

	got, _ := st.GameByID(ctx, g.ID)
	if got.PGN != "1. e4 *" {
		t.Fatalf("lost update: pgn = %q", got.PGN)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}
}

func TestSaveGameBumpsCallerVersion(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	w, _ := st.EnsureUser(ctx, "w", "")
	b, _ := st.EnsureUser(ctx, "b", "")
	g := &domain.Game{WhiteID: w.ID, BlackID: b.ID, PGN: "*"}
	if err := st.CreateGame(ctx, g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	g.PGN = "1. e4 *"
	if err := st.SaveGame(ctx, g); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	g.PGN = "1. e4 e5 *"
	if err := st.SaveGame(ctx, g); err != nil {
		t.Fatalf("consecutive saves by one holder must succeed: %v", err)
	}
}

func TestTopUsersOrdering(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	a, _ := st.EnsureUser(ctx, "a", "")
	b, _ := st.EnsureUser(ctx, "b", "")
	c, _ := st.EnsureUser(ctx, "c", "")

	a.Rating = 1100
	c.Rating = 1100
	b.Rating = 900
	for _, u := range []*domain.User{a, b, c} {
		if err := st.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser: %v", err)
		}
	}

	top, err := st.TopUsers(ctx, 2)
	if err != nil {
		t.Fatalf("TopUsers: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	// Equal ratings break ties by ascending id.
	if top[0].ID != a.ID || top[1].ID != c.ID {
		t.Fatalf("order = %d, %d; want %d, %d", top[0].ID, top[1].ID, a.ID, c.ID)
	}
}

func TestGamesByUserFiltersFinished(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	w, _ := st.EnsureUser(ctx, "w", "")
	b, _ := st.EnsureUser(ctx, "b", "")

	open := &domain.Game{WhiteID: w.ID, BlackID: b.ID, PGN: "*"}
	if err := st.CreateGame(ctx, open); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	done := &domain.Game{WhiteID: w.ID, BlackID: b.ID, PGN: "*"}
	if err := st.CreateGame(ctx, done); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	dd, _ := st.GameByID(ctx, done.ID)
	dd.Finish(domain.WinnerWhite, "checkmate")
	if err := st.SaveGame(ctx, dd); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	ongoing, err := st.GamesByUser(ctx, w.ID, false)
	if err != nil {
		t.Fatalf("GamesByUser: %v", err)
	}
	if len(ongoing) != 1 || ongoing[0].ID != open.ID {
		t.Fatalf("ongoing filter wrong: %+v", ongoing)
	}

	all, err := st.GamesByUser(ctx, w.ID, true)
	if err != nil {
		t.Fatalf("GamesByUser all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all games = %d, want 2", len(all))
	}

	ids, err := st.OngoingGameIDs(ctx)
	if err != nil {
		t.Fatalf("OngoingGameIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != open.ID {
		t.Fatalf("ongoing ids wrong: %v", ids)
	}
}

func TestGameCopiesAreIsolated(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	w, _ := st.EnsureUser(ctx, "w", "")
	b, _ := st.EnsureUser(ctx, "b", "")
	exp := time.Now().Add(time.Hour)
	g := &domain.Game{WhiteID: w.ID, BlackID: b.ID, PGN: "*", ExpiresAt: &exp}
	if err := st.CreateGame(ctx, g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	got, _ := st.GameByID(ctx, g.ID)
	*got.ExpiresAt = time.Now().Add(-time.Hour)
	got.PGN = "mutated"

	again, _ := st.GameByID(ctx, g.ID)
	if again.PGN != "*" || !again.ExpiresAt.After(time.Now()) {
		t.Fatalf("store handed out shared state")
	}
}
