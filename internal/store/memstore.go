package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kapu/chessmate/internal/domain"
)

// memstore is an in-memory Store used by tests and when no DATABASE_URL is
// configured. It honors the same version check as the postgres store.
type memstore struct {
	mu sync.RWMutex

	nextUserID int64
	nextGameID int64

	usersByID    map[int64]*domain.User
	usersByActor map[string]*domain.User
	gamesByID    map[int64]*domain.Game
}

func NewMemoryStore() Store {
	return &memstore{
		usersByID:    make(map[int64]*domain.User),
		usersByActor: make(map[string]*domain.User),
		gamesByID:    make(map[int64]*domain.Game),
	}
}

func (m *memstore) EnsureUser(ctx context.Context, actorID, username string) (*domain.User, error) {
	actorID = strings.TrimSpace(actorID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.usersByActor[actorID]; ok {
		return copyUser(u), nil
	}

	m.nextUserID++
	now := time.Now()
	u := &domain.User{
		ID:        m.nextUserID,
		ActorID:   actorID,
		Username:  strings.TrimSpace(username),
		Rating:    1000,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.usersByID[u.ID] = u
	m.usersByActor[u.ActorID] = u
	return copyUser(u), nil
}

func (m *memstore) UserByActor(ctx context.Context, actorID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.usersByActor[strings.TrimSpace(actorID)]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *memstore) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.usersByID[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *memstore) SaveUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.usersByID[u.ID]
	if !ok {
		return nil
	}
	cp := *u
	cp.UpdatedAt = time.Now()
	if u.LastGameID != nil {
		lg := *u.LastGameID
		cp.LastGameID = &lg
	}
	m.usersByID[u.ID] = &cp
	m.usersByActor[stored.ActorID] = &cp
	return nil
}

func (m *memstore) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]*domain.User, 0, len(m.usersByID))
	for _, u := range m.usersByID {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Rating != users[j].Rating {
			return users[i].Rating > users[j].Rating
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *memstore) CreateGame(ctx context.Context, g *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextGameID++
	g.ID = m.nextGameID
	g.Version = 1
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	m.gamesByID[g.ID] = copyGame(g)
	return nil
}

func (m *memstore) GameByID(ctx context.Context, id int64) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.gamesByID[id]; ok {
		return copyGame(g), nil
	}
	return nil, nil
}

func (m *memstore) SaveGame(ctx context.Context, g *domain.Game) error {
	if g == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.gamesByID[g.ID]
	if !ok || stored.Version != g.Version {
		return ErrStaleGame
	}
	g.Version++
	g.UpdatedAt = time.Now()
	m.gamesByID[g.ID] = copyGame(g)
	return nil
}

func (m *memstore) GamesByUser(ctx context.Context, userID int64, includeFinished bool) ([]*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	games := make([]*domain.Game, 0)
	for _, g := range m.gamesByID {
		if !g.IsPlayer(userID) {
			continue
		}
		if !includeFinished && g.Terminal() {
			continue
		}
		games = append(games, copyGame(g))
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].UpdatedAt.Equal(games[j].UpdatedAt) {
			return games[i].UpdatedAt.After(games[j].UpdatedAt)
		}
		return games[i].ID > games[j].ID
	})
	return games, nil
}

func (m *memstore) OngoingGameIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0)
	for id, g := range m.gamesByID {
		if !g.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memstore) Close() error { return nil }

func copyUser(u *domain.User) *domain.User {
	cp := *u
	if u.LastGameID != nil {
		lg := *u.LastGameID
		cp.LastGameID = &lg
	}
	return &cp
}

func copyGame(g *domain.Game) *domain.Game {
	cp := *g
	if g.Winner != nil {
		w := *g.Winner
		cp.Winner = &w
	}
	if g.ExpiresAt != nil {
		e := *g.ExpiresAt
		cp.ExpiresAt = &e
	}
	return &cp
}
