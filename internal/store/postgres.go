package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/chessmate/internal/domain"
)

type pgstore struct {
	db *sql.DB
}

// NewPostgresStore opens a postgres-backed Store and verifies connectivity.
func NewPostgresStore(databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &pgstore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *pgstore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *pgstore) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS users (
			id           BIGSERIAL PRIMARY KEY,
			actor_id     TEXT NOT NULL UNIQUE,
			username     TEXT NOT NULL DEFAULT '',
			rating       INTEGER NOT NULL DEFAULT 1000,
			last_game_id BIGINT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS games (
			id             BIGSERIAL PRIMARY KEY,
			white_id       BIGINT NOT NULL REFERENCES users(id),
			black_id       BIGINT NOT NULL REFERENCES users(id),
			pgn            TEXT NOT NULL DEFAULT '*',
			winner         SMALLINT,
			win_reason     TEXT,
			offer          SMALLINT NOT NULL DEFAULT 0,
			white_accepted BOOLEAN NOT NULL DEFAULT FALSE,
			black_accepted BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at     TIMESTAMPTZ,
			version        BIGINT NOT NULL DEFAULT 1,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_games_white ON games (white_id);
		CREATE INDEX IF NOT EXISTS idx_games_black ON games (black_id);
		CREATE INDEX IF NOT EXISTS idx_games_ongoing ON games (id) WHERE winner IS NULL`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const userColumns = `id, actor_id, username, rating, last_game_id, created_at, updated_at`

func (s *pgstore) EnsureUser(ctx context.Context, actorID, username string) (*domain.User, error) {
	const insert = `
		INSERT INTO users (actor_id, username)
		VALUES ($1, $2)
		ON CONFLICT (actor_id) DO NOTHING
		RETURNING ` + userColumns

	u, err := s.scanUser(s.db.QueryRowContext(ctx, insert, strings.TrimSpace(actorID), strings.TrimSpace(username)))
	if err == nil && u != nil {
		return u, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	// Conflict: the actor already exists.
	return s.UserByActor(ctx, actorID)
}

func (s *pgstore) UserByActor(ctx context.Context, actorID string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE actor_id = $1`
	u, err := s.scanUser(s.db.QueryRowContext(ctx, query, strings.TrimSpace(actorID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by actor: %w", err)
	}
	return u, nil
}

func (s *pgstore) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := s.scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *pgstore) SaveUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return fmt.Errorf("nil user payload")
	}
	const query = `
		UPDATE users
		SET username = $2, rating = $3, last_game_id = $4, updated_at = NOW()
		WHERE id = $1`
	var lastGame sql.NullInt64
	if u.LastGameID != nil {
		lastGame = sql.NullInt64{Int64: *u.LastGameID, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Username, u.Rating, lastGame); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *pgstore) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY rating DESC, id ASC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, limit)
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const gameColumns = `id, white_id, black_id, pgn, winner, win_reason, offer,
	white_accepted, black_accepted, expires_at, version, created_at, updated_at`

func (s *pgstore) CreateGame(ctx context.Context, g *domain.Game) error {
	if g == nil {
		return fmt.Errorf("nil game payload")
	}
	const query = `
		INSERT INTO games (white_id, black_id, pgn, offer, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version, created_at, updated_at`
	var expires sql.NullTime
	if g.ExpiresAt != nil {
		expires = sql.NullTime{Time: *g.ExpiresAt, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, query, g.WhiteID, g.BlackID, g.PGN, int16(g.Offer), expires).
		Scan(&g.ID, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *pgstore) GameByID(ctx context.Context, id int64) (*domain.Game, error) {
	const query = `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	g, err := s.scanGame(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (s *pgstore) SaveGame(ctx context.Context, g *domain.Game) error {
	if g == nil {
		return fmt.Errorf("nil game payload")
	}
	const query = `
		UPDATE games
		SET pgn = $2, winner = $3, win_reason = $4, offer = $5,
			white_accepted = $6, black_accepted = $7, expires_at = $8,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $9`

	var winner sql.NullInt16
	var reason sql.NullString
	if g.Winner != nil {
		winner = sql.NullInt16{Int16: int16(*g.Winner), Valid: true}
		reason = sql.NullString{String: g.WinReason, Valid: true}
	}
	var expires sql.NullTime
	if g.ExpiresAt != nil {
		expires = sql.NullTime{Time: *g.ExpiresAt, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, query,
		g.ID, g.PGN, winner, reason, int16(g.Offer),
		g.WhiteAccepted, g.BlackAccepted, expires, g.Version,
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleGame
	}
	g.Version++
	return nil
}

func (s *pgstore) GamesByUser(ctx context.Context, userID int64, includeFinished bool) ([]*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE (white_id = $1 OR black_id = $1)`
	if !includeFinished {
		query += ` AND winner IS NULL`
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select games by user: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.Game, 0)
	for rows.Next() {
		g, err := s.scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *pgstore) OngoingGameIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT id FROM games WHERE winner IS NULL ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select ongoing game ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *pgstore) scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var lastGame sql.NullInt64
	if err := row.Scan(&u.ID, &u.ActorID, &u.Username, &u.Rating, &lastGame, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lastGame.Valid {
		u.LastGameID = &lastGame.Int64
	}
	return &u, nil
}

func (s *pgstore) scanGame(row rowScanner) (*domain.Game, error) {
	var g domain.Game
	var winner sql.NullInt16
	var reason sql.NullString
	var offer int16
	var expires sql.NullTime
	if err := row.Scan(
		&g.ID, &g.WhiteID, &g.BlackID, &g.PGN, &winner, &reason, &offer,
		&g.WhiteAccepted, &g.BlackAccepted, &expires, &g.Version, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if winner.Valid {
		w := domain.Winner(winner.Int16)
		g.Winner = &w
		g.WinReason = reason.String
	}
	g.Offer = domain.OfferKind(offer)
	if expires.Valid {
		t := expires.Time
		g.ExpiresAt = &t
	}
	return &g, nil
}
