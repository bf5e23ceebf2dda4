package gamedto

import "time"

// GameState is the full external view of one session.
type GameState struct {
	GameID        int64      `json:"game_id"`
	White         string     `json:"white"`
	Black         string     `json:"black"`
	MovesSAN      []string   `json:"moves_san"`
	FEN           string     `json:"fen"`
	Turn          string     `json:"turn"`
	Finished      bool       `json:"finished"`
	Result        string     `json:"result,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	PendingOffer  string     `json:"pending_offer,omitempty"`
	OfferedBy     string     `json:"offered_by,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Message       string     `json:"message,omitempty"`
	BoardImageB64 string     `json:"board_image,omitempty"`
}

// GameSummary is the compact listing view.
type GameSummary struct {
	GameID    int64     `json:"game_id"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	MoveCount int       `json:"move_count"`
	Finished  bool      `json:"finished"`
	Result    string    `json:"result,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the external view of a player.
type Profile struct {
	ActorID  string `json:"actor_id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}
