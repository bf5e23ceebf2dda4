package gamedto

// ActorID identifies the requesting player across all calls; Username is a
// display name refreshed opportunistically.

type StartGameRequest struct {
	ActorID      string `json:"actor_id"`
	Username     string `json:"username,omitempty"`
	OpponentID   string `json:"opponent_id"`
	OpponentName string `json:"opponent_name,omitempty"`
}

type MoveRequest struct {
	ActorID string `json:"actor_id"`
	Move    string `json:"move"`
	GameID  *int64 `json:"game_id,omitempty"`
}

type OfferRequest struct {
	ActorID string `json:"actor_id"`
	Kind    string `json:"kind"` // "draw" or "undo"
	GameID  *int64 `json:"game_id,omitempty"`
}

type AcceptRequest struct {
	ActorID string `json:"actor_id"`
	GameID  *int64 `json:"game_id,omitempty"`
}

type ConcedeRequest struct {
	ActorID string `json:"actor_id"`
	GameID  *int64 `json:"game_id,omitempty"`
}

type StatusRequest struct {
	ActorID   string `json:"actor_id"`
	GameID    *int64 `json:"game_id,omitempty"`
	WithImage bool   `json:"with_image,omitempty"`
	FlipImage bool   `json:"flip_image,omitempty"`
}

type ListGamesRequest struct {
	ActorID         string `json:"actor_id"`
	IncludeFinished bool   `json:"include_finished,omitempty"`
}

type ListGamesResponse struct {
	Games []*GameSummary `json:"games"`
}

type RatingRequest struct {
	ActorID string `json:"actor_id"`
}

type LeaderboardRequest struct {
	TopN int `json:"top_n,omitempty"`
}

type LeaderboardResponse struct {
	Players []*Profile `json:"players"`
}
