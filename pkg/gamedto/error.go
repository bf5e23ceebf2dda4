package gamedto

// DomainError is the error surface handed to transports. Code is a stable
// machine-readable identifier; Message is ready to show to a player.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}

// Stable error codes.
const (
	CodeNotYourTurn     = "not_your_turn"
	CodeIllegalMove     = "illegal_move"
	CodeGameOver        = "game_over"
	CodeNothingToAccept = "nothing_to_accept"
	CodeDuplicateOffer  = "duplicate_offer"
	CodeSelfPlay        = "self_play"
	CodeNoLastGame      = "no_last_game"
	CodeGameNotFound    = "game_not_found"
	CodeUserNotFound    = "user_not_found"
	CodeNotAPlayer      = "not_a_player"
	CodeConflict        = "conflict"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
)
