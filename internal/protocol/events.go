// Package protocol defines the wire format shared by the manager console,
// the stage display, and player phones: a small envelope with a type tag and
// a raw payload, plus the typed payload structs for every event.
package protocol

import (
	"encoding/json"

	"github.com/prettylittleliars/backend/internal/game"
	"github.com/prettylittleliars/backend/internal/scoring"
)

// Client -> server event types.
const (
	EvtManagerConnect = "manager:connect"
	EvtDisplayConnect = "display:connect"
	EvtPlayerJoin     = "player:join"
	EvtGameSetup      = "game:setup"
	EvtGameStart      = "game:start"
	EvtGamePause      = "game:pause"
	EvtGameResume     = "game:resume"
	EvtGameEnd        = "game:end"
	EvtSlideNext      = "slide:next"
	EvtSlideJump      = "slide:jump"
	EvtPhaseAdvance   = "phase:advance"
	EvtComedianAdd    = "comedian:add"
	EvtComedianEdit   = "comedian:edit"
	EvtComedianDelete = "comedian:delete"
	EvtStoryAdd       = "story:add"
	EvtStoryEdit      = "story:edit"
	EvtStoryDelete    = "story:delete"
	EvtVoteSubmit     = "vote:submit"
)

// Server -> client event types.
const (
	EvtStateUpdate      = "state:update"
	EvtPlayerJoined     = "player:joined"
	EvtVoteAcknowledged = "vote:acknowledged"
	EvtVoteCount        = "vote:count"
	EvtVotesLocked      = "votes:locked"
	EvtRevealAnswer     = "reveal:answer"
	EvtLeaderboardShow  = "leaderboard:show"
	EvtError            = "error"
)

// Event is the envelope every frame carries in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope. A nil payload yields a
// payload-less frame.
func NewEvent(eventType string, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: eventType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

type PlayerJoinPayload struct {
	PlayerName string `json:"playerName"`
	// Token, when present, is a session token from an earlier join and
	// reattaches this connection to the same player.
	Token string `json:"token,omitempty"`
}

type GameSetupPayload struct {
	Comedians []game.Comedian `json:"comedians"`
}

type SlideJumpPayload struct {
	ComedianIndex int `json:"comedianIndex"`
	StoryIndex    int `json:"storyIndex"`
}

type ComedianAddPayload struct {
	Name      string `json:"name"`
	Instagram string `json:"instagram"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

type ComedianEditPayload struct {
	ComedianID string `json:"comedianId"`
	Name       string `json:"name"`
	Instagram  string `json:"instagram"`
	PhotoURL   string `json:"photoUrl,omitempty"`
}

type ComedianDeletePayload struct {
	ComedianID string `json:"comedianId"`
}

type StoryAddPayload struct {
	ComedianID string `json:"comedianId"`
	Text       string `json:"text"`
	IsTrue     bool   `json:"isTrue"`
}

type StoryEditPayload struct {
	StoryID string `json:"storyId"`
	Text    string `json:"text"`
	IsTrue  bool   `json:"isTrue"`
}

type StoryDeletePayload struct {
	StoryID string `json:"storyId"`
}

type VoteSubmitPayload struct {
	Vote game.Vote `json:"vote"`
}

type StateUpdatePayload struct {
	GameState *game.State `json:"gameState"`
}

type PlayerJoinedPayload struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type VoteCountPayload struct {
	VoteCount    int `json:"voteCount"`
	TotalPlayers int `json:"totalPlayers"`
}

type VotesLockedPayload struct {
	Distribution scoring.Distribution `json:"distribution"`
}

type RevealAnswerPayload struct {
	IsTrue        bool           `json:"isTrue"`
	PointsAwarded map[string]int `json:"pointsAwarded"`
}

type LeaderboardShowPayload struct {
	TopPlayers []scoring.LeaderboardEntry `json:"topPlayers"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
