package game

import (
	"errors"

	"github.com/google/uuid"
)

var ErrNotInitialized = errors.New("session not initialized")
var ErrNotFound = errors.New("not found")
var ErrInvalidIndex = errors.New("invalid slide index")
var ErrVotesLocked = errors.New("votes are locked")
var ErrInvalidState = errors.New("operation not allowed in current state")

// NewState returns a fresh show in setup mode with no content and no players.
func NewState() *State {
	return &State{
		SessionID:   uuid.NewString(),
		Mode:        ModeSetup,
		Comedians:   []Comedian{},
		Phase:       PhaseStory,
		Players:     map[string]*Player{},
		Votes:       map[string]Vote{},
		RoundScores: map[string]int{},
	}
}

// Session owns the single authoritative State. It is not safe for concurrent
// use; the room goroutine is its only caller.
type Session struct {
	state *State
}

func NewSession() *Session { return &Session{} }

// Init installs a state, replacing whatever was there. A nil state means a
// fresh one. Restored snapshots may predate fields, so maps are backfilled.
func (s *Session) Init(state *State) {
	if state == nil {
		s.state = NewState()
		return
	}
	if state.Players == nil {
		state.Players = map[string]*Player{}
	}
	if state.Votes == nil {
		state.Votes = map[string]Vote{}
	}
	if state.RoundScores == nil {
		state.RoundScores = map[string]int{}
	}
	if state.Comedians == nil {
		state.Comedians = []Comedian{}
	}
	s.state = state
}

func (s *Session) Initialized() bool { return s.state != nil }

// State returns the live state for in-loop reads. Callers must not retain it
// across events.
func (s *Session) State() (*State, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	return s.state, nil
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *Session) Snapshot() (*State, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	return s.state.Clone(), nil
}

func (s *Session) AddPlayer(id, name string) (*Player, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	p := &Player{ID: id, Name: name, Connected: true}
	s.state.Players[id] = p
	return p, nil
}

func (s *Session) RemovePlayer(id string) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	if _, ok := s.state.Players[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.Players, id)
	return nil
}

// ReconnectPlayer flips an existing player back to connected, preserving the
// accumulated score. Used when a rejoining client presents a session token.
func (s *Session) ReconnectPlayer(id string) (*Player, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	p, ok := s.state.Players[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Connected = true
	return p, nil
}

// SetPlayerConnected is a no-op for unknown players: a late disconnect for an
// already-removed player is expected, not an error.
func (s *Session) SetPlayerConnected(id string, connected bool) {
	if s.state == nil {
		return
	}
	if p, ok := s.state.Players[id]; ok {
		p.Connected = connected
	}
}

func (s *Session) SubmitVote(playerID string, v Vote) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	if s.state.VotesLocked {
		return ErrVotesLocked
	}
	s.state.Votes[playerID] = v
	return nil
}

func (s *Session) LockVotes() error {
	if s.state == nil {
		return ErrNotInitialized
	}
	s.state.VotesLocked = true
	return nil
}

func (s *Session) SetMode(m Mode) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	s.state.Mode = m
	return nil
}

func (s *Session) SetPhase(p Phase) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	s.state.Phase = p
	return nil
}

// SetComedians replaces the whole lineup, as sent by the manager's setup
// flow. Any entity missing an id gets one assigned.
func (s *Session) SetComedians(comedians []Comedian) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	for i := range comedians {
		if comedians[i].ID == "" {
			comedians[i].ID = uuid.NewString()
		}
		if comedians[i].Stories == nil {
			comedians[i].Stories = []Story{}
		}
		for j := range comedians[i].Stories {
			if comedians[i].Stories[j].ID == "" {
				comedians[i].Stories[j].ID = uuid.NewString()
			}
		}
	}
	s.state.Comedians = comedians
	return nil
}

func (s *Session) AddComedian(name, instagram, photoURL string) (*Comedian, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	c := Comedian{
		ID:        uuid.NewString(),
		Name:      name,
		Instagram: instagram,
		PhotoURL:  photoURL,
		Stories:   []Story{},
	}
	s.state.Comedians = append(s.state.Comedians, c)
	return &s.state.Comedians[len(s.state.Comedians)-1], nil
}

func (s *Session) UpdateComedian(id, name, instagram, photoURL string) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	for i := range s.state.Comedians {
		if s.state.Comedians[i].ID == id {
			s.state.Comedians[i].Name = name
			s.state.Comedians[i].Instagram = instagram
			s.state.Comedians[i].PhotoURL = photoURL
			return nil
		}
	}
	return ErrNotFound
}

func (s *Session) DeleteComedian(id string) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	for i := range s.state.Comedians {
		if s.state.Comedians[i].ID == id {
			s.state.Comedians = append(s.state.Comedians[:i], s.state.Comedians[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Session) AddStory(comedianID, text string, isTrue bool) (*Story, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	for i := range s.state.Comedians {
		if s.state.Comedians[i].ID == comedianID {
			st := Story{ID: uuid.NewString(), Text: text, IsTrue: isTrue}
			s.state.Comedians[i].Stories = append(s.state.Comedians[i].Stories, st)
			stories := s.state.Comedians[i].Stories
			return &stories[len(stories)-1], nil
		}
	}
	return nil, ErrNotFound
}

func (s *Session) UpdateStory(storyID, text string, isTrue bool) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	for i := range s.state.Comedians {
		for j := range s.state.Comedians[i].Stories {
			if s.state.Comedians[i].Stories[j].ID == storyID {
				s.state.Comedians[i].Stories[j].Text = text
				s.state.Comedians[i].Stories[j].IsTrue = isTrue
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *Session) DeleteStory(storyID string) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	for i := range s.state.Comedians {
		for j := range s.state.Comedians[i].Stories {
			if s.state.Comedians[i].Stories[j].ID == storyID {
				stories := s.state.Comedians[i].Stories
				s.state.Comedians[i].Stories = append(stories[:j], stories[j+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

// CurrentStory resolves the cursor to a story, or ErrNotFound when the
// cursor points outside the lineup.
func (s *Session) CurrentStory() (*Story, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	st := s.state
	if st.CurrentComedianIndex < 0 || st.CurrentComedianIndex >= len(st.Comedians) {
		return nil, ErrNotFound
	}
	c := &st.Comedians[st.CurrentComedianIndex]
	if st.CurrentStoryIndex < 0 || st.CurrentStoryIndex >= len(c.Stories) {
		return nil, ErrNotFound
	}
	return &c.Stories[st.CurrentStoryIndex], nil
}

func (s *Session) CurrentComedian() (*Comedian, error) {
	if s.state == nil {
		return nil, ErrNotInitialized
	}
	st := s.state
	if st.CurrentComedianIndex < 0 || st.CurrentComedianIndex >= len(st.Comedians) {
		return nil, ErrNotFound
	}
	return &st.Comedians[st.CurrentComedianIndex], nil
}

// ResetVotes clears the per-story round state. Called on every cursor move.
func (s *Session) ResetVotes() error {
	if s.state == nil {
		return ErrNotInitialized
	}
	s.state.Votes = map[string]Vote{}
	s.state.VotesLocked = false
	s.state.RoundScores = map[string]int{}
	return nil
}

// NextSlide advances the cursor: next story of the same comedian, or the
// first story of the next comedian. Between comedians the phase is set to
// leaderboard rather than story so standings get a slide of their own.
// Returns false when the lineup is exhausted; the caller decides what ending
// the show means.
func (s *Session) NextSlide() (bool, error) {
	if s.state == nil {
		return false, ErrNotInitialized
	}
	st := s.state
	if st.CurrentComedianIndex < 0 || st.CurrentComedianIndex >= len(st.Comedians) {
		return false, nil
	}
	comedian := st.Comedians[st.CurrentComedianIndex]

	if st.CurrentStoryIndex < len(comedian.Stories)-1 {
		st.CurrentStoryIndex++
		st.Phase = PhaseStory
		_ = s.ResetVotes()
		return true, nil
	}

	if st.CurrentComedianIndex < len(st.Comedians)-1 {
		st.CurrentComedianIndex++
		st.CurrentStoryIndex = 0
		st.Phase = PhaseLeaderboard
		_ = s.ResetVotes()
		return true, nil
	}

	return false, nil
}

// JumpToSlide moves the cursor directly, forcing phase back to story. The
// cursor is untouched on out-of-range input.
func (s *Session) JumpToSlide(comedianIndex, storyIndex int) error {
	if s.state == nil {
		return ErrNotInitialized
	}
	st := s.state
	if comedianIndex < 0 || comedianIndex >= len(st.Comedians) {
		return ErrInvalidIndex
	}
	if storyIndex < 0 || storyIndex >= len(st.Comedians[comedianIndex].Stories) {
		return ErrInvalidIndex
	}
	st.CurrentComedianIndex = comedianIndex
	st.CurrentStoryIndex = storyIndex
	st.Phase = PhaseStory
	_ = s.ResetVotes()
	return nil
}
